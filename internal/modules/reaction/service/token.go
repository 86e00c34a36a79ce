package service

import (
	"fmt"
	"time"

	"anoa.com/ulike/internal/entity"
	"anoa.com/ulike/pkg/apperror"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken rejects a toggle whose anti-forgery token does not match
// the subject and reactor it is presented for.
var ErrInvalidToken = fmt.Errorf("%w: invalid or expired reaction token", apperror.ErrUnauthorized)

const tokenIssuer = "ulike"

type tokenClaims struct {
	Ref string `json:"ref"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks anti-forgery tokens bound to a
// (subject, reactor) pair.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a token for reactor acting on subject.
func (i *TokenIssuer) Issue(subject entity.Subject, reactor entity.Reactor) (string, error) {
	if reactor.IsZero() {
		return "", entity.ErrInvalidReactor
	}

	now := i.now()
	claims := tokenClaims{
		Ref: subject.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   reactor.Key(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate checks that token was issued by this service for exactly this
// subject and reactor and has not expired.
func (i *TokenIssuer) Validate(tokenString string, subject entity.Subject, reactor entity.Reactor) error {
	if tokenString == "" || reactor.IsZero() {
		return ErrInvalidToken
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}

	if claims.Subject != reactor.Key() || claims.Ref != subject.String() {
		return ErrInvalidToken
	}
	return nil
}
