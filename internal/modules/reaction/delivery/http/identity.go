package http

import (
	"encoding/hex"
	"net/http"
	"time"

	"anoa.com/ulike/internal/entity"
	"anoa.com/ulike/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// VisitorCookie names the cookie that keeps an anonymous fingerprint stable
// across requests.
const VisitorCookie = "ulike_visitor"

const visitorCookieMaxAge = int(365 * 24 * time.Hour / time.Second)

// IdentityResolver works out who is reacting from the request alone.
type IdentityResolver interface {
	Resolve(c *gin.Context) (entity.Reactor, bool)
}

// SessionResolver reads the user set by the auth middleware.
type SessionResolver struct{}

func (SessionResolver) Resolve(c *gin.Context) (entity.Reactor, bool) {
	userID, err := response.GetUserID(c)
	if err != nil {
		return entity.Reactor{}, false
	}
	return entity.UserReactor(userID), true
}

// FingerprintResolver identifies guests by a keyed hash of their IP and a
// visitor cookie, issuing the cookie when it is missing.
type FingerprintResolver struct {
	key []byte
}

func NewFingerprintResolver(key string) *FingerprintResolver {
	k := []byte(key)
	// blake2b accepts keys of at most 64 bytes.
	if len(k) > blake2b.Size {
		sum := blake2b.Sum512(k)
		k = sum[:]
	}
	return &FingerprintResolver{key: k}
}

func (r *FingerprintResolver) Resolve(c *gin.Context) (entity.Reactor, bool) {
	visitor, err := c.Cookie(VisitorCookie)
	if err != nil || visitor == "" {
		visitor = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(VisitorCookie, visitor, visitorCookieMaxAge, "/", "", false, true)
	}

	h, err := blake2b.New256(r.key)
	if err != nil {
		return entity.Reactor{}, false
	}
	h.Write([]byte(c.ClientIP()))
	h.Write([]byte{0})
	h.Write([]byte(visitor))

	return entity.AnonymousReactor(hex.EncodeToString(h.Sum(nil))), true
}

// ChainResolver returns the first identity any resolver finds.
type ChainResolver []IdentityResolver

func (chain ChainResolver) Resolve(c *gin.Context) (entity.Reactor, bool) {
	for _, r := range chain {
		if reactor, ok := r.Resolve(c); ok {
			return reactor, true
		}
	}
	return entity.Reactor{}, false
}

// NewIdentityResolver resolves sessions, falling back to fingerprints only
// when guests may react.
func NewIdentityResolver(allowAnonymous bool, fingerprintKey string) IdentityResolver {
	if !allowAnonymous {
		return SessionResolver{}
	}
	return ChainResolver{SessionResolver{}, NewFingerprintResolver(fingerprintKey)}
}
