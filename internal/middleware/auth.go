package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"anoa.com/ulike/internal/entity"
	"anoa.com/ulike/pkg/apperror"
	"anoa.com/ulike/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserFinder loads the signed-in user for role checks.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
}

type AuthMiddleware struct {
	users  UserFinder
	secret string
}

func NewAuthMiddleware(users UserFinder, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		users:  users,
		secret: secret,
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	// Fallback to query parameter "token" (useful for WebSockets)
	return c.Query("token")
}

func (m *AuthMiddleware) subject(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", apperror.New(http.StatusUnauthorized, "invalid or expired token", apperror.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", apperror.New(http.StatusUnauthorized, "invalid token claims", apperror.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// RequireAuth rejects requests without a valid session token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			response.ResponseError(c, apperror.New(http.StatusUnauthorized, "authorization required", apperror.ErrUnauthorized))
			c.Abort()
			return
		}

		userID, err := m.subject(tokenString)
		if err != nil {
			response.ResponseError(c, err)
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and lets the
// request through as a guest otherwise.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := bearerToken(c); tokenString != "" {
			if userID, err := m.subject(tokenString); err == nil {
				c.Set("user_id", userID)
			}
		}
		c.Next()
	}
}

func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			response.ResponseError(c, apperror.New(http.StatusUnauthorized, "user not authenticated", apperror.ErrUnauthorized))
			c.Abort()
			return
		}

		user, err := m.users.FindByID(c.Request.Context(), userID.(string))
		if err != nil {
			response.ResponseError(c, apperror.New(http.StatusUnauthorized, "user not found", apperror.ErrUnauthorized))
			c.Abort()
			return
		}

		if user.Role.Name != entity.RoleAdmin {
			response.ResponseError(c, apperror.New(http.StatusForbidden, "admin access required", apperror.ErrForbidden))
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}
