package service_test

import (
	"testing"
	"time"

	"anoa.com/ulike/internal/entity"
	"anoa.com/ulike/internal/modules/user/dto"
	"anoa.com/ulike/internal/modules/user/repository"
	userService "anoa.com/ulike/internal/modules/user/service"
	"anoa.com/ulike/internal/testutil"
	"anoa.com/ulike/pkg/apperror"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "test-secret"

func newAuth(t *testing.T) (userService.AuthService, repository.UserRepository) {
	t.Helper()
	repo := repository.NewUserRepository(testutil.NewDB(t))
	svc := userService.NewAuthService(repo, secret, time.Hour, zap.NewNop())

	require.NoError(t, svc.SeedRoles(t.Context()))
	require.NoError(t, svc.SeedUsers(t.Context(), dto.SeedUser{
		Username: "admin",
		Email:    "admin@ulike.local",
		Password: "admin123",
		FullName: "Administrator",
		Role:     entity.RoleAdmin,
	}))
	return svc, repo
}

func TestLogin(t *testing.T) {
	t.Parallel()
	svc, _ := newAuth(t)

	resp, err := svc.Login(t.Context(), dto.LoginInput{Email: "admin@ulike.local", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Empty(t, resp.User.PasswordHash)
	assert.Equal(t, entity.RoleAdmin, resp.Role.Name)
	assert.Equal(t, "Administrator", resp.Profile.FullName)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID.String(), claims.Subject)
}

func TestLoginInvalidCredentials(t *testing.T) {
	t.Parallel()
	svc, _ := newAuth(t)

	_, err := svc.Login(t.Context(), dto.LoginInput{Email: "admin@ulike.local", Password: "wrong"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Login(t.Context(), dto.LoginInput{Email: "nobody@ulike.local", Password: "admin123"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestSeedIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, repo := newAuth(t)
	ctx := t.Context()

	require.NoError(t, svc.SeedRoles(ctx))
	require.NoError(t, svc.SeedUsers(ctx, dto.SeedUser{
		Username: "admin",
		Email:    "admin@ulike.local",
		Password: "other",
		FullName: "Administrator",
		Role:     entity.RoleAdmin,
	}))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = repo.FindRoleByName(ctx, entity.RoleMember)
	assert.NoError(t, err)
}

func TestMe(t *testing.T) {
	t.Parallel()
	svc, repo := newAuth(t)

	admin, err := repo.FindByEmail(t.Context(), "admin@ulike.local")
	require.NoError(t, err)

	me, err := svc.Me(t.Context(), admin.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "admin", me.Username)
	assert.Empty(t, me.PasswordHash)
}
