package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"anoa.com/ulike/internal/entity"
	"anoa.com/ulike/internal/modules/user/dto"
	"anoa.com/ulike/internal/modules/user/repository"
	"anoa.com/ulike/pkg/apperror"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = apperror.New(http.StatusUnauthorized, "invalid credentials", apperror.ErrUnauthorized)

type AuthService interface {
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
	Me(ctx context.Context, userID string) (*entity.User, error)
	// SeedRoles creates the default roles that are missing.
	SeedRoles(ctx context.Context) error
	// SeedUsers creates the given accounts unless their email is taken.
	SeedUsers(ctx context.Context, users ...dto.SeedUser) error
}

type authService struct {
	repo     repository.UserRepository
	secret   string
	tokenTTL time.Duration
	logger   *zap.Logger
}

func NewAuthService(repo repository.UserRepository, secret string, tokenTTL time.Duration, logger *zap.Logger) AuthService {
	return &authService{
		repo:     repo,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger.Named("auth"),
	}
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	user, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.buildAuthResponse(user)
}

func (s *authService) Me(ctx context.Context, userID string) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) buildAuthResponse(user *entity.User) (*dto.AuthResponse, error) {
	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""

	return &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresAt,
		User:        user,
		Role:        &user.Role,
		Profile:     user.Profile,
	}, nil
}

func (s *authService) generateToken(user *entity.User) (string, int64, error) {
	expiresAt := time.Now().Add(s.tokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", 0, err
	}

	return signed, expiresAt.Unix(), nil
}

func (s *authService) SeedRoles(ctx context.Context) error {
	defaultRoles := []entity.Role{
		{Name: entity.RoleAdmin, Description: "Can reconcile counters and manage content"},
		{Name: entity.RoleMember, Description: "Can react to content"},
	}

	for _, role := range defaultRoles {
		_, err := s.repo.FindRoleByName(ctx, role.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		if err := s.repo.CreateRole(ctx, &role); err != nil {
			return err
		}
	}
	return nil
}

func (s *authService) SeedUsers(ctx context.Context, users ...dto.SeedUser) error {
	for _, seed := range users {
		_, err := s.repo.FindByEmail(ctx, seed.Email)
		if err == nil {
			s.logger.Debug("Seed user already exists, skipping", zap.String("email", seed.Email))
			continue
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return err
		}

		role, err := s.repo.FindRoleByName(ctx, seed.Role)
		if err != nil {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user := &entity.User{
			Username:     seed.Username,
			Email:        seed.Email,
			PasswordHash: string(hashed),
			RoleID:       &role.ID,
		}
		if err := s.repo.Create(ctx, user, &entity.Profile{FullName: seed.FullName}); err != nil {
			return err
		}

		s.logger.Info("Seeded user", zap.String("email", seed.Email), zap.String("role", seed.Role))
	}
	return nil
}
