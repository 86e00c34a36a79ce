package bootstrap

import (
	"context"

	"anoa.com/ulike/internal/entity"
	contentRepo "anoa.com/ulike/internal/modules/content/repository"
	userRepo "anoa.com/ulike/internal/modules/user/repository"
	"anoa.com/ulike/internal/modules/user/dto"
	userService "anoa.com/ulike/internal/modules/user/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table the service owns.
func Models() []any {
	return []any{
		&entity.Role{},
		&entity.User{},
		&entity.Profile{},
		&entity.ContentItem{},
		&entity.Reaction{},
		&entity.ReactionCounter{},
		&entity.ReactionLog{},
		&entity.Notification{},
		&entity.PointLog{},
		&entity.UserStats{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// DevelopmentUsers are the accounts seeded outside production.
var DevelopmentUsers = []dto.SeedUser{
	{Username: "admin", Email: "admin@ulike.local", Password: "admin123", FullName: "Administrator", Role: entity.RoleAdmin},
	{Username: "member", Email: "member@ulike.local", Password: "member123", FullName: "Demo Member", Role: entity.RoleMember},
}

// Seed creates roles and, in development, demo accounts plus one post
// authored by the admin so the widget has something to react to.
func Seed(ctx context.Context, db *gorm.DB, auth userService.AuthService, development bool, logger *zap.Logger) error {
	if err := auth.SeedRoles(ctx); err != nil {
		return err
	}
	if !development {
		return nil
	}

	if err := auth.SeedUsers(ctx, DevelopmentUsers...); err != nil {
		return err
	}

	admin, err := userRepo.NewUserRepository(db).FindByEmail(ctx, DevelopmentUsers[0].Email)
	if err != nil {
		return err
	}
	demo := &entity.ContentItem{ItemType: entity.ItemPost, ItemID: 1, AuthorID: &admin.ID, Title: "Welcome"}
	if err := contentRepo.NewContentRepository(db).Upsert(ctx, demo); err != nil {
		return err
	}

	logger.Info("Development data seeded",
		zap.String("admin_email", DevelopmentUsers[0].Email),
		zap.String("demo_subject", demo.Subject().String()))
	return nil
}
