package config

import (
	"context"
	"log"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"
	"loanbook/internal/pkg/password"
)

// Seeder handles database seeding
type Seeder struct {
	store repositories.Store
	cfg   SeedConfig
}

// NewSeeder creates a new seeder instance
func NewSeeder(store repositories.Store, cfg SeedConfig) *Seeder {
	return &Seeder{store: store, cfg: cfg}
}

// Run executes all seeders
func (s *Seeder) Run(ctx context.Context) error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedAdminUser(ctx); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedAdminUser creates the first admin when none exists.
// Without SEED_ADMIN_EMAIL/SEED_ADMIN_PASSWORD nothing is created.
func (s *Seeder) seedAdminUser(ctx context.Context) error {
	_, total, err := s.store.Users().List(ctx, repositories.UserFilter{Role: string(domain.RoleAdmin)}, 0, 1)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil // Admin already exists
	}

	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		log.Println("⚠️ Skipping admin seed: SEED_ADMIN_EMAIL / SEED_ADMIN_PASSWORD not set")
		return nil
	}
	if !password.ValidatePassword(s.cfg.AdminPassword) {
		log.Println("⚠️ Skipping admin seed: SEED_ADMIN_PASSWORD is shorter than 8 characters")
		return nil
	}

	hashedPassword, err := password.Hash(s.cfg.AdminPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		Name:     s.cfg.AdminName,
		Email:    s.cfg.AdminEmail,
		Password: hashedPassword,
		Role:     string(domain.RoleAdmin),
		IsActive: true,
	}

	if err := s.store.Users().Create(ctx, admin); err != nil {
		return err
	}

	log.Printf("✅ Admin user created: %s", admin.Email)
	return nil
}
