// Command seed provisions the baseline rows a fresh deployment needs: the
// point categories and an initial administrator account.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/eco-coord-api/internal/models"
	"github.com/noah-isme/eco-coord-api/internal/repository"
	"github.com/noah-isme/eco-coord-api/pkg/config"
	"github.com/noah-isme/eco-coord-api/pkg/database"
)

var defaultCategories = []struct {
	name       string
	multiplier float64
}{
	{"Awareness", 1},
	{"Conservation", 2},
	{"Restoration", 3},
}

func main() {
	var (
		adminEmail    string
		adminPassword string
		adminName     string
		timeout       time.Duration
	)
	flag.StringVar(&adminEmail, "admin-email", "admin@example.org", "initial administrator email")
	flag.StringVar(&adminPassword, "admin-password", "", "initial administrator password (required)")
	flag.StringVar(&adminName, "admin-name", "Portal Administrator", "initial administrator display name")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "overall seeding timeout")
	flag.Parse()

	if adminPassword == "" {
		log.Fatal("-admin-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, category := range defaultCategories {
		const query = `INSERT INTO point_categories (id, name, multiplier, created_at)
			VALUES ($1, $2, $3, $4) ON CONFLICT (name) DO NOTHING`
		if _, err := db.ExecContext(ctx, query, uuid.NewString(), category.name, category.multiplier, time.Now().UTC()); err != nil {
			log.Fatalf("seed category %s: %v", category.name, err)
		}
		fmt.Printf("category %-14s multiplier %.0f\n", category.name, category.multiplier)
	}

	users := repository.NewUserRepository(db)
	if _, err := users.FindByEmail(ctx, adminEmail); err == nil {
		fmt.Printf("admin %s already exists, skipping\n", adminEmail)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	err = users.Create(ctx, &models.User{
		Email:        adminEmail,
		PasswordHash: string(hash),
		FullName:     adminName,
		Role:         models.RoleAdmin,
		Active:       true,
	})
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	fmt.Printf("admin %s created\n", adminEmail)
}
