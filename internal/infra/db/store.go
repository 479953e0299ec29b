// Package db persists verification records and anchor attempts in
// Postgres. Without a DSN the store runs in no-db mode and repositories
// report errDBUnavailable.
package db

import (
	"errors"
	"fmt"
	"log"

	"notary/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("database is not configured")

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set; starting in no-db mode.")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

// Migrate creates the notary tables. Called by notaryd at startup; the
// schema is small enough that automigration beats hand-rolled DDL here.
func (s *Store) Migrate() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.AutoMigrate(
		&VerificationModel{},
		&AnchorAttemptModel{},
	)
}
