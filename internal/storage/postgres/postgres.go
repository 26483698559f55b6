// Package postgres implements the storage.Backend interface on PostgreSQL
// through the shared GORM backend.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/webarportal/portal/internal/database"
	gormstorage "github.com/webarportal/portal/internal/storage/gorm"
)

// Config holds connection settings.
type Config struct {
	DSN string
}

// Backend connects lazily in Init and then delegates to the GORM backend.
type Backend struct {
	*gormstorage.Backend
	cfg Config
	log zerolog.Logger
}

// New creates a postgres backend. No connection is made until Init.
func New(cfg Config, log zerolog.Logger) *Backend {
	return &Backend{
		cfg: cfg,
		log: log.With().Str("component", "postgres").Logger(),
	}
}

// Init connects and runs schema migration.
func (b *Backend) Init() error {
	db, err := database.GetPostgresDB(b.cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.log})

	if err := b.Backend.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.log.Info().Msg("Connected to database")
	return nil
}

// Close releases the connection pool if Init succeeded.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
