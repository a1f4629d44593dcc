// Package platform wires the session service together: configuration,
// database, storage, audio capture and the lifecycle manager.
package platform

import (
	"database/sql"
	"fmt"
	"log/slog"

	// PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/spf13/afero"

	"github.com/rumba-live/rumba/pkg/audio"
	"github.com/rumba-live/rumba/pkg/database/migrate"
	"github.com/rumba-live/rumba/pkg/mediafs"
	"github.com/rumba-live/rumba/pkg/session"
	sessionpg "github.com/rumba-live/rumba/pkg/session/postgres"
)

// Platform holds the constructed components of the service.
type Platform struct {
	cfg      *Config
	db       *sql.DB
	sessions *session.Manager
}

// New builds the platform from configuration: it opens the database, runs
// migrations and constructs the one lifecycle manager for the process.
func New(cfg *Config, log *slog.Logger) (*Platform, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	if err := migrate.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	dirs := mediafs.New(afero.NewOsFs(), cfg.Media.Root, log)
	recorder := audio.NewFFmpegRecorder(audio.Config{
		FFmpegPath:  cfg.Audio.FFmpegPath,
		Source:      cfg.Audio.Source,
		Format:      cfg.Audio.Format,
		StopTimeout: cfg.Audio.StopTimeout,
	}, log)

	manager := session.NewManager(sessionpg.New(db), dirs, recorder, session.ManagerConfig{
		ServerURL: cfg.Server.URL,
		Logger:    log,
	})

	return &Platform{
		cfg:      cfg,
		db:       db,
		sessions: manager,
	}, nil
}

// Config returns the loaded configuration.
func (p *Platform) Config() *Config {
	return p.cfg
}

// DB returns the database handle.
func (p *Platform) DB() *sql.DB {
	return p.db
}

// Sessions returns the session lifecycle manager.
func (p *Platform) Sessions() *session.Manager {
	return p.sessions
}

// Close releases the platform's resources.
func (p *Platform) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
