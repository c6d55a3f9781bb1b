package database

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Options selects and tunes the database connection
type Options struct {
	// URL selects PostgreSQL when set; otherwise SQLite at Path is used
	URL  string
	Path string

	ConnectAttempts uint64
	SlowThreshold   time.Duration
	Logger          zerolog.Logger
}

// Open connects to PostgreSQL (URL) or SQLite (Path), retrying while the
// server comes up, and applies the embedded migrations.
func Open(ctx context.Context, opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         NewGormLogger(opts.Logger, opts.SlowThreshold),
		PrepareStmt:    false,
		TranslateError: true,
	}

	attempts := opts.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}

	var db *gorm.DB
	backoff := retry.WithMaxRetries(attempts-1, retry.NewConstant(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		if opts.URL != "" {
			db, err = gorm.Open(postgres.New(postgres.Config{
				DSN:                  opts.URL,
				PreferSimpleProtocol: true,
			}), cfg)
		} else {
			db, err = gorm.Open(sqlite.Open(opts.Path), cfg)
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "database handle")
	}
	dialect := "postgres"
	if opts.URL == "" {
		// one connection serializes writers and keeps :memory: databases shared
		sqlDB.SetMaxOpenConns(1)
		dialect = "sqlite3"
	}

	if err := Migrate(ctx, sqlDB, dialect, opts.Logger); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate applies every pending embedded migration
func Migrate(ctx context.Context, db *sql.DB, dialect string, log zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{log: log})

	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "set migration dialect")
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

type gooseLogger struct {
	log zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Debug().Str("component", "migrate").Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatal().Str("component", "migrate").Msgf(format, v...)
}
