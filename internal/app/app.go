// Package app assembles the database, services and HTTP stack from configuration
package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/arnavshah/workforce-api/internal/config"
	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/internal/seed"
	"github.com/arnavshah/workforce-api/pkg/auth"
	"github.com/arnavshah/workforce-api/pkg/database"
	"github.com/arnavshah/workforce-api/pkg/handlers"
)

type App struct {
	// Handler is the router wrapped with CORS
	Handler http.Handler

	api *handlers.Handler
	db  *gorm.DB
}

// New opens the database, bootstraps the admin account and optional sample
// data, and builds the router
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if cfg.HTTP.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.HTTP.GinMode)
	}

	db, err := database.Open(ctx, database.Options{
		URL:             cfg.Database.URL,
		Path:            cfg.Database.Path,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		SlowThreshold:   cfg.Database.SlowThreshold,
		Logger:          log.With().Str("component", "database").Logger(),
	})
	if err != nil {
		return nil, err
	}
	a := &App{db: db}

	store := repository.New(db)
	hasher := auth.Hasher{Cost: cfg.Auth.BcryptCost}
	if err := auth.EnsureAdminExists(ctx, store, hasher, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, log); err != nil {
		a.Close()
		return nil, err
	}
	seeder := seed.New(store, hasher, log)
	if err := seeder.Shifts(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if cfg.SeedSampleData {
		if err := seeder.Sample(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.api, err = handlers.New(store, handlers.OptionsFromConfig(cfg), log)
	if err != nil {
		a.Close()
		return nil, err
	}
	router, err := a.api.Router()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "WWW-Authenticate"},
		AllowCredentials: true,
	}).Handler(router)
	return a, nil
}

// Close releases the caches and the database connection
func (a *App) Close() error {
	if a.api != nil {
		a.api.Close()
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
