package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/arnavshah/workforce-api/internal/app"
	"github.com/arnavshah/workforce-api/internal/config"
	"github.com/arnavshah/workforce-api/internal/logger"
)

var (
	once    sync.Once
	router  http.Handler
	initErr error
)

func setup() {
	// .env is only present under vercel dev
	cfg, err := config.Load(".env", "../.env")
	if err != nil {
		initErr = err
		return
	}
	a, err := app.New(context.Background(), cfg, logger.New(cfg.Log.Level, false))
	if err != nil {
		initErr = err
		return
	}
	router = a.Handler
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(setup)
	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"service unavailable"}`))
		return
	}
	router.ServeHTTP(w, r)
}
