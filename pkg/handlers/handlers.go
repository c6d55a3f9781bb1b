package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arnavshah/workforce-api/internal/attendance"
	"github.com/arnavshah/workforce-api/internal/config"
	"github.com/arnavshah/workforce-api/internal/notify"
	"github.com/arnavshah/workforce-api/internal/org"
	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/internal/schedule"
	"github.com/arnavshah/workforce-api/internal/scope"
	"github.com/arnavshah/workforce-api/internal/timeouts"
	"github.com/arnavshah/workforce-api/internal/workflow"
	"github.com/arnavshah/workforce-api/pkg/auth"
	"github.com/arnavshah/workforce-api/pkg/models"
)

const principalKey = "principal"

// Options configures the services and the router built on top of them
type Options struct {
	JWTSecret      string
	TokenTTL       time.Duration
	BcryptCost     int
	Workflow       timeouts.Policy
	ShiftCacheTTL  time.Duration
	APIPrefix      string
	LoginRateLimit string
	MetricsEnabled bool
}

// OptionsFromConfig maps the service configuration onto handler options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		JWTSecret:  cfg.Auth.JWTSecret,
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
		Workflow: timeouts.Policy{
			Timeout: cfg.Workflow.StepTimeout,
			Backoff: cfg.Workflow.RetryBackoff,
		},
		ShiftCacheTTL:  cfg.ShiftCacheTTL,
		APIPrefix:      cfg.HTTP.APIPrefix,
		LoginRateLimit: cfg.HTTP.LoginRateLimit,
		MetricsEnabled: cfg.HTTP.MetricsEnabled,
	}
}

// Handler contains dependencies for the route handlers
type Handler struct {
	Store      *repository.Store
	Tokens     *auth.Tokens
	Org        *org.Service
	Requests   *workflow.Engine
	Schedules  *schedule.Service
	Attendance *attendance.Service
	Notifier   *notify.Dispatcher
	Log        zerolog.Logger

	opts Options
}

// New wires every service onto one store
func New(store *repository.Store, opts Options, log zerolog.Logger) (*Handler, error) {
	scopes := scope.NewResolver(store)
	notifier := notify.NewDispatcher(store, scopes, log)
	schedules, err := schedule.NewService(store, scopes, notifier, log, schedule.Options{
		CacheTTL: opts.ShiftCacheTTL,
		Policy:   opts.Workflow,
	})
	if err != nil {
		return nil, err
	}
	return &Handler{
		Store:      store,
		Tokens:     auth.NewTokens(opts.JWTSecret, opts.TokenTTL),
		Org:        org.NewService(store, scopes, auth.Hasher{Cost: opts.BcryptCost}, log),
		Requests:   workflow.NewEngine(store, scopes, notifier, schedules, opts.Workflow, log),
		Schedules:  schedules,
		Attendance: attendance.NewService(store, scopes, log),
		Notifier:   notifier,
		Log:        log.With().Str("component", "http").Logger(),
		opts:       opts,
	}, nil
}

// Close releases the shift catalog cache
func (h *Handler) Close() {
	h.Schedules.Close()
}

// AuthMiddleware verifies the bearer token and rebuilds the principal from
// the database, so role and placement changes apply on the next request
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			h.respondError(c, models.SessionExpired("authorization header required"))
			c.Abort()
			return
		}

		// Strip "Bearer " if present
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))

		claims, err := h.Tokens.VerifyToken(token)
		if err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}

		p, err := h.Store.LoadPrincipal(c.Request.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				err = models.SessionExpired("account no longer exists")
			}
			h.respondError(c, err)
			c.Abort()
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

func principal(c *gin.Context) models.Principal {
	return c.MustGet(principalKey).(models.Principal)
}

type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type userResponse struct {
	models.Principal
	IsActive bool `json:"is_active"`
}

// Login exchanges credentials for a bearer token. Form-encoded and JSON
// bodies are both accepted.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := auth.Authenticate(ctx, h.Store, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "kind": "InvalidCredentials"})
			return
		}
		h.respondError(c, err)
		return
	}

	p, err := h.Store.LoadPrincipal(ctx, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, err := h.Tokens.CreateToken(user)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Log.Info().Str("user", user.ID).Str("role", string(p.Role)).Msg("login")
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer", "user": p})
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, userResponse{Principal: principal(c), IsActive: true})
}

// Health pings the database
func (h *Handler) Health(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		h.Log.Error().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps a failure to its HTTP status and a body carrying the
// machine-readable kind and offending ids
func (h *Handler) respondError(c *gin.Context, err error) {
	h.respondErrorWith(c, err, nil)
}

// respondErrorWith is respondError with a partial result attached
func (h *Handler) respondErrorWith(c *gin.Context, err error, partial any) {
	var de *models.Error
	if !errors.As(err, &de) {
		h.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ids := de.IDs
	if ids == nil {
		ids = []string{}
	}
	msg := de.Message
	if msg == "" {
		msg = string(de.Kind)
	}
	body := gin.H{"error": msg, "kind": de.Kind, "ids": ids}

	status := http.StatusInternalServerError
	switch de.Kind {
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindAccessDenied:
		status = http.StatusForbidden
	case models.KindInvalidTransition:
		status = http.StatusConflict
	case models.KindInvariantViolation:
		status = http.StatusUnprocessableEntity
	case models.KindIncompleteSchedule:
		status = http.StatusUnprocessableEntity
	case models.KindTimeout:
		status = http.StatusServiceUnavailable
		body["retryable"] = true
	case models.KindSessionExpired:
		status = http.StatusUnauthorized
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	if partial != nil {
		body["result"] = partial
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
}
