package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/arnavshah/workforce-api/pkg/models"
)

var jwtAlgorithm = jwt.SigningMethodHS256

// Claims represents the JWT claims. Subject carries the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies session tokens
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// CreateToken creates a new JWT token for a user
func (t *Tokens) CreateToken(user *models.User) (string, error) {
	now := t.now()
	claims := &Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(t.secret)
}

// VerifyToken verifies a JWT token. Every failure, expired or not, is a
// SessionExpired error: the caller has to log in again either way.
func (t *Tokens) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.SessionExpired("token expired")
		}
		return nil, &models.Error{Kind: models.KindSessionExpired, Message: "invalid token", Err: err}
	}
	if !token.Valid || claims.Subject == "" {
		return nil, models.SessionExpired("invalid token")
	}
	return claims, nil
}

// Hasher hashes passwords with bcrypt at a fixed cost
type Hasher struct {
	Cost int
}

// HashPassword hashes a password using bcrypt
func (h Hasher) HashPassword(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// UserStore is the slice of the repository that authentication needs
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	CreateUser(ctx context.Context, u *models.User) error
}

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticate checks a username/password pair against an active account
func Authenticate(ctx context.Context, users UserStore, username, password string) (*models.User, error) {
	u, err := users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive || !CheckPasswordHash(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// EnsureAdminExists creates the bootstrap admin account when there are no users yet
func EnsureAdminExists(ctx context.Context, users UserStore, h Hasher, username, password string, log zerolog.Logger) error {
	count, err := users.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := h.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:           models.NewID(),
		Username:     username,
		PasswordHash: hash,
		FullName:     "Administrator",
		Role:         models.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return err
	}
	log.Info().Str("username", username).Msg("default admin user created")
	return nil
}
