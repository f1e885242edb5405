package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// Issuer is stamped into every token and required on verification.
	Issuer = "cinefree"
	// RoleAdmin is the only role the catalog knows.
	RoleAdmin = "admin"

	DefaultTTL = 12 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Config struct {
	Username string
	Password string
	Secret   string
	TTL      time.Duration
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
}

type Service struct {
	username []byte
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewService hashes the configured admin password once so that login never
// compares plaintext.
func NewService(cfg Config) (*Service, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("admin username and password are required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	cost := cfg.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		username: []byte(cfg.Username),
		hash:     hash,
		secret:   []byte(cfg.Secret),
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Login checks the pair against the configured admin and issues a session
// token. Unknown user and wrong password are indistinguishable.
func (s *Service) Login(username, password string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), s.username) == 1
	passErr := bcrypt.CompareHashAndPassword(s.hash, []byte(password))
	if !userOK || passErr != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.issue(username)
}

func (s *Service) issue(subject string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwtClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// ParseToken verifies signature, algorithm, issuer and expiry.
func (s *Service) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	c, ok := token.Claims.(*jwtClaims)
	if !ok || c.Role != RoleAdmin {
		return nil, ErrUnauthorized
	}
	return &Claims{Subject: c.Subject, Role: c.Role, ExpiresAt: c.ExpiresAt.Time}, nil
}

// Authorize validates an Authorization header value of the form
// "Bearer <token>".
func (s *Service) Authorize(header string) (*Claims, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, ErrUnauthorized
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return nil, ErrUnauthorized
	}
	return s.ParseToken(tok)
}

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) *Claims {
	val, ok := ctx.Value(claimsKey).(*Claims)
	if !ok {
		return nil
	}
	return val
}

// RequireAuth rejects requests without a valid bearer token before the
// wrapped handler sees the body.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.Authorize(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="cinefree"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
