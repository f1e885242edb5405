package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123"

func newService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(Config{
		Username: "admin",
		Password: "s3cret",
		Secret:   testSecret,
		TTL:      time.Hour,
		HashCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func TestNewService_RequiresCredentials(t *testing.T) {
	if _, err := NewService(Config{Username: "admin", Secret: testSecret}); err == nil {
		t.Fatal("expected error without password")
	}
	if _, err := NewService(Config{Username: "admin", Password: "x"}); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestLogin(t *testing.T) {
	s := newService(t)

	token, exp, err := s.Login("admin", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour+time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := s.Authorize("Bearer " + token)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if claims.Subject != "admin" || claims.Role != RoleAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}

	for _, pair := range [][2]string{{"admin", "wrong"}, {"root", "s3cret"}, {"", ""}, {"Admin", "s3cret"}} {
		tok, _, err := s.Login(pair[0], pair[1])
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q) err = %v", pair[0], pair[1], err)
		}
		if tok != "" {
			t.Errorf("Login(%q, %q) returned a token", pair[0], pair[1])
		}
	}
}

func TestAuthorize_Rejects(t *testing.T) {
	s := newService(t)
	good, _, err := s.Login("admin", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	other, _ := NewService(Config{Username: "admin", Password: "s3cret", Secret: "another-secret-value", HashCost: bcrypt.MinCost})
	foreign, _, _ := other.Login("admin", "s3cret")

	expired := newService(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, _ := expired.Login("admin", "s3cret")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "admin", "role": "admin", "iss": Issuer, "exp": time.Now().Add(time.Hour).Unix(),
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin", "role": "admin", "iss": "elsewhere", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))

	cases := map[string]string{
		"empty":        "",
		"no scheme":    good,
		"basic scheme": "Basic " + good,
		"no token":     "Bearer ",
		"garbage":      "Bearer not-a-token",
		"dev token":    "Bearer dev-token",
		"other secret": "Bearer " + foreign,
		"expired":      "Bearer " + stale,
		"alg none":     "Bearer " + unsigned,
		"wrong issuer": "Bearer " + wrongIssuer,
	}
	for name, header := range cases {
		if _, err := s.Authorize(header); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}

	if _, err := s.Authorize("bearer " + good); err != nil {
		t.Errorf("scheme should be case-insensitive: %v", err)
	}
}

func TestRequireAuth(t *testing.T) {
	s := newService(t)
	token, _, _ := s.Login("admin", "s3cret")

	var seen *Claims
	h := s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/movies/1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"unauthorized"`) {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if seen != nil {
		t.Fatal("handler must not run without a token")
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/movies/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if seen == nil || seen.Subject != "admin" {
		t.Fatalf("claims not on context: %+v", seen)
	}
}
