package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pixelforge/backend/internal/models"
)

var testSecret = []byte("test-session-secret")

func signedToken(t *testing.T, secret []byte, subject, role string, expiresAt time.Time) string {
	t.Helper()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

// okHandler echoes the authenticated actor's role (for assertions).
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromCtx(r.Context())
	if actor != nil {
		w.Write([]byte(actor.Role))
	}
	w.WriteHeader(http.StatusOK)
})

func TestSessionAuth_ValidToken(t *testing.T) {
	artistID := uuid.New()
	raw := signedToken(t, testSecret, artistID.String(), models.RoleFreelancer, time.Now().Add(time.Hour))

	mw := SessionAuth(testSecret)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := rec.Body.String(); body != models.RoleFreelancer {
		t.Errorf("expected role %q in body, got %q", models.RoleFreelancer, body)
	}
}

func TestSessionAuth_MissingHeader(t *testing.T) {
	mw := SessionAuth(testSecret)(okHandler)

	cases := []struct {
		name   string
		header string
	}{
		{"no header at all", ""},
		{"empty bearer", "Bearer "},
		{"wrong scheme", "Basic abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestSessionAuth_RejectsBadTokens(t *testing.T) {
	id := uuid.New().String()
	cases := []struct {
		name string
		raw  string
	}{
		{"wrong secret", signedToken(t, []byte("other-secret"), id, models.RoleClient, time.Now().Add(time.Hour))},
		{"expired", signedToken(t, testSecret, id, models.RoleClient, time.Now().Add(-time.Minute))},
		{"non-uuid subject", signedToken(t, testSecret, "not-a-uuid", models.RoleClient, time.Now().Add(time.Hour))},
		{"unknown role", signedToken(t, testSecret, id, "superuser", time.Now().Add(time.Hour))},
		{"garbage", "not.a.jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mw := SessionAuth(testSecret)(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tc.raw)
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSessionAuth_RejectsUnsignedAlg(t *testing.T) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: models.RoleAdmin,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	mw := SessionAuth(testSecret)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for alg=none token, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name     string
		actor    *models.Actor
		allowed  []string
		wantCode int
	}{
		{"matching role", &models.Actor{ID: uuid.New(), Role: models.RoleAdmin}, []string{models.RoleAdmin}, http.StatusOK},
		{"one of several", &models.Actor{ID: uuid.New(), Role: models.RoleFreelancer}, []string{models.RoleFreelancer, models.RoleAdmin}, http.StatusOK},
		{"wrong role", &models.Actor{ID: uuid.New(), Role: models.RoleClient}, []string{models.RoleAdmin}, http.StatusForbidden},
		{"no actor in context", nil, []string{models.RoleAdmin}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mw := RequireRole(tc.allowed...)(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.actor != nil {
				req = req.WithContext(WithActor(req.Context(), tc.actor))
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, rec.Code)
			}
		})
	}
}
