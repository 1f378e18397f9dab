package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func identityHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := CurrentUserID(r.Context())
		if !ok {
			userID = "anonymous"
		}
		w.Write([]byte(userID))
	})
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "no header", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "valid token", header: "Bearer " + signToken(t, testSecret, "u1", time.Hour), wantStatus: http.StatusOK, wantBody: "u1"},
		{name: "lowercase scheme", header: "bearer " + signToken(t, testSecret, "u2", time.Hour), wantStatus: http.StatusOK, wantBody: "u2"},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other", "u1", time.Hour), wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, testSecret, "u1", -time.Hour), wantStatus: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + signToken(t, testSecret, "", time.Hour), wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic dTE6cGFzcw==", wantStatus: http.StatusUnauthorized},
	}

	handler := Auth(testSecret)(identityHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	handler := Auth(testSecret)(RequireUser(identityHandler()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("content type = %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u1", time.Hour))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "u1" {
		t.Fatalf("signed-in request = %d %q", rec.Code, rec.Body.String())
	}
}
