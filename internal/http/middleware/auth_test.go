package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func authRouter(am *AuthMiddleware) *gin.Engine {
	r := gin.New()
	r.Use(am.RequireAuth())
	r.GET("/p", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextSubject))
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("s3cret")
	am := NewAuthMiddleware(logger.Nop(), string(secret))
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"valid", "Bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.RegisteredClaims{Subject: "planner", ExpiresAt: future}), http.StatusOK, "planner"},
		{"wrong secret", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{Subject: "x", ExpiresAt: future}), http.StatusUnauthorized, ""},
		{"wrong alg", "Bearer " + signed(t, jwt.SigningMethodHS512, secret, jwt.RegisteredClaims{Subject: "x", ExpiresAt: future}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.RegisteredClaims{Subject: "x", ExpiresAt: past}), http.StatusUnauthorized, ""},
		{"no exp", "Bearer " + signed(t, jwt.SigningMethodHS256, secret, jwt.RegisteredClaims{Subject: "x"}), http.StatusUnauthorized, ""},
	}
	r := authRouter(am)
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status=%d want=%d body=%s", tc.name, rec.Code, tc.status, rec.Body.String())
		}
		if tc.body != "" && rec.Body.String() != tc.body {
			t.Fatalf("%s: body=%q", tc.name, rec.Body.String())
		}
	}
}

func TestRequireAuthDisabledWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(logger.Nop(), "  ")
	if am != nil {
		t.Fatalf("expected nil middleware")
	}
	rec := httptest.NewRecorder()
	authRouter(am).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/p", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestAttachRequestContextEchoesIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachRequestContext())
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); got != "req-1" {
		t.Fatalf("request id=%q", got)
	}
	if rec.Header().Get(HeaderTraceID) == "" {
		t.Fatalf("trace id not set")
	}
}
