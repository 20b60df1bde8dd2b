package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/report-card/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		GinMode:              gin.TestMode,
		CORSAllowedOrigins:   "http://localhost:3000",
		SessionExpireMinutes: 30,
		SessionSweepInterval: 100,
	}
}

func loginBody() *bytes.Buffer {
	return bytes.NewBufferString(`{"email":"teacher@example.com","password":"correct-password"}`)
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	res := rec.Result()
	for _, cookie := range res.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestLoginSetsBothCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestService(t)
	handler := NewHandler(svc, testConfig())

	router := gin.New()
	router.POST("/api/v1/auth/login", handler.Login)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", loginBody())
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	sessionCookie := findCookie(rec, SessionCookieName)
	csrfCookie := findCookie(rec, CSRFCookieName)
	if sessionCookie == nil || csrfCookie == nil {
		t.Fatal("expected both session and csrf cookies")
	}
	if !sessionCookie.HttpOnly || !csrfCookie.HttpOnly {
		t.Fatal("both cookies must be HttpOnly")
	}
	if sessionCookie.Value == csrfCookie.Value {
		t.Fatal("session and csrf cookie values must differ")
	}
	if rec.Header().Get(csrfHeader) != csrfCookie.Value {
		t.Fatal("csrf token must also be exposed via response header")
	}

	var payload struct {
		User map[string]any `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.User["email"] != "teacher@example.com" {
		t.Fatalf("unexpected user payload: %+v", payload.User)
	}
	if _, leaked := payload.User["hashedPassword"]; leaked {
		t.Fatal("password hash must not appear in the response")
	}
	if strings.Contains(rec.Body.String(), "correct-password") {
		t.Fatal("password must not appear in the response")
	}
}

func TestLoginInvalidCredentialsGeneric(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestService(t)
	handler := NewHandler(svc, testConfig())

	router := gin.New()
	router.POST("/api/v1/auth/login", handler.Login)

	for _, body := range []string{
		`{"email":"nobody@example.com","password":"whatever"}`,
		`{"email":"teacher@example.com","password":"wrong"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("unexpected status: %d", rec.Code)
		}
		var payload map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		// 未知のメールアドレスとパスワード不一致は応答で区別できない
		if payload["code"] != "INVALID_CREDENTIALS" {
			t.Fatalf("unexpected code: %s", payload["code"])
		}
	}
}

func TestLoginMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestService(t)
	handler := NewHandler(svc, testConfig())

	router := gin.New()
	router.POST("/api/v1/auth/login", handler.Login)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"email":"not-an-email"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestService(t)
	handler := NewHandler(svc, testConfig())

	router := gin.New()
	router.POST("/api/v1/auth/logout", handler.Logout)

	// クッキー無しでも成功し、クッキー破棄が指示される
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	sessionCookie := findCookie(rec, SessionCookieName)
	if sessionCookie == nil || sessionCookie.MaxAge != -1 {
		t.Fatalf("expected session cookie to be cleared: %+v", sessionCookie)
	}
}

func TestLogoutDeletesSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, users, sessions := newTestService(t)
	handler := NewHandler(svc, testConfig())

	session, err := svc.CreateSession(context.Background(), users.users[1], ClientMeta{})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	router := gin.New()
	router.POST("/api/v1/auth/logout", handler.Logout)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.Token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if _, still := sessions.sessions[session.Token]; still {
		t.Fatal("session should be deleted on logout")
	}
}

func TestStatusNeverErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestService(t)
	handler := NewHandler(svc, testConfig())

	router := gin.New()
	router.GET("/api/v1/auth/status", handler.Status)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Authenticated {
		t.Fatal("expected authenticated=false without a session")
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, users, sessions := newTestService(t)
	handler := NewHandler(svc, testConfig())
	middleware := NewSessionMiddleware(svc, testConfig(), nil)

	var current string
	for i := 0; i < 3; i++ {
		session, err := svc.CreateSession(context.Background(), users.users[1], ClientMeta{})
		if err != nil {
			t.Fatalf("CreateSession returned error: %v", err)
		}
		current = session.Token
	}

	router := gin.New()
	router.Use(middleware.Handler())
	router.POST("/api/v1/auth/logout-all", RequireAuth(), handler.LogoutAll)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout-all", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: current})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var payload struct {
		RevokedCount int64 `json:"revokedCount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.RevokedCount != 3 {
		t.Fatalf("unexpected revoked count: %d", payload.RevokedCount)
	}
	if len(sessions.sessions) != 0 {
		t.Fatalf("expected all sessions gone, %d remain", len(sessions.sessions))
	}
}
