package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/syncforge/syncforge/internal/config"
	"github.com/syncforge/syncforge/internal/db"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	payload, errEncode := json.Marshal(body)
	if errEncode != nil {
		t.Fatalf("encode body: %v", errEncode)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var decoded map[string]any
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &decoded); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	return decoded
}

func TestRegisterAndLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := newTestDB(t)
	handler := NewAuthHandler(conn, config.JWTConfig{Secret: "test-secret", ExpiryMinutes: 60})

	router := gin.New()
	router.POST("/register", handler.Register)
	router.POST("/login", handler.Login)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/register", map[string]string{
		"email":    "Dev@Example.com",
		"password": "hunter2hunter2",
	}))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", recorder.Code, recorder.Body.String())
	}
	if body := decodeBody(t, recorder); body["email"] != "dev@example.com" {
		t.Fatalf("expected lowercased email, got %v", body["email"])
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"email":    "dev@example.com",
		"password": "hunter2hunter2",
	}))
	if recorder.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if token, _ := body["token"].(string); token == "" {
		t.Fatalf("expected token in response, got %v", body)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := newTestDB(t)
	handler := NewAuthHandler(conn, config.JWTConfig{Secret: "test-secret", ExpiryMinutes: 60})

	router := gin.New()
	router.POST("/register", handler.Register)

	payload := map[string]string{"email": "dev@example.com", "password": "hunter2hunter2"}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/register", payload))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("first register status %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/register", payload))
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", recorder.Code)
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := newTestDB(t)
	handler := NewAuthHandler(conn, config.JWTConfig{Secret: "test-secret", ExpiryMinutes: 60})

	router := gin.New()
	router.POST("/register", handler.Register)

	cases := []map[string]string{
		{"email": "not-an-email", "password": "hunter2hunter2"},
		{"email": "dev@example.com", "password": "short"},
		{"email": "", "password": "hunter2hunter2"},
	}
	for _, payload := range cases {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/register", payload))
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", payload, recorder.Code)
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := newTestDB(t)
	handler := NewAuthHandler(conn, config.JWTConfig{Secret: "test-secret", ExpiryMinutes: 60})

	router := gin.New()
	router.POST("/register", handler.Register)
	router.POST("/login", handler.Login)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/register", map[string]string{
		"email": "dev@example.com", "password": "hunter2hunter2",
	}))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register status %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"email": "dev@example.com", "password": "wrong-password",
	}))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"email": "nobody@example.com", "password": "hunter2hunter2",
	}))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", recorder.Code)
	}
}
