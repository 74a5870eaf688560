package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/syncforge/syncforge/internal/models"
	"github.com/syncforge/syncforge/internal/secretstore"
)

func TestGitHubConnectStoresSecretAndBinding(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := newTestDB(t)

	user := models.User{Email: "dev@example.com", Password: "hash"}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	store, errStore := secretstore.NewLocalStore(conn, "test-passphrase")
	if errStore != nil {
		t.Fatalf("new local store: %v", errStore)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 7, "login": "octocat"}`))
	}))
	defer upstream.Close()

	handler := NewGitHubHandler(conn, store, upstream.URL)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("userID", user.ID) })
	router.POST("/integrations/github", handler.Connect)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/integrations/github", map[string]string{
		"token": "ghp_token",
		"label": "work",
	}))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("connect status %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["login"] != "octocat" || body["label"] != "work" {
		t.Fatalf("unexpected response: %v", body)
	}

	var binding models.Integration
	if errFind := conn.Where("user_id = ? AND provider = ? AND label = ?",
		user.ID, models.ProviderGitHub, "work").First(&binding).Error; errFind != nil {
		t.Fatalf("load binding: %v", errFind)
	}
	if binding.SecretRef == "" {
		t.Fatalf("expected secret reference stored")
	}
	if binding.LastTestOK == nil || !*binding.LastTestOK {
		t.Fatalf("expected connect marked tested ok, got %+v", binding)
	}

	token, errGet := store.Get(context.Background(), user.ID, binding.SecretRef)
	if errGet != nil {
		t.Fatalf("resolve secret: %v", errGet)
	}
	if token != "ghp_token" {
		t.Fatalf("expected token round-trip, got %q", token)
	}

	// Reconnecting the same label replaces the token instead of duplicating
	// the binding.
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/integrations/github", map[string]string{
		"token": "ghp_rotated",
		"label": "work",
	}))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("reconnect status %d", recorder.Code)
	}

	var count int64
	conn.Model(&models.Integration{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected single binding, got %d", count)
	}
}

func TestGitHubConnectRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := newTestDB(t)

	user := models.User{Email: "dev@example.com", Password: "hash"}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	store, _ := secretstore.NewLocalStore(conn, "test-passphrase")

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
	}))
	defer upstream.Close()

	handler := NewGitHubHandler(conn, store, upstream.URL)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("userID", user.ID) })
	router.POST("/integrations/github", handler.Connect)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, jsonRequest(t, http.MethodPost, "/integrations/github", map[string]string{
		"token": "bad-token",
	}))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}

	var count int64
	conn.Model(&models.Integration{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no binding persisted, got %d", count)
	}
}
