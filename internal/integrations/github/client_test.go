package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func TestViewer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 7, "login": "octocat"}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("token-1", server.URL)
	user, err := client.Viewer(context.Background())
	if err != nil {
		t.Fatalf("viewer: %v", err)
	}
	if user.ID != 7 || user.Login != "octocat" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestViewerUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("bad", server.URL)
	_, err := client.Viewer(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestListRepos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/repos" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("per_page"); got != "100" {
			t.Fatalf("unexpected per_page %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "full_name": "acme/widgets", "private": false, "html_url": "https://github.com/acme/widgets"},
			{"id": 2, "full_name": "acme/gears", "private": true, "html_url": "https://github.com/acme/gears"}
		]`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("token-1", server.URL)
	repos, err := client.ListRepos(context.Background())
	if err != nil {
		t.Fatalf("list repos: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 repos, got %d", len(repos))
	}
	if repos[0].FullName != "acme/widgets" || repos[1].Private != true {
		t.Fatalf("unexpected repos: %+v", repos)
	}
}

func TestGetRepoPreservesFieldOrder(t *testing.T) {
	// Field order must follow the document, not Go map iteration.
	body := `{
		"id": 42,
		"name": "widgets",
		"full_name": "acme/widgets",
		"owner": {"login": "acme", "id": 9},
		"description": "widget factory",
		"created_at": "2020-01-01T00:00:00Z",
		"topics": ["a", "b"],
		"html_url": "https://github.com/acme/widgets"
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("token-1", server.URL)
	doc, err := client.GetRepo(context.Background(), "acme/widgets")
	if err != nil {
		t.Fatalf("get repo: %v", err)
	}

	wantFields := []string{"id", "name", "full_name", "owner", "description", "created_at", "topics", "html_url"}
	if !reflect.DeepEqual(doc.Fields, wantFields) {
		t.Fatalf("unexpected field order: %v", doc.Fields)
	}
	if doc.Raw["full_name"] != "acme/widgets" {
		t.Fatalf("unexpected raw document: %v", doc.Raw)
	}
}

func TestGetRepoNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("token-1", server.URL)
	_, err := client.GetRepo(context.Background(), "acme/missing")
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestTopLevelKeysRejectsNonObject(t *testing.T) {
	if _, err := topLevelKeys([]byte(`[1, 2, 3]`)); err == nil {
		t.Fatalf("expected error for array document")
	}
}
