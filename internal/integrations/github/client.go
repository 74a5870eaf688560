// Package github is a thin read-mostly client for the GitHub REST API,
// authenticated with a personal access token.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/syncforge/syncforge/internal/util"
)

const (
	defaultBaseURL = "https://api.github.com"
	requestTimeout = 20 * time.Second
	maxErrorBody   = 200
)

// Client calls the GitHub REST API on behalf of one token.
type Client struct {
	http *resty.Client
}

// User is the authenticated token owner.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// Repo is one entry of the repository listing.
type Repo struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
	HTMLURL  string `json:"html_url"`
}

// RepoDocument is a single-repository read: the decoded document plus its
// top-level keys in document order. The key order is what downstream
// matching relies on for deterministic results.
type RepoDocument struct {
	Raw    map[string]any
	Fields []string
}

// NewClient builds a client against api.github.com.
func NewClient(token string) *Client {
	return NewClientWithBaseURL(token, defaultBaseURL)
}

// NewClientWithBaseURL builds a client against a custom endpoint, e.g. a
// GitHub Enterprise installation or a test server.
func NewClientWithBaseURL(token, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(requestTimeout).
		SetAuthToken(token).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28")
	return &Client{http: rc}
}

// Viewer returns the authenticated user, which also validates the token.
func (c *Client) Viewer(ctx context.Context) (*User, error) {
	var user User
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&user).
		Get("/user")
	if err != nil {
		return nil, fmt.Errorf("github: get user: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("GET /user", resp)
	}
	return &user, nil
}

// ListRepos lists repositories accessible to the token, most recently
// updated first.
func (c *Client) ListRepos(ctx context.Context) ([]Repo, error) {
	var repos []Repo
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"per_page": "100",
			"sort":     "updated",
		}).
		SetResult(&repos).
		Get("/user/repos")
	if err != nil {
		return nil, fmt.Errorf("github: list repos: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("GET /user/repos", resp)
	}
	return repos, nil
}

// GetRepo reads one repository by owner/name and extracts its top-level
// attribute names in document order.
func (c *Client) GetRepo(ctx context.Context, fullName string) (*RepoDocument, error) {
	fullName = strings.TrimSpace(fullName)
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/repos/" + fullName)
	if err != nil {
		return nil, fmt.Errorf("github: get repo %s: %w", fullName, err)
	}
	if resp.IsError() {
		return nil, apiError("GET /repos/"+fullName, resp)
	}

	body := resp.Body()
	var raw map[string]any
	if errDecode := json.Unmarshal(body, &raw); errDecode != nil {
		return nil, fmt.Errorf("github: decode repo %s: %w", fullName, errDecode)
	}
	fields, errKeys := topLevelKeys(body)
	if errKeys != nil {
		return nil, fmt.Errorf("github: scan repo %s: %w", fullName, errKeys)
	}
	return &RepoDocument{Raw: raw, Fields: fields}, nil
}

// apiError formats a non-2xx response into an error with a bounded body.
func apiError(op string, resp *resty.Response) error {
	return fmt.Errorf("github: %s: status %d: %s", op, resp.StatusCode(), util.Truncate(string(resp.Body()), maxErrorBody))
}

// topLevelKeys streams a JSON object and collects its top-level keys in the
// order the document lists them.
func topLevelKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	var keys []string
	for dec.More() {
		keyTok, errTok := dec.Token()
		if errTok != nil {
			return nil, errTok
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key")
		}
		keys = append(keys, key)
		if errSkip := skipValue(dec); errSkip != nil {
			return nil, errSkip
		}
	}
	return keys, nil
}

// skipValue consumes one JSON value, descending into nested containers.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); ok && (delim == '{' || delim == '[') {
		for dec.More() {
			if errSkip := skipValue(dec); errSkip != nil {
				return errSkip
			}
		}
		_, err = dec.Token()
		return err
	}
	return nil
}
