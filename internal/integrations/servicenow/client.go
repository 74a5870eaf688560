// Package servicenow is a thin client for the ServiceNow Table API using
// per-instance basic auth.
package servicenow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/syncforge/syncforge/internal/util"
)

const (
	requestTimeout = 30 * time.Second
	maxErrorBody   = 200
	maxFieldRows   = 1000
)

// Client calls one ServiceNow instance on behalf of one user.
type Client struct {
	http *resty.Client
}

// Table is one entry of the table catalog.
type Table struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
}

// Field describes one column of a table, from the sys_dictionary metadata.
// Only Name and Mandatory drive matching; the rest is display data.
type Field struct {
	Name      string `json:"name"`
	Label     string `json:"label,omitempty"`
	Mandatory bool   `json:"mandatory"`
	Type      string `json:"type,omitempty"`
	Reference string `json:"reference,omitempty"`
	MaxLength *int   `json:"max_length,omitempty"`
}

// listResponse is the generic Table API envelope.
type listResponse struct {
	Result []map[string]any `json:"result"`
}

// recordResponse is the single-record Table API envelope.
type recordResponse struct {
	Result map[string]any `json:"result"`
}

// NewClient builds a client for one instance.
func NewClient(instanceURL, username, password string) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(instanceURL), "/")).
		SetTimeout(requestTimeout).
		SetBasicAuth(username, password).
		SetHeader("Accept", "application/json")
	return &Client{http: rc}
}

// Validate performs a minimal authenticated read to verify credentials.
func (c *Client) Validate(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("sysparm_limit", "1").
		Get("/api/now/table/sys_user")
	if err != nil {
		return fmt.Errorf("servicenow: validate: %w", err)
	}
	if resp.IsError() {
		return apiError("GET sys_user", resp)
	}
	return nil
}

// ListTables returns entries from the table catalog, optionally filtered by
// a name/label substring.
func (c *Client) ListTables(ctx context.Context, limit int, query string) ([]Table, error) {
	if limit <= 0 {
		limit = 50
	}
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"sysparm_fields": "name,label",
			"sysparm_limit":  strconv.Itoa(limit),
		})
	if q := strings.TrimSpace(query); q != "" {
		req.SetQueryParam("sysparm_query", fmt.Sprintf("nameLIKE%s^ORlabelLIKE%s", q, q))
	}

	var envelope listResponse
	resp, err := req.SetResult(&envelope).Get("/api/now/table/sys_db_object")
	if err != nil {
		return nil, fmt.Errorf("servicenow: list tables: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("GET sys_db_object", resp)
	}

	tables := make([]Table, 0, len(envelope.Result))
	for _, row := range envelope.Result {
		name := strings.TrimSpace(asString(row["name"]))
		if name == "" {
			continue
		}
		tables = append(tables, Table{Name: name, Label: asString(row["label"])})
	}
	return tables, nil
}

// ListFields returns the column dictionary of one table, in the order the
// instance reports it.
func (c *Client) ListFields(ctx context.Context, table string) ([]Field, error) {
	table = strings.TrimSpace(table)

	var envelope listResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"sysparm_query":  fmt.Sprintf("name=%s^elementISNOTEMPTY", table),
			"sysparm_fields": "element,column_label,mandatory,internal_type,reference,max_length",
			"sysparm_limit":  strconv.Itoa(maxFieldRows),
		}).
		SetResult(&envelope).
		Get("/api/now/table/sys_dictionary")
	if err != nil {
		return nil, fmt.Errorf("servicenow: list fields for %s: %w", table, err)
	}
	if resp.IsError() {
		return nil, apiError("GET sys_dictionary", resp)
	}

	fields := make([]Field, 0, len(envelope.Result))
	for _, row := range envelope.Result {
		name := strings.TrimSpace(asString(row["element"]))
		if name == "" {
			continue
		}
		field := Field{
			Name:      name,
			Label:     asString(row["column_label"]),
			Mandatory: asBool(row["mandatory"]),
			Type:      asString(row["internal_type"]),
			Reference: asString(row["reference"]),
		}
		if length, ok := asInt(row["max_length"]); ok {
			field.MaxLength = &length
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// CreateRecord inserts a record into a table and returns the stored row.
func (c *Client) CreateRecord(ctx context.Context, table string, payload map[string]any) (map[string]any, error) {
	var envelope recordResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&envelope).
		Post("/api/now/table/" + strings.TrimSpace(table))
	if err != nil {
		return nil, fmt.Errorf("servicenow: create record in %s: %w", table, err)
	}
	if resp.IsError() {
		return nil, apiError("POST "+table, resp)
	}
	return envelope.Result, nil
}

// UpdateRecord patches an existing record by sys_id and returns the stored
// row.
func (c *Client) UpdateRecord(ctx context.Context, table, sysID string, payload map[string]any) (map[string]any, error) {
	var envelope recordResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&envelope).
		Patch("/api/now/table/" + strings.TrimSpace(table) + "/" + strings.TrimSpace(sysID))
	if err != nil {
		return nil, fmt.Errorf("servicenow: update record %s in %s: %w", sysID, table, err)
	}
	if resp.IsError() {
		return nil, apiError("PATCH "+table, resp)
	}
	return envelope.Result, nil
}

// apiError formats a non-2xx response into an error with a bounded body.
func apiError(op string, resp *resty.Response) error {
	return fmt.Errorf("servicenow: %s: status %d: %s", op, resp.StatusCode(), util.Truncate(string(resp.Body()), maxErrorBody))
}

// asString extracts a string from a raw Table API cell. Cells may arrive as
// plain strings or as {value, display_value} objects.
func asString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case map[string]any:
		return asString(value["value"])
	default:
		return ""
	}
}

// asBool interprets the ServiceNow string booleans.
func asBool(v any) bool {
	s := strings.ToLower(strings.TrimSpace(asString(v)))
	return s == "true" || s == "1"
}

// asInt parses an integer cell, tolerating empty and non-numeric values.
func asInt(v any) (int, bool) {
	s := strings.TrimSpace(asString(v))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
