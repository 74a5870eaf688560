package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/syncforge/syncforge/internal/mapping"
)

type memoryFieldCache struct {
	entries map[string][]mapping.TableField
	sets    int
}

func (m *memoryFieldCache) GetFields(_ context.Context, key string) ([]mapping.TableField, bool) {
	fields, ok := m.entries[key]
	return fields, ok
}

func (m *memoryFieldCache) SetFields(_ context.Context, key string, fields []mapping.TableField) {
	m.sets++
	m.entries[key] = fields
}

type countingFetcher struct {
	fields []mapping.TableField
	err    error
	calls  int
}

func (f *countingFetcher) FetchTableFields(_ context.Context, _ mapping.TableCredentials, _ string) ([]mapping.TableField, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.fields, nil
}

func TestCachingFetcherServesFromCache(t *testing.T) {
	fetcher := &countingFetcher{fields: []mapping.TableField{{Name: "state", Required: true}}}
	cache := &memoryFieldCache{entries: map[string][]mapping.TableField{}}
	caching := NewCachingTableFieldFetcher(fetcher, cache)

	creds := mapping.TableCredentials{InstanceURL: "https://dev.service-now.com", Username: "sync"}
	ctx := context.Background()

	first, errFirst := caching.FetchTableFields(ctx, creds, "incident")
	if errFirst != nil {
		t.Fatalf("first fetch: %v", errFirst)
	}
	second, errSecond := caching.FetchTableFields(ctx, creds, "incident")
	if errSecond != nil {
		t.Fatalf("second fetch: %v", errSecond)
	}

	if fetcher.calls != 1 {
		t.Fatalf("expected 1 live fetch, got %d", fetcher.calls)
	}
	if cache.sets != 1 {
		t.Fatalf("expected 1 cache write, got %d", cache.sets)
	}
	if len(first) != 1 || len(second) != 1 || second[0].Name != "state" {
		t.Fatalf("unexpected fields: %v / %v", first, second)
	}
}

func TestCachingFetcherDoesNotCacheFailures(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("boom")}
	cache := &memoryFieldCache{entries: map[string][]mapping.TableField{}}
	caching := NewCachingTableFieldFetcher(fetcher, cache)

	creds := mapping.TableCredentials{InstanceURL: "https://dev.service-now.com", Username: "sync"}
	if _, err := caching.FetchTableFields(context.Background(), creds, "incident"); err == nil {
		t.Fatalf("expected error")
	}
	if cache.sets != 0 {
		t.Fatalf("expected no cache write on failure, got %d", cache.sets)
	}
}

func TestSchemaKeySeparatesUsersAndTables(t *testing.T) {
	a := mapping.TableCredentials{InstanceURL: "https://dev.service-now.com", Username: "alice"}
	b := mapping.TableCredentials{InstanceURL: "https://dev.service-now.com", Username: "bob"}

	if schemaKey(a, "incident") == schemaKey(b, "incident") {
		t.Fatalf("expected distinct keys for distinct users")
	}
	if schemaKey(a, "incident") == schemaKey(a, "problem") {
		t.Fatalf("expected distinct keys for distinct tables")
	}
	if schemaKey(a, "incident") != schemaKey(a, "incident") {
		t.Fatalf("expected stable keys")
	}
}
