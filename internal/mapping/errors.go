package mapping

import (
	"errors"
	"fmt"
	"strings"
)

// Failure modes surfaced by the reconciliation service.
var (
	// ErrInvalidDirection indicates an unknown direction tag.
	ErrInvalidDirection = errors.New("direction must be repo_to_table, table_to_repo or bidirectional")
	// ErrInvalidRepositoryIdentifier indicates a repository name without an
	// owner/name separator.
	ErrInvalidRepositoryIdentifier = errors.New("repository must be in owner/name form")
	// ErrMappingExists indicates a uniqueness violation on create.
	ErrMappingExists = errors.New("mapping already exists")
	// ErrCredentialNotConfigured indicates a missing credential binding.
	ErrCredentialNotConfigured = errors.New("integration not configured")
	// ErrCredentialIncomplete indicates a binding that lacks required
	// non-secret configuration.
	ErrCredentialIncomplete = errors.New("integration configuration incomplete")
)

// ValidationError carries every structural violation found in a field
// mapping, not just the first.
type ValidationError struct {
	Violations []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "invalid field mapping"
	}
	return "invalid field mapping: " + strings.Join(e.Violations, "; ")
}

// RemoteFetchError wraps a transport or auth failure from one of the remote
// schema providers.
type RemoteFetchError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("%s fetch failed: %v", e.Provider, e.Err)
}

// Unwrap exposes the underlying transport error.
func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}
