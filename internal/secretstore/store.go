// Package secretstore holds provider credentials at rest. Two backends
// implement the same capability: a local AES-GCM store persisting
// ciphertext in the database, and AWS Secrets Manager. The backend is
// selected by configuration at startup.
package secretstore

import (
	"context"
	"errors"
)

// ErrSecretNotFound indicates an invalid or unowned secret reference.
var ErrSecretNotFound = errors.New("secret not found")

// Store is the capability interface consumed by the rest of the backend.
// References returned by Put are opaque; only the issuing backend can
// resolve them.
type Store interface {
	// Put stores a secret under a logical name, replacing any previous
	// value, and returns an opaque reference.
	Put(ctx context.Context, userID uint64, name, value string) (string, error)
	// Get resolves a reference back to the plaintext. Fails with
	// ErrSecretNotFound when the reference is invalid or owned by another
	// user.
	Get(ctx context.Context, userID uint64, ref string) (string, error)
	// Delete removes the secret behind a reference. Unknown references are
	// not an error.
	Delete(ctx context.Context, userID uint64, ref string) error
}
