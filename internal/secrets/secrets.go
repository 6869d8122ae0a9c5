// Package secrets stores per-account refresh tokens in an OS-backed
// secret store. Tokens never touch the database or config files.
package secrets

import "errors"

// ErrNotFound is returned when no secret is stored under the given key.
var ErrNotFound = errors.New("secret not found")

// Store is the contract the credential manager depends on. Keys are
// opaque; the engine uses one key per account.
type Store interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}
