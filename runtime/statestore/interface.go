// Package statestore persists small profile values across sessions, such as
// the user name the assistant remembers.
package statestore

import (
	"context"
	"errors"
	"strings"
)

// KeyRememberedUserName holds the display name detected in a previous session.
const KeyRememberedUserName = "nary_user_name"

// defaultPrefix namespaces keys in shared backends.
const defaultPrefix = "culinaryai"

// Store defines the interface for durable key/value profile storage.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key returns ErrNotFound.
	Delete(ctx context.Context, key string) error
}

var (
	// ErrNotFound is returned when a key doesn't exist in the store.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidKey is returned when a key is empty.
	ErrInvalidKey = errors.New("invalid key: must not be empty")
)

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// LoadRememberedName returns the stored user name, or "" when none is stored.
func LoadRememberedName(ctx context.Context, s Store) (string, error) {
	name, err := s.Get(ctx, KeyRememberedUserName)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return name, err
}

// ForgetRememberedName removes the stored user name. A missing name is not
// an error.
func ForgetRememberedName(ctx context.Context, s Store) error {
	if err := s.Delete(ctx, KeyRememberedUserName); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
