// Package artifact persists generated drawing artifacts so the browser can
// fetch them after a regeneration. Session state itself is never persisted.
package artifact

import (
	"context"
	"errors"
)

// Store defines operations for persisting session artifacts.
type Store interface {
	Put(ctx context.Context, sessionID, path string, content []byte) error
	Get(ctx context.Context, sessionID, path string) ([]byte, error)
	GetURL(ctx context.Context, sessionID, path string) (string, error)
	List(ctx context.Context, sessionID string) ([]string, error)
}

var ErrNotFound = errors.New("artifact not found")
