// Package session holds short-lived draft workflow state keyed by
// document id. Sessions expire after TTL; an expired session means the
// user restarts the confirm step.
package session

import (
	"context"
	"errors"
	"time"
)

// TTL is the draft session lifetime. Every write resets it.
const TTL = 3600 * time.Second

const keyPrefix = "draft_session:"

// ErrNotFound is returned when a session is absent or expired.
var ErrNotFound = errors.New("session not found")

// Store persists opaque session payloads with a TTL.
type Store interface {
	// Set writes the payload and (re)starts the TTL clock.
	Set(ctx context.Context, documentID string, payload []byte) error
	// Get returns the payload or ErrNotFound.
	Get(ctx context.Context, documentID string) ([]byte, error)
	Delete(ctx context.Context, documentID string) error
}

func key(documentID string) string {
	return keyPrefix + documentID
}
