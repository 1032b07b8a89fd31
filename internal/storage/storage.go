// Package storage provides the key-value backends that hold per-session state
// (auth tokens and in-progress selections).
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// KV is a durable string key-value store. Writes are last-write-wins.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by backends with a reachable dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SelectionKey is the single fixed key holding a session's in-progress selection.
func SelectionKey(sessionID string) string {
	return "selection:" + sessionID
}

// TokenKey holds a session's opaque gateway token.
func TokenKey(sessionID string) string {
	return "token:" + sessionID
}
