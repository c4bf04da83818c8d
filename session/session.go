// Package session provides the storage abstraction for client session state
// that must survive process restarts, such as the persisted principal record.
package session

import "errors"

// ErrNotFound is returned when no record exists under the requested key.
var ErrNotFound = errors.New("session record not found")

// Store defines the interface for durable session-state storage.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}
