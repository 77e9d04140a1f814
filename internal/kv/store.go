// Package kv is the string-keyed storage medium behind the document and
// session repositories. Every record collection is serialized into a single
// value per key; callers read, modify and rewrite whole values.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is fatal for the caller and never retried.
	ErrQuotaExceeded = errors.New("kv: storage quota exceeded")
	// ErrConflict is returned when an optimistic update kept losing races.
	ErrConflict = errors.New("kv: concurrent update conflict")
	// ErrNoChange can be returned by an UpdateFunc to finish without writing.
	ErrNoChange = errors.New("kv: no change")
)

// UpdateFunc receives the current value of a key and returns its next value.
// Returning an error aborts the update and the error is passed to the caller,
// except ErrNoChange which ends the update successfully without a write.
type UpdateFunc func(current string, exists bool) (string, error)

// Store is a synchronous key-value medium with last-write-wins Set and an
// atomic read-modify-write Update for a single key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

const maxUpdateAttempts = 16

func finishUpdate(err error) error {
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	return err
}
