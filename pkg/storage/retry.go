package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	gax "github.com/googleapis/gax-go/v2"
)

// Retry wraps a FileStore and retries the idempotent operations (Read,
// Delete, Exists, List) on transient errors with exponential backoff.
// Write passes through untouched because the caller's data stream cannot
// be replayed.
//
// Errors wrapping os.ErrNotExist or context cancellation are never retried.
type Retry struct {
	store    FileStore
	attempts int
	backoff  gax.Backoff
}

// NewRetry wraps store with up to attempts tries per operation.
// If attempts is less than 1 it defaults to 3. Zero backoff fields default
// to an initial pause of 100ms doubling up to 2s.
func NewRetry(store FileStore, attempts int, bo gax.Backoff) *Retry {
	if attempts < 1 {
		attempts = 3
	}
	if bo.Initial == 0 {
		bo.Initial = 100 * time.Millisecond
	}
	if bo.Max == 0 {
		bo.Max = 2 * time.Second
	}
	return &Retry{store: store, attempts: attempts, backoff: bo}
}

// do runs op up to r.attempts times, pausing between tries.
func (r *Retry) do(ctx context.Context, op func() error) error {
	bo := r.backoff // Pause mutates internal state, so work on a copy
	var err error
	for i := 0; i < r.attempts; i++ {
		err = op()
		if err == nil || !retryable(err) {
			return err
		}
		if i == r.attempts-1 {
			break
		}
		if gax.Sleep(ctx, bo.Pause()) != nil {
			break
		}
	}
	return err
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Read opens the named file for reading, retrying transient failures.
func (r *Retry) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := r.do(ctx, func() error {
		var e error
		rc, e = r.store.Read(ctx, path)
		return e
	})
	return rc, err
}

// Write opens the named file for writing. Not retried.
func (r *Retry) Write(ctx context.Context, path string) (io.WriteCloser, error) {
	return r.store.Write(ctx, path)
}

// Delete removes the named file, retrying transient failures.
func (r *Retry) Delete(ctx context.Context, path string) error {
	return r.do(ctx, func() error { return r.store.Delete(ctx, path) })
}

// Exists reports whether the named file exists, retrying transient failures.
func (r *Retry) Exists(ctx context.Context, path string) (bool, error) {
	var ok bool
	err := r.do(ctx, func() error {
		var e error
		ok, e = r.store.Exists(ctx, path)
		return e
	})
	return ok, err
}

// List enumerates files under prefix, retrying transient failures.
func (r *Retry) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := r.do(ctx, func() error {
		var e error
		paths, e = r.store.List(ctx, prefix)
		return e
	})
	return paths, err
}

// Compile-time interface check.
var _ FileStore = (*Retry)(nil)
