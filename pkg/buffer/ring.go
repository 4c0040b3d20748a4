package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrDone is returned by Next when the ring is closed for writing and all
// buffered elements have been consumed.
var ErrDone = errors.New("ring iterator done")

// Ring is a thread-safe fixed-capacity ring that overwrites the oldest
// elements when full. It backs the sliding windows used throughout the
// pipeline: the rolling audio sample window, the per-session frame history,
// and the CLI log tail.
//
// Head and tail are absolute element counters; the element at counter i
// lives at buf[i % cap]. Writers never block: when the ring is full the head
// advances and the oldest data is lost. Readers block until data arrives or
// the ring is closed.
type Ring[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

// NewRing creates a Ring that retains at most size elements.
func NewRing[T any](size int) *Ring[T] {
	if size <= 0 {
		panic("buffer: ring size must be positive")
	}
	return &Ring[T]{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]T, size),
	}
}

// Write appends p to the ring, overwriting the oldest elements when the
// capacity is exceeded. It never blocks and always reports len(p) written
// unless the ring is closed.
func (r *Ring[T]) Write(p []T) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr != nil {
		return 0, fmt.Errorf("buffer: write to closed ring: %w", r.closeErr)
	}
	if r.closeWrite {
		return 0, fmt.Errorf("buffer: write to closed ring: %w", io.ErrClosedPipe)
	}

	n := len(p)
	c := int64(len(r.buf))

	if int64(n) >= c {
		// Only the trailing window survives. Everything previously
		// buffered is overwritten.
		src := p[int64(n)-c:]
		r.tail += int64(n)
		r.head = r.tail - c
		start := int(r.head % c)
		k := copy(r.buf[start:], src)
		copy(r.buf, src[k:])
	} else {
		start := int(r.tail % c)
		k := copy(r.buf[start:], p)
		copy(r.buf, p[k:])
		r.tail += int64(n)
		if r.tail-r.head > c {
			r.head = r.tail - c
		}
	}

	select {
	case r.writeNotify <- struct{}{}:
	default:
	}
	return n, nil
}

// Add appends a single element, overwriting the oldest when full.
func (r *Ring[T]) Add(t T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr != nil {
		return fmt.Errorf("buffer: write to closed ring: %w", r.closeErr)
	}
	if r.closeWrite {
		return fmt.Errorf("buffer: write to closed ring: %w", io.ErrClosedPipe)
	}
	r.buf[r.tail%int64(len(r.buf))] = t
	r.tail++
	if r.tail-r.head > int64(len(r.buf)) {
		r.head++
	}
	select {
	case r.writeNotify <- struct{}{}:
	default:
	}
	return nil
}

// Read copies buffered elements into p, oldest first, consuming them.
// It blocks until at least one element is available or the ring is closed.
// Returns io.EOF once the ring is write-closed and drained.
func (r *Ring[T]) Read(p []T) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closeErr != nil {
		return 0, fmt.Errorf("buffer: read from closed ring: %w", r.closeErr)
	}

	for r.head == r.tail {
		if r.closeWrite {
			return 0, io.EOF
		}
		r.mu.Unlock()
		<-r.writeNotify
		r.mu.Lock()
		if r.closeErr != nil {
			return 0, fmt.Errorf("buffer: read from closed ring: %w", r.closeErr)
		}
	}

	c := int64(len(r.buf))
	avail := int(r.tail - r.head)
	start := int(r.head % c)

	var n int
	if start+avail <= len(r.buf) {
		n = copy(p, r.buf[start:start+avail])
	} else {
		n = copy(p, r.buf[start:])
		n += copy(p[n:], r.buf[:avail-n])
	}
	r.head += int64(n)
	return n, nil
}

// Next consumes and returns the oldest buffered element. It blocks until an
// element is available or the ring is closed; ErrDone signals the end of a
// drained, write-closed ring.
func (r *Ring[T]) Next() (t T, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr != nil {
		err = fmt.Errorf("buffer: read from closed ring: %w", r.closeErr)
		return
	}
	for r.head == r.tail {
		if r.closeWrite {
			err = ErrDone
			return
		}
		r.mu.Unlock()
		<-r.writeNotify
		r.mu.Lock()
		if r.closeErr != nil {
			err = fmt.Errorf("buffer: read from closed ring: %w", r.closeErr)
			return
		}
	}
	t = r.buf[r.head%int64(len(r.buf))]
	r.head++
	return t, nil
}

// Discard drops up to n of the oldest buffered elements without reading them.
func (r *Ring[T]) Discard(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr != nil {
		return fmt.Errorf("buffer: discard from closed ring: %w", r.closeErr)
	}
	if int64(n) > r.tail-r.head {
		r.head = r.tail
		return nil
	}
	r.head += int64(n)
	return nil
}

// Snapshot returns a copy of all buffered elements, oldest first, without
// consuming them.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyWindowLocked(int(r.tail - r.head))
}

// Tail returns a copy of the newest n buffered elements, oldest first.
// If fewer than n elements are buffered, all of them are returned.
func (r *Ring[T]) Tail(n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if avail := int(r.tail - r.head); n > avail {
		n = avail
	}
	return r.copyWindowLocked(n)
}

// copyWindowLocked copies the newest n elements in order. Caller holds mu.
func (r *Ring[T]) copyWindowLocked(n int) []T {
	out := make([]T, n)
	c := int64(len(r.buf))
	first := r.tail - int64(n)
	start := int(first % c)
	k := copy(out, r.buf[start:])
	copy(out[k:], r.buf[:int(r.tail%c)])
	return out
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.tail - r.head)
}

// Cap returns the fixed capacity of the ring.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Reset discards all buffered elements. The ring remains usable.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.tail = 0
}

// CloseWrite closes the write side. Buffered elements remain readable;
// once drained, Read returns io.EOF and Next returns ErrDone.
func (r *Ring[T]) CloseWrite() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeWrite {
		return nil
	}
	r.closeWrite = true
	close(r.writeNotify)
	return nil
}

// CloseWithError closes both sides of the ring. All pending and subsequent
// operations fail with the given error (io.ErrClosedPipe if nil).
func (r *Ring[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr != nil {
		return nil
	}
	r.closeErr = err
	if !r.closeWrite {
		r.closeWrite = true
		close(r.writeNotify)
	}
	return nil
}

// Close closes the ring. Equivalent to CloseWithError(io.ErrClosedPipe).
func (r *Ring[T]) Close() error {
	return r.CloseWithError(io.ErrClosedPipe)
}

// Err returns the error the ring was closed with, if any.
func (r *Ring[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeErr
}
