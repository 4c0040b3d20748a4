package kv

import (
	"context"
	"fmt"
	"iter"

	"github.com/vmihailenco/msgpack/v5"
)

// Bucket is a typed view over a Store prefix. Values are msgpack-encoded;
// IDs become the final key segment and must not contain the separator.
type Bucket[T any] struct {
	store  Store
	prefix Key
}

// BucketEntry is one decoded entry from a bucket listing.
type BucketEntry[T any] struct {
	ID    string
	Value *T
}

// NewBucket creates a typed bucket rooted at the given prefix.
func NewBucket[T any](store Store, prefix Key) *Bucket[T] {
	return &Bucket[T]{store: store, prefix: prefix}
}

func (b *Bucket[T]) key(id string) Key {
	k := make(Key, 0, len(b.prefix)+1)
	k = append(k, b.prefix...)
	return append(k, id)
}

// Get retrieves and decodes the value for an ID. Returns ErrNotFound if
// absent.
func (b *Bucket[T]) Get(ctx context.Context, id string) (*T, error) {
	raw, err := b.store.Get(ctx, b.key(id))
	if err != nil {
		return nil, err
	}
	v := new(T)
	if err := msgpack.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("kv: decode %s: %w", b.key(id), err)
	}
	return v, nil
}

// Set encodes and stores a value under an ID.
func (b *Bucket[T]) Set(ctx context.Context, id string, v *T) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", b.key(id), err)
	}
	return b.store.Set(ctx, b.key(id), raw)
}

// Delete removes the value for an ID. No error if absent.
func (b *Bucket[T]) Delete(ctx context.Context, id string) error {
	return b.store.Delete(ctx, b.key(id))
}

// List iterates over all entries in the bucket in ID order.
func (b *Bucket[T]) List(ctx context.Context) iter.Seq2[BucketEntry[T], error] {
	return func(yield func(BucketEntry[T], error) bool) {
		for entry, err := range b.store.List(ctx, b.prefix) {
			if err != nil {
				if !yield(BucketEntry[T]{}, err) {
					return
				}
				continue
			}
			if len(entry.Key) != len(b.prefix)+1 {
				continue // nested keys are not bucket entries
			}
			id := entry.Key[len(entry.Key)-1]
			v := new(T)
			if err := msgpack.Unmarshal(entry.Value, v); err != nil {
				if !yield(BucketEntry[T]{ID: id}, fmt.Errorf("kv: decode %s: %w", entry.Key, err)) {
					return
				}
				continue
			}
			if !yield(BucketEntry[T]{ID: id, Value: v}, nil) {
				return
			}
		}
	}
}
