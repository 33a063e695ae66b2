package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store is closed")
	// ErrStoreLocked is returned when another process holds the database.
	ErrStoreLocked = errors.New("store is locked by another process")
)

// UpdateFunc receives the current value of a key and returns the value to
// write. keep=false removes the key. A non-nil error aborts the update.
type UpdateFunc func(current string, ok bool) (next string, keep bool, err error)

// KeyValueStore is a persistent string-keyed store. Every domain value is a
// JSON document stored under a single logical key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Update performs a read-modify-write of one key. Updates to the same key
	// are applied one at a time in call order.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// GetJSON decodes the value stored under key into v. It reports false when
// the key is absent.
func GetJSON(ctx context.Context, store KeyValueStore, key string, v any) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// UpdateJSON decodes the value under key into a T (zero value when absent),
// lets fn mutate it and writes the result back atomically.
func UpdateJSON[T any](ctx context.Context, store KeyValueStore, key string, fn func(*T) error) error {
	return store.Update(ctx, key, func(current string, ok bool) (string, bool, error) {
		var value T
		if ok && current != "" {
			if err := json.Unmarshal([]byte(current), &value); err != nil {
				return "", false, fmt.Errorf("failed to decode %s: %w", key, err)
			}
		}
		if err := fn(&value); err != nil {
			return "", false, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", false, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		return string(encoded), true, nil
	})
}

// keyLocks hands out one mutex per key.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
