// Package lock provides named in-process gates.
// Rollovers and manual daily-point adjustments share one gate so they never interleave.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a gate is not free within the allowed wait.
var ErrLockTimeout = errors.New("lock acquisition timeout")

type gate struct {
	sem    chan struct{}
	holder string
}

// KeyLock hands out one exclusive gate per key and records who holds it.
// Keys are few and long-lived; gates are never freed.
type KeyLock struct {
	mu    sync.Mutex
	gates map[string]*gate
}

// NewKeyLock creates an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{gates: make(map[string]*gate)}
}

func (kl *KeyLock) gate(key string) *gate {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	g, ok := kl.gates[key]
	if !ok {
		g = &gate{sem: make(chan struct{}, 1)}
		kl.gates[key] = g
	}
	return g
}

func (kl *KeyLock) setHolder(g *gate, holder string) {
	kl.mu.Lock()
	g.holder = holder
	kl.mu.Unlock()
}

// TryLock takes key for holder without waiting.
func (kl *KeyLock) TryLock(key, holder string) bool {
	g := kl.gate(key)
	select {
	case g.sem <- struct{}{}:
		kl.setHolder(g, holder)
		return true
	default:
		return false
	}
}

// Lock waits up to timeout for key.
// Returns ErrLockTimeout, or the context's error if ctx ends first.
func (kl *KeyLock) Lock(ctx context.Context, key, holder string, timeout time.Duration) error {
	g := kl.gate(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case g.sem <- struct{}{}:
		kl.setHolder(g, holder)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrLockTimeout
	}
}

// Unlock releases key. Releasing a free key is a no-op.
func (kl *KeyLock) Unlock(key string) {
	g := kl.gate(key)
	kl.setHolder(g, "")
	select {
	case <-g.sem:
	default:
	}
}

// Holder reports who holds key, or "" when it is free.
func (kl *KeyLock) Holder(key string) string {
	g := kl.gate(key)
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return g.holder
}

// WithLock runs fn while holding key, waiting at most timeout for it.
// fn is not called if ctx is already done once the key is taken.
func (kl *KeyLock) WithLock(ctx context.Context, key, holder string, timeout time.Duration, fn func() error) error {
	if err := kl.Lock(ctx, key, holder, timeout); err != nil {
		return err
	}
	defer kl.Unlock(key)

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}
