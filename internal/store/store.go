// Package store keeps the shared click counter behind the counter service.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Store is a single atomic integer.
type Store interface {
	Get(ctx context.Context) (int64, error)
	Incr(ctx context.Context) (int64, error)
	Close() error
}

var ErrClosed = errors.New("store closed")

// Options picks and configures a backend.
type Options struct {
	Driver     string // memory | sqlite | redis
	SQLitePath string
	RedisAddr  string
	RedisKey   string
}

func Open(opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "memory":
		return NewMemory(0), nil
	case "sqlite":
		return OpenSQLite(opts.SQLitePath)
	case "redis":
		return NewRedis(opts.RedisAddr, opts.RedisKey)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// ========================= Memory =========================

type Memory struct {
	mu     sync.Mutex
	n      int64
	closed bool
}

func NewMemory(start int64) *Memory {
	return &Memory{n: start}
}

func (m *Memory) Get(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	return m.n, nil
}

func (m *Memory) Incr(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.n++
	return m.n, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
