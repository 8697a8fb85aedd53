package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrRequestInProgress means another worker holds the lock for the same key.
	ErrRequestInProgress = errors.New("request with this key is already in progress")
	// ErrStoreUnavailable wraps storage failures so callers can fail open.
	ErrStoreUnavailable = errors.New("idempotency store unavailable")
)

const defaultLockTTL = 5 * time.Minute

type Operation func(ctx context.Context) error

type Result struct {
	// Duplicate is set when the key was already processed and fn was not run.
	Duplicate bool
}

type Manager interface {
	Execute(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fn Operation,
	) (*Result, error)
}

type manager struct {
	store   Store
	lockTTL time.Duration
	now     func() time.Time
	log     *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store:   store,
		lockTTL: defaultLockTTL,
		now:     time.Now,
		log:     log,
	}
}

// Execute runs fn at most once per key within ttl. A failed fn leaves the key unmarked so
// a redelivery is processed again.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if record != nil && record.Status == StatusCompleted {
		return &Result{Duplicate: true}, nil
	}

	locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !locked {
		return nil, ErrRequestInProgress
	}
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	if err := fn(ctx); err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{
		Status:      StatusCompleted,
		ProcessedAt: m.now().UTC(),
	}, ttl); err != nil {
		m.log.Warn("failed to persist idempotency record", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{Duplicate: false}, nil
}
