package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sigmapips-bot/internal/health"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
)

func TestShutdown_RunsHooksInParallel(t *testing.T) {
	s := NewShutdown(logger.Discard())

	var ran atomic.Int32
	for _, name := range []string{"bot", "http", "jobs"} {
		s.Register(name, func(context.Context) error {
			time.Sleep(100 * time.Millisecond)
			ran.Add(1)
			return nil
		})
	}
	s.Register("nil", nil)

	start := time.Now()
	require.NoError(t, s.Execute(context.Background()))

	assert.Equal(t, int32(3), ran.Load())
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestShutdown_CollectsErrors(t *testing.T) {
	s := NewShutdown(nil)
	s.Register("redis", func(context.Context) error { return errors.New("close failed") })
	s.Register("bot", func(context.Context) error { return nil })

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: close failed")
}

func TestProcessHealth(t *testing.T) {
	checker := health.NewChecker(logger.Discard())
	healthy := true
	checker.AddCheck("redis", health.CheckFunc(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}))

	p := NewProcessHealth(checker, logger.Discard())
	ctx := context.Background()

	assert.NoError(t, p.Liveness(ctx))
	assert.NoError(t, p.Readiness(ctx))

	healthy = false
	err := p.Readiness(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")

	healthy = true
	p.Drain()
	assert.Error(t, p.Readiness(ctx))
	assert.NoError(t, p.Liveness(ctx))
}
