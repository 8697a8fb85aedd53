package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/Proton-105/sigmapips-bot/internal/health"
)

// HealthChecker exposes liveness and readiness checks.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// ProcessHealth derives liveness and readiness from the process state and component checks.
type ProcessHealth struct {
	checker  *health.Checker
	draining atomic.Bool
	log      *slog.Logger
}

var _ HealthChecker = (*ProcessHealth)(nil)

// NewProcessHealth wraps checker with a draining flag.
func NewProcessHealth(checker *health.Checker, log *slog.Logger) *ProcessHealth {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessHealth{checker: checker, log: log}
}

// Drain marks the process as shutting down so readiness starts failing.
func (p *ProcessHealth) Drain() {
	p.draining.Store(true)
}

// Liveness reports success while the process is able to serve requests at all.
func (p *ProcessHealth) Liveness(ctx context.Context) error {
	p.log.Debug("liveness check called")
	return nil
}

// Readiness fails while draining or when any component check fails.
func (p *ProcessHealth) Readiness(ctx context.Context) error {
	p.log.Debug("readiness check called")

	if p.draining.Load() {
		return fmt.Errorf("shutting down")
	}
	if p.checker == nil {
		return nil
	}

	report := p.checker.Check(ctx)
	if report.Healthy() {
		return nil
	}

	failed := make([]string, 0, len(report.Components))
	for _, name := range p.checker.Components() {
		if status, ok := report.Components[name]; ok && status != "OK" {
			failed = append(failed, name)
		}
	}
	return fmt.Errorf("components not ready: %s", strings.Join(failed, ", "))
}
