// Package resilience wraps backend calls with retry and per-operation
// circuit breaking. The graph store and the progress queue share one
// Executor so a flapping backend trips a single breaker per operation name.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClass tells the executor what to do with a failed attempt.
// Retry drives the backoff loop; CountFailure drives the breaker.
type ErrorClass struct {
	Retry        bool
	CountFailure bool
}

type Classifier func(err error) ErrorClass

type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
	BreakerProbeCalls   uint32
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		InitialBackoff:      100 * time.Millisecond,
		MaxBackoff:          2 * time.Second,
		BreakerEnabled:      true,
		BreakerMinRequests:  8,
		BreakerFailureRatio: 0.5,
		BreakerOpenFor:      30 * time.Second,
		BreakerProbeCalls:   2,
	}
}

type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.BreakerMinRequests == 0 {
		cfg.BreakerMinRequests = def.BreakerMinRequests
	}
	if cfg.BreakerFailureRatio <= 0 || cfg.BreakerFailureRatio > 1 {
		cfg.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = def.BreakerOpenFor
	}
	if cfg.BreakerProbeCalls == 0 {
		cfg.BreakerProbeCalls = def.BreakerProbeCalls
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn through the operation's breaker and the retry loop.
// A nil classifier treats every error as terminal and breaker-visible.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil operation callback")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = func(error) ErrorClass { return ErrorClass{CountFailure: true} }
	}

	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, fn, classify)
	}
	breaker := e.breaker(op, classify)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.retry(ctx, op, fn, classify)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	backoff := e.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !classify(lastErr).Retry || attempt == e.cfg.MaxAttempts {
			return lastErr
		}

		e.logger.Warn("backend retry",
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("error", lastErr),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
		backoff *= 2
		if backoff > e.cfg.MaxBackoff {
			backoff = e.cfg.MaxBackoff
		}
	}
	return lastErr
}

func (e *Executor) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}
	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerProbeCalls,
		Timeout:     e.cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).CountFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit breaker state change",
				slog.String("operation", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
