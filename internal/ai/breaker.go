package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// breakerBackend stops calling a backend after consecutive transport or
// status failures so that one unreachable server does not cost a full
// timeout for every remaining file of the run.
type breakerBackend struct {
	inner   Backend
	breaker *gobreaker.CircuitBreaker
}

// WithBreaker wraps b so that the given number of consecutive failed calls
// trips the circuit.
// Once open, Complete returns ErrBreakerOpen without contacting b.
func WithBreaker(b Backend, failures int) Backend {
	if failures <= 0 {
		return b
	}
	settings := gobreaker.Settings{
		Name:        b.Name(),
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("AI backend circuit changed state", "backend", name, "from", from.String(), "to", to.String())
		},
		// An empty answer or a cancelled run says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNoResult) ||
				errors.Is(err, context.Canceled)
		},
	}
	return &breakerBackend{inner: b, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerBackend) Name() string { return b.inner.Name() }

func (b *breakerBackend) IsAvailable(ctx context.Context) bool {
	if b.breaker.State() == gobreaker.StateOpen {
		return false
	}
	return b.inner.IsAvailable(ctx)
}

func (b *breakerBackend) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Complete(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%s: %w", b.inner.Name(), ErrBreakerOpen)
	}
	if err != nil {
		return "", err
	}
	s, _ := out.(string)
	return s, nil
}
