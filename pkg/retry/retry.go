package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	pkgerrors "beacon/pkg/errors"
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// Timer is backoff.Timer, re-exported so tests can drive the executor
// without sleeping.
type Timer = backoff.Timer

// RetryFunc is called after a failed attempt that will be retried. attempt
// is the 1-indexed number of the attempt that failed.
type RetryFunc func(attempt int, err error, nextDelay time.Duration)

// Executor runs a unit of work with unconditional exponential-backoff
// retries. Every error is retried the same way; the last one is returned
// once the attempts are exhausted.
type Executor struct {
	policy  Policy
	timer   Timer
	onRetry RetryFunc
}

type Option func(*Executor)

func WithTimer(timer Timer) Option {
	return func(e *Executor) {
		e.timer = timer
	}
}

func WithOnRetry(fn RetryFunc) Option {
	return func(e *Executor) {
		e.onRetry = fn
	}
}

func NewExecutor(policy Policy, opts ...Option) *Executor {
	e := &Executor{policy: policy.normalized()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Policy() Policy {
	return e.policy
}

// Run calls fn until it succeeds or the attempt limit is reached. A panic
// inside fn is recovered and counted as a failed attempt. Cancelling ctx
// stops any further attempts; callers that must finish in-flight work pass
// a context without cancellation.
func (e *Executor) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(newDoublingBackOff(e.policy.BaseDelay), uint64(e.policy.MaxAttempts-1)),
		ctx,
	)

	attempt := 0
	var lastErr error
	operation := func() error {
		attempt++
		lastErr = safeCall(ctx, fn)
		return lastErr
	}

	notify := func(err error, next time.Duration) {
		if e.onRetry != nil {
			e.onRetry(attempt, err, next)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, b, notify, e.timer)
	if err == nil {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return err
}

func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.RecoverPanic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		return err
	}
	return nil
}

// Do is a convenience for a one-off executor with the given policy.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("retry: nil function")
	}
	return NewExecutor(policy).Run(ctx, fn)
}
