package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/registrar/internal/service"
)

// attemptClass is how the Retry Controller sees one call result.
type attemptClass struct {
	outcome    string
	network    bool
	retryAfter time.Duration
}

// callRemote runs fn under the retry policy:
//   - network failures are retried up to MaxNetworkRetries times with an
//     exponential backoff starting at RetryBaseDelay
//   - a server retry-after at or below AutoRetryThreshold is slept
//     through and the identical request reissued
//   - anything else is returned to the caller as is
//
// The only error is ctx cancellation during a wait.
func callRemote[T any](ctx context.Context, e *Engine, name string, fn func(context.Context) T, classify func(T) attemptClass) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryBaseDelay
	b.RandomizationFactor = 0
	b.Reset()

	networkRetries, waits := 0, 0
	for attempt := 1; ; attempt++ {
		start := e.time.Now()
		result := fn(ctx)
		class := classify(result)
		e.metrics.call(name, class.outcome, e.time.Now().Sub(start).Seconds())
		e.log.Info("remote call",
			"call", name,
			"outcome", class.outcome,
			"attempt", attempt,
		)

		var delay time.Duration
		switch {
		case class.network && networkRetries < e.cfg.MaxNetworkRetries:
			networkRetries++
			delay = b.NextBackOff()
			if delay == backoff.Stop {
				return result, nil
			}
		case class.retryAfter > 0 && class.retryAfter <= e.cfg.AutoRetryThreshold && waits < e.cfg.MaxNetworkRetries:
			waits++
			delay = class.retryAfter
		default:
			return result, nil
		}

		e.log.Debug("retrying remote call", "call", name, "delay", delay)
		if err := e.time.Sleep(ctx, delay); err != nil {
			e.log.Warn("retry wait interrupted", "call", name, "error", err)
			var zero T
			return zero, err
		}
	}
}

func classifySession(r service.SessionResult) attemptClass {
	c := attemptClass{outcome: string(r.Kind), network: r.Kind == service.SessionNetworkError}
	if r.Kind == service.SessionRateLimited {
		c.retryAfter = r.RetryAfter
	}
	return c
}

func classifyAccount(r service.AccountResponse) attemptClass {
	c := attemptClass{outcome: string(r.Kind), network: r.Kind == service.AccountNetworkError}
	if r.Kind == service.AccountRetryAfter {
		c.retryAfter = r.RetryAfter
	}
	return c
}

func classifySVR(r service.SVRRestoreResult) attemptClass {
	return attemptClass{outcome: string(r.Kind), network: r.Kind == service.SVRRestoreNetworkError}
}

func classifyPreKeys(r service.PreKeyResultKind) attemptClass {
	return attemptClass{outcome: string(r), network: r == service.PreKeyNetworkError}
}

// classifyOutcome adapts any result carrying an OutcomeKind.
func classifyOutcome[T any](kind func(T) service.OutcomeKind) func(T) attemptClass {
	return func(r T) attemptClass {
		k := kind(r)
		return attemptClass{outcome: string(k), network: k == service.OutcomeNetworkError}
	}
}

func outcomeKind(o service.Outcome) service.OutcomeKind { return o.Kind }
