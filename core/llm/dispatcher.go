// Package llm dispatches prompts to a generative-language provider with
// layered fallback: ordered models on the outside, ordered credentials on
// the inside, first success wins.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type DispatcherConfig struct {
	// Models in preference order, primary first. The cheaper primary absorbs
	// most traffic; later entries are quality fallbacks.
	Models []string

	// Credentials in rotation order. A quota-exhausted key is skipped
	// without abandoning a model that may still work under another key.
	Credentials []string

	// MaxRetries is the total attempt budget per (model, credential) pair.
	MaxRetries int

	// RetryDelay is the pause before advancing after a non-quota failure.
	RetryDelay time.Duration

	Params Params
}

type DispatcherOption func(*Dispatcher)

func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// withDispatchSleep replaces the inter-attempt sleep, for tests.
func withDispatchSleep(sleep func(time.Duration)) DispatcherOption {
	return func(d *Dispatcher) {
		d.sleep = sleep
	}
}

type Dispatcher struct {
	config DispatcherConfig
	caller caller
	sleep  func(time.Duration)
	logger *slog.Logger
}

func NewDispatcher(config DispatcherConfig, client *Client, opts ...DispatcherOption) *Dispatcher {
	return newDispatcher(config, client, opts...)
}

func newDispatcher(config DispatcherConfig, c caller, opts ...DispatcherOption) *Dispatcher {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}

	d := &Dispatcher{
		config: config,
		caller: c,
		sleep:  time.Sleep,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch sweeps model x credential combinations until one yields answer
// text. Quota rejections advance immediately to the next credential; other
// failures pause for RetryDelay first. When the sweep is exhausted the error
// is ErrRateLimitExceeded if any rejection was quota-based, otherwise an
// AllAttemptsFailedError wrapping the last failure.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string) (string, error) {
	var (
		lastErr   error
		quotaSeen bool
		attempts  int
	)

	total := len(d.config.Models) * len(d.config.Credentials)

	for _, model := range d.config.Models {
		payload := buildPayload(model, prompt, d.config.Params)

		for _, credential := range d.config.Credentials {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			attempts++

			body, err := d.caller.Generate(ctx, model, credential, payload, d.config.MaxRetries)
			if err == nil {
				answer, extractErr := extractAnswer(body)
				if extractErr == nil {
					d.logger.Debug("generation succeeded",
						"model", model, "attempt", attempts)
					return answer, nil
				}
				err = extractErr
			}

			if errors.Is(err, ErrQuotaExceeded) {
				quotaSeen = true
				lastErr = err
				d.logger.Debug("credential over quota, rotating",
					"model", model, "attempt", attempts)
				continue
			}

			lastErr = err
			d.logger.Warn("generation attempt failed",
				"model", model, "attempt", attempts, "error", err)
			if attempts < total {
				d.sleep(d.config.RetryDelay)
			}
		}
	}

	if quotaSeen {
		return "", ErrRateLimitExceeded
	}
	return "", &AllAttemptsFailedError{Attempts: attempts, Last: lastErr}
}
