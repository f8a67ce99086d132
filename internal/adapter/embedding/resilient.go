package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"shoprag/internal/domain"
	"shoprag/internal/logger"
	"shoprag/internal/metrics"
	"shoprag/internal/port"
)

// ResilientOptions configures ResilientEmbedder.
type ResilientOptions struct {
	Timeout      time.Duration // per Embed call, 0 = none
	MaxRetries   uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Consecutive failures before the breaker opens.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultResilientOptions returns the options used by New.
func DefaultResilientOptions() ResilientOptions {
	return ResilientOptions{
		Timeout:          30 * time.Second,
		MaxRetries:       3,
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// ResilientEmbedder adds a timeout, retries and a circuit breaker around
// another embedder. Every failure it returns matches domain.ErrProviderUnavailable.
type ResilientEmbedder struct {
	inner   port.Embedder
	opts    ResilientOptions
	cb      *gobreaker.CircuitBreaker
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewResilientEmbedder(inner port.Embedder, opts ResilientOptions, log *zap.Logger, m *metrics.Metrics) *ResilientEmbedder {
	log = logger.OrNop(log)
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 500 * time.Millisecond
	}

	threshold := opts.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding:" + inner.ModelName(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &ResilientEmbedder{
		inner:   inner,
		opts:    opts,
		cb:      cb,
		log:     log,
		metrics: m,
	}
}

func (r *ResilientEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	res, err := r.cb.Execute(func() (interface{}, error) {
		var out [][]float32
		err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
			vecs, err := r.inner.Embed(ctx, texts)
			if err != nil {
				if isRetryable(err) {
					r.log.Debug("retrying embedding call", zap.Error(err))
					return retry.RetryableError(err)
				}
				return err
			}
			out = vecs
			return nil
		})
		return out, err
	})
	if err != nil {
		r.metrics.ProviderFailure("embedding")
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	return res.([][]float32), nil
}

func (r *ResilientEmbedder) backoff() retry.Backoff {
	b := retry.NewExponential(r.opts.InitialDelay)
	b = retry.WithJitterPercent(10, b)
	if r.opts.MaxDelay > 0 {
		b = retry.WithCappedDuration(r.opts.MaxDelay, b)
	}
	return retry.WithMaxRetries(r.opts.MaxRetries, b)
}

// isRetryable rejects cancellations and client errors other than rate limiting.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.HTTPStatusCode
		return code == http.StatusTooManyRequests || code >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		code := reqErr.HTTPStatusCode
		return code == http.StatusTooManyRequests || code >= 500
	}
	return true
}

func (r *ResilientEmbedder) Dimension() int {
	return r.inner.Dimension()
}

func (r *ResilientEmbedder) ModelName() string {
	return r.inner.ModelName()
}
