package drive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"

	"github.com/teemow/gdriveapp/internal/instrumentation"
	"github.com/teemow/gdriveapp/internal/logging"
)

// RetryConfig controls retries of transient Drive API failures.
type RetryConfig struct {
	// MaxTries is the total number of attempts per call. 1 disables retries.
	MaxTries uint

	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns 5 attempts with backoff from 500ms up to 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

func (r RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if r.MaxTries == 0 {
		r.MaxTries = def.MaxTries
	}
	if r.InitialInterval <= 0 {
		r.InitialInterval = def.InitialInterval
	}
	if r.MaxInterval <= 0 {
		r.MaxInterval = def.MaxInterval
	}
	if r.MaxInterval < r.InitialInterval {
		r.MaxInterval = r.InitialInterval
	}
	return r
}

// isRetryable reports whether a failed call may succeed when repeated.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		case http.StatusForbidden:
			for _, item := range apiErr.Errors {
				if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
					return true
				}
			}
		}
		return false
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// call runs fn inside a client span, retrying transient failures when
// retryable is set, and records the operation metrics.
func (c *Client) call(ctx context.Context, operation string, retryable bool, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceDrive, operation, attrs...)
	defer span.End()

	start := time.Now()
	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		err := fn(ctx)
		var permanent *backoff.PermanentError
		if err != nil && !errors.As(err, &permanent) && (!retryable || !isRetryable(err)) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.retry.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("retrying drive request",
				logging.Operation(operation),
				logging.Attempt(attempts),
				slog.Duration("backoff", next),
				logging.Err(err))
		}),
	)

	span.SetAttributes(attribute.Int(instrumentation.SpanAttrRetries, attempts-1))

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceDrive, operation, status, time.Since(start))

	return err
}
