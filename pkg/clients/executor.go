package clients

import (
	"context"
	stderrors "errors"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
	"github.com/datastitch/tap-amazon-sp/pkg/logger"
	"github.com/datastitch/tap-amazon-sp/pkg/metrics"
)

// rateLimitHeader is set by the API on every response and carries the
// currently granted request rate for the operation.
const rateLimitHeader = "x-amzn-RateLimit-Limit"

// Authorizer attaches credentials to an outbound request. Invalidate drops
// any cached bearer token so the next Authorize call refreshes it.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
	Invalidate()
}

// Doer is the request execution contract consumed by the API client.
type Doer interface {
	Do(ctx context.Context, operation string, req *http.Request) (*Response, error)
}

// Response is a fully-read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Budget is the published rate and burst for one API operation.
type Budget struct {
	Rate  float64
	Burst int
}

// ExecutorConfig configures retry behavior for the executor.
type ExecutorConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFactor   float64
	MaxRetryTime   time.Duration
	RequestTimeout time.Duration
}

// DefaultExecutorConfig returns the retry configuration used in production:
// up to 5 attempts within a 2 minute budget, 60s per request.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxAttempts:    5,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFactor:   0.25,
		MaxRetryTime:   2 * time.Minute,
		RequestTimeout: 60 * time.Second,
	}
}

// Executor issues signed, rate-limited requests with retry and backoff.
// Each operation gets an independent token bucket sized to its published
// budget; a call blocks until a token is available rather than failing fast.
type Executor struct {
	client     *http.Client
	authorizer Authorizer
	limiters   map[string]*TokenBucket
	defaultTB  *TokenBucket
	config     ExecutorConfig
	logger     *zap.Logger
}

// NewExecutor creates an executor with one token bucket per operation budget.
func NewExecutor(authorizer Authorizer, budgets map[string]Budget, cfg ExecutorConfig) *Executor {
	limiters := make(map[string]*TokenBucket, len(budgets))
	for op, b := range budgets {
		limiters[op] = NewTokenBucket(b.Rate, b.Burst)
	}

	return &Executor{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		authorizer: authorizer,
		limiters:   limiters,
		defaultTB:  NewTokenBucket(1, 1),
		config:     cfg,
		logger:     logger.With(zap.String("component", "executor")),
	}
}

// Limiter returns the token bucket for an operation, falling back to a
// conservative 1 rps bucket for operations without a published budget.
func (e *Executor) Limiter(operation string) *TokenBucket {
	if tb, ok := e.limiters[operation]; ok {
		return tb
	}
	return e.defaultTB
}

// Do executes a request for the named operation. It blocks on the
// operation's token bucket, signs the request, and retries transient
// failures (429, 5xx, timeouts) with exponential backoff and jitter,
// honoring Retry-After. A 401 triggers exactly one re-authentication;
// other 4xx responses surface immediately.
func (e *Executor) Do(ctx context.Context, operation string, req *http.Request) (*Response, error) {
	limiter := e.Limiter(operation)
	deadline := time.Now().Add(e.config.MaxRetryTime)

	var lastErr error
	reauthenticated := false

	for attempt := 0; attempt < e.config.MaxAttempts; attempt++ {
		if !limiter.Allow() {
			metrics.ThrottleWaits.WithLabelValues(operation).Inc()
			if err := limiter.Wait(ctx); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConnection, "rate limit wait cancelled")
			}
		}

		resp, err := e.attempt(ctx, operation, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// 401 handling: one re-authentication, one immediate retry
		if errors.IsType(err, errors.ErrorTypeAuthentication) {
			if reauthenticated {
				return nil, err
			}
			e.logger.Warn("request unauthorized, refreshing credentials",
				zap.String("operation", operation))
			e.authorizer.Invalidate()
			reauthenticated = true
			metrics.APIRetries.WithLabelValues(operation, "auth").Inc()
			continue
		}

		if !errors.IsRetryable(err) {
			return nil, err
		}

		if attempt == e.config.MaxAttempts-1 {
			break
		}

		delay := e.retryDelay(attempt, err)
		if time.Now().Add(delay).After(deadline) {
			e.logger.Error("retry time budget exhausted",
				zap.String("operation", operation),
				zap.Int("attempts", attempt+1))
			break
		}

		reason := "server_error"
		if errors.IsType(err, errors.ErrorTypeRateLimit) {
			reason = "throttled"
		} else if errors.IsType(err, errors.ErrorTypeTimeout) {
			reason = "timeout"
		}
		metrics.APIRetries.WithLabelValues(operation, reason).Inc()

		e.logger.Warn("error receiving data from Amazon SP API, backing off",
			zap.String("operation", operation),
			zap.Duration("sleep", delay),
			zap.Int("attempt", attempt+1))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeConnection, "retry cancelled")
		}
	}

	return nil, errors.Wrap(lastErr, errors.ErrorTypeConnection, "all retry attempts failed")
}

// attempt performs a single signed request and classifies the outcome.
func (e *Executor) attempt(ctx context.Context, operation string, req *http.Request) (*Response, error) {
	timer := metrics.NewTimer(operation)
	defer timer.Stop()

	r, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to clone request")
	}

	if err := e.authorizer.Authorize(ctx, r); err != nil {
		return nil, err
	}

	httpResp, err := e.client.Do(r)
	if err != nil {
		metrics.APIRequests.WithLabelValues(operation, "error").Inc()
		if ctx.Err() != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request cancelled")
		}
		// net/http surfaces client timeouts as url.Error with Timeout() true
		if isTimeout(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "request timed out")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
	}

	metrics.APIRequests.WithLabelValues(operation, strconv.Itoa(httpResp.StatusCode)).Inc()

	if granted := httpResp.Header.Get(rateLimitHeader); granted != "" {
		e.logger.Debug("rate limit header observed",
			zap.String("operation", operation),
			zap.String(rateLimitHeader, granted))
	}

	switch {
	case httpResp.StatusCode >= 200 && httpResp.StatusCode < 300:
		return &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       body,
		}, nil
	case httpResp.StatusCode == http.StatusUnauthorized:
		return nil, errors.New(errors.ErrorTypeAuthentication, "request unauthorized").
			WithDetail("body", string(body))
	case httpResp.StatusCode == http.StatusTooManyRequests:
		err := errors.New(errors.ErrorTypeRateLimit, "quota exceeded for requested resource")
		if retryAfter := httpResp.Header.Get("Retry-After"); retryAfter != "" {
			err = err.WithDetail("retry_after", retryAfter)
		}
		return nil, err
	case httpResp.StatusCode >= 500:
		return nil, errors.Newf(errors.ErrorTypeConnection, "server error %d", httpResp.StatusCode).
			WithDetail("body", string(body))
	default:
		// Remaining 4xx: malformed request, never retried
		return nil, errors.Newf(errors.ErrorTypeValidation, "request rejected with status %d", httpResp.StatusCode).
			WithDetail("body", string(body))
	}
}

// retryDelay computes the next backoff interval. A Retry-After carried on a
// throttled response takes precedence over the computed backoff.
func (e *Executor) retryDelay(attempt int, err error) time.Duration {
	if ra := retryAfterHint(err); ra > 0 {
		return ra
	}

	delay := float64(e.config.InitialDelay) * math.Pow(e.config.Multiplier, float64(attempt))
	if delay > float64(e.config.MaxDelay) {
		delay = float64(e.config.MaxDelay)
	}

	if e.config.JitterFactor > 0 {
		delta := delay * e.config.JitterFactor
		delay = delay - delta + rand.Float64()*2*delta
	}

	return time.Duration(delay)
}

// retryAfterHint extracts a Retry-After duration attached to a throttle error.
func retryAfterHint(err error) time.Duration {
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Details == nil {
		return 0
	}
	raw, ok := e.Details["retry_after"].(string)
	if !ok {
		return 0
	}
	if secs, convErr := strconv.Atoi(raw); convErr == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, parseErr := http.ParseTime(raw); parseErr == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// cloneRequest produces a fresh request for each attempt so stale signatures
// and consumed bodies never leak between retries.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	return r, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
