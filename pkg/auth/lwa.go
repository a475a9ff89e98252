package auth

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
	"github.com/datastitch/tap-amazon-sp/pkg/logger"
)

// lwaTokenURL is the Login with Amazon token exchange endpoint.
const lwaTokenURL = "https://api.amazon.com/auth/o2/token"

const (
	defaultExpirySkew   = 60 * time.Second
	refreshMaxAttempts  = 3
	refreshInitialDelay = time.Second
)

// TokenProvider owns the LWA session token lifecycle. It exchanges the
// long-lived refresh token for a short-lived access token on first use and
// again whenever the cached token is absent or inside the expiry skew.
// Concurrent callers inside the skew trigger exactly one exchange.
type TokenProvider struct {
	oauthCfg  *oauth2.Config
	refresh   string
	skew      time.Duration

	source oauth2.TokenSource
	mu     sync.Mutex
	logger *zap.Logger
}

// TokenProviderOption customizes a TokenProvider.
type TokenProviderOption func(*TokenProvider)

// WithTokenURL overrides the token exchange endpoint.
func WithTokenURL(url string) TokenProviderOption {
	return func(tp *TokenProvider) {
		tp.oauthCfg.Endpoint = oauth2.Endpoint{TokenURL: url}
	}
}

// WithExpirySkew overrides the refresh-ahead window.
func WithExpirySkew(skew time.Duration) TokenProviderOption {
	return func(tp *TokenProvider) {
		tp.skew = skew
	}
}

// NewTokenProvider creates a token provider for the given credentials.
func NewTokenProvider(creds Credentials, opts ...TokenProviderOption) *TokenProvider {
	tp := &TokenProvider{
		oauthCfg: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: lwaTokenURL},
		},
		refresh: creds.RefreshToken,
		skew:    defaultExpirySkew,
		logger:  logger.With(zap.String("component", "lwa")),
	}
	for _, opt := range opts {
		opt(tp)
	}
	return tp
}

// Token returns a valid access token, refreshing if needed. Transient
// network failures during the exchange are retried a bounded number of
// times; a rejected exchange is fatal immediately.
func (tp *TokenProvider) Token(ctx context.Context) (string, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.source == nil {
		seed := &oauth2.Token{
			RefreshToken: tp.refresh,
			Expiry:       time.Now().Add(-time.Hour),
		}
		tp.source = oauth2.ReuseTokenSourceWithExpiry(nil, tp.oauthCfg.TokenSource(ctx, seed), tp.skew)
	}

	var lastErr error
	for attempt := 0; attempt < refreshMaxAttempts; attempt++ {
		tok, err := tp.source.Token()
		if err == nil {
			return tok.AccessToken, nil
		}
		lastErr = err

		var retrieveErr *oauth2.RetrieveError
		if stderrors.As(err, &retrieveErr) {
			// The exchange itself was rejected: bad refresh token or app
			// credentials. Retrying cannot help.
			return "", errors.Wrap(err, errors.ErrorTypeAuthentication,
				"refresh token exchange rejected")
		}

		if ctx.Err() != nil {
			break
		}

		if attempt < refreshMaxAttempts-1 {
			delay := time.Duration(float64(refreshInitialDelay) * math.Pow(2, float64(attempt)))
			tp.logger.Warn("token refresh failed, retrying",
				zap.Duration("sleep", delay), zap.Error(err))
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return "", errors.Wrap(ctx.Err(), errors.ErrorTypeAuthentication,
					"token refresh cancelled")
			}
		}
	}

	return "", errors.Wrap(lastErr, errors.ErrorTypeAuthentication,
		"failed to refresh access token")
}

// Invalidate drops the cached token so the next Token call performs a fresh
// exchange. Used after the API rejects a bearer token with 401.
func (tp *TokenProvider) Invalidate() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.source = nil
}
