package oauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/pkg/logger"
)

const (
	// Tokens are typically issued for 60 minutes; renewing 5 minutes early
	// keeps in-flight requests from racing the expiry.
	expirySafetyMargin = 5 * time.Minute

	renewalWaitLimit = 30 * time.Second
	renewalPollDelay = 200 * time.Millisecond
)

// TokenCache memoizes one bearer token obtained through the
// client-credentials grant. A single renewal runs at a time; concurrent
// callers wait on the cache (bounded) instead of issuing duplicate
// credential exchanges.
type TokenCache struct {
	config *clientcredentials.Config
	logger logger.Logger

	mu       sync.Mutex
	token    string
	expiry   time.Time
	renewing bool
}

// NewTokenCache creates a new token cache. The client id/secret are sent
// via basic auth, matching the DVSA token endpoint.
func NewTokenCache(tokenURL, clientID, clientSecret, scope string, logger logger.Logger) *TokenCache {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	return &TokenCache{
		config: config,
		logger: logger,
	}
}

// GetToken returns the cached token when it is still valid, otherwise
// renews it. When another caller is already renewing, this one polls the
// cache for up to renewalWaitLimit and fails with entity.ErrAuth if no
// token appears in time.
func (c *TokenCache) GetToken(ctx context.Context) (string, error) {
	deadline := time.Now().Add(renewalWaitLimit)

	for {
		c.mu.Lock()
		if c.token != "" && time.Now().Before(c.expiry) {
			token := c.token
			c.mu.Unlock()
			return token, nil
		}

		if !c.renewing {
			c.renewing = true
			c.mu.Unlock()
			return c.renew(ctx)
		}
		c.mu.Unlock()

		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: timed out waiting for token renewal", entity.ErrAuth)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", entity.ErrAuth, ctx.Err())
		case <-time.After(renewalPollDelay):
		}
	}
}

func (c *TokenCache) renew(ctx context.Context) (string, error) {
	token, err := c.config.Token(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.renewing = false

	if err != nil {
		c.logger.Error("Credential exchange failed", "error", err)
		return "", fmt.Errorf("%w: %v", entity.ErrAuth, err)
	}

	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}

	c.token = token.AccessToken
	c.expiry = expiry.Add(-expirySafetyMargin)

	c.logger.Info("Access token renewed", "cachedUntil", c.expiry.Format(time.RFC3339))

	return c.token, nil
}

// Invalidate drops the cached token so the next caller renews. Used by the
// operator token tool and tests.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiry = time.Time{}
}
