package exchange

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/spendgate/spendgate/config"
)

// Registry holds the set of issuers whose credentials are accepted. The static
// set comes from configuration; a remote trust list, when configured, can only
// add to it. Issuers are never auto-trusted on first sight: an identifier
// absent from both sets stays untrusted until registered out of band.
type Registry struct {
	static map[string]bool

	mu     sync.RWMutex
	remote map[string]bool

	endpoint string
	timeout  time.Duration
	client   *http.Client
}

func NewRegistry(cfg config.ExchangeServiceConfig) *Registry {
	static := make(map[string]bool, len(cfg.TrustedIssuers))
	for _, issuer := range cfg.TrustedIssuers {
		static[issuer] = true
	}
	return &Registry{
		static:   static,
		remote:   make(map[string]bool),
		endpoint: cfg.TrustListEndpoint,
		timeout:  cfg.TrustListTimeout,
		client:   &http.Client{Timeout: cfg.TrustListTimeout},
	}
}

func (r *Registry) IsTrusted(issuer string) bool {
	if r.static[issuer] {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.remote[issuer]
}

// Refresh fetches the remote trust list, retrying transient failures with
// exponential backoff bounded by the configured timeout. Failure is fail-closed:
// the previously fetched set stays in effect and no issuer gains trust.
func (r *Registry) Refresh(ctx context.Context) error {
	if r.endpoint == "" {
		return nil
	}

	var issuers []string
	fetch := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, r.endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("trust list endpoint returned %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&issuers)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		logrus.WithError(err).Warn("trust list refresh failed, keeping previous set")
		return errors.Wrap(err, "refreshing trust list")
	}

	fetched := make(map[string]bool, len(issuers))
	for _, issuer := range issuers {
		fetched[issuer] = true
	}
	r.mu.Lock()
	r.remote = fetched
	r.mu.Unlock()
	logrus.WithField("issuers", len(fetched)).Debug("trust list refreshed")
	return nil
}
