package token

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sony/gobreaker/v2"

	"github.com/your-org/authgate/internal/service/metrics"
	"github.com/your-org/authgate/pkg/errors"
	"github.com/your-org/authgate/pkg/logger"
)

// Circuit breaker settings for the JWKS endpoint. The breaker stops hammering
// an endpoint that is clearly down; while open, key fetches fail fast with
// the same transient error a direct failure would produce.
const (
	breakerName             = "jwks"
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
)

// KeySource fetches and caches the signing key set from the configured JWKS
// endpoint. The cache holds one key set with its fetch timestamp; keys older
// than the policy TTL are not used for new verifications. Safe for
// concurrent use: readers see either the previous set or the new one, never
// a torn state, and concurrent refreshes are serialized so a burst of cache
// misses produces one fetch.
type KeySource struct {
	policy  Policy
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[jwk.Set]

	mu        sync.RWMutex
	keys      jwk.Set
	fetchedAt time.Time

	// fetchMu serializes refreshes. A caller that blocks here re-checks the
	// cache on entry, so followers of a successful fetch return without a
	// second network call.
	fetchMu sync.Mutex
}

// NewKeySource creates a key source for the policy's JWKS endpoint.
func NewKeySource(policy Policy) *KeySource {
	return &KeySource{
		policy: policy,
		client: &http.Client{
			Timeout: policy.FetchTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker[jwk.Set](gobreaker.Settings{
			Name:    breakerName,
			Timeout: breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("key source circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			},
		}),
	}
}

// SigningKey returns the verification key for the given key id. On cache miss
// or TTL expiry it fetches the key set from the JWKS endpoint. Returns
// ErrKeySourceUnavailable when the endpoint is unreachable or returns
// malformed data, and ErrKeyNotFound when the id is absent from a freshly
// fetched set.
func (s *KeySource) SigningKey(ctx context.Context, kid string) (jwk.Key, error) {
	if keys, ok := s.freshKeys(); ok {
		if key, found := keys.LookupKeyID(kid); found {
			return key, nil
		}
		// Within TTL a missing kid is authoritative: fetching the same
		// document again cannot make the key appear.
		return nil, errors.Wrap(errors.ErrKeyNotFound, fmt.Sprintf("kid %q", kid))
	}

	if err := s.refresh(ctx); err != nil {
		if s.policy.AllowStaleKeys {
			if key, found := s.staleKey(kid); found {
				logger.Warn("serving stale signing key after fetch failure",
					logger.String("kid", kid),
					logger.Err(err),
				)
				return key, nil
			}
		}
		return nil, err
	}

	s.mu.RLock()
	keys := s.keys
	s.mu.RUnlock()

	if keys != nil {
		if key, found := keys.LookupKeyID(kid); found {
			return key, nil
		}
	}

	return nil, errors.Wrap(errors.ErrKeyNotFound, fmt.Sprintf("kid %q", kid))
}

// freshKeys returns the cached set when it is within TTL.
func (s *KeySource) freshKeys() (jwk.Set, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.keys == nil || time.Since(s.fetchedAt) > s.policy.CacheTTL {
		return nil, false
	}
	return s.keys, true
}

// staleKey looks the kid up in whatever is cached, ignoring TTL.
func (s *KeySource) staleKey(kid string) (jwk.Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.keys == nil {
		return nil, false
	}
	return s.keys.LookupKeyID(kid)
}

// refresh fetches the key set and replaces the cache. Concurrent callers are
// serialized; a caller that waited out another refresh returns immediately
// when the cache became fresh in the meantime.
func (s *KeySource) refresh(ctx context.Context) error {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	if _, ok := s.freshKeys(); ok {
		return nil
	}

	keySet, err := s.breaker.Execute(func() (jwk.Set, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		metrics.Default.KeyFetchesTotal.WithLabelValues("error").Inc()
		return errors.New(errors.KindValidationFailed, "key set fetch failed",
			errors.Wrap(errors.ErrKeySourceUnavailable, err.Error()))
	}

	s.mu.Lock()
	s.keys = keySet
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	metrics.Default.KeyFetchesTotal.WithLabelValues("success").Inc()
	logger.Debug("signing key set refreshed",
		logger.String("jwks_url", s.policy.JWKSURL),
		logger.Int("keys", keySet.Len()),
	)

	return nil
}

// fetch performs one HTTP GET against the JWKS endpoint.
func (s *KeySource) fetch(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.policy.JWKSURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned HTTP %d", resp.StatusCode)
	}

	keySet, err := jwk.ParseReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jwks document malformed: %w", err)
	}

	return keySet, nil
}
