package specs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/apperrors"
	"github.com/corebridge/corebridge/pkg/models"
	"github.com/corebridge/corebridge/pkg/retry"
)

// Fetcher retrieves the raw OpenAPI document for a logic module.
type Fetcher interface {
	Fetch(ctx context.Context, module *models.LogicModule) ([]byte, error)
}

// HTTPFetcher fetches documents over HTTP with a bounded timeout.
type HTTPFetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration, logger *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("spec-fetcher"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, module *models.LogicModule) ([]byte, error) {
	url := module.DocsEndpoint
	if url == "" {
		return nil, fmt.Errorf("%w: module %s has no docs endpoint", apperrors.ErrSpecUnavailable, module.EndpointName)
	}

	var body []byte
	err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to build spec request: %w", err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch spec: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("spec endpoint returned HTTP %d", resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read spec body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrSpecUnavailable, module.EndpointName, err)
	}
	return body, nil
}

// loadTimeout bounds a detached spec fetch, covering the retry loop and the
// Redis round trips around it.
const loadTimeout = 30 * time.Second

type cacheEntry struct {
	doc     *Document
	expires time.Time
}

type inflightCall struct {
	done chan struct{}
	doc  *Document
	err  error
}

// Cache keeps parsed documents in memory with a TTL and coalesces concurrent
// fetches for the same module into a single upstream request. Fetch failures
// are never cached, so the next caller retries immediately.
//
// When a Redis client is configured, raw document bytes are also stored there
// so a restarted gateway can warm up without hitting every backend.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	redis   *redis.Client
	logger  *zap.Logger

	mu       sync.Mutex
	entries  map[string]*cacheEntry
	inflight map[string]*inflightCall
}

// NewCache creates a spec cache. redisClient may be nil.
func NewCache(fetcher Fetcher, ttl time.Duration, redisClient *redis.Client, logger *zap.Logger) *Cache {
	return &Cache{
		fetcher:  fetcher,
		ttl:      ttl,
		redis:    redisClient,
		logger:   logger.Named("spec-cache"),
		entries:  make(map[string]*cacheEntry),
		inflight: make(map[string]*inflightCall),
	}
}

// Get returns the parsed document for the module, fetching it if the cached
// copy is missing or stale.
func (c *Cache) Get(ctx context.Context, module *models.LogicModule) (*Document, error) {
	key := module.EndpointName

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && time.Now().Before(entry.expires) {
		c.mu.Unlock()
		return entry.doc, nil
	}
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.doc, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	// The fetch outcome is shared with every coalesced waiter, so it runs
	// detached from the initiating request's deadline under its own bound.
	loadCtx, cancelLoad := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	doc, err := c.load(loadCtx, module)
	cancelLoad()

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil {
		c.entries[key] = &cacheEntry{doc: doc, expires: time.Now().Add(c.ttl)}
	}
	c.mu.Unlock()

	call.doc = doc
	call.err = err
	close(call.done)

	return doc, err
}

// Invalidate drops the cached document for a module, forcing a refetch on the
// next Get. Called when a module's registration changes.
func (c *Cache) Invalidate(ctx context.Context, endpointName string) {
	c.mu.Lock()
	delete(c.entries, endpointName)
	c.mu.Unlock()

	if c.redis != nil {
		if err := c.redis.Del(ctx, redisKey(endpointName)).Err(); err != nil {
			c.logger.Warn("failed to drop spec from redis",
				zap.String("module", endpointName), zap.Error(err))
		}
	}
}

func (c *Cache) load(ctx context.Context, module *models.LogicModule) (*Document, error) {
	if c.redis != nil {
		if raw, err := c.redis.Get(ctx, redisKey(module.EndpointName)).Bytes(); err == nil {
			if doc, perr := Parse(raw); perr == nil {
				return doc, nil
			}
			// Stale or corrupt payload; fall through to a fresh fetch.
			c.redis.Del(ctx, redisKey(module.EndpointName))
		}
	}

	raw, err := c.fetcher.Fetch(ctx, module)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrSpecUnavailable, module.EndpointName, err)
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, redisKey(module.EndpointName), raw, c.ttl).Err(); err != nil {
			c.logger.Warn("failed to store spec in redis",
				zap.String("module", module.EndpointName), zap.Error(err))
		}
	}

	c.logger.Debug("cached spec",
		zap.String("module", module.EndpointName),
		zap.Int("operations", doc.Operations()))

	return doc, nil
}

func redisKey(endpointName string) string {
	return "corebridge:spec:" + endpointName
}
