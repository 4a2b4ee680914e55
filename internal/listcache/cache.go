// Package listcache is a versioned JSON cache on Redis. Bumping the version
// orphans every key built before it, so invalidation is a single INCR.
package listcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultNamespace prefixes every key the cache writes.
	DefaultNamespace = "riskdesk"
	// BumpChannel carries version bumps between processes.
	BumpChannel = "riskdesk.bump"
)

// ErrLoaderRequired is returned when FetchJSON is called without a loader.
var ErrLoaderRequired = errors.New("listcache: loader required")

// Cache wraps Redis based caching with versioning controls. A nil Cache or
// one without a client calls straight through to the loader.
type Cache struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
	logger    *slog.Logger
	onLookup  func(hit bool)
}

// Option customises a Cache.
type Option func(*Cache)

// WithNamespace overrides the key prefix.
func WithNamespace(ns string) Option {
	return func(c *Cache) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithLogger sets the logger used by the invalidation listener.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLookupHook is called after every cache read with whether it hit.
func WithLookupHook(fn func(hit bool)) Option {
	return func(c *Cache) {
		c.onLookup = fn
	}
}

// New instantiates the cache helper.
func New(client *redis.Client, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{client: client, ttl: ttl, namespace: DefaultNamespace, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) versionKey() string {
	return c.namespace + ":cache:version"
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, c.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, c.versionKey(), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, c.versionKey()).Int64()
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, c.versionKey(), ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes a namespaced key carrying the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	ns := DefaultNamespace
	if c != nil && c.namespace != "" {
		ns = c.namespace
	}
	joined := strings.Join(append([]string{ns}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("listcache: version: %w", err)
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON loads a cached value into dest or populates it using the loader.
// Loader errors are returned unchanged and nothing is cached.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return ErrLoaderRequired
	}
	if c == nil || c.client == nil {
		return load(ctx, loader, dest, nil)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		c.lookup(true)
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("listcache: get: %w", err)
	}
	c.lookup(false)
	return load(ctx, loader, dest, func(raw []byte) error {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return fmt.Errorf("listcache: set: %w", err)
		}
		return nil
	})
}

func load(ctx context.Context, loader func(context.Context) (interface{}, error), dest interface{}, store func([]byte) error) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if store != nil {
		if err := store(raw); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

func (c *Cache) lookup(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}

// Bump invalidates the cache by incrementing the version and publishing it.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, c.versionKey()).Result()
	if err != nil {
		return fmt.Errorf("listcache: bump: %w", err)
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation follows version bumps published by other processes
// until ctx ends. It returns once the subscription is confirmed.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = BumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("listcache: subscribe: %w", err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c.applyBump(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

// applyBump moves the local version forward to a published one. Versions
// only grow.
func (c *Cache) applyBump(ctx context.Context, payload string) {
	ver, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		if err := c.client.Incr(ctx, c.versionKey()).Err(); err != nil {
			c.logger.Warn("listcache: bump", slog.Any("error", err))
		}
		return
	}
	current, err := c.Version(ctx)
	if err != nil {
		c.logger.Warn("listcache: read version", slog.Any("error", err))
		return
	}
	if ver > current {
		if err := c.client.Set(ctx, c.versionKey(), ver, 0).Err(); err != nil {
			c.logger.Warn("listcache: apply version", slog.Any("error", err))
		}
	}
}
