// Package linkcache implements a persistent incremental cache in front of a
// graph data source. Point lookups (elements, types, properties) are cached
// per key with optional negative markers; link queries are cached as
// content-addressed adjacency ranges, so repeated or overlapping requests
// fetch only the sub-regions never seen before.
package linkcache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/graphmirror/linkcache/internal/keyValStore"
	"github.com/graphmirror/linkcache/internal/mirror"
	"github.com/graphmirror/linkcache/internal/rangestore"
	"github.com/graphmirror/linkcache/pkg/provider"
)

// CachedProvider wraps an upstream Provider with a persistent cache. It owns
// the store connection and the exclusive lock serializing link-range
// mutations; construct with New, then Open before use.
type CachedProvider struct {
	log      *logrus.Logger
	config   Config
	upstream provider.Provider

	kvMu   sync.RWMutex
	kv     *keyValStore.KeyValStore
	ranges *rangestore.Store
	links  *mirror.Store

	// linkMu serializes the whole resolve/subtract/fetch/commit sequence of
	// a link request. Point lookups do not take it.
	linkMu sync.Mutex

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

// New constructs a cache handle. New performs no I/O; call Open to connect
// the persistent store.
func New(upstream provider.Provider, conf Config) (*CachedProvider, error) {
	if upstream == nil {
		return nil, errNilUpstream
	}
	if conf.Path == "" {
		return nil, errNoPath
	}
	conf.applyDefaults()

	return &CachedProvider{
		log:      conf.Logger,
		config:   conf,
		upstream: upstream,
	}, nil
}

// Open connects the persistent store and marks the cache ready. Safe to call
// multiple times; only the first call has effect.
func (c *CachedProvider) Open(ctx context.Context) error {
	var openErr error
	c.startOnce.Do(func() {
		if err := ctx.Err(); err != nil {
			openErr = err
			return
		}

		kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
			Path:             c.config.Path,
			MinimumFreeSpace: c.config.MinimumFreeGB,
			Logger:           c.log,
		})
		if err != nil {
			openErr = err
			return
		}

		c.kvMu.Lock()
		c.kv = kv
		c.ranges = rangestore.New(kv)
		c.links = mirror.New(kv)
		c.kvMu.Unlock()

		c.started.Store(true)
		c.log.WithField("path", c.config.Path).Info("link cache opened")
	})
	return openErr
}

// Close releases the store connection. Idempotent.
func (c *CachedProvider) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.kvMu.Lock()
		kv := c.kv
		c.kv = nil
		c.kvMu.Unlock()

		if kv != nil {
			closeErr = kv.Close()
		}
		c.log.Info("link cache closed")
	})
	return closeErr
}

// ClearCache drops every cached table and starts empty. It serializes with
// in-flight link mutations via the link lock; operations already past their
// reads complete against the old contents, later ones see the fresh store.
func (c *CachedProvider) ClearCache(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kv, err := c.kvHandle()
	if err != nil {
		return err
	}

	c.linkMu.Lock()
	defer c.linkMu.Unlock()
	return kv.DropAll()
}

func (c *CachedProvider) kvHandle() (*keyValStore.KeyValStore, error) {
	if !c.started.Load() {
		return nil, ErrNotStarted
	}

	c.kvMu.RLock()
	kv := c.kv
	c.kvMu.RUnlock()
	if kv == nil {
		return nil, ErrClosed
	}
	return kv, nil
}
