// Package metadata is the adapter trigger-word lookup cache: 24h positive
// caching, no negative caching on transient failure, distinguishing
// "known empty" results from transient lookup failures.
package metadata

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bobmcallan/palette/internal/clients/civitai"
	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
)

// entry is the cached state for one adapter filename. words == nil with
// knownEmpty == true means "definitively no trigger words"; an entry never
// exists at all for a transient failure.
type entry struct {
	words     []string
	knownEmpty bool
	cachedAt  time.Time
}

const cacheSize = 2048

// Cache resolves an adapter filename to its trigger words, trying the
// renderer's local plugin first, then the remote metadata service by hash,
// then by text search.
type Cache struct {
	renderer interfaces.RendererClient
	remote   *civitai.Client
	logger   *common.Logger
	cache    *lru.Cache[string, *entry]
	mu       sync.Mutex
}

// New constructs a Cache backed by renderer and remote.
func New(renderer interfaces.RendererClient, remote *civitai.Client, logger *common.Logger) *Cache {
	c, _ := lru.New[string, *entry](cacheSize)
	return &Cache{renderer: renderer, remote: remote, logger: logger, cache: c}
}

// Lookup resolves filename's trigger words. Transient failures return an
// empty list for this call without writing a cache entry, so the next
// lookup retries.
func (c *Cache) Lookup(ctx context.Context, filename string) []string {
	c.mu.Lock()
	if e, ok := c.cache.Get(filename); ok && common.IsFresh(e.cachedAt, common.MetadataCacheTTL) {
		c.mu.Unlock()
		return e.words
	}
	c.mu.Unlock()

	if words, ok := c.tryLocalPlugin(ctx, filename); ok {
		c.store(filename, words, len(words) == 0)
		return words
	}

	hash, hasHash, err := c.renderer.AdapterHash(ctx, filename)
	if err == nil && hasHash {
		words, status := c.remote.ByHash(ctx, hash)
		switch status {
		case civitai.StatusFound:
			c.store(filename, words, len(words) == 0)
			return words
		case civitai.StatusNotFound:
			c.store(filename, nil, true)
			return nil
		case civitai.StatusTransient:
			c.logger.Debug().Str("filename", filename).Msg("Transient failure on by-hash metadata lookup")
		}
	}

	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if words, status := c.remote.SearchByName(ctx, stem); status == civitai.StatusFound {
		c.store(filename, words, len(words) == 0)
		return words
	} else if status == civitai.StatusNotFound {
		normalized := civitai.NormalizeStem(stem)
		if words, status := c.remote.SearchByName(ctx, normalized); status == civitai.StatusFound {
			c.store(filename, words, len(words) == 0)
			return words
		} else if status == civitai.StatusNotFound {
			c.store(filename, nil, true)
			return nil
		}
	}

	return nil
}

func (c *Cache) tryLocalPlugin(ctx context.Context, filename string) (words []string, cacheable bool) {
	words, ok, err := c.renderer.AdapterTriggerWordsLocal(ctx, filename)
	if err != nil || !ok || len(words) == 0 {
		return nil, false
	}
	return words, true
}

func (c *Cache) store(filename string, words []string, knownEmpty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(filename, &entry{words: words, knownEmpty: knownEmpty, cachedAt: time.Now()})
}
