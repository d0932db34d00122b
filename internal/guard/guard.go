// Package guard implements the Content Guard: an in-process cached banned
// word matcher consulted against the concatenation of positive and
// negative prompts at submission time.
package guard

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/models"
)

// BannedWordLister is the narrow slice of interfaces.Store the Guard
// depends on, satisfied structurally by the full Store.
type BannedWordLister interface {
	ListBannedWords(ctx context.Context) ([]models.BannedWord, error)
}

// compiledMatcher is a single banned word's precompiled matcher: whole-word
// entries become a word-boundary regexp, partial entries stay a lowercased
// literal for a substring test.
type compiledMatcher struct {
	word    models.BannedWord
	pattern *regexp.Regexp // nil for partial entries
	literal string         // lowercased; only meaningful for partial entries
}

// matcherSet is the cached snapshot of all banned words, rebuilt whenever
// the TTL expires or an add/remove invalidates it.
type matcherSet struct {
	matchers  []compiledMatcher
	cachedAt  time.Time
}

const cacheKey = "matchers"

// Guard caches compiled matchers for common.ContentGuardCacheTTL, rebuilding
// from the Store on expiry or explicit invalidation.
type Guard struct {
	store  BannedWordLister
	logger *common.Logger
	cache  *lru.Cache[string, *matcherSet]
	mu     sync.Mutex
}

// New constructs a Guard backed by store.
func New(store BannedWordLister, logger *common.Logger) *Guard {
	cache, _ := lru.New[string, *matcherSet](1) // single cached snapshot; size is fixed by design
	return &Guard{store: store, logger: logger, cache: cache}
}

// Check returns the distinct banned words (original casing) that match
// anywhere in text, case-insensitively.
func (g *Guard) Check(ctx context.Context, text string) ([]models.BannedWord, error) {
	matchers, err := g.matchers(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var matched []models.BannedWord
	for _, m := range matchers {
		var hit bool
		if m.pattern != nil {
			hit = m.pattern.MatchString(text)
		} else {
			hit = strings.Contains(lower, m.literal)
		}
		if hit && !seen[m.word.ID] {
			seen[m.word.ID] = true
			matched = append(matched, m.word)
		}
	}
	return matched, nil
}

// Invalidate drops the cached matcher snapshot; called after any add/remove.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.Remove(cacheKey)
}

func (g *Guard) matchers(ctx context.Context) ([]compiledMatcher, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if set, ok := g.cache.Get(cacheKey); ok && common.IsFresh(set.cachedAt, common.ContentGuardCacheTTL) {
		return set.matchers, nil
	}

	words, err := g.store.ListBannedWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading banned words: %w", err)
	}

	matchers := make([]compiledMatcher, 0, len(words))
	for _, w := range words {
		if w.Mode == models.MatchPartial {
			matchers = append(matchers, compiledMatcher{word: w, literal: strings.ToLower(w.Phrase)})
			continue
		}
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w.Phrase) + `\b`)
		if err != nil {
			g.logger.Warn().Str("word", w.Phrase).Err(err).Msg("Failed to compile banned word pattern; skipping")
			continue
		}
		matchers = append(matchers, compiledMatcher{word: w, pattern: pattern})
	}

	g.cache.Add(cacheKey, &matcherSet{matchers: matchers, cachedAt: time.Now()})
	return matchers, nil
}
