// Package answercache is the persistent question→answer store. Keys are
// normalized question labels; lookups degrade from exact match through
// normalized match and per-category fallback slots down to fuzzy
// edit-distance matching. Entries are only ever added or overwritten, never
// deleted, and every write is pushed to the backing store.
package answercache

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
)

// Category slots remember the last answer used for a semantic category
// independent of exact question wording. The "#" prefix keeps slot keys out
// of the space normalization can produce.
const (
	slotPrefix      = "#last:"
	CategoryCountry = "country"
	CategoryCity    = "city"
	CategoryPhone   = "phone"
)

// Hints carries classification context into a lookup or write.
type Hints struct {
	// Category names a fallback slot ("country", "city", "phone") that the
	// question belongs to, or "".
	Category string
}

// Store persists the flat key-value map. Implementations must tolerate
// concurrent Save calls; the cache fires them without waiting.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, key, answer string) error
}

type entry struct {
	answer string
	seq    int // insertion order, breaks fuzzy-match ties
}

// Cache is the in-memory view plus its write-through persistence.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	nextSeq    int
	fuzzyFloor float64
	store      Store
	logger     *zap.Logger
}

// New creates a cache. store may be nil for a memory-only cache; fuzzyFloor
// is the minimum normalized similarity for a fuzzy hit (0 picks the default).
func New(store Store, fuzzyFloor float64, logger *zap.Logger) *Cache {
	if fuzzyFloor <= 0 {
		fuzzyFloor = 0.7
	}
	return &Cache{
		entries:    make(map[string]entry),
		fuzzyFloor: fuzzyFloor,
		store:      store,
		logger:     logger.Named("answercache"),
	}
}

// Load replaces the in-memory view with the persisted map. Called once at
// the start of an attempt; a load failure leaves the cache usable and empty.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	persisted, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry, len(persisted))
	c.nextSeq = 0
	for k, v := range persisted {
		c.entries[k] = entry{answer: v, seq: c.nextSeq}
		c.nextSeq++
	}
	c.logger.Debug("cache loaded", zap.Int("entries", len(c.entries)))
	return nil
}

// Get looks an answer up. Lookup order: exact key, normalized key, category
// slot (when hinted), fuzzy match over all stored keys.
func (c *Cache) Get(question string, hints Hints) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[question]; ok {
		return e.answer, true
	}
	norm := Normalize(question)
	if norm != "" {
		if e, ok := c.entries[norm]; ok {
			return e.answer, true
		}
	}
	if hints.Category != "" {
		if e, ok := c.entries[slotPrefix+hints.Category]; ok {
			return e.answer, true
		}
	}
	if norm == "" {
		return "", false
	}

	var best string
	var bestScore float64
	var bestSeq int
	found := false
	for key, e := range c.entries {
		if strings.HasPrefix(key, slotPrefix) {
			continue
		}
		score := Similarity(norm, Normalize(key))
		if score < c.fuzzyFloor {
			continue
		}
		// Highest similarity wins; equal scores go to the first-seen key.
		if !found || score > bestScore || (score == bestScore && e.seq < bestSeq) {
			found = true
			best, bestScore, bestSeq = e.answer, score, e.seq
		}
	}
	return best, found
}

// Set records an answer under the normalized question key and, when a
// category hint is present, under that category's slot. Persistence is
// fire-and-forget: a failed save is logged and never escalated.
func (c *Cache) Set(ctx context.Context, question, answer string, hints Hints) {
	if answer == "" {
		return
	}
	key := Normalize(question)
	if key == "" {
		key = question
	}
	c.mu.Lock()
	c.put(key, answer)
	if hints.Category != "" {
		c.put(slotPrefix+hints.Category, answer)
	}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	go func() {
		if err := c.store.Save(ctx, key, answer); err != nil {
			c.logger.Warn("cache persistence failed",
				zap.String("key", key), zap.Error(err))
		}
		if hints.Category != "" {
			if err := c.store.Save(ctx, slotPrefix+hints.Category, answer); err != nil {
				c.logger.Warn("cache slot persistence failed",
					zap.String("category", hints.Category), zap.Error(err))
			}
		}
	}()
}

func (c *Cache) put(key, answer string) {
	if e, ok := c.entries[key]; ok {
		e.answer = answer
		c.entries[key] = e
		return
	}
	c.entries[key] = entry{answer: answer, seq: c.nextSeq}
	c.nextSeq++
}

// Len reports the number of stored entries, slots included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Normalize lower-cases, strips punctuation and collapses whitespace so that
// trivially reworded questions share a key.
func Normalize(q string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(q) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
