package member

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/punchamoorthee/wastebank/internal/domain"
)

// Lister is the slice of the store the Directory reads from.
type Lister interface {
	ListMembers(ctx context.Context) ([]domain.Member, error)
}

// Cache holds the full member snapshot between invalidations.
type Cache struct {
	mu      sync.Mutex
	members []domain.Member
	loaded  bool
}

func NewCache() *Cache {
	return &Cache{}
}

// Get returns a copy of the snapshot and whether one is loaded.
func (c *Cache) Get() ([]domain.Member, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return nil, false
	}
	return slices.Clone(c.members), true
}

func (c *Cache) Set(members []domain.Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = slices.Clone(members)
	c.loaded = true
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = nil
	c.loaded = false
}

// Directory serves member listings and searches from a cached snapshot.
type Directory struct {
	store  Lister
	cache  *Cache
	logger *slog.Logger
}

func NewDirectory(store Lister, cache *Cache, logger *slog.Logger) *Directory {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{store: store, cache: cache, logger: logger}
}

// LoadAll returns every member ordered by name. Only a cold cache reaches the store.
func (d *Directory) LoadAll(ctx context.Context) ([]domain.Member, error) {
	if members, ok := d.cache.Get(); ok {
		return members, nil
	}

	members, err := d.store.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list members: %w", domain.ErrStoreUnavailable, err)
	}
	d.cache.Set(members)
	d.logger.Debug("member cache loaded", "count", len(members))
	return members, nil
}

// Invalidate drops the snapshot so the next LoadAll refetches.
func (d *Directory) Invalidate() {
	d.cache.Invalidate()
}

// Search matches name case-insensitively and code as a literal substring.
// Empty text yields no results without touching the cache.
func (d *Directory) Search(ctx context.Context, text string) ([]domain.Member, error) {
	needle := strings.ToLower(text)
	if needle == "" {
		return []domain.Member{}, nil
	}

	members, err := d.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	out := []domain.Member{}
	for _, m := range members {
		if strings.Contains(strings.ToLower(m.Name), needle) || strings.Contains(m.Code, text) {
			out = append(out, m)
		}
	}
	return out, nil
}
