// Package idmap rewrites legacy numeric Todoist ids to canonical ids.
// The Resolver caches lookups against the id mapping endpoint for the
// life of the process; the Normalizer applies those mappings to tool
// output in place.
package idmap

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alexjbarnes/todoist-mcp/internal/ids"
	"github.com/alexjbarnes/todoist-mcp/internal/metrics"
)

// ResourceType is the namespace an id belongs to on the mapping endpoint.
type ResourceType string

const (
	Tasks    ResourceType = "tasks"
	Projects ResourceType = "projects"
	Sections ResourceType = "sections"
)

//go:generate mockgen -source=resolver.go -destination=mock_resolver_test.go -package=idmap

// Lookup is the upstream id mapping endpoint.
type Lookup interface {
	IDMappings(ctx context.Context, resource string, ids []string) (map[string]string, error)
}

// Resolver maps legacy ids to canonical ids.
type Resolver interface {
	Resolve(ctx context.Context, kind ResourceType, ids []string) map[string]string
}

type cacheKey struct {
	kind ResourceType
	id   string
}

// CachingResolver resolves legacy ids with at most one successful
// upstream lookup per (resource type, id). Mappings never change once
// learned, so entries are never evicted or overwritten.
//
// Concurrent misses for the same id each issue their own lookup. The
// results are identical so the cache converges either way.
type CachingResolver struct {
	lookup  Lookup
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	cache map[cacheKey]string
}

// NewResolver creates an empty CachingResolver.
func NewResolver(lookup Lookup, logger *slog.Logger, m *metrics.Metrics) *CachingResolver {
	return &CachingResolver{
		lookup:  lookup,
		logger:  logger,
		metrics: m,
		cache:   make(map[cacheKey]string),
	}
}

// Resolve returns canonical ids for the legacy ids in idList. Ids that
// are not legacy-shaped, or have no mapping, are absent from the
// result. Lookup failures are logged and yield an empty result for the
// ids that missed the cache; they are never returned to the caller.
func (r *CachingResolver) Resolve(ctx context.Context, kind ResourceType, idList []string) map[string]string {
	legacy := ids.FilterLegacy(idList)
	out := make(map[string]string, len(legacy))

	var missing []string

	r.mu.RLock()
	for _, id := range legacy {
		if canonical, ok := r.cache[cacheKey{kind, id}]; ok {
			out[id] = canonical
		} else {
			missing = append(missing, id)
		}
	}
	r.mu.RUnlock()

	r.metrics.IDLookup(string(kind), "hit", len(out))

	if len(missing) == 0 {
		return out
	}

	r.metrics.IDLookup(string(kind), "miss", len(missing))

	found, err := r.lookup.IDMappings(ctx, string(kind), missing)
	if err != nil {
		r.metrics.IDLookup(string(kind), "error", len(missing))
		r.logger.Warn("id mapping lookup failed, leaving legacy ids unresolved",
			slog.String("resource", string(kind)),
			slog.Int("ids", len(missing)),
			slog.String("error", err.Error()),
		)

		return map[string]string{}
	}

	r.mu.Lock()
	for _, id := range missing {
		canonical, ok := found[id]
		if !ok || !ids.IsCanonical(canonical) {
			continue
		}

		if _, exists := r.cache[cacheKey{kind, id}]; !exists {
			r.cache[cacheKey{kind, id}] = canonical
		}

		out[id] = r.cache[cacheKey{kind, id}]
	}
	r.mu.Unlock()

	return out
}

// Len returns the number of cached mappings.
func (r *CachingResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.cache)
}
