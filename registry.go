package replica

import (
	"context"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/zoobzio/sentinel"
)

// registryKey combines type and visibility for cache lookup.
type registryKey struct {
	typ        reflect.Type
	visibility Visibility
}

// registryEntry is a discovery result and the annotation generation it was computed under.
type registryEntry struct {
	members []Member
	gen     uint64
}

var (
	registry   = make(map[registryKey]registryEntry)
	registryMu sync.RWMutex
)

// Members returns DiscoverMembers(t, vis), computed once per type and visibility.
// The returned slice is a copy; member Index paths are shared and must not be modified.
func Members(t reflect.Type, vis Visibility) ([]Member, error) {
	return members(t, vis, nil)
}

// members implements Members. root is sentinel metadata already scanned for t, if any.
func members(t reflect.Type, vis Visibility, root *sentinel.Metadata) ([]Member, error) {
	if t == nil {
		return nil, newTypeError(nil)
	}
	key := registryKey{typ: t, visibility: vis}

	// Loaded before discovery reads the side table, so an Annotate racing with
	// discovery leaves an entry that is already stale.
	gen := annotationGen.Load()

	// Fast path: read-lock cache check
	registryMu.RLock()
	if cached, ok := registry[key]; ok && cached.gen == gen {
		registryMu.RUnlock()
		return slices.Clone(cached.members), nil
	}
	registryMu.RUnlock()

	// Slow path: discover and cache with write-lock
	registryMu.Lock()
	defer registryMu.Unlock()

	// Double-check pattern
	if cached, ok := registry[key]; ok && cached.gen == gen {
		return slices.Clone(cached.members), nil
	}

	start := time.Now()
	found, depth, err := discover(t, vis, root)
	if err != nil {
		return nil, err
	}

	registry[key] = registryEntry{members: found, gen: gen}
	emitMembersDiscovered(context.Background(), t.String(), vis, len(found), depth, time.Since(start))
	return slices.Clone(found), nil
}

// Reset clears the discovery cache.
// This is primarily useful for test isolation.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[registryKey]registryEntry)
}
