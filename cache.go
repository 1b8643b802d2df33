package goscript

import (
	"strings"
	"sync"
)

// ModuleType classifies a fetched module source.
type ModuleType string

const (
	ModuleTypeJavaScript ModuleType = "javascript"
	ModuleTypeJSON       ModuleType = "json"
)

func moduleTypeFor(specifier string) ModuleType {
	if strings.HasSuffix(specifier, ".json") {
		return ModuleTypeJSON
	}
	return ModuleTypeJavaScript
}

// ModuleSource is the fetched and transpiled payload associated with a
// resolved specifier. Hash is the checksum of Code, kept as cache metadata.
type ModuleSource struct {
	Type ModuleType
	Code []byte
	Hash string
}

func newModuleSource(specifier, code string) ModuleSource {
	return ModuleSource{
		Type: moduleTypeFor(specifier),
		Code: []byte(code),
		Hash: hash(code),
	}
}

// CloneSource returns an independent deep copy of a module source, so cache
// readers never alias the cache's own storage.
func CloneSource(source ModuleSource) ModuleSource {
	code := make([]byte, len(source.Code))
	copy(code, source.Code)
	return ModuleSource{
		Type: source.Type,
		Code: code,
		Hash: source.Hash,
	}
}

// CacheProvider caches module sources keyed by resolved specifier.
// Implementations must be safe under concurrent access: the engine's loader
// callbacks can be invoked reentrantly during a running evaluation.
type CacheProvider interface {
	Set(specifier string, source ModuleSource) error
	Get(specifier string) (*ModuleSource, bool)
}

// noopCache is the default provider: it never stores and always misses.
type noopCache struct{}

func (noopCache) Set(string, ModuleSource) error {
	return nil
}

func (noopCache) Get(string) (*ModuleSource, bool) {
	return nil, false
}

// MemoryCache is an in-memory module cache. Entries are cloned on the way in
// and on the way out; they are replaced wholesale, never mutated in place.
type MemoryCache struct {
	mu      sync.Mutex
	sources map[string]ModuleSource
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		sources: make(map[string]ModuleSource),
	}
}

func (c *MemoryCache) Set(specifier string, source ModuleSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[specifier] = CloneSource(source)
	return nil
}

func (c *MemoryCache) Get(specifier string) (*ModuleSource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	source, ok := c.sources[specifier]
	if !ok {
		return nil, false
	}
	clone := CloneSource(source)
	return &clone, true
}
