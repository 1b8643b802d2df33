package goscript

import (
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/spf13/afero"
)

// FSCache is a filesystem-backed module cache: a write-through layer over a
// root directory, mirrored by an in-memory cache. Each specifier maps to one
// file under the root, named by the checksum of the specifier string, holding
// the fetched/transpiled source text.
type FSCache struct {
	root       string
	filesystem afero.Fs
	memory     *MemoryCache
	logger     log.Interface
}

func NewFSCache(filesystem afero.Fs, root string) *FSCache {
	return &FSCache{
		root:       root,
		filesystem: filesystem,
		memory:     NewMemoryCache(),
		logger:     log.Log,
	}
}

func (c *FSCache) setLogger(logger log.Interface) {
	c.logger = logger
}

func (c *FSCache) cacheFile(specifier string) string {
	return filepath.Join(c.root, hash(specifier))
}

func (c *FSCache) Set(specifier string, source ModuleSource) error {
	if err := c.filesystem.MkdirAll(c.root, os.ModePerm); err != nil {
		return err
	}
	if err := afero.WriteFile(c.filesystem, c.cacheFile(specifier), source.Code, os.ModePerm); err != nil {
		return err
	}
	return c.memory.Set(specifier, source)
}

func (c *FSCache) Get(specifier string) (*ModuleSource, bool) {
	if source, ok := c.memory.Get(specifier); ok {
		return source, true
	}

	code, err := afero.ReadFile(c.filesystem, c.cacheFile(specifier))
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warnf("module cache read failed for %s: %s", specifier, err)
		}
		return nil, false
	}

	source := newModuleSource(specifier, string(code))
	if err := c.memory.Set(specifier, source); err != nil {
		return nil, false
	}
	return &source, true
}
