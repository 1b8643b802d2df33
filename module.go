package goscript

import (
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
	"github.com/spf13/afero"
)

// Module is an immutable piece of ECMAScript-module source for execution.
// The filename is used for diagnostics and specifier resolution only; a
// relative filename is resolved against the working directory at load time.
type Module struct {
	filename string
	contents string
}

func NewModule(filename, contents string) Module {
	return Module{
		filename: filename,
		contents: contents,
	}
}

// LoadModuleFile reads a module's contents from the given filesystem.
func LoadModuleFile(filesystem afero.Fs, filename string) (Module, error) {
	data, err := afero.ReadFile(filesystem, filename)
	if err != nil {
		return Module{}, errors.New(err)
	}
	return NewModule(filename, string(data)), nil
}

// LoadModuleDir loads all .js and .ts files in the given directory.
// Fails if any of the matching files cannot be read.
func LoadModuleDir(filesystem afero.Fs, directory string) ([]Module, error) {
	entries, err := afero.ReadDir(filesystem, directory)
	if err != nil {
		return nil, errors.New(err)
	}

	var modules []Module
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".js" && ext != ".ts" {
			continue
		}
		module, err := LoadModuleFile(filesystem, filepath.Join(directory, entry.Name()))
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}

	return modules, nil
}

func (m Module) Filename() string {
	return m.filename
}

func (m Module) Contents() string {
	return m.contents
}

func (m Module) String() string {
	return m.filename
}

func isTypeScript(filename string) bool {
	return strings.HasSuffix(filename, ".ts") ||
		strings.HasSuffix(filename, ".d.ts")
}
