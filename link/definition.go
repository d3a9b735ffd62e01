package link

import (
	"fmt"
	"path"

	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/kbukum/xpdflow/errors"
)

// Definition names the chunks of a pipeline.
//
//	name: full
//	includes: [raw]
//	chunks: [pdf, qoi]
type Definition struct {
	Name     string   `yaml:"name"`
	Includes []string `yaml:"includes,omitempty"`
	Chunks   []string `yaml:"chunks"`
}

// Loader loads definitions by name.
type Loader interface {
	Load(name string) (*Definition, error)
}

// Chain tries each loader in order and returns the first definition found.
type Chain []Loader

// Load implements Loader.
func (c Chain) Load(name string) (*Definition, error) {
	for _, l := range c {
		d, err := l.Load(name)
		if err == nil {
			return d, nil
		}
		if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeNotFound {
			return nil, err
		}
	}
	return nil, errors.NotFound("pipeline definition", name)
}

// FSLoader loads definitions from YAML files on an afero filesystem.
type FSLoader struct {
	fs   afero.Fs
	dirs []string
}

// NewFSLoader creates a loader that searches dirs on fs for {name}.yaml and
// {name}.yml, directly or one directory down.
func NewFSLoader(fs afero.Fs, dirs ...string) *FSLoader {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	return &FSLoader{fs: fs, dirs: dirs}
}

// Load returns the first definition named name.
func (l *FSLoader) Load(name string) (*Definition, error) {
	for _, dir := range l.dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			if d, err := l.loadFile(path.Join(dir, name+ext)); err == nil {
				return d, nil
			} else if !missingFile(err) {
				return nil, err
			}
			matches, _ := afero.Glob(l.fs, path.Join(dir, "*", name+ext))
			for _, match := range matches {
				if d, err := l.loadFile(match); err == nil {
					return d, nil
				}
			}
		}
	}
	return nil, errors.NotFound("pipeline definition", name)
}

func (l *FSLoader) loadFile(p string) (*Definition, error) {
	data, err := afero.ReadFile(l.fs, p)
	if err != nil {
		return nil, err
	}
	return ParseDefinition(data, p)
}

// missingFile reports a read failure, as opposed to a malformed definition.
func missingFile(err error) bool {
	if _, ok := errors.AsAppError(err); ok {
		return false
	}
	return true
}

// ParseDefinition decodes one YAML definition. source names the input in
// error messages.
func ParseDefinition(data []byte, source string) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, errors.Configuration(fmt.Sprintf("parsing %s: %v", source, err)).WithCause(err)
	}
	if d.Name == "" {
		return nil, errors.Configuration(fmt.Sprintf("%s: definition has no name", source))
	}
	return &d, nil
}

// Resolve expands includes depth first and returns the named chunks from
// registry in order: included chunks before the definition's own, first
// occurrence wins.
func Resolve(d *Definition, registry *Registry, loader Loader) ([]Chunk, error) {
	r := &resolver{
		registry: registry,
		loader:   loader,
		stack:    make(map[string]bool),
		resolved: make(map[string]bool),
		added:    make(map[string]bool),
	}
	if err := r.resolve(d); err != nil {
		return nil, err
	}
	return r.chunks, nil
}

type resolver struct {
	registry *Registry
	loader   Loader
	stack    map[string]bool // current include path
	resolved map[string]bool // definitions already expanded
	added    map[string]bool
	chunks   []Chunk
}

func (r *resolver) resolve(d *Definition) error {
	if r.stack[d.Name] {
		return errors.Wiring(d.Name, "circular include")
	}
	r.stack[d.Name] = true
	defer delete(r.stack, d.Name)

	for _, inc := range d.Includes {
		if r.resolved[inc] {
			continue
		}
		if r.stack[inc] {
			return errors.Wiring(inc, "circular include")
		}
		if r.loader == nil {
			return errors.Wiring(inc, "include without a loader")
		}
		sub, err := r.loader.Load(inc)
		if err != nil {
			return errors.Wiring(inc, "loading include failed").WithCause(err)
		}
		if err := r.resolve(sub); err != nil {
			return err
		}
	}

	for _, name := range d.Chunks {
		if r.added[name] {
			continue
		}
		c, ok := r.registry.Get(name)
		if !ok {
			return errors.Wiring(name, fmt.Sprintf("chunk not registered (definition %s)", d.Name))
		}
		r.added[name] = true
		r.chunks = append(r.chunks, c)
	}

	r.resolved[d.Name] = true
	return nil
}
