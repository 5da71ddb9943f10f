// Package projects manages the registry of named project directories and
// the gh-backed create and clone flows.
package projects

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	cberr "github.com/abdul-hamid-achik/codebridge/internal/errors"
	"github.com/abdul-hamid-achik/codebridge/internal/logging"
)

// Project is a registered working directory.
type Project struct {
	Name        string    `yaml:"-"`
	Path        string    `yaml:"path"`
	Description string    `yaml:"description"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// Registry is the persisted name → project table.
type Registry struct {
	mu       sync.RWMutex
	file     string
	projects map[string]Project
	log      *logging.Logger
}

// OpenRegistry loads the registry from file. A missing file is an empty
// registry.
func OpenRegistry(file string, log *logging.Logger) (*Registry, error) {
	r := &Registry{
		file:     file,
		projects: make(map[string]Project),
		log:      log.WithPrefix("projects"),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// File returns the registry path.
func (r *Registry) File() string {
	return r.file
}

// Reload re-reads the registry file, replacing the in-memory table.
func (r *Registry) Reload() error {
	data, err := os.ReadFile(r.file)
	if os.IsNotExist(err) {
		data = nil
	} else if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	raw := make(map[string]Project)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse registry %s: %w", r.file, err)
	}
	for name, p := range raw {
		p.Name = name
		raw[name] = p
	}

	r.mu.Lock()
	r.projects = raw
	r.mu.Unlock()

	r.log.Info("registry loaded", logging.F("projects", len(raw)), logging.F("file", r.file))
	return nil
}

// List returns all projects sorted by name.
func (r *Registry) List() []Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered project names, sorted.
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.Name
	}
	return names
}

// Get looks a project up by name.
func (r *Registry) Get(name string) (Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[name]
	return p, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Add registers an existing directory under a new name.
func (r *Registry) Add(name, path, description string) (Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Project{}, cberr.DirectoryNotFound(path)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return Project{}, cberr.DirectoryNotFound(abs)
	}
	p := Project{Name: name, Path: abs, Description: description, CreatedAt: time.Now()}
	if err := r.put(p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// put inserts p and persists the registry. Names are unique.
func (r *Registry) put(p Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.Name]; ok {
		return cberr.ProjectExists(p.Name)
	}
	r.projects[p.Name] = p
	if err := r.saveLocked(); err != nil {
		delete(r.projects, p.Name)
		return err
	}
	return nil
}

// Remove deregisters name. Files on disk are never touched.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[name]
	if !ok {
		return cberr.ProjectNotFound(name)
	}
	delete(r.projects, name)
	if err := r.saveLocked(); err != nil {
		r.projects[name] = p
		return err
	}
	return nil
}

// saveLocked writes the registry atomically via a temp file and rename.
// The write lock must be held.
func (r *Registry) saveLocked() error {
	data, err := yaml.Marshal(r.projects)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	dir := filepath.Dir(r.file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".projects-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}
	if err := os.Rename(tmpName, r.file); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
