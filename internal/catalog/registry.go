package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound is returned when removing an unknown custom endpoint.
	ErrNotFound = errors.New("custom endpoint not found")
	// ErrDuplicate is returned when a custom endpoint name is already taken.
	ErrDuplicate = errors.New("custom endpoint already exists")
	// ErrInvalidEndpoint is returned for endpoints without a name or {URL}.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

const customFileMode = 0o600

// customFile is the on-disk layout of the custom endpoints file.
type customFile struct {
	Endpoints []domain.Endpoint `yaml:"endpoints"`
}

// Registry stores user-defined endpoints, optionally backed by a YAML file.
// All methods are safe for concurrent use.
type Registry struct {
	path   string
	logger logger.Logger

	mu        sync.RWMutex
	endpoints []domain.Endpoint
}

// NewRegistry loads the custom endpoints from path. An empty path keeps the
// registry in memory; a missing file starts empty.
func NewRegistry(path string, log logger.Logger) (*Registry, error) {
	r := &Registry{path: path, logger: log}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Normalize trims e and checks it can carry a target URL.
func Normalize(e domain.Endpoint) (domain.Endpoint, error) {
	e.Name = strings.TrimSpace(e.Name)
	e.Description = strings.TrimSpace(e.Description)
	e.URLTemplate = strings.TrimSpace(e.URLTemplate)

	switch {
	case e.Name == "":
		return e, fmt.Errorf("%w: name is required", ErrInvalidEndpoint)
	case e.URLTemplate == "":
		return e, fmt.Errorf("%w: url template is required", ErrInvalidEndpoint)
	case !e.HasPlaceholder():
		return e, fmt.Errorf("%w: url template must contain %s", ErrInvalidEndpoint, domain.URLPlaceholder)
	}
	return e, nil
}

// Add validates e and appends it.
func (r *Registry) Add(e domain.Endpoint) error {
	e, err := Normalize(e)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if IsBuiltin(e.Name) || indexOf(r.endpoints, e.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, e.Name)
	}

	next := append(cloneEndpoints(r.endpoints), e)
	if err := r.save(next); err != nil {
		return err
	}
	r.endpoints = next
	return nil
}

// Remove deletes the endpoint called name, compared case-insensitively.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.endpoints, strings.TrimSpace(name))
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	next := cloneEndpoints(r.endpoints)
	next = append(next[:i], next[i+1:]...)
	if err := r.save(next); err != nil {
		return err
	}
	r.endpoints = next
	return nil
}

// List returns the custom endpoints in insertion order.
func (r *Registry) List() []domain.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneEndpoints(r.endpoints)
}

// Path returns the backing file, or "" for an in-memory registry.
func (r *Registry) Path() string {
	return r.path
}

// Reload replaces the in-memory list with the file contents. Invalid or
// duplicate entries are dropped with a warning.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		r.mu.Lock()
		r.endpoints = nil
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read custom endpoints %s: %w", r.path, err)
	}

	var file customFile
	if unmarshalErr := yaml.Unmarshal(data, &file); unmarshalErr != nil {
		return fmt.Errorf("parse custom endpoints %s: %w", r.path, unmarshalErr)
	}

	loaded := make([]domain.Endpoint, 0, len(file.Endpoints))
	for _, raw := range file.Endpoints {
		e, normErr := Normalize(raw)
		if normErr != nil {
			r.logger.Warn("Dropping invalid custom endpoint",
				logger.String("name", raw.Name),
				logger.Error(normErr),
			)
			continue
		}
		if indexOf(loaded, e.Name) >= 0 {
			r.logger.Warn("Dropping duplicate custom endpoint", logger.String("name", e.Name))
			continue
		}
		loaded = append(loaded, e)
	}

	r.mu.Lock()
	r.endpoints = loaded
	r.mu.Unlock()

	r.logger.Debug("Custom endpoints loaded",
		logger.String("path", r.path),
		logger.Int("count", len(loaded)),
	)
	return nil
}

// save writes endpoints to the backing file. Callers hold r.mu.
func (r *Registry) save(endpoints []domain.Endpoint) error {
	if r.path == "" {
		return nil
	}

	data, err := yaml.Marshal(customFile{Endpoints: endpoints})
	if err != nil {
		return fmt.Errorf("encode custom endpoints: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return fmt.Errorf("create custom endpoints dir: %w", mkErr)
		}
	}

	// write then rename so a watcher never reads a half-written file
	tmp := r.path + ".tmp"
	if writeErr := os.WriteFile(tmp, data, customFileMode); writeErr != nil {
		return fmt.Errorf("write custom endpoints: %w", writeErr)
	}
	if renameErr := os.Rename(tmp, r.path); renameErr != nil {
		return fmt.Errorf("replace custom endpoints: %w", renameErr)
	}
	return nil
}

// Merge returns builtin followed by custom. Custom entries whose name matches
// a built-in entry are skipped with a warning.
func Merge(builtin, custom []domain.Endpoint, log logger.Logger) []domain.Endpoint {
	out := make([]domain.Endpoint, 0, len(builtin)+len(custom))
	out = append(out, builtin...)

	for _, e := range custom {
		if indexOf(builtin, e.Name) >= 0 {
			log.Warn("Custom endpoint shadows a built-in endpoint, skipping",
				logger.String("name", e.Name),
			)
			continue
		}
		out = append(out, e)
	}
	return out
}

func indexOf(endpoints []domain.Endpoint, name string) int {
	for i, e := range endpoints {
		if strings.EqualFold(e.Name, name) {
			return i
		}
	}
	return -1
}

func cloneEndpoints(in []domain.Endpoint) []domain.Endpoint {
	if in == nil {
		return nil
	}
	out := make([]domain.Endpoint, len(in))
	copy(out, in)
	return out
}
