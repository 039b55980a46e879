// Package registry holds the process-wide engine kill switch. The enabled
// set is loaded once from an explicit engines file at startup and re-queried
// on every call; unlisted engines are disabled, and toggling one engine
// never affects another.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"tallybook/internal/bootstrap/logging"
	"tallybook/internal/domain/ledger"
	"tallybook/internal/errs"
)

// EngineSpec declares one pluggable engine: its identity, default switch
// position, the table set it may write, and the route suffixes it exposes
// under its mount point.
type EngineSpec struct {
	ID          string   `toml:"id"`
	Enabled     bool     `toml:"enabled"`
	OwnedTables []string `toml:"owned_tables"`
	Routes      []string `toml:"routes"`
}

type enginesFile struct {
	Engines []EngineSpec `toml:"engines"`
}

type Registry struct {
	mu      sync.RWMutex
	path    string
	engines map[string]EngineSpec
}

// New builds a registry from explicit specs. Duplicate ids are a
// configuration error.
func New(specs []EngineSpec) (*Registry, error) {
	r := &Registry{engines: make(map[string]EngineSpec, len(specs))}
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadFile builds a registry from a TOML engines file and remembers the path
// for reloads.
func LoadFile(ctx context.Context, path string) (*Registry, error) {
	specs, err := readEnginesFile(path)
	if err != nil {
		return nil, err
	}

	r, err := New(specs)
	if err != nil {
		return nil, errs.Wrapf(err, "engines file %q", path)
	}
	r.path = path

	logging.Info(ctx, "engine registry loaded",
		slog.String("file", path),
		slog.Int("engines", len(specs)))
	return r, nil
}

func readEnginesFile(path string) ([]EngineSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read engines file %q", path)
	}

	var file enginesFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, errs.Wrapf(err, "parse engines file %q", path)
	}
	return file.Engines, nil
}

func (r *Registry) Register(spec EngineSpec) error {
	id := strings.TrimSpace(spec.ID)
	if id == "" {
		return fmt.Errorf("%w: engine id is required", ledger.ErrConfiguration)
	}
	spec.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.engines[id]; dup {
		return fmt.Errorf("%w: engine %q registered twice", ledger.ErrConfiguration, id)
	}
	r.engines[id] = spec
	return nil
}

// Enabled reports the current switch position. Unknown engines read as
// disabled.
func (r *Registry) Enabled(engineID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.engines[engineID]
	return ok && spec.Enabled
}

// RequireEnabled is the per-call gate: it distinguishes unknown engines from
// switched-off ones so the boundary can report each precisely.
func (r *Registry) RequireEnabled(engineID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.engines[engineID]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrEngineUnknown, engineID)
	}
	if !spec.Enabled {
		return fmt.Errorf("%w: %s", ledger.ErrEngineDisabled, engineID)
	}
	return nil
}

// SetEnabled flips one engine's switch at runtime without touching the rest.
func (r *Registry) SetEnabled(engineID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec, ok := r.engines[engineID]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrEngineUnknown, engineID)
	}
	spec.Enabled = enabled
	r.engines[engineID] = spec
	return nil
}

// Get returns the spec for an engine.
func (r *Registry) Get(engineID string) (EngineSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.engines[engineID]
	return spec, ok
}

// OwnsTable reports whether engineID declared table in its owned set.
func (r *Registry) OwnsTable(engineID, table string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.engines[engineID]
	if !ok {
		return false
	}
	for _, owned := range spec.OwnedTables {
		if owned == table {
			return true
		}
	}
	return false
}

// Snapshot returns all specs sorted by id.
func (r *Registry) Snapshot() []EngineSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]EngineSpec, 0, len(r.engines))
	for _, spec := range r.engines {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

// Reload re-reads the engines file and swaps the whole set. Engines removed
// from the file become disabled by absence.
func (r *Registry) Reload(ctx context.Context) error {
	if r.path == "" {
		return fmt.Errorf("%w: registry was not loaded from a file", ledger.ErrConfiguration)
	}

	specs, err := readEnginesFile(r.path)
	if err != nil {
		return err
	}

	next := make(map[string]EngineSpec, len(specs))
	for _, spec := range specs {
		id := strings.TrimSpace(spec.ID)
		if id == "" {
			return fmt.Errorf("%w: engine id is required", ledger.ErrConfiguration)
		}
		if _, dup := next[id]; dup {
			return fmt.Errorf("%w: engine %q registered twice", ledger.ErrConfiguration, id)
		}
		spec.ID = id
		next[id] = spec
	}

	r.mu.Lock()
	r.engines = next
	r.mu.Unlock()

	logging.Info(ctx, "engine registry reloaded",
		slog.String("file", r.path),
		slog.Int("engines", len(next)))
	return nil
}
