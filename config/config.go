// Package config loads a TripleStoreConfig from YAML and turns it into
// store.Options (SPEC_FULL.md §10 "Configuration"): a pure data-loading
// convenience over the construction-options struct in SPEC_FULL.md §6,
// not a CLI surface.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/tripledb/clock"
	"github.com/wbrown/tripledb/kv"
	"github.com/wbrown/tripledb/store"
)

// BackendKind selects which of the three kv.Backend implementations a
// named store in Config binds to.
type BackendKind string

const (
	BackendMemory BackendKind = "memory"
	BackendBolt   BackendKind = "bolt"
	BackendBadger BackendKind = "badger"
)

// StoreBackendConfig names one physical store participating in the
// multi-store.
type StoreBackendConfig struct {
	Name string      `yaml:"name"`
	Kind BackendKind `yaml:"kind"`
	// Path is required for bolt/badger, ignored for memory.
	Path string `yaml:"path"`
}

// Config is the top-level YAML document a TripleStore is built from.
type Config struct {
	TenantID     string               `yaml:"tenant_id"`
	StorageScope []string             `yaml:"storage_scope"`
	ClientID     string               `yaml:"client_id"`
	Backends     []StoreBackendConfig `yaml:"backends"`
}

// Load reads and parses a Config from path, applies defaults, and
// validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.TenantID == "" {
		c.TenantID = "client"
	}
	if len(c.Backends) == 0 {
		c.Backends = []StoreBackendConfig{{Name: "default", Kind: BackendMemory}}
	}
}

// Validate reports whether c is well-formed: every backend has a name
// and a known kind, names are unique, and a disk-backed kind carries a
// path.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend entry missing name")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = true

		switch b.Kind {
		case BackendMemory:
		case BackendBolt, BackendBadger:
			if b.Path == "" {
				return fmt.Errorf("backend %q: kind %q requires a path", b.Name, b.Kind)
			}
		default:
			return fmt.Errorf("backend %q: unknown kind %q", b.Name, b.Kind)
		}
	}
	return nil
}

// Open opens every configured backend and builds a store.Options ready
// to pass to store.New. Callers that need to close the underlying
// backends on shutdown should keep the returned map and Close each one.
func (c *Config) Open() (store.Options, map[string]kv.Backend, error) {
	backends := make(map[string]kv.Backend, len(c.Backends))
	for _, b := range c.Backends {
		backend, err := openBackend(b)
		if err != nil {
			for _, opened := range backends {
				_ = opened.Close()
			}
			return store.Options{}, nil, fmt.Errorf("config: opening backend %q: %w", b.Name, err)
		}
		backends[b.Name] = backend
	}

	opts := store.Options{
		Storage:      backends,
		TenantID:     c.TenantID,
		StorageScope: c.StorageScope,
	}
	if c.ClientID != "" {
		opts.Clock = clock.NewClock(c.ClientID)
	}
	return opts, backends, nil
}

func openBackend(b StoreBackendConfig) (kv.Backend, error) {
	switch b.Kind {
	case BackendMemory:
		return kv.NewMemoryBackend(), nil
	case BackendBolt:
		return kv.NewBoltBackend(b.Path)
	case BackendBadger:
		return kv.NewBadgerBackend(b.Path)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", b.Kind)
	}
}
