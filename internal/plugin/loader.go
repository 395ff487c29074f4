package plugin

import (
	"fmt"

	"github.com/dshills/tuiplug/internal/plugin/sandbox"
)

// Load loads the plugin a validated manifest describes, applying the
// manifest's requested permissions on top of the base sandbox config.
// Backends without a runtime implementation fail with
// ErrBackendNotAvailable.
func Load(m *Manifest, base sandbox.Config, opts ...LuaPluginOption) (Plugin, error) {
	backend := m.ResolveBackend()
	if !backend.Available() {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotAvailable, backend)
	}

	cfg := m.Permissions.ApplyTo(base)
	return LoadLuaPlugin(m.EntryPath(), cfg, opts...)
}

// LoadFromDir loads plugin.toml from a directory, validates it, and loads
// the plugin it describes.
func LoadFromDir(dir string, base sandbox.Config, opts ...LuaPluginOption) (Plugin, error) {
	m, err := LoadManifestFromDir(dir)
	if err != nil {
		return nil, err
	}
	return Load(m, base, opts...)
}
