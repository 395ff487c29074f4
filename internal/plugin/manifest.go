package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// Manifest validation errors.
var (
	ErrMissingID         = errors.New("id is required")
	ErrMissingName       = errors.New("name is required")
	ErrMissingVersion    = errors.New("version is required")
	ErrInvalidVersion    = errors.New("version must be valid semver")
	ErrMissingEntry      = errors.New("backend entry is required")
	ErrAbsoluteEntry     = errors.New("backend entry must be relative to the manifest directory")
	ErrManifestExtends   = errors.New("manifest inheritance is not supported")
	ErrInvalidDependency = errors.New("dependency requires a valid semver range")
)

// ManifestFileName is the expected manifest file name inside a plugin
// directory.
const ManifestFileName = "plugin.toml"

// Manifest describes a plugin's identity, capabilities, backend, and
// requested permissions. Immutable after validation.
type Manifest struct {
	Plugin       Identity          `toml:"plugin"`
	Capabilities CapabilitySet     `toml:"capabilities"`
	Backend      BackendSpec       `toml:"backend"`
	Permissions  PermissionSet     `toml:"permissions"`
	Dependencies map[string]string `toml:"dependencies"`

	dir string
}

// Identity is the [plugin] manifest section.
type Identity struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
	Author      string `toml:"author"`
	License     string `toml:"license"`
	Homepage    string `toml:"homepage"`
	Repository  string `toml:"repository"`

	// Extends is parsed so its presence can be rejected at Validate.
	Extends string `toml:"extends"`
}

// BackendSpec is the [backend] manifest section. Entry is relative to the
// manifest's directory.
type BackendSpec struct {
	Type  string `toml:"type"`
	Entry string `toml:"entry"`
}

// LoadManifest reads, parses, and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadManifestFromDir loads plugin.toml from a plugin directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFileName))
}

// ParseManifest parses manifest TOML without validating it.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Validate checks required fields, version and dependency semver, the
// backend type, and the entry path shape. Returns a *ManifestError on the
// first failure.
func (m *Manifest) Validate() error {
	if m.Plugin.ID == "" {
		return &ManifestError{Field: "plugin.id", Err: ErrMissingID}
	}
	if m.Plugin.Name == "" {
		return &ManifestError{Field: "plugin.name", Err: ErrMissingName}
	}
	if m.Plugin.Version == "" {
		return &ManifestError{Field: "plugin.version", Err: ErrMissingVersion}
	}
	if _, err := semver.NewVersion(m.Plugin.Version); err != nil {
		return &ManifestError{
			Field: "plugin.version",
			Err:   fmt.Errorf("%w: %s", ErrInvalidVersion, m.Plugin.Version),
		}
	}
	if m.Plugin.Extends != "" {
		return &ManifestError{Field: "plugin.extends", Err: ErrManifestExtends}
	}

	if _, err := ParseBackend(m.Backend.Type); err != nil {
		return &ManifestError{Field: "backend.type", Err: err}
	}
	if m.Backend.Entry == "" {
		return &ManifestError{Field: "backend.entry", Err: ErrMissingEntry}
	}
	if filepath.IsAbs(m.Backend.Entry) {
		return &ManifestError{
			Field: "backend.entry",
			Err:   fmt.Errorf("%w: %s", ErrAbsoluteEntry, m.Backend.Entry),
		}
	}

	for name, rng := range m.Dependencies {
		if _, err := semver.NewConstraint(rng); err != nil {
			return &ManifestError{
				Field: "dependencies." + name,
				Err:   fmt.Errorf("%w: %q", ErrInvalidDependency, rng),
			}
		}
	}
	return nil
}

// ResolveBackend returns the backend the manifest selects. Only valid after
// Validate has passed.
func (m *Manifest) ResolveBackend() Backend {
	b, _ := ParseBackend(m.Backend.Type)
	return b
}

// Dir returns the directory the manifest was loaded from.
func (m *Manifest) Dir() string {
	return m.dir
}

// EntryPath resolves the backend entry file relative to the manifest's
// directory. Manifest content alone can never point outside via an absolute
// path; Validate rejects those.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.dir, m.Backend.Entry)
}

// HasAnyCapability reports whether the plugin declares any capability.
func (m *Manifest) HasAnyCapability() bool {
	return m.Capabilities.HasAny()
}

// HasAnyPermission reports whether the plugin requests any permission.
func (m *Manifest) HasAnyPermission() bool {
	return m.Permissions.HasAny()
}

// String returns "Name vX.Y.Z".
func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.Plugin.Name, m.Plugin.Version)
}
