package plugin

import (
	"fmt"
	"strings"

	"github.com/dshills/tuiplug/internal/plugin/sandbox"
)

// CapabilitySet describes what a plugin offers to the host. Purely
// descriptive; nothing here grants access to anything.
type CapabilitySet struct {
	Commands       bool     `toml:"commands"`
	Keybindings    bool     `toml:"keybindings"`
	Theming        bool     `toml:"theming"`
	Transformer    bool     `toml:"transformer"`
	FileExtensions []string `toml:"file_extensions"`
	Custom         []string `toml:"custom"`
}

// Names returns the enabled capability tags in a fixed, deterministic order
// for UI and audit display: commands, keybindings, theming, transformer,
// file_handler, then custom tags in declaration order.
func (c CapabilitySet) Names() []string {
	var names []string
	if c.Commands {
		names = append(names, "commands")
	}
	if c.Keybindings {
		names = append(names, "keybindings")
	}
	if c.Theming {
		names = append(names, "theming")
	}
	if c.Transformer {
		names = append(names, "transformer")
	}
	if len(c.FileExtensions) > 0 {
		names = append(names, "file_handler")
	}
	names = append(names, c.Custom...)
	return names
}

// HasAny reports whether any capability is declared.
func (c CapabilitySet) HasAny() bool {
	return len(c.Names()) > 0
}

// HandlesExtension reports whether the plugin declares handling for a file
// extension. The leading dot is optional on both sides.
func (c CapabilitySet) HandlesExtension(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	for _, e := range c.FileExtensions {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}

// PermissionSet describes what a plugin requests access to. Declarative
// only: enforcement happens in the sandbox policy, keeping "what is
// requested" separate from "what is allowed".
type PermissionSet struct {
	Network      bool     `toml:"network"`
	NetworkHosts []string `toml:"network_hosts"`
	Filesystem   []string `toml:"filesystem"`
	EnvVars      []string `toml:"env_vars"`
	Subprocess   bool     `toml:"subprocess"`
}

// HasAny reports whether any permission is requested.
func (p PermissionSet) HasAny() bool {
	return p.Network || p.Subprocess ||
		len(p.Filesystem) > 0 || len(p.EnvVars) > 0
}

// Summary returns human-readable permission strings for display and audit.
func (p PermissionSet) Summary() []string {
	var out []string
	if p.Network {
		if len(p.NetworkHosts) == 0 {
			out = append(out, "network (all hosts)")
		} else {
			out = append(out, fmt.Sprintf("network (%d hosts)", len(p.NetworkHosts)))
		}
	}
	if n := len(p.Filesystem); n > 0 {
		out = append(out, fmt.Sprintf("filesystem (%d paths)", n))
	}
	if n := len(p.EnvVars); n > 0 {
		out = append(out, fmt.Sprintf("env_vars (%d vars)", n))
	}
	if p.Subprocess {
		out = append(out, "subprocess")
	}
	return out
}

// ApplyTo grants the requested permissions on top of a base sandbox config,
// turning the declarative set into enforceable policy. The base config's
// limits and module list are unchanged.
func (p PermissionSet) ApplyTo(cfg sandbox.Config) sandbox.Config {
	for _, pattern := range p.Filesystem {
		cfg = cfg.AllowPath(pattern)
	}
	if p.Network {
		cfg = cfg.WithNetwork()
		for _, host := range p.NetworkHosts {
			cfg = cfg.AllowHost(host)
		}
	}
	return cfg
}
