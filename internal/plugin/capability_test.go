package plugin

import (
	"reflect"
	"testing"

	"github.com/dshills/tuiplug/internal/plugin/sandbox"
)

func TestCapabilityNamesFixedOrder(t *testing.T) {
	c := CapabilitySet{Commands: true, Keybindings: true}
	if got := c.Names(); !reflect.DeepEqual(got, []string{"commands", "keybindings"}) {
		t.Errorf("Names() = %v, want [commands keybindings]", got)
	}

	c = CapabilitySet{
		Commands:       true,
		Theming:        true,
		Transformer:    true,
		FileExtensions: []string{"md"},
		Custom:         []string{"zeta", "alpha"},
	}
	want := []string{"commands", "theming", "transformer", "file_handler", "zeta", "alpha"}
	if got := c.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestCapabilityHasAny(t *testing.T) {
	if (CapabilitySet{}).HasAny() {
		t.Error("empty CapabilitySet.HasAny() = true, want false")
	}
	if !(CapabilitySet{Theming: true}).HasAny() {
		t.Error("CapabilitySet{Theming}.HasAny() = false, want true")
	}
}

func TestCapabilityHandlesExtension(t *testing.T) {
	c := CapabilitySet{FileExtensions: []string{".md", "rs"}}

	for _, ext := range []string{"md", ".md", "RS"} {
		if !c.HandlesExtension(ext) {
			t.Errorf("HandlesExtension(%q) = false, want true", ext)
		}
	}
	if c.HandlesExtension("go") {
		t.Error("HandlesExtension(go) = true, want false")
	}
}

func TestPermissionSummary(t *testing.T) {
	tests := []struct {
		name string
		p    PermissionSet
		want []string
	}{
		{"empty", PermissionSet{}, nil},
		{"network all hosts", PermissionSet{Network: true}, []string{"network (all hosts)"}},
		{
			"everything",
			PermissionSet{
				Network:      true,
				NetworkHosts: []string{"api.example.com", "*.internal"},
				Filesystem:   []string{"/tmp/*"},
				EnvVars:      []string{"HOME", "PATH"},
				Subprocess:   true,
			},
			[]string{"network (2 hosts)", "filesystem (1 paths)", "env_vars (2 vars)", "subprocess"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Summary(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Summary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermissionApplyTo(t *testing.T) {
	p := PermissionSet{
		Network:      true,
		NetworkHosts: []string{"api.example.com"},
		Filesystem:   []string{"/data/*"},
	}

	cfg := p.ApplyTo(sandbox.Default())

	if !cfg.IsPathAllowed("/data/file.txt") {
		t.Error("granted filesystem glob should allow matching path")
	}
	if cfg.IsPathAllowed("/etc/passwd") {
		t.Error("non-matching path should stay denied")
	}
	if !cfg.IsHostAllowed("api.example.com") {
		t.Error("granted host should be allowed")
	}
	if cfg.IsHostAllowed("evil.example.com") {
		t.Error("other hosts should stay denied")
	}

	// Base config is unchanged by the grant.
	base := sandbox.Default()
	if base.IsPathAllowed("/data/file.txt") || base.IsHostAllowed("api.example.com") {
		t.Error("ApplyTo must not mutate the base config")
	}
}
