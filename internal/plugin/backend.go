package plugin

import (
	"fmt"
	"strings"
)

// Backend identifies the execution engine a plugin runs under. The set is
// closed: backend selection is a pure function of the manifest's
// backend.type field.
type Backend int

// Known backends. Only Lua has a runtime implementation; the others are
// recognized names whose loading fails with ErrBackendNotAvailable.
const (
	BackendLua Backend = iota
	BackendWasm
	BackendNative
)

// String returns the canonical backend name.
func (b Backend) String() string {
	switch b {
	case BackendLua:
		return "lua"
	case BackendWasm:
		return "wasm"
	case BackendNative:
		return "native"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// Available reports whether the backend has a runtime implementation.
func (b Backend) Available() bool {
	return b == BackendLua
}

// ParseBackend resolves a manifest backend.type value. "script" is accepted
// as an alias for the Lua backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(s) {
	case "lua", "script":
		return BackendLua, nil
	case "wasm":
		return BackendWasm, nil
	case "native":
		return BackendNative, nil
	default:
		return 0, fmt.Errorf("unknown backend type %q", s)
	}
}

// BackendFromExtension guesses a backend from an entry file extension.
func BackendFromExtension(ext string) (Backend, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "lua":
		return BackendLua, true
	case "wasm":
		return BackendWasm, true
	case "so", "dll", "dylib":
		return BackendNative, true
	default:
		return 0, false
	}
}
