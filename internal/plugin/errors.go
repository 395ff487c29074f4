package plugin

import (
	"errors"
	"fmt"
)

// Errors for plugin lifecycle and registry operations.
var (
	// ErrInvalidState is returned when a lifecycle call arrives in the
	// wrong state, e.g. OnEvent before Init or after Shutdown.
	ErrInvalidState = errors.New("plugin: invalid lifecycle state")

	// ErrPluginNotFound is returned when a registry lookup fails.
	ErrPluginNotFound = errors.New("plugin: not found")

	// ErrDuplicatePlugin is returned when registering an id twice.
	ErrDuplicatePlugin = errors.New("plugin: already registered")

	// ErrBackendNotAvailable is returned when loading a plugin whose
	// backend is recognized but has no runtime implementation.
	ErrBackendNotAvailable = errors.New("plugin: backend not available")
)

// ManifestError reports an invalid or missing manifest field. The plugin is
// never registered when one is returned.
type ManifestError struct {
	Field string
	Err   error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest field %q: %v", e.Field, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// ScriptError reports a failure raised inside the sandboxed interpreter
// during entry evaluation or a lifecycle call.
type ScriptError struct {
	PluginID string
	Call     string
	Err      error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.PluginID, e.Call, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }
