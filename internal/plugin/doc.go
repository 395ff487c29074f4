// Package plugin implements a sandboxed extension runtime for terminal
// applications.
//
// A plugin ships as a directory containing a plugin.toml manifest and an
// entry file for one of the supported backends (currently Lua). The manifest
// declares identity, the capabilities the plugin offers, and the permissions
// it requests; the sandbox package turns granted permissions into an
// enforced policy, and the protocol package defines the typed events and
// responses exchanged between host and plugin.
//
// Lifecycle: a plugin is Loaded when constructed, Initialized after Init
// succeeds, and ShutDown after Shutdown. OnEvent outside the Initialized
// state fails with ErrInvalidState. A Host aggregates loaded plugins,
// dispatches events in registration order until one marks the event
// handled, and isolates per-plugin failures so a misbehaving plugin cannot
// take down the host or its neighbors.
package plugin
