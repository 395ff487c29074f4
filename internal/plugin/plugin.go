package plugin

import (
	"fmt"

	"github.com/dshills/tuiplug/internal/plugin/protocol"
)

// State is a plugin's lifecycle state.
type State int

// Lifecycle states. The progression is Loaded -> Initialized -> ShutDown;
// ShutDown is terminal.
const (
	StateLoaded State = iota
	StateInitialized
	StateShutDown
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateInitialized:
		return "initialized"
	case StateShutDown:
		return "shut_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Command is a command a plugin contributes to the host.
type Command struct {
	ID          string
	Label       string
	Description string
	Category    string
}

// Plugin is the uniform contract every backend runtime implements.
//
// OnEvent returns the plugin's response to an event, or nil when the plugin
// does not react. Calling OnEvent outside the Initialized state fails with
// ErrInvalidState; Shutdown is idempotent once reached.
type Plugin interface {
	ID() string
	Name() string
	Version() string
	Description() string
	Backend() Backend
	Capabilities() []string

	Init(ctx *Context) error
	Shutdown() error
	OnEvent(event protocol.Event) (*protocol.Response, error)

	GetCommands() []Command
	IsInitialized() bool
}

// Info is a snapshot of a registered plugin for listing and audit.
type Info struct {
	ID           string
	Name         string
	Version      string
	Description  string
	Backend      Backend
	Capabilities []string
	Initialized  bool
}
