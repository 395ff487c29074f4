package plugin

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/tuiplug/internal/plugin/protocol"
)

// Callbacks is the host behavior table injected into a Context. Each entry
// is independently swappable so hosts and tests supply their own behavior
// without ambient global state.
type Callbacks struct {
	Log          func(level protocol.LogLevel, message string)
	Notify       func(message string)
	GetSelection func() (string, bool)
	SetClipboard func(text string) error
	RunCommand   func(name string, args map[string]any) error
}

// Context is the host-supplied bridge given to plugins: application
// identity, directories, callbacks, and a shared key/value state store.
// Built once per host via ContextBuilder and shared by all plugins.
type Context struct {
	AppName    string
	AppVersion string
	DataDir    string
	ConfigDir  string

	callbacks Callbacks

	mu    sync.RWMutex
	state map[string]any
}

// ContextBuilder assembles a Context.
type ContextBuilder struct {
	ctx *Context
}

// NewContextBuilder starts building a Context for the given application.
func NewContextBuilder(appName, appVersion string) *ContextBuilder {
	return &ContextBuilder{
		ctx: &Context{
			AppName:    appName,
			AppVersion: appVersion,
			state:      make(map[string]any),
		},
	}
}

// OnLog sets the log callback.
func (b *ContextBuilder) OnLog(fn func(level protocol.LogLevel, message string)) *ContextBuilder {
	b.ctx.callbacks.Log = fn
	return b
}

// OnNotify sets the notify callback.
func (b *ContextBuilder) OnNotify(fn func(message string)) *ContextBuilder {
	b.ctx.callbacks.Notify = fn
	return b
}

// OnGetSelection sets the selection callback.
func (b *ContextBuilder) OnGetSelection(fn func() (string, bool)) *ContextBuilder {
	b.ctx.callbacks.GetSelection = fn
	return b
}

// OnSetClipboard sets the clipboard callback.
func (b *ContextBuilder) OnSetClipboard(fn func(text string) error) *ContextBuilder {
	b.ctx.callbacks.SetClipboard = fn
	return b
}

// OnRunCommand sets the command callback.
func (b *ContextBuilder) OnRunCommand(fn func(name string, args map[string]any) error) *ContextBuilder {
	b.ctx.callbacks.RunCommand = fn
	return b
}

// DataDir sets the plugin data directory.
func (b *ContextBuilder) DataDir(dir string) *ContextBuilder {
	b.ctx.DataDir = dir
	return b
}

// ConfigDir sets the plugin config directory.
func (b *ContextBuilder) ConfigDir(dir string) *ContextBuilder {
	b.ctx.ConfigDir = dir
	return b
}

// Build finalizes the Context. Unset callbacks get safe defaults: log goes
// to slog, the rest are no-ops. Unset directories default under the user
// config dir.
func (b *ContextBuilder) Build() *Context {
	ctx := b.ctx

	if ctx.callbacks.Log == nil {
		ctx.callbacks.Log = func(level protocol.LogLevel, message string) {
			slogLevel := slog.LevelInfo
			switch level {
			case protocol.LogDebug:
				slogLevel = slog.LevelDebug
			case protocol.LogWarn:
				slogLevel = slog.LevelWarn
			case protocol.LogError:
				slogLevel = slog.LevelError
			}
			slog.Log(nil, slogLevel, message, "app", ctx.AppName)
		}
	}
	if ctx.callbacks.Notify == nil {
		ctx.callbacks.Notify = func(string) {}
	}
	if ctx.callbacks.GetSelection == nil {
		ctx.callbacks.GetSelection = func() (string, bool) { return "", false }
	}
	if ctx.callbacks.SetClipboard == nil {
		ctx.callbacks.SetClipboard = func(string) error { return nil }
	}
	if ctx.callbacks.RunCommand == nil {
		ctx.callbacks.RunCommand = func(string, map[string]any) error { return nil }
	}

	if ctx.DataDir == "" || ctx.ConfigDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		if ctx.DataDir == "" {
			ctx.DataDir = filepath.Join(base, ctx.AppName, "data")
		}
		if ctx.ConfigDir == "" {
			ctx.ConfigDir = filepath.Join(base, ctx.AppName)
		}
	}
	return ctx
}

// LogDebug logs at debug level through the log callback.
func (c *Context) LogDebug(message string) { c.callbacks.Log(protocol.LogDebug, message) }

// LogInfo logs at info level through the log callback.
func (c *Context) LogInfo(message string) { c.callbacks.Log(protocol.LogInfo, message) }

// LogWarn logs at warn level through the log callback.
func (c *Context) LogWarn(message string) { c.callbacks.Log(protocol.LogWarn, message) }

// LogError logs at error level through the log callback.
func (c *Context) LogError(message string) { c.callbacks.Log(protocol.LogError, message) }

// Notify shows a notification through the notify callback.
func (c *Context) Notify(message string) { c.callbacks.Notify(message) }

// GetSelection returns the current selection, if any.
func (c *Context) GetSelection() (string, bool) { return c.callbacks.GetSelection() }

// SetClipboard replaces the clipboard content.
func (c *Context) SetClipboard(text string) error { return c.callbacks.SetClipboard(text) }

// RunCommand asks the host to run a command.
func (c *Context) RunCommand(name string, args map[string]any) error {
	return c.callbacks.RunCommand(name, args)
}

// GetState returns a shared state value. Absent keys are reported with the
// ok bool, not an error.
func (c *Context) GetState(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.state[key]
	return v, ok
}

// SetState stores a shared state value.
func (c *Context) SetState(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = value
}

// RemoveState deletes a shared state value, returning the previous value if
// present.
func (c *Context) RemoveState(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.state[key]
	if ok {
		delete(c.state, key)
	}
	return v, ok
}
