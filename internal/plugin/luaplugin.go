package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	glua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/tuiplug/internal/plugin/lua"
	"github.com/dshills/tuiplug/internal/plugin/protocol"
	"github.com/dshills/tuiplug/internal/plugin/sandbox"
)

// LuaPlugin runs a plugin inside a sandboxed Lua state. The entry file must
// evaluate to a table exposing at least an id; name, version, description,
// capabilities, commands, and the lifecycle functions init/on_event/shutdown
// are all optional.
//
// Each LuaPlugin owns exactly one interpreter instance for its lifetime.
// Reloading means discarding the plugin and loading a fresh one; stripped
// globals and sandbox limits are installed once at construction.
type LuaPlugin struct {
	mu sync.Mutex

	id           string
	name         string
	version      string
	description  string
	capabilities []string
	commands     []Command

	state  *plua.State
	bridge *plua.Bridge

	onInit     *glua.LFunction
	onEvent    *glua.LFunction
	onShutdown *glua.LFunction

	lifecycle State

	ctxMu sync.RWMutex
	ctx   *Context

	logger   *slog.Logger
	recorder *sandbox.Recorder
}

// LuaPluginOption configures a LuaPlugin at load time.
type LuaPluginOption func(*LuaPlugin)

// WithLuaLogger sets the logger used for the plugin's tui.log output and
// sandbox violation audit.
func WithLuaLogger(logger *slog.Logger) LuaPluginOption {
	return func(p *LuaPlugin) {
		p.logger = logger
	}
}

// LoadLuaPlugin constructs a fresh sandboxed Lua state per the config,
// installs the tui host namespace, evaluates the entry file, and extracts
// the plugin's metadata and lifecycle functions. A missing id aborts the
// load with a ManifestError; a failure inside the entry chunk aborts with a
// ScriptError.
func LoadLuaPlugin(path string, cfg sandbox.Config, opts ...LuaPluginOption) (*LuaPlugin, error) {
	p := &LuaPlugin{
		version:   "0.0.0",
		lifecycle: StateLoaded,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	state, err := plua.NewState(cfg)
	if err != nil {
		return nil, fmt.Errorf("create lua state: %w", err)
	}
	p.state = state
	p.bridge = plua.NewBridge(state.LuaState())

	p.installHostNamespace()

	result, err := state.EvalFile(path)
	if err != nil {
		state.Close()
		return nil, &ScriptError{PluginID: path, Call: "load", Err: err}
	}

	tbl, ok := result.(*glua.LTable)
	if !ok {
		state.Close()
		return nil, &ScriptError{
			PluginID: path,
			Call:     "load",
			Err:      fmt.Errorf("entry file must return a table, got %s", result.Type()),
		}
	}

	if err := p.readEntryTable(tbl); err != nil {
		state.Close()
		return nil, err
	}

	p.recorder = sandbox.NewRecorder(p.id, p.logger)
	return p, nil
}

// installHostNamespace exposes the tui table with log(message) and
// notify(message). Both route through the plugin context once Init has run;
// before that, log goes to the plugin logger and notify is dropped.
func (p *LuaPlugin) installHostNamespace() {
	p.state.RegisterModule("tui", map[string]glua.LGFunction{
		"log": func(L *glua.LState) int {
			msg := L.CheckString(1)
			if ctx := p.context(); ctx != nil {
				ctx.LogInfo(msg)
			} else {
				p.logger.Info(msg, "plugin", p.id)
			}
			return 0
		},
		"notify": func(L *glua.LState) int {
			msg := L.CheckString(1)
			if ctx := p.context(); ctx != nil {
				ctx.Notify(msg)
			}
			return 0
		},
	})
}

func (p *LuaPlugin) context() *Context {
	p.ctxMu.RLock()
	defer p.ctxMu.RUnlock()
	return p.ctx
}

// readEntryTable extracts metadata, commands, and lifecycle functions from
// the table the entry chunk returned.
func (p *LuaPlugin) readEntryTable(tbl *glua.LTable) error {
	id, ok := p.bridge.GetTableString(tbl, "id")
	if !ok || id == "" {
		return &ManifestError{Field: "id", Err: ErrMissingID}
	}
	p.id = id
	p.name = id

	if name, ok := p.bridge.GetTableString(tbl, "name"); ok {
		p.name = name
	}
	if version, ok := p.bridge.GetTableString(tbl, "version"); ok {
		p.version = version
	}
	if desc, ok := p.bridge.GetTableString(tbl, "description"); ok {
		p.description = desc
	}

	if caps, ok := p.bridge.GetTableTable(tbl, "capabilities"); ok {
		if list, ok := p.bridge.ToGoValue(caps).([]any); ok {
			for _, c := range list {
				if s, ok := c.(string); ok {
					p.capabilities = append(p.capabilities, s)
				}
			}
		}
	}

	if cmds, ok := p.bridge.GetTableTable(tbl, "commands"); ok {
		p.commands = p.readCommands(cmds)
	}

	p.onInit, _ = p.bridge.GetTableFunc(tbl, "init")
	p.onEvent, _ = p.bridge.GetTableFunc(tbl, "on_event")
	p.onShutdown, _ = p.bridge.GetTableFunc(tbl, "shutdown")
	return nil
}

// readCommands converts the entry table's commands map (id -> {label,
// description?, category?}) into Commands, sorted by id for deterministic
// listing.
func (p *LuaPlugin) readCommands(cmds *glua.LTable) []Command {
	var out []Command
	cmds.ForEach(func(k, v glua.LValue) {
		id, ok := k.(glua.LString)
		if !ok {
			return
		}
		spec, ok := v.(*glua.LTable)
		if !ok {
			return
		}
		cmd := Command{ID: string(id)}
		cmd.Label, _ = p.bridge.GetTableString(spec, "label")
		cmd.Description, _ = p.bridge.GetTableString(spec, "description")
		cmd.Category, _ = p.bridge.GetTableString(spec, "category")
		out = append(out, cmd)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ID returns the plugin id.
func (p *LuaPlugin) ID() string { return p.id }

// Name returns the plugin name.
func (p *LuaPlugin) Name() string { return p.name }

// Version returns the plugin version.
func (p *LuaPlugin) Version() string { return p.version }

// Description returns the plugin description.
func (p *LuaPlugin) Description() string { return p.description }

// Backend returns BackendLua.
func (p *LuaPlugin) Backend() Backend { return BackendLua }

// Capabilities returns the capability names the entry table declared.
func (p *LuaPlugin) Capabilities() []string {
	return append([]string(nil), p.capabilities...)
}

// Violations returns the sandbox violations recorded for this plugin.
func (p *LuaPlugin) Violations() []sandbox.Violation {
	return p.recorder.Violations()
}

// Init stores the host context, invokes the plugin's init function if
// present, and marks the plugin Initialized. Calling Init twice, or after
// Shutdown, fails with ErrInvalidState.
func (p *LuaPlugin) Init(ctx *Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lifecycle != StateLoaded {
		return fmt.Errorf("%w: init in state %s", ErrInvalidState, p.lifecycle)
	}

	p.ctxMu.Lock()
	p.ctx = ctx
	p.ctxMu.Unlock()

	if p.onInit != nil {
		if _, err := p.state.CallValue(p.onInit, p.initTable(ctx)); err != nil {
			p.recordCallFailure("init", err)
			return &ScriptError{PluginID: p.id, Call: "init", Err: err}
		}
	}

	p.lifecycle = StateInitialized
	return nil
}

// initTable builds the ctx value passed to the plugin's init: app identity
// plus a log function.
func (p *LuaPlugin) initTable(ctx *Context) *glua.LTable {
	L := p.state.LuaState()
	tbl := L.NewTable()
	if ctx != nil {
		tbl.RawSetString("app_name", glua.LString(ctx.AppName))
		tbl.RawSetString("app_version", glua.LString(ctx.AppVersion))
	}
	tbl.RawSetString("log", L.NewFunction(func(L *glua.LState) int {
		msg := L.CheckString(1)
		if ctx != nil {
			ctx.LogInfo(msg)
		} else {
			p.logger.Info(msg, "plugin", p.id)
		}
		return 0
	}))
	return tbl
}

// OnEvent serializes the event to its wire shape, invokes the plugin's
// on_event, and decodes the returned table into a Response. A plugin
// without an on_event function, or one returning nothing, yields a nil
// response. Malformed response tables degrade to nil rather than erroring
// so a buggy plugin cannot crash dispatch.
func (p *LuaPlugin) OnEvent(event protocol.Event) (*protocol.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lifecycle != StateInitialized {
		return nil, fmt.Errorf("%w: on_event in state %s", ErrInvalidState, p.lifecycle)
	}
	if p.onEvent == nil {
		return nil, nil
	}

	wire, err := eventToLuaShape(event)
	if err != nil {
		return nil, fmt.Errorf("encode event for %s: %w", p.id, err)
	}

	results, err := p.state.CallValue(p.onEvent, p.bridge.ToLuaValue(wire))
	if err != nil {
		p.recordCallFailure("on_event", err)
		return nil, &ScriptError{PluginID: p.id, Call: "on_event", Err: err}
	}
	if len(results) == 0 || results[0] == glua.LNil {
		return nil, nil
	}
	return p.decodeResponseValue(p.bridge.ToGoValue(results[0])), nil
}

// eventToLuaShape renders an event as generic data in its wire shape:
// variant fields plus the type discriminator.
func eventToLuaShape(event protocol.Event) (map[string]any, error) {
	data, err := protocol.EncodeEvent(event)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// decodeResponseValue maps a plugin-returned table to a typed Response.
// Two shapes are accepted: the full wire shape with a nested action table,
// and the short form where action is the discriminator string and the
// action fields sit alongside it. Anything else decodes to nil.
func (p *LuaPlugin) decodeResponseValue(v any) *protocol.Response {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	var action protocol.Action
	switch av := m["action"].(type) {
	case map[string]any:
		a, err := protocol.DecodeActionValue(av)
		if err != nil {
			p.logger.Warn("malformed plugin response", "plugin", p.id, "error", err)
			return nil
		}
		action = a
	case string:
		flat := make(map[string]any, len(m))
		for k, val := range m {
			if k == "action" || k == "handled" || k == "payload" {
				continue
			}
			flat[k] = val
		}
		flat["type"] = av
		a, err := protocol.DecodeActionValue(flat)
		if err != nil {
			p.logger.Warn("malformed plugin response", "plugin", p.id, "error", err)
			return nil
		}
		action = a
	default:
		return nil
	}

	handled, _ := m["handled"].(bool)
	return &protocol.Response{Action: action, Handled: handled, Payload: m["payload"]}
}

// recordCallFailure turns a timeout on a lifecycle call into an audit
// violation. Other failures are plain script errors, not sandbox breaches.
func (p *LuaPlugin) recordCallFailure(call string, err error) {
	if p.recorder == nil {
		return
	}
	if errors.Is(err, plua.ErrTimeout) {
		p.recorder.Record(sandbox.ViolationTimeout, call+" exceeded the call timeout")
	}
}

// Shutdown invokes the plugin's shutdown function if present, marks the
// plugin ShutDown, and releases the interpreter. Idempotent once shut down;
// shutting down a plugin that was never initialized fails with
// ErrInvalidState.
func (p *LuaPlugin) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.lifecycle {
	case StateShutDown:
		return nil
	case StateLoaded:
		return fmt.Errorf("%w: shutdown before init", ErrInvalidState)
	}

	var callErr error
	if p.onShutdown != nil {
		if _, err := p.state.CallValue(p.onShutdown); err != nil {
			p.recordCallFailure("shutdown", err)
			callErr = &ScriptError{PluginID: p.id, Call: "shutdown", Err: err}
		}
	}

	p.lifecycle = StateShutDown
	p.state.Close()
	return callErr
}

// GetCommands returns the plugin's commands with ids prefixed
// "<plugin-id>:".
func (p *LuaPlugin) GetCommands() []Command {
	out := make([]Command, len(p.commands))
	for i, cmd := range p.commands {
		cmd.ID = p.id + ":" + cmd.ID
		out[i] = cmd
	}
	return out
}

// IsInitialized reports whether the plugin is in the Initialized state.
func (p *LuaPlugin) IsInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lifecycle == StateInitialized
}

// LifecycleState returns the plugin's current lifecycle state.
func (p *LuaPlugin) LifecycleState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lifecycle
}
