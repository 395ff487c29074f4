package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/tuiplug/internal/plugin/protocol"
)

// Host aggregates loaded plugins. It dispatches events in registration
// order, stops propagation when a plugin marks an event handled, executes
// the actions responses request, and isolates per-plugin failures: an
// erroring plugin is logged and treated as producing no response, never
// aborting dispatch to its neighbors.
type Host struct {
	mu      sync.Mutex
	order   []Plugin
	byID    map[string]Plugin
	ctx     *Context
	logger  *slog.Logger
	dataCbs map[string]func() any

	timerMu sync.Mutex
	timers  map[string]*hostTimer
}

type hostTimer struct {
	timer    *time.Timer
	interval time.Duration
	repeat   bool
	cancel   bool
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostLogger sets the logger used for dispatch failures and audit.
func WithHostLogger(logger *slog.Logger) HostOption {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithDataSource registers a provider for RequestData actions. The result
// is delivered to the requesting callback command on a later dispatch, not
// inline.
func WithDataSource(dataType string, fn func() any) HostOption {
	return func(h *Host) {
		h.dataCbs[dataType] = fn
	}
}

// NewHost creates a Host whose plugins share the given context.
func NewHost(ctx *Context, opts ...HostOption) *Host {
	h := &Host{
		byID:    make(map[string]Plugin),
		ctx:     ctx,
		logger:  slog.Default(),
		dataCbs: make(map[string]func() any),
		timers:  make(map[string]*hostTimer),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a plugin to the end of the dispatch order.
func (h *Host) Register(p Plugin) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.byID[p.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.ID())
	}
	h.order = append(h.order, p)
	h.byID[p.ID()] = p
	return nil
}

// Unregister shuts a plugin down and removes it from the registry.
func (h *Host) Unregister(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, exists := h.byID[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}

	if p.IsInitialized() {
		if err := p.Shutdown(); err != nil {
			h.logger.Error("plugin shutdown failed", "plugin", id, "error", err)
		}
	}

	delete(h.byID, id)
	for i, q := range h.order {
		if q.ID() == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a registered plugin by id.
func (h *Host) Get(id string) (Plugin, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.byID[id]
	return p, ok
}

// IDs returns plugin ids in registration order.
func (h *Host) IDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, len(h.order))
	for i, p := range h.order {
		ids[i] = p.ID()
	}
	return ids
}

// Len returns the number of registered plugins.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}

// InitAll initializes every registered plugin with the host context.
// Failures are logged and collected; they do not stop initialization of the
// remaining plugins.
func (h *Host) InitAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, p := range h.order {
		if p.IsInitialized() {
			continue
		}
		if err := p.Init(h.ctx); err != nil {
			h.logger.Error("plugin init failed", "plugin", p.ID(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ShutdownAll cancels pending timers and shuts every initialized plugin
// down. Failures are logged and collected.
func (h *Host) ShutdownAll() error {
	h.cancelAllTimers()

	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, p := range h.order {
		if !p.IsInitialized() {
			continue
		}
		if err := p.Shutdown(); err != nil {
			h.logger.Error("plugin shutdown failed", "plugin", p.ID(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch delivers an event to plugins in registration order. The first
// response with Handled set stops further delivery for that event. Each
// response's action is executed through the host context before the next
// plugin is called. Per-plugin errors are logged and treated as no
// response. Returns the responses collected, in plugin order.
func (h *Host) Dispatch(event protocol.Event) []*protocol.Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	var responses []*protocol.Response
	for _, p := range h.order {
		resp, err := p.OnEvent(event)
		if err != nil {
			h.logger.Error("plugin event failed",
				"plugin", p.ID(), "event", event.EventType(), "error", err)
			continue
		}
		if resp == nil {
			continue
		}

		responses = append(responses, resp)
		if resp.Action != nil {
			h.ExecuteAction(resp.Action)
		}
		if resp.Handled {
			break
		}
	}
	return responses
}

// ExecuteAction performs the host side of a response action through the
// context callbacks and the timer table. Each callback invocation is a
// single atomic call. None, unknown, and plugin-facing actions are no-ops.
func (h *Host) ExecuteAction(action protocol.Action) {
	switch a := action.(type) {
	case protocol.ActionNotify:
		h.ctx.Notify(a.Message)
	case protocol.ActionLog:
		switch a.Level {
		case protocol.LogDebug:
			h.ctx.LogDebug(a.Message)
		case protocol.LogWarn:
			h.ctx.LogWarn(a.Message)
		case protocol.LogError:
			h.ctx.LogError(a.Message)
		default:
			h.ctx.LogInfo(a.Message)
		}
	case protocol.ActionRunCommand:
		if err := h.ctx.RunCommand(a.Name, a.Args); err != nil {
			h.logger.Error("run command failed", "command", a.Name, "error", err)
		}
	case protocol.ActionSetClipboard:
		if err := h.ctx.SetClipboard(a.Text); err != nil {
			h.logger.Error("set clipboard failed", "error", err)
		}
	case protocol.ActionSetTimer:
		h.setTimer(a)
	case protocol.ActionCancelTimer:
		h.cancelTimer(a.ID)
	case protocol.ActionRequestData:
		h.requestData(a)
	}
}

// setTimer schedules a timer whose firing re-enters Dispatch with a
// TimerEvent. Dispatch holds the host mutex, so timer delivery serializes
// with regular dispatch. Setting a timer with an existing id replaces it.
func (h *Host) setTimer(a protocol.ActionSetTimer) {
	interval := time.Duration(a.IntervalMS) * time.Millisecond
	if interval <= 0 {
		return
	}

	h.timerMu.Lock()
	defer h.timerMu.Unlock()

	if prev, exists := h.timers[a.ID]; exists {
		prev.cancel = true
		prev.timer.Stop()
	}

	ht := &hostTimer{interval: interval, repeat: a.Repeat}
	ht.timer = time.AfterFunc(interval, func() { h.fireTimer(a.ID, ht) })
	h.timers[a.ID] = ht
}

func (h *Host) fireTimer(id string, ht *hostTimer) {
	h.timerMu.Lock()
	if ht.cancel {
		h.timerMu.Unlock()
		return
	}
	if ht.repeat {
		ht.timer.Reset(ht.interval)
	} else {
		delete(h.timers, id)
	}
	h.timerMu.Unlock()

	h.Dispatch(&protocol.TimerEvent{
		ID:        id,
		ElapsedMS: ht.interval.Milliseconds(),
	})
}

func (h *Host) cancelTimer(id string) {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()

	if ht, exists := h.timers[id]; exists {
		ht.cancel = true
		ht.timer.Stop()
		delete(h.timers, id)
	}
}

func (h *Host) cancelAllTimers() {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()

	for id, ht := range h.timers {
		ht.cancel = true
		ht.timer.Stop()
		delete(h.timers, id)
	}
}

// requestData resolves a RequestData action against the registered data
// sources and delivers the result asynchronously as a command event naming
// the callback, modeling long-running host work as two round trips instead
// of blocking dispatch.
func (h *Host) requestData(a protocol.ActionRequestData) {
	fn, exists := h.dataCbs[a.DataType]
	if !exists {
		h.logger.Warn("no data source registered", "data_type", a.DataType)
		return
	}
	data := fn()
	go h.Dispatch(protocol.NewCommandEventWithArgs(a.Callback, map[string]any{
		"data_type": a.DataType,
		"data":      data,
	}))
}

// PluginsWithCapability returns plugins declaring the given capability
// name, in registration order.
func (h *Host) PluginsWithCapability(name string) []Plugin {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Plugin
	for _, p := range h.order {
		for _, c := range p.Capabilities() {
			if c == name {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// Infos returns a snapshot of every registered plugin in registration
// order.
func (h *Host) Infos() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()

	infos := make([]Info, len(h.order))
	for i, p := range h.order {
		infos[i] = Info{
			ID:           p.ID(),
			Name:         p.Name(),
			Version:      p.Version(),
			Description:  p.Description(),
			Backend:      p.Backend(),
			Capabilities: p.Capabilities(),
			Initialized:  p.IsInitialized(),
		}
	}
	return infos
}

// Context returns the shared plugin context.
func (h *Host) Context() *Context {
	return h.ctx
}
