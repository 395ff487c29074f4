package plugin

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/dshills/tuiplug/internal/plugin/protocol"
)

// fakePlugin is a scriptable Plugin for host tests.
type fakePlugin struct {
	id           string
	capabilities []string
	handler      func(protocol.Event) (*protocol.Response, error)

	initialized bool
	initErr     error
	shutdownErr error
	events      []protocol.Event
	shutdowns   int
}

func (f *fakePlugin) ID() string             { return f.id }
func (f *fakePlugin) Name() string           { return f.id }
func (f *fakePlugin) Version() string        { return "1.0.0" }
func (f *fakePlugin) Description() string    { return "" }
func (f *fakePlugin) Backend() Backend       { return BackendLua }
func (f *fakePlugin) Capabilities() []string { return f.capabilities }
func (f *fakePlugin) GetCommands() []Command { return nil }
func (f *fakePlugin) IsInitialized() bool    { return f.initialized }

func (f *fakePlugin) Init(*Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.initialized = true
	return nil
}

func (f *fakePlugin) Shutdown() error {
	f.shutdowns++
	f.initialized = false
	return f.shutdownErr
}

func (f *fakePlugin) OnEvent(e protocol.Event) (*protocol.Response, error) {
	f.events = append(f.events, e)
	if f.handler != nil {
		return f.handler(e)
	}
	return nil, nil
}

func newTestHost(t *testing.T, opts ...HostOption) *Host {
	t.Helper()
	ctx := NewContextBuilder("testapp", "1.0.0").Build()
	opts = append(opts, WithHostLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewHost(ctx, opts...)
}

func TestRegisterDuplicate(t *testing.T) {
	h := newTestHost(t)

	if err := h.Register(&fakePlugin{id: "a"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := h.Register(&fakePlugin{id: "a"}); !errors.Is(err, ErrDuplicatePlugin) {
		t.Errorf("duplicate Register() error = %v, want ErrDuplicatePlugin", err)
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
}

func TestUnregisterShutsDown(t *testing.T) {
	h := newTestHost(t)
	p := &fakePlugin{id: "a", initialized: true}
	h.Register(p)

	if err := h.Unregister("a"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if p.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", p.shutdowns)
	}
	if _, ok := h.Get("a"); ok {
		t.Error("plugin should be removed from registry")
	}

	if err := h.Unregister("a"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("second Unregister() error = %v, want ErrPluginNotFound", err)
	}
}

func TestDispatchStopsOnHandled(t *testing.T) {
	h := newTestHost(t)

	a := &fakePlugin{id: "a", initialized: true}
	b := &fakePlugin{id: "b", initialized: true, handler: func(protocol.Event) (*protocol.Response, error) {
		return protocol.RunCommand("save"), nil
	}}
	c := &fakePlugin{id: "c", initialized: true}
	h.Register(a)
	h.Register(b)
	h.Register(c)

	responses := h.Dispatch(protocol.NewCommandEvent("save"))

	if len(responses) != 1 || !responses[0].Handled {
		t.Fatalf("responses = %+v, want one handled response", responses)
	}
	if len(a.events) != 1 {
		t.Error("plugin a should receive the event")
	}
	if len(c.events) != 0 {
		t.Error("plugin c should not receive the event after b handled it")
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	h := newTestHost(t)

	a := &fakePlugin{id: "a", initialized: true, handler: func(protocol.Event) (*protocol.Response, error) {
		return nil, errors.New("plugin exploded")
	}}
	b := &fakePlugin{id: "b", initialized: true, handler: func(protocol.Event) (*protocol.Response, error) {
		return protocol.Notify("ok"), nil
	}}
	h.Register(a)
	h.Register(b)

	responses := h.Dispatch(protocol.NewCommandEvent("go"))

	if len(responses) != 1 {
		t.Fatalf("responses = %+v, want b's response despite a's failure", responses)
	}
	if len(b.events) != 1 {
		t.Error("plugin b should receive the event after a errored")
	}
}

func TestDispatchExecutesActions(t *testing.T) {
	var notified string
	var ranCommand string
	ctx := NewContextBuilder("testapp", "1.0.0").
		OnNotify(func(msg string) { notified = msg }).
		OnRunCommand(func(name string, _ map[string]any) error { ranCommand = name; return nil }).
		Build()
	h := NewHost(ctx, WithHostLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	p := &fakePlugin{id: "a", initialized: true, handler: func(protocol.Event) (*protocol.Response, error) {
		return protocol.Notify("saved"), nil
	}}
	h.Register(p)
	h.Dispatch(protocol.NewCommandEvent("save"))

	if notified != "saved" {
		t.Errorf("notify callback got %q, want %q", notified, "saved")
	}

	h.ExecuteAction(protocol.ActionRunCommand{Name: "quit"})
	if ranCommand != "quit" {
		t.Errorf("run command callback got %q, want %q", ranCommand, "quit")
	}

	// None and plugin-facing actions are no-ops.
	h.ExecuteAction(protocol.ActionNone{})
	h.ExecuteAction(protocol.ActionInsertText{Text: "x"})
}

func TestInitAllAndShutdownAll(t *testing.T) {
	h := newTestHost(t)

	good := &fakePlugin{id: "good"}
	bad := &fakePlugin{id: "bad", initErr: errors.New("init failed")}
	h.Register(good)
	h.Register(bad)

	err := h.InitAll()
	if err == nil {
		t.Error("InitAll() should report the failing plugin")
	}
	if !good.initialized {
		t.Error("good plugin should initialize despite bad plugin's failure")
	}

	if err := h.ShutdownAll(); err != nil {
		t.Errorf("ShutdownAll() error = %v", err)
	}
	if good.shutdowns != 1 {
		t.Errorf("good shutdowns = %d, want 1", good.shutdowns)
	}
	if bad.shutdowns != 0 {
		t.Errorf("bad shutdowns = %d, want 0 (never initialized)", bad.shutdowns)
	}
}

func TestTimerFiresAndDelivers(t *testing.T) {
	h := newTestHost(t)

	fired := make(chan protocol.Event, 1)
	p := &fakePlugin{id: "a", initialized: true, handler: func(e protocol.Event) (*protocol.Response, error) {
		if _, ok := e.(*protocol.TimerEvent); ok {
			select {
			case fired <- e:
			default:
			}
		}
		return nil, nil
	}}
	h.Register(p)

	h.ExecuteAction(protocol.ActionSetTimer{ID: "tick", IntervalMS: 20})

	select {
	case e := <-fired:
		timer := e.(*protocol.TimerEvent)
		if timer.ID != "tick" || timer.ElapsedMS != 20 {
			t.Errorf("timer event = %+v", timer)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer event never delivered")
	}
}

func TestTimerCancel(t *testing.T) {
	h := newTestHost(t)

	p := &fakePlugin{id: "a", initialized: true}
	h.Register(p)

	h.ExecuteAction(protocol.ActionSetTimer{ID: "tick", IntervalMS: 60})
	h.ExecuteAction(protocol.ActionCancelTimer{ID: "tick"})

	time.Sleep(120 * time.Millisecond)
	if len(p.events) != 0 {
		t.Errorf("cancelled timer still delivered %d events", len(p.events))
	}
}

func TestRequestDataRoundTrip(t *testing.T) {
	delivered := make(chan *protocol.CommandEvent, 1)
	p := &fakePlugin{id: "a", initialized: true, handler: func(e protocol.Event) (*protocol.Response, error) {
		if cmd, ok := e.(*protocol.CommandEvent); ok && cmd.Name == "a:on_buffer" {
			select {
			case delivered <- cmd:
			default:
			}
		}
		return nil, nil
	}}

	h := newTestHost(t, WithDataSource("buffer", func() any { return "contents" }))
	h.Register(p)

	h.ExecuteAction(protocol.ActionRequestData{DataType: "buffer", Callback: "a:on_buffer"})

	select {
	case cmd := <-delivered:
		if data, ok := cmd.GetString("data"); !ok || data != "contents" {
			t.Errorf("callback args = %+v", cmd.Args)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request data callback never delivered")
	}
}

func TestPluginsWithCapability(t *testing.T) {
	h := newTestHost(t)
	h.Register(&fakePlugin{id: "a", capabilities: []string{"commands"}})
	h.Register(&fakePlugin{id: "b", capabilities: []string{"theming"}})
	h.Register(&fakePlugin{id: "c", capabilities: []string{"commands", "theming"}})

	got := h.PluginsWithCapability("commands")
	ids := make([]string, len(got))
	for i, p := range got {
		ids[i] = p.ID()
	}
	if !reflect.DeepEqual(ids, []string{"a", "c"}) {
		t.Errorf("PluginsWithCapability(commands) = %v, want [a c]", ids)
	}
}

func TestInfos(t *testing.T) {
	h := newTestHost(t)
	h.Register(&fakePlugin{id: "a", capabilities: []string{"commands"}, initialized: true})
	h.Register(&fakePlugin{id: "b"})

	infos := h.Infos()
	if len(infos) != 2 {
		t.Fatalf("Infos() returned %d entries, want 2", len(infos))
	}
	if infos[0].ID != "a" || !infos[0].Initialized {
		t.Errorf("infos[0] = %+v", infos[0])
	}
	if infos[1].ID != "b" || infos[1].Initialized {
		t.Errorf("infos[1] = %+v", infos[1])
	}

	if got := h.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("IDs() = %v, want [a b]", got)
	}
}
