package lua

import (
	"reflect"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/tuiplug/internal/plugin/sandbox"
)

func TestToGoValueScalars(t *testing.T) {
	s := newTestState(t, sandbox.Default())
	b := NewBridge(s.LuaState())

	tests := []struct {
		name string
		in   lua.LValue
		want any
	}{
		{"bool", lua.LTrue, true},
		{"integer", lua.LNumber(42), int64(42)},
		{"float", lua.LNumber(1.5), 1.5},
		{"string", lua.LString("hi"), "hi"},
		{"nil", lua.LNil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.ToGoValue(tt.in); got != tt.want {
				t.Errorf("ToGoValue(%v) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestToGoValueArrayTable(t *testing.T) {
	s := newTestState(t, sandbox.Default())
	b := NewBridge(s.LuaState())

	v, err := s.EvalString(`return { "a", "b", "c" }`)
	if err != nil {
		t.Fatalf("EvalString() error = %v", err)
	}

	got := b.ToGoValue(v)
	want := []any{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToGoValue() = %v, want %v", got, want)
	}
}

func TestToGoValueMapTable(t *testing.T) {
	s := newTestState(t, sandbox.Default())
	b := NewBridge(s.LuaState())

	v, err := s.EvalString(`return { type = "notify", message = "hi", duration_ms = 3000 }`)
	if err != nil {
		t.Fatalf("EvalString() error = %v", err)
	}

	got, ok := b.ToGoValue(v).(map[string]any)
	if !ok {
		t.Fatalf("ToGoValue() = %T, want map[string]any", b.ToGoValue(v))
	}
	if got["type"] != "notify" || got["message"] != "hi" || got["duration_ms"] != int64(3000) {
		t.Errorf("ToGoValue() = %v", got)
	}
}

func TestToGoValueSparseTableIsMap(t *testing.T) {
	s := newTestState(t, sandbox.Default())
	b := NewBridge(s.LuaState())

	v, err := s.EvalString(`local t = {}; t[1] = "a"; t[3] = "c"; return t`)
	if err != nil {
		t.Fatalf("EvalString() error = %v", err)
	}

	if _, ok := b.ToGoValue(v).(map[string]any); !ok {
		t.Errorf("sparse table should convert to map, got %T", b.ToGoValue(v))
	}
}

func TestToGoValueBreaksCircularReference(t *testing.T) {
	s := newTestState(t, sandbox.Default())
	b := NewBridge(s.LuaState())

	v, err := s.EvalString(`local t = { name = "loop" }; t.self = t; return t`)
	if err != nil {
		t.Fatalf("EvalString() error = %v", err)
	}

	got, ok := b.ToGoValue(v).(map[string]any)
	if !ok {
		t.Fatalf("ToGoValue() = %T, want map[string]any", b.ToGoValue(v))
	}
	if got["name"] != "loop" {
		t.Errorf("name = %v, want loop", got["name"])
	}
	if got["self"] != nil {
		t.Errorf("self = %v, want nil (circular reference broken)", got["self"])
	}
}

func TestToLuaValueRoundTrip(t *testing.T) {
	s := newTestState(t, sandbox.Default())
	b := NewBridge(s.LuaState())

	in := map[string]any{
		"type": "command",
		"name": "save",
		"args": map[string]any{"force": true, "count": int64(3)},
		"tags": []any{"a", "b"},
	}

	got := b.ToGoValue(b.ToLuaValue(in))
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip = %v, want %v", got, in)
	}
}

func TestToLuaValueReadableFromLua(t *testing.T) {
	s := newTestState(t, sandbox.Default())
	b := NewBridge(s.LuaState())

	s.SetGlobal("event", b.ToLuaValue(map[string]any{"type": "key", "code": "s"}))

	v, err := s.EvalString(`return event.type .. ":" .. event.code`)
	if err != nil {
		t.Fatalf("EvalString() error = %v", err)
	}
	if v.String() != "key:s" {
		t.Errorf("lua read = %q, want %q", v.String(), "key:s")
	}
}

func TestGetTableAccessors(t *testing.T) {
	s := newTestState(t, sandbox.Default())
	b := NewBridge(s.LuaState())

	v, err := s.EvalString(`return { id = "demo", init = function() end, commands = {} }`)
	if err != nil {
		t.Fatalf("EvalString() error = %v", err)
	}
	tbl := v.(*lua.LTable)

	if id, ok := b.GetTableString(tbl, "id"); !ok || id != "demo" {
		t.Errorf("GetTableString(id) = %q, %v", id, ok)
	}
	if _, ok := b.GetTableFunc(tbl, "init"); !ok {
		t.Error("GetTableFunc(init) should find a function")
	}
	if _, ok := b.GetTableTable(tbl, "commands"); !ok {
		t.Error("GetTableTable(commands) should find a table")
	}
	if _, ok := b.GetTableString(tbl, "missing"); ok {
		t.Error("GetTableString(missing) should not find a value")
	}
}
