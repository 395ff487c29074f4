package protocol

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestKeyEventModifiers(t *testing.T) {
	e := NewKeyEvent("s", "ctrl")

	if !e.HasCtrl() {
		t.Error("HasCtrl() = false, want true")
	}
	if e.HasAlt() {
		t.Error("HasAlt() = true, want false")
	}
	if e.HasShift() {
		t.Error("HasShift() = true, want false")
	}

	e = NewKeyEvent("p", "Ctrl", "SHIFT")
	if !e.HasCtrl() || !e.HasShift() {
		t.Error("modifier matching should be case-insensitive")
	}
}

func TestCommandEventArgs(t *testing.T) {
	e := NewCommandEventWithArgs("my_command", map[string]any{
		"count": float64(5),
		"name":  "test",
		"force": true,
	})

	if n, ok := e.GetInt("count"); !ok || n != 5 {
		t.Errorf("GetInt(count) = %d, %v, want 5, true", n, ok)
	}
	if s, ok := e.GetString("name"); !ok || s != "test" {
		t.Errorf("GetString(name) = %q, %v, want \"test\", true", s, ok)
	}
	if b, ok := e.GetBool("force"); !ok || !b {
		t.Errorf("GetBool(force) = %v, %v, want true, true", b, ok)
	}
	if _, ok := e.GetString("missing"); ok {
		t.Error("GetString(missing) ok = true, want false")
	}
}

func TestFileEventDerivesFileType(t *testing.T) {
	e := NewFileOpened("/a/b/file.rs")
	if e.FileType != "rs" {
		t.Errorf("FileType = %q, want %q", e.FileType, "rs")
	}
	if e.EventType() != EventTypeFileOpened {
		t.Errorf("EventType() = %q, want %q", e.EventType(), EventTypeFileOpened)
	}

	e = NewFileSaved("/tmp/notes.md")
	if e.FileType != "md" {
		t.Errorf("FileType = %q, want %q", e.FileType, "md")
	}
	if e.EventType() != EventTypeFileSaved {
		t.Errorf("EventType() = %q, want %q", e.EventType(), EventTypeFileSaved)
	}

	e = NewFileOpened("/no/extension")
	if e.FileType != "" {
		t.Errorf("FileType = %q, want empty", e.FileType)
	}
}

func TestEncodeEventWireShape(t *testing.T) {
	data, err := EncodeEvent(NewCommandEvent("save"))
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	if typ := gjson.GetBytes(data, "type").String(); typ != "command" {
		t.Errorf("wire type = %q, want %q", typ, "command")
	}
	if name := gjson.GetBytes(data, "name").String(); name != "save" {
		t.Errorf("wire name = %q, want %q", name, "save")
	}
}

func TestEventRoundTrip(t *testing.T) {
	events := []Event{
		&LifecycleEvent{Phase: PhaseReady},
		NewKeyEvent("s", "ctrl"),
		NewCommandEventWithArgs("save", map[string]any{"force": true}),
		&SelectionEvent{
			Selection:     "hello",
			SelectionType: SelectionText,
			Start:         &Position{Line: 1, Column: 2},
			End:           &Position{Line: 1, Column: 7},
		},
		NewFileOpened("/a/b/file.rs"),
		NewFileSaved("/a/b/file.rs"),
		&ThemeEvent{Theme: "gruvbox", IsDark: true},
		&TimerEvent{ID: "tick", ElapsedMS: 1500},
		&CustomEvent{Name: "refresh", Payload: map[string]any{"pane": "left"}},
	}

	for _, e := range events {
		t.Run(e.EventType(), func(t *testing.T) {
			data, err := EncodeEvent(e)
			if err != nil {
				t.Fatalf("EncodeEvent() error = %v", err)
			}

			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent() error = %v", err)
			}

			if decoded.EventType() != e.EventType() {
				t.Errorf("EventType() = %q, want %q", decoded.EventType(), e.EventType())
			}
		})
	}
}

func TestEventRoundTripPreservesFields(t *testing.T) {
	data, err := EncodeEvent(&SelectionEvent{
		Selection:     "abc",
		SelectionType: SelectionLine,
		Start:         &Position{Line: 3, Column: 0},
	})
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	sel, ok := decoded.(*SelectionEvent)
	if !ok {
		t.Fatalf("decoded type = %T, want *SelectionEvent", decoded)
	}
	if sel.Selection != "abc" || sel.SelectionType != SelectionLine {
		t.Errorf("fields = %q/%q, want abc/line", sel.Selection, sel.SelectionType)
	}
	if sel.Start == nil || sel.Start.Line != 3 {
		t.Errorf("Start = %+v, want line 3", sel.Start)
	}
	if sel.End != nil {
		t.Errorf("End = %+v, want nil", sel.End)
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"bogus"}`))
	if err == nil {
		t.Fatal("DecodeEvent() with unknown type should return error")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error should name the unknown type: %v", err)
	}
}

func TestDecodeEventMissingType(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"name":"x"}`)); err == nil {
		t.Error("DecodeEvent() with missing type should return error")
	}
}

func TestCustomEventTypeIsName(t *testing.T) {
	e := &CustomEvent{Name: "refresh"}
	if e.EventType() != "refresh" {
		t.Errorf("EventType() = %q, want %q", e.EventType(), "refresh")
	}

	// But on the wire the discriminator stays "custom".
	data, err := EncodeEvent(e)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	if typ := gjson.GetBytes(data, "type").String(); typ != "custom" {
		t.Errorf("wire type = %q, want %q", typ, "custom")
	}
}
