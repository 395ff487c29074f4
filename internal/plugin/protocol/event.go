package protocol

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Event is a typed message delivered host to plugin.
//
// EventType returns the wire discriminator, except for CustomEvent which
// returns its own name so handlers can filter on it directly.
type Event interface {
	EventType() string
}

// Wire discriminators for the closed event set.
const (
	EventTypeLifecycle        = "lifecycle"
	EventTypeKey              = "key"
	EventTypeCommand          = "command"
	EventTypeSelectionChanged = "selection_changed"
	EventTypeFileOpened       = "file_opened"
	EventTypeFileSaved        = "file_saved"
	EventTypeThemeChanged     = "theme_changed"
	EventTypeTimer            = "timer"
	EventTypeCustom           = "custom"
)

// LifecyclePhase identifies an application lifecycle transition.
type LifecyclePhase string

// Lifecycle phases.
const (
	PhaseStarting     LifecyclePhase = "starting"
	PhaseReady        LifecyclePhase = "ready"
	PhaseShuttingDown LifecyclePhase = "shutting_down"
	PhaseEnabled      LifecyclePhase = "enabled"
	PhaseDisabled     LifecyclePhase = "disabled"
)

// LifecycleEvent signals an application lifecycle transition.
type LifecycleEvent struct {
	Phase LifecyclePhase `json:"phase"`
}

// EventType implements Event.
func (e *LifecycleEvent) EventType() string { return EventTypeLifecycle }

// KeyEvent is a key press forwarded to plugins.
type KeyEvent struct {
	Code      string   `json:"code"`
	Modifiers []string `json:"modifiers"`
	Raw       string   `json:"raw,omitempty"`
}

// NewKeyEvent creates a key event.
func NewKeyEvent(code string, modifiers ...string) *KeyEvent {
	return &KeyEvent{Code: code, Modifiers: modifiers}
}

// EventType implements Event.
func (e *KeyEvent) EventType() string { return EventTypeKey }

// HasCtrl reports whether Ctrl is among the modifiers.
func (e *KeyEvent) HasCtrl() bool { return e.hasModifier("ctrl") }

// HasAlt reports whether Alt is among the modifiers.
func (e *KeyEvent) HasAlt() bool { return e.hasModifier("alt") }

// HasShift reports whether Shift is among the modifiers.
func (e *KeyEvent) HasShift() bool { return e.hasModifier("shift") }

func (e *KeyEvent) hasModifier(name string) bool {
	for _, m := range e.Modifiers {
		if strings.EqualFold(m, name) {
			return true
		}
	}
	return false
}

// CommandEvent is an invocation of a named command.
type CommandEvent struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// NewCommandEvent creates a command event without arguments.
func NewCommandEvent(name string) *CommandEvent {
	return &CommandEvent{Name: name}
}

// NewCommandEventWithArgs creates a command event with arguments.
func NewCommandEventWithArgs(name string, args map[string]any) *CommandEvent {
	return &CommandEvent{Name: name, Args: args}
}

// EventType implements Event.
func (e *CommandEvent) EventType() string { return EventTypeCommand }

// GetString returns a string argument.
func (e *CommandEvent) GetString(key string) (string, bool) {
	s, ok := e.Args[key].(string)
	return s, ok
}

// GetInt returns an integer argument. JSON numbers decode as float64, so
// both forms are accepted.
func (e *CommandEvent) GetInt(key string) (int64, bool) {
	switch v := e.Args[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// GetBool returns a boolean argument.
func (e *CommandEvent) GetBool(key string) (bool, bool) {
	b, ok := e.Args[key].(bool)
	return b, ok
}

// SelectionType identifies what kind of selection changed.
type SelectionType string

// Selection types.
const (
	SelectionText  SelectionType = "text"
	SelectionLine  SelectionType = "line"
	SelectionBlock SelectionType = "block"
	SelectionItem  SelectionType = "item"
	SelectionMulti SelectionType = "multi"
)

// Position is a zero-indexed line/column location in a document.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SelectionEvent reports a selection change.
type SelectionEvent struct {
	Selection     string        `json:"selection"`
	SelectionType SelectionType `json:"selection_type"`
	Start         *Position     `json:"start,omitempty"`
	End           *Position     `json:"end,omitempty"`
}

// EventType implements Event.
func (e *SelectionEvent) EventType() string { return EventTypeSelectionChanged }

// FileEvent reports a file being opened or saved. The two cases share a
// shape and differ only in discriminator.
type FileEvent struct {
	Path     string `json:"path"`
	FileType string `json:"file_type,omitempty"`
	Language string `json:"language,omitempty"`

	saved bool
}

// NewFileOpened creates a file-opened event, deriving FileType from the
// path's extension.
func NewFileOpened(path string) *FileEvent {
	return &FileEvent{Path: path, FileType: fileType(path)}
}

// NewFileSaved creates a file-saved event, deriving FileType from the
// path's extension.
func NewFileSaved(path string) *FileEvent {
	return &FileEvent{Path: path, FileType: fileType(path), saved: true}
}

func fileType(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// WithLanguage sets the language identifier.
func (e *FileEvent) WithLanguage(language string) *FileEvent {
	e.Language = language
	return e
}

// EventType implements Event.
func (e *FileEvent) EventType() string {
	if e.saved {
		return EventTypeFileSaved
	}
	return EventTypeFileOpened
}

// ThemeEvent reports a theme change.
type ThemeEvent struct {
	Theme  string `json:"theme"`
	IsDark bool   `json:"is_dark"`
}

// EventType implements Event.
func (e *ThemeEvent) EventType() string { return EventTypeThemeChanged }

// TimerEvent reports a timer firing.
type TimerEvent struct {
	ID        string `json:"id"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// EventType implements Event.
func (e *TimerEvent) EventType() string { return EventTypeTimer }

// CustomEvent carries an application-defined event.
type CustomEvent struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// EventType returns the custom event's name.
func (e *CustomEvent) EventType() string { return e.Name }

// EncodeEvent serializes an event to its wire shape: the variant's fields
// plus a "type" discriminator.
func EncodeEvent(e Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("encode event: nil event")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return sjson.SetBytes(data, "type", wireType(e))
}

// wireType returns the wire discriminator for an event. CustomEvent reports
// its name from EventType, but always travels as "custom".
func wireType(e Event) string {
	if _, ok := e.(*CustomEvent); ok {
		return EventTypeCustom
	}
	return e.EventType()
}

// DecodeEvent parses an event from its wire shape. A missing or unknown
// discriminator is an error.
func DecodeEvent(data []byte) (Event, error) {
	typ := gjson.GetBytes(data, "type")
	if !typ.Exists() {
		return nil, fmt.Errorf("decode event: missing type discriminator")
	}

	var e Event
	switch typ.String() {
	case EventTypeLifecycle:
		e = &LifecycleEvent{}
	case EventTypeKey:
		e = &KeyEvent{}
	case EventTypeCommand:
		e = &CommandEvent{}
	case EventTypeSelectionChanged:
		e = &SelectionEvent{}
	case EventTypeFileOpened:
		e = &FileEvent{}
	case EventTypeFileSaved:
		e = &FileEvent{saved: true}
	case EventTypeThemeChanged:
		e = &ThemeEvent{}
	case EventTypeTimer:
		e = &TimerEvent{}
	case EventTypeCustom:
		e = &CustomEvent{}
	default:
		return nil, fmt.Errorf("decode event: unknown type %q", typ.String())
	}

	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
