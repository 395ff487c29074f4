package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Response is a plugin's answer to a dispatched event. Handled marks the
// event as fully consumed, stopping propagation to later plugins.
type Response struct {
	Action  Action
	Handled bool
	Payload any
}

// Action is the operation a plugin asks the host to perform on its behalf.
type Action interface {
	ActionType() string
}

// Wire discriminators for the closed action set.
const (
	ActionTypeNone             = "none"
	ActionTypeNotify           = "notify"
	ActionTypePrompt           = "prompt"
	ActionTypeRunCommand       = "run_command"
	ActionTypeSetClipboard     = "set_clipboard"
	ActionTypeOpenFile         = "open_file"
	ActionTypeInsertText       = "insert_text"
	ActionTypeReplaceSelection = "replace_selection"
	ActionTypeLog              = "log"
	ActionTypeSetTimer         = "set_timer"
	ActionTypeCancelTimer      = "cancel_timer"
	ActionTypeRequestData      = "request_data"
	ActionTypeReturnData       = "return_data"
	ActionTypeCustom           = "custom"
)

// NotifyLevel is the severity of a notification.
type NotifyLevel string

// Notification levels.
const (
	NotifyInfo    NotifyLevel = "info"
	NotifySuccess NotifyLevel = "success"
	NotifyWarning NotifyLevel = "warning"
	NotifyError   NotifyLevel = "error"
)

// LogLevel is the severity of a log message.
type LogLevel string

// Log levels.
const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// InputType selects the widget used by a prompt.
type InputType string

// Prompt input types.
const (
	InputText     InputType = "text"
	InputPassword InputType = "password"
	InputTextArea InputType = "text_area"
	InputConfirm  InputType = "confirm"
	InputSelect   InputType = "select"
)

// ActionNone requests nothing.
type ActionNone struct{}

// ActionType implements Action.
func (ActionNone) ActionType() string { return ActionTypeNone }

// ActionNotify shows a notification. DurationMS of zero keeps it visible
// until dismissed.
type ActionNotify struct {
	Message    string      `json:"message"`
	Level      NotifyLevel `json:"level,omitempty"`
	DurationMS int64       `json:"duration_ms,omitempty"`
}

// ActionType implements Action.
func (ActionNotify) ActionType() string { return ActionTypeNotify }

// ActionPrompt shows an input dialog; the result is delivered by invoking
// the callback command.
type ActionPrompt struct {
	Title        string    `json:"title"`
	Message      string    `json:"message,omitempty"`
	InputType    InputType `json:"input_type,omitempty"`
	DefaultValue string    `json:"default_value,omitempty"`
	Options      []string  `json:"options,omitempty"`
	Callback     string    `json:"callback"`
}

// ActionType implements Action.
func (ActionPrompt) ActionType() string { return ActionTypePrompt }

// ActionRunCommand runs an application command.
type ActionRunCommand struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ActionType implements Action.
func (ActionRunCommand) ActionType() string { return ActionTypeRunCommand }

// ActionSetClipboard replaces the clipboard content.
type ActionSetClipboard struct {
	Text string `json:"text"`
}

// ActionType implements Action.
func (ActionSetClipboard) ActionType() string { return ActionTypeSetClipboard }

// ActionOpenFile opens a file, optionally jumping to a position.
type ActionOpenFile struct {
	Path     string    `json:"path"`
	Position *Position `json:"position,omitempty"`
}

// ActionType implements Action.
func (ActionOpenFile) ActionType() string { return ActionTypeOpenFile }

// ActionInsertText inserts text at the cursor.
type ActionInsertText struct {
	Text string `json:"text"`
}

// ActionType implements Action.
func (ActionInsertText) ActionType() string { return ActionTypeInsertText }

// ActionReplaceSelection replaces the current selection.
type ActionReplaceSelection struct {
	Text string `json:"text"`
}

// ActionType implements Action.
func (ActionReplaceSelection) ActionType() string { return ActionTypeReplaceSelection }

// ActionLog writes a message to the host log.
type ActionLog struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

// ActionType implements Action.
func (ActionLog) ActionType() string { return ActionTypeLog }

// ActionSetTimer schedules a timer that later delivers a TimerEvent.
type ActionSetTimer struct {
	ID         string `json:"id"`
	IntervalMS int64  `json:"interval_ms"`
	Repeat     bool   `json:"repeat,omitempty"`
}

// ActionType implements Action.
func (ActionSetTimer) ActionType() string { return ActionTypeSetTimer }

// ActionCancelTimer cancels a previously scheduled timer.
type ActionCancelTimer struct {
	ID string `json:"id"`
}

// ActionType implements Action.
func (ActionCancelTimer) ActionType() string { return ActionTypeCancelTimer }

// ActionRequestData asks the host for data; the result arrives later via
// the callback command rather than blocking dispatch.
type ActionRequestData struct {
	DataType string `json:"data_type"`
	Callback string `json:"callback"`
}

// ActionType implements Action.
func (ActionRequestData) ActionType() string { return ActionTypeRequestData }

// ActionReturnData hands data back to the host.
type ActionReturnData struct {
	Data any `json:"data"`
}

// ActionType implements Action.
func (ActionReturnData) ActionType() string { return ActionTypeReturnData }

// ActionCustom carries an application-defined action.
type ActionCustom struct {
	Name string `json:"name"`
	Data any    `json:"data,omitempty"`
}

// ActionType implements Action.
func (ActionCustom) ActionType() string { return ActionTypeCustom }

// None returns a response requesting nothing.
func None() *Response {
	return &Response{Action: ActionNone{}}
}

// Notify returns an info notification shown for three seconds.
func Notify(message string) *Response {
	return NotifyWithLevel(message, NotifyInfo)
}

// NotifyWithLevel returns a notification at the given level.
func NotifyWithLevel(message string, level NotifyLevel) *Response {
	return &Response{
		Action: ActionNotify{Message: message, Level: level, DurationMS: 3000},
	}
}

// ErrorNotice returns an error-level notification.
func ErrorNotice(message string) *Response {
	return NotifyWithLevel(message, NotifyError)
}

// Success returns a success-level notification.
func Success(message string) *Response {
	return NotifyWithLevel(message, NotifySuccess)
}

// Log returns a log response.
func Log(level LogLevel, message string) *Response {
	return &Response{Action: ActionLog{Level: level, Message: message}}
}

// RunCommand returns a handled response that runs a command.
func RunCommand(name string) *Response {
	return &Response{Action: ActionRunCommand{Name: name}, Handled: true}
}

// RunCommandWithArgs returns a handled response that runs a command with
// arguments.
func RunCommandWithArgs(name string, args map[string]any) *Response {
	return &Response{Action: ActionRunCommand{Name: name, Args: args}, Handled: true}
}

// WithHandled marks the event as fully handled.
func (r *Response) WithHandled() *Response {
	r.Handled = true
	return r
}

// WithPayload attaches payload data.
func (r *Response) WithPayload(payload any) *Response {
	r.Payload = payload
	return r
}

// responseWire is the envelope shape of a response on the wire.
type responseWire struct {
	Action  json.RawMessage `json:"action"`
	Handled bool            `json:"handled"`
	Payload any             `json:"payload,omitempty"`
}

// EncodeResponse serializes a response to its wire shape. A nil Action
// encodes as the none action.
func EncodeResponse(r *Response) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("encode response: nil response")
	}
	action := r.Action
	if action == nil {
		action = ActionNone{}
	}

	actionData, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	actionData, err = sjson.SetBytes(actionData, "type", action.ActionType())
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}

	return json.Marshal(responseWire{
		Action:  actionData,
		Handled: r.Handled,
		Payload: r.Payload,
	})
}

// DecodeResponse parses a response from its wire shape.
func DecodeResponse(data []byte) (*Response, error) {
	var wire responseWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(wire.Action) == 0 {
		return nil, fmt.Errorf("decode response: missing action")
	}

	action, err := DecodeAction(wire.Action)
	if err != nil {
		return nil, err
	}

	return &Response{Action: action, Handled: wire.Handled, Payload: wire.Payload}, nil
}

// DecodeAction parses an action from its wire shape. A missing or unknown
// discriminator is an error.
func DecodeAction(data []byte) (Action, error) {
	typ := gjson.GetBytes(data, "type")
	if !typ.Exists() {
		return nil, fmt.Errorf("decode action: missing type discriminator")
	}

	switch typ.String() {
	case ActionTypeNone:
		return ActionNone{}, nil
	case ActionTypeNotify:
		return decodeActionInto(data, &ActionNotify{})
	case ActionTypePrompt:
		return decodeActionInto(data, &ActionPrompt{})
	case ActionTypeRunCommand:
		return decodeActionInto(data, &ActionRunCommand{})
	case ActionTypeSetClipboard:
		return decodeActionInto(data, &ActionSetClipboard{})
	case ActionTypeOpenFile:
		return decodeActionInto(data, &ActionOpenFile{})
	case ActionTypeInsertText:
		return decodeActionInto(data, &ActionInsertText{})
	case ActionTypeReplaceSelection:
		return decodeActionInto(data, &ActionReplaceSelection{})
	case ActionTypeLog:
		return decodeActionInto(data, &ActionLog{})
	case ActionTypeSetTimer:
		return decodeActionInto(data, &ActionSetTimer{})
	case ActionTypeCancelTimer:
		return decodeActionInto(data, &ActionCancelTimer{})
	case ActionTypeRequestData:
		return decodeActionInto(data, &ActionRequestData{})
	case ActionTypeReturnData:
		return decodeActionInto(data, &ActionReturnData{})
	case ActionTypeCustom:
		return decodeActionInto(data, &ActionCustom{})
	default:
		return nil, fmt.Errorf("decode action: unknown type %q", typ.String())
	}
}

// decodeActionInto unmarshals wire data into a concrete action and returns
// it by value so callers compare actions without pointer indirection.
func decodeActionInto[T Action](data []byte, v *T) (Action, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	return *v, nil
}

// DecodeActionValue decodes an action from already-parsed generic data, as
// produced by an interpreter bridge. The value must be a map with a string
// "type" field.
func DecodeActionValue(v any) (Action, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode action: expected table, got %T", v)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	return DecodeAction(data)
}
