package sandbox

import (
	"log/slog"
	"sync"
	"time"
)

// ViolationType categorizes a sandbox boundary breach.
type ViolationType int

// Violation categories.
const (
	ViolationMemoryLimit ViolationType = iota
	ViolationInstructionLimit
	ViolationTimeout
	ViolationFileAccess
	ViolationNetworkAccess
	ViolationModuleAccess
)

// String returns the audit-log name of the violation type.
func (t ViolationType) String() string {
	switch t {
	case ViolationMemoryLimit:
		return "memory_limit"
	case ViolationInstructionLimit:
		return "instruction_limit"
	case ViolationTimeout:
		return "timeout"
	case ViolationFileAccess:
		return "file_access"
	case ViolationNetworkAccess:
		return "network_access"
	case ViolationModuleAccess:
		return "module_access"
	default:
		return "unknown"
	}
}

// Violation records a single sandbox boundary breach for audit.
// A violation is telemetry, not an error: resource violations abort the
// offending call at the backend, while access violations are refused before
// the underlying action runs.
type Violation struct {
	Type        ViolationType
	Description string
	Time        time.Time
}

// maxRecorded bounds the violations a Recorder retains.
const maxRecorded = 128

// Recorder collects sandbox violations per plugin and logs each one.
type Recorder struct {
	mu         sync.Mutex
	pluginID   string
	logger     *slog.Logger
	violations []Violation
}

// NewRecorder creates a Recorder for the given plugin. A nil logger uses
// slog.Default().
func NewRecorder(pluginID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{pluginID: pluginID, logger: logger}
}

// Record logs and retains a violation.
func (r *Recorder) Record(t ViolationType, description string) {
	v := Violation{Type: t, Description: description, Time: time.Now()}

	r.mu.Lock()
	r.violations = append(r.violations, v)
	if len(r.violations) > maxRecorded {
		r.violations = r.violations[len(r.violations)-maxRecorded:]
	}
	r.mu.Unlock()

	r.logger.Warn("sandbox violation",
		"plugin", r.pluginID,
		"type", t.String(),
		"description", description,
	)
}

// Violations returns a copy of the retained violations, oldest first.
func (r *Recorder) Violations() []Violation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Violation{}, r.violations...)
}

// Count returns the number of retained violations.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.violations)
}
