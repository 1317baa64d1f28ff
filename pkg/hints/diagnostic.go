package hints

import "fmt"

// Class categorizes a diagnostic. No class aborts a run; the worst outcome is
// that one directive's intended effect does not apply, and that must always be
// visible here for human review.
type Class string

const (
	// ParseWarning: malformed or unknown line, line discarded, file continues.
	ParseWarning Class = "parse-warning"
	// PermissionDenied: issuer lacks the capability, directive discarded.
	PermissionDenied Class = "permission-denied"
	// ShapeError: wrong argument cardinality or reference type, directive discarded.
	ShapeError Class = "shape-error"
	// DuplicateConflict: second age-days/ignore-rc-bugs for the same item, later one discarded.
	DuplicateConflict Class = "duplicate-conflict"
	// DuplicateOverride: a later unblock for the same item replaced an earlier one.
	DuplicateOverride Class = "duplicate-override"
	// StaleAction: trial precheck failure, entire trial directive rejected atomically.
	StaleAction Class = "stale-action"
	// InsufficientForce: force-hint item lacking a matching force, item excluded from commit.
	InsufficientForce Class = "insufficient-force"
)

// Diagnostic records why a directive (or line, or trial item) did not take
// effect. Diagnostics accumulate across parsing, validation, resolution and
// trials; they never abort processing.
type Diagnostic struct {
	Class   Class  `json:"class"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Issuer  string `json:"issuer,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.File != "" {
		return fmt.Sprintf("%s: %s:%d: %s", d.Class, d.File, d.Line, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Class, d.Message)
}

func diagf(class Class, h Hint, format string, args ...any) Diagnostic {
	return Diagnostic{
		Class:   class,
		File:    h.File,
		Line:    h.Line,
		Issuer:  h.Issuer,
		Kind:    h.Kind,
		Message: fmt.Sprintf(format, args...),
	}
}
