// Package audit records what a gatekeeper run decided and why: the resolved
// policy snapshot hash, every diagnostic, and every trial outcome.
//
// The core resolution and trial state stays transient per run; this package
// is a sink beside it, never a source of state.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventResolve    EventType = "RESOLVE"
	EventTrial      EventType = "TRIAL"
	EventDiagnostic EventType = "DIAGNOSTIC"
	EventSystem     EventType = "SYSTEM"
)

// Event is a structured audit record.
type Event struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	Subject   string         `json:"subject"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger records audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, subject string, metadata map[string]any) error
}

// logger writes structured JSON lines to a configurable writer.
type logger struct {
	mu     sync.Mutex
	runID  string
	writer io.Writer
}

// NewLogger creates a Logger for one run, writing to os.Stdout.
func NewLogger(runID string) Logger {
	return NewLoggerWithWriter(runID, os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer, allowing
// injection for tests and custom sinks.
func NewLoggerWithWriter(runID string, w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{runID: runID, writer: w}
}

func (l *logger) Record(_ context.Context, eventType EventType, action, subject string, metadata map[string]any) error {
	event := Event{
		ID:        uuid.New().String(),
		RunID:     l.runID,
		Type:      eventType,
		Action:    action,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(raw, '\n')...))
	return err
}
