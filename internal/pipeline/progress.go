package pipeline

import "fmt"

// Stage identifies a point in the run's state machine.
type Stage int

const (
	StageStart Stage = iota
	StageExtracted
	StageClassified
	StagePlanned
	StageGenerating
	StageAssembled
	StageDone
	StageFailed
)

func (s Stage) String() string {
	names := [...]string{
		"start",
		"extracted",
		"classified",
		"planned",
		"generating",
		"assembled",
		"done",
		"failed",
	}
	if s >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// MarshalText renders the stage name in JSON output.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further transitions follow.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// ProgressStatus is the state of the step an event describes.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressEvent is published after every transition. Index and Total count
// sections during generation.
type ProgressEvent struct {
	RunID   string         `json:"runId"`
	Stage   Stage          `json:"stage"`
	Section string         `json:"section,omitempty"`
	Index   int            `json:"index,omitempty"`
	Total   int            `json:"total,omitempty"`
	Status  ProgressStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

// ProgressReporter emits progress events through a buffered channel.
type ProgressReporter struct {
	ch chan ProgressEvent
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event without blocking. If the channel is full the
// event is dropped.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	label := event.Stage.String()
	if event.Stage == StageFailed {
		label = "run"
	}
	if event.Section != "" {
		label = event.Section
	}
	if event.Index > 0 && event.Total > 0 {
		label = fmt.Sprintf("[%d/%d] %s", event.Index, event.Total, label)
	}
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", label)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", label)
	case ProgressComplete:
		if event.Message != "" {
			return fmt.Sprintf("  ✓ %s: %s", label, event.Message)
		}
		return fmt.Sprintf("  ✓ %s complete", label)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", label, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", label)
	}
}
