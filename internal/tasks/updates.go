package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchCovers Phase = iota
	ExtractColors
	WriteReport
)

func (p Phase) String() string {
	switch p {
	case FetchCovers:
		return "fetch_covers"
	case ExtractColors:
		return "extract_colors"
	case WriteReport:
		return "write_report"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func queuedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCovers,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Queued %d cover images...", total),
	}
}

func extractedUpdate(step, total int, res ColorResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractColors,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s %s", step, total, res.ID, res.Color.Hex()),
		Data:    res.Color,
	}
}

func extractFailedUpdate(step, total int, res ColorResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExtractColors,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.ID, res.Error),
	}
}

func reportUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteReport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Wrote report to %s", path),
	}
}
