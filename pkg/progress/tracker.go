// Package progress turns the periodically-scraped completion percentage into
// a small state machine: Fresh until the first snapshot, Advancing while the
// value climbs, Stalled after enough consecutive non-increasing polls, and
// Complete at 100. The source signal is unreliable, so a decreasing value is
// logged as anomalous but treated like an increase rather than an error.
package progress

import (
	"time"

	"go.uber.org/zap"
)

// State is the tracker's position in its lifecycle.
type State int

const (
	Fresh State = iota
	Advancing
	Stalled
	Complete
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Advancing:
		return "advancing"
	case Stalled:
		return "stalled"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Snapshot is one observed progress value.
type Snapshot struct {
	Value int
	Known bool
	At    time.Time
	Delta int
}

// Tracker consumes snapshots and answers "are we moving".
type Tracker struct {
	state          State
	last           Snapshot
	unchangedCount int
	stallThreshold int
	logger         *zap.Logger
}

// NewTracker creates a tracker. stallThreshold <= 0 selects the default of 3
// consecutive non-increasing snapshots.
func NewTracker(stallThreshold int, logger *zap.Logger) *Tracker {
	if stallThreshold <= 0 {
		stallThreshold = 3
	}
	return &Tracker{
		state:          Fresh,
		stallThreshold: stallThreshold,
		logger:         logger.Named("progress"),
	}
}

// Observe feeds one scraped value. known is false when the progress element
// could not be read this poll; unknown counts toward the stall counter.
func (t *Tracker) Observe(value int, known bool) Snapshot {
	snap := Snapshot{Value: value, Known: known, At: time.Now()}
	if known && t.last.Known {
		snap.Delta = value - t.last.Value
	}

	// Complete is terminal for the attempt; later readings cannot undo it.
	if t.state == Complete {
		if known {
			t.last = snap
		}
		return snap
	}

	switch {
	case known && value >= 100:
		t.state = Complete
		t.unchangedCount = 0
	case !known || (t.last.Known && value == t.last.Value):
		t.unchangedCount++
		if t.unchangedCount >= t.stallThreshold && t.state != Complete {
			t.state = Stalled
		}
	case t.last.Known && value < t.last.Value:
		// Unreliable source: a drop happens when a step redefines its own
		// scale. Count it as movement.
		t.logger.Warn("progress decreased",
			zap.Int("from", t.last.Value), zap.Int("to", value))
		t.unchangedCount = 0
		t.state = Advancing
	default:
		t.unchangedCount = 0
		t.state = Advancing
	}

	if known {
		t.last = snap
	} else {
		t.last.Delta = 0
	}
	return snap
}

// Reset returns the tracker to Fresh at the start of a new attempt.
func (t *Tracker) Reset() {
	t.state = Fresh
	t.last = Snapshot{}
	t.unchangedCount = 0
}

// State returns the current state.
func (t *Tracker) State() State { return t.state }

// IsStuck reports whether the stall threshold has been reached.
func (t *Tracker) IsStuck() bool { return t.state == Stalled }

// IsComplete reports whether 100 has ever been observed this attempt.
func (t *Tracker) IsComplete() bool { return t.state == Complete }

// Value returns the last known progress value, or -1 before the first known
// snapshot.
func (t *Tracker) Value() int {
	if !t.last.Known {
		return -1
	}
	return t.last.Value
}

// UnchangedCount exposes the stall counter for logging.
func (t *Tracker) UnchangedCount() int { return t.unchangedCount }
