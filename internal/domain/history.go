package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrOutOfRange reports a ledger revision against an index that does not
// exist. Correct callers never trigger it.
var ErrOutOfRange = errors.New("stage history index out of range")

// StageTransition is one entry in a lead's stage-transition ledger. FromStage
// is nil only on the first entry of a lead's life (the creation entry).
type StageTransition struct {
	FromStage *Stage    `json:"from_stage"`
	ToStage   Stage     `json:"to_stage"`
	ChangedAt time.Time `json:"changed_at"`
	Notes     string    `json:"notes,omitempty"`
}

// Append returns a new history with one additional transition recorded at
// now. The input is never mutated. FromStage must be nil exactly when the
// history is empty. Backward moves are recorded like any other transition:
// the ledger is append-only and entries are never dropped on a regression.
func Append(history []StageTransition, fromStage *Stage, toStage Stage, now time.Time) ([]StageTransition, error) {
	if !ValidStage(toStage) {
		return nil, fmt.Errorf("unknown stage %q", toStage)
	}
	if len(history) == 0 && fromStage != nil {
		return nil, fmt.Errorf("first transition must have no from stage, got %q", *fromStage)
	}
	if len(history) > 0 && fromStage == nil {
		return nil, errors.New("from stage is required after the first transition")
	}
	if fromStage != nil && !ValidStage(*fromStage) {
		return nil, fmt.Errorf("unknown stage %q", *fromStage)
	}

	next := make([]StageTransition, len(history), len(history)+1)
	copy(next, history)
	return append(next, StageTransition{
		FromStage: fromStage,
		ToStage:   toStage,
		ChangedAt: now,
	}), nil
}

// ReviseTimestamp returns a new history with only the changed_at of the entry
// at index replaced. Ordering is untouched: display order is insertion order,
// never timestamp order, so a back-dated entry never moves. Callers revising
// the last entry must also update the owning lead's stage_updated_at; the
// ledger does not own that denormalized field.
func ReviseTimestamp(history []StageTransition, index int, newTimestamp time.Time) ([]StageTransition, error) {
	if index < 0 || index >= len(history) {
		return nil, fmt.Errorf("%w: index %d, length %d", ErrOutOfRange, index, len(history))
	}
	next := make([]StageTransition, len(history))
	copy(next, history)
	next[index].ChangedAt = newTimestamp
	return next, nil
}

// Latest returns the last ledger entry, or nil for an empty history (only
// possible before the lead exists).
func Latest(history []StageTransition) *StageTransition {
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	return &last
}
