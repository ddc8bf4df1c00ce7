package domain

import "time"

// UpdateBody is the wire shape of PUT /api/v1/leads/{id}. Unset pointer
// fields are omitted so only the patched keys travel.
type UpdateBody struct {
	Name           *string           `json:"name,omitempty"`
	Email          *string           `json:"email,omitempty"`
	Company        *string           `json:"company,omitempty"`
	Engaged        *bool             `json:"engaged,omitempty"`
	LastContacted  *time.Time        `json:"last_contacted,omitempty"`
	CurrentStage   *Stage            `json:"current_stage,omitempty"`
	StageHistory   []StageTransition `json:"stage_history,omitempty"`
	StageUpdatedAt *time.Time        `json:"stage_updated_at,omitempty"`
}

// Patch is the closed set of lead mutations a client can send. Whether an
// update changes the stage is a type switch, not a key-presence check.
type Patch interface {
	UpdateBody() UpdateBody
}

// UpdateBody renders a field-only patch; stage keys are never present.
func (p FieldPatch) UpdateBody() UpdateBody {
	return UpdateBody{
		Name:          p.Name,
		Email:         p.Email,
		Company:       p.Company,
		Engaged:       p.Engaged,
		LastContacted: p.LastContacted,
	}
}

// StageChangePatch moves a lead to a new stage. It always carries the full
// ledger-append result so the stage, the history, and stage_updated_at
// travel as one unit.
type StageChangePatch struct {
	Stage          Stage
	History        []StageTransition
	StageUpdatedAt time.Time
}

// NewStageChangePatch computes the ledger append for moving lead to newStage
// and packages the result.
func NewStageChangePatch(lead Lead, newStage Stage, now time.Time) (StageChangePatch, error) {
	changed, err := ChangeStage(lead, newStage, now)
	if err != nil {
		return StageChangePatch{}, err
	}
	return StageChangePatch{
		Stage:          changed.CurrentStage,
		History:        changed.StageHistory,
		StageUpdatedAt: changed.StageUpdatedAt,
	}, nil
}

// UpdateBody renders the stage change with its complete history.
func (p StageChangePatch) UpdateBody() UpdateBody {
	stage := p.Stage
	at := p.StageUpdatedAt
	return UpdateBody{
		CurrentStage:   &stage,
		StageHistory:   p.History,
		StageUpdatedAt: &at,
	}
}

// HistoryRevisionPatch rewrites one ledger entry's timestamp and carries the
// full revised history.
type HistoryRevisionPatch struct {
	History        []StageTransition
	StageUpdatedAt time.Time
}

// NewHistoryRevisionPatch revises the changed_at at index and packages the
// resulting history together with the lead's (possibly updated)
// stage_updated_at.
func NewHistoryRevisionPatch(lead Lead, index int, newTimestamp, now time.Time) (HistoryRevisionPatch, error) {
	revised, err := ReviseStageTimestamp(lead, index, newTimestamp, now)
	if err != nil {
		return HistoryRevisionPatch{}, err
	}
	return HistoryRevisionPatch{
		History:        revised.StageHistory,
		StageUpdatedAt: revised.StageUpdatedAt,
	}, nil
}

// UpdateBody renders the revised history; current_stage is untouched by a
// timestamp revision.
func (p HistoryRevisionPatch) UpdateBody() UpdateBody {
	at := p.StageUpdatedAt
	return UpdateBody{
		StageHistory:   p.History,
		StageUpdatedAt: &at,
	}
}
