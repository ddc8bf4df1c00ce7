package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Engagement status labels. Status is a pure function of the engaged flag and
// is never stored independently.
const (
	StatusEngaged    = "Engaged"
	StatusNotEngaged = "Not Engaged"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// FieldError describes a validation failure on a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level validation failures so the caller
// can render each next to the offending field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Lead is one sales prospect tracked through the pipeline.
//
// CurrentStage is a pure function of the last ledger entry and may only
// change through ChangeStage. Status is derived from Engaged and is emitted
// in JSON but never read back.
type Lead struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Company        string            `json:"company"`
	Engaged        bool              `json:"engaged"`
	CurrentStage   Stage             `json:"current_stage"`
	StageUpdatedAt time.Time         `json:"stage_updated_at"`
	StageHistory   []StageTransition `json:"stage_history"`
	LastContacted  *time.Time        `json:"last_contacted"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Status returns the engagement label derived from the engaged flag.
func (l Lead) Status() string {
	if l.Engaged {
		return StatusEngaged
	}
	return StatusNotEngaged
}

// MarshalJSON emits the derived status field alongside the stored fields.
func (l Lead) MarshalJSON() ([]byte, error) {
	type alias Lead
	return json.Marshal(struct {
		alias
		Status string `json:"status"`
	}{alias(l), l.Status()})
}

// LeadInput carries the caller-supplied fields for creating a lead.
type LeadInput struct {
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Company       string     `json:"company"`
	Engaged       bool       `json:"engaged"`
	CurrentStage  Stage      `json:"current_stage"`
	LastContacted *time.Time `json:"last_contacted"`
}

// Validate checks all required fields and returns a field-tagged error
// listing every failure, or nil.
func (in LeadInput) Validate() error {
	var fields []FieldError
	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, FieldError{Field: "name", Message: "name is required"})
	}
	if !emailPattern.MatchString(in.Email) {
		fields = append(fields, FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if strings.TrimSpace(in.Company) == "" {
		fields = append(fields, FieldError{Field: "company", Message: "company is required"})
	}
	if !ValidStage(in.CurrentStage) {
		fields = append(fields, FieldError{Field: "current_stage", Message: fmt.Sprintf("unknown stage %q", in.CurrentStage)})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// NewLead validates the input and builds a lead with its creation ledger
// entry seeded. ID and created/updated timestamps are owned by the store.
func NewLead(in LeadInput, now time.Time) (Lead, error) {
	if err := in.Validate(); err != nil {
		return Lead{}, err
	}
	history, err := Append(nil, nil, in.CurrentStage, now)
	if err != nil {
		return Lead{}, err
	}
	return Lead{
		Name:           strings.TrimSpace(in.Name),
		Email:          strings.TrimSpace(in.Email),
		Company:        strings.TrimSpace(in.Company),
		Engaged:        in.Engaged,
		CurrentStage:   in.CurrentStage,
		StageUpdatedAt: history[0].ChangedAt,
		StageHistory:   history,
		LastContacted:  in.LastContacted,
	}, nil
}

// FieldPatch applies non-stage field edits. Nil pointers leave the field
// untouched.
type FieldPatch struct {
	Name          *string
	Email         *string
	Company       *string
	Engaged       *bool
	LastContacted *time.Time
}

// ApplyFieldPatch returns a copy of lead with the patch applied. The derived
// status follows engaged automatically; the stage and its ledger are never
// touched by a field patch.
func ApplyFieldPatch(lead Lead, patch FieldPatch, now time.Time) (Lead, error) {
	var fields []FieldError
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			fields = append(fields, FieldError{Field: "name", Message: "name is required"})
		} else {
			lead.Name = strings.TrimSpace(*patch.Name)
		}
	}
	if patch.Email != nil {
		if !emailPattern.MatchString(*patch.Email) {
			fields = append(fields, FieldError{Field: "email", Message: "must be a valid email address"})
		} else {
			lead.Email = strings.TrimSpace(*patch.Email)
		}
	}
	if patch.Company != nil {
		if strings.TrimSpace(*patch.Company) == "" {
			fields = append(fields, FieldError{Field: "company", Message: "company is required"})
		} else {
			lead.Company = strings.TrimSpace(*patch.Company)
		}
	}
	if len(fields) > 0 {
		return Lead{}, &ValidationError{Fields: fields}
	}
	if patch.Engaged != nil {
		lead.Engaged = *patch.Engaged
	}
	if patch.LastContacted != nil {
		lead.LastContacted = patch.LastContacted
	}
	lead.UpdatedAt = now
	return lead, nil
}

// ChangeStage appends a ledger entry and moves the lead to newStage. This is
// the only path by which CurrentStage changes: the stage, the ledger, and
// stage_updated_at move together or not at all.
func ChangeStage(lead Lead, newStage Stage, now time.Time) (Lead, error) {
	if !ValidStage(newStage) {
		return Lead{}, &ValidationError{Fields: []FieldError{{
			Field:   "current_stage",
			Message: fmt.Sprintf("unknown stage %q", newStage),
		}}}
	}
	from := lead.CurrentStage
	history, err := Append(lead.StageHistory, &from, newStage, now)
	if err != nil {
		return Lead{}, err
	}
	entry := history[len(history)-1]
	lead.CurrentStage = newStage
	lead.StageHistory = history
	lead.StageUpdatedAt = entry.ChangedAt
	lead.UpdatedAt = now
	return lead, nil
}

// ReviseStageTimestamp rewrites the changed_at of one ledger entry. When the
// revised entry is the last one, stage_updated_at follows it.
func ReviseStageTimestamp(lead Lead, index int, newTimestamp, now time.Time) (Lead, error) {
	history, err := ReviseTimestamp(lead.StageHistory, index, newTimestamp)
	if err != nil {
		return Lead{}, err
	}
	lead.StageHistory = history
	if index == len(history)-1 {
		lead.StageUpdatedAt = newTimestamp
	}
	lead.UpdatedAt = now
	return lead, nil
}

// AdoptStageChange applies a client-computed stage change: the new stage
// together with its full ledger-append result. The history must end on the
// new stage; partial or field-by-field stage updates are rejected so the
// stage, the ledger, and stage_updated_at can never drift apart.
func AdoptStageChange(lead Lead, newStage Stage, history []StageTransition, now time.Time) (Lead, error) {
	if !ValidStage(newStage) {
		return Lead{}, &ValidationError{Fields: []FieldError{{
			Field:   "current_stage",
			Message: fmt.Sprintf("unknown stage %q", newStage),
		}}}
	}
	last := Latest(history)
	if last == nil {
		return Lead{}, errors.New("stage change requires the appended history")
	}
	if last.ToStage != newStage {
		return Lead{}, fmt.Errorf("last history entry %q does not match new stage %q", last.ToStage, newStage)
	}
	lead.CurrentStage = newStage
	lead.StageHistory = append([]StageTransition(nil), history...)
	lead.StageUpdatedAt = last.ChangedAt
	lead.UpdatedAt = now
	return lead, nil
}

// ReplaceHistory swaps in a client-revised ledger after checking it is
// internally consistent with the lead's current stage. Used by the server
// when an update carries a full revised history (timestamp corrections).
func ReplaceHistory(lead Lead, history []StageTransition, now time.Time) (Lead, error) {
	if len(history) == 0 {
		return Lead{}, errors.New("stage history cannot be empty")
	}
	last := Latest(history)
	if last.ToStage != lead.CurrentStage {
		return Lead{}, fmt.Errorf("last history entry %q does not match current stage %q", last.ToStage, lead.CurrentStage)
	}
	lead.StageHistory = append([]StageTransition(nil), history...)
	lead.StageUpdatedAt = last.ChangedAt
	lead.UpdatedAt = now
	return lead, nil
}
