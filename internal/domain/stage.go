package domain

import "math"

// Stage is one step in the fixed sales pipeline.
type Stage string

// The pipeline stages in progression order. The sequence is closed: there are
// no custom stages, and order is significant (it defines forward vs backward
// moves and display progress).
const (
	StageNewLead          Stage = "New Lead"
	StageInitialContact   Stage = "Initial Contact"
	StageMeetingScheduled Stage = "Meeting Scheduled"
	StageProposalSent     Stage = "Proposal Sent"
	StageNegotiation      Stage = "Negotiation"
	StageClosedWon        Stage = "Closed Won"
)

// Stages lists all pipeline stages in order.
var Stages = []Stage{
	StageNewLead,
	StageInitialContact,
	StageMeetingScheduled,
	StageProposalSent,
	StageNegotiation,
	StageClosedWon,
}

// ValidStage reports whether s is one of the fixed pipeline stages.
func ValidStage(s Stage) bool {
	return StageIndex(s) >= 0
}

// StageIndex returns the position of s in the pipeline, or -1 if s is not a
// valid stage.
func StageIndex(s Stage) int {
	for i, stage := range Stages {
		if stage == s {
			return i
		}
	}
	return -1
}

// NextStage returns the stage after s, or nil when s is the last stage or not
// a valid stage.
func NextStage(s Stage) *Stage {
	i := StageIndex(s)
	if i < 0 || i >= len(Stages)-1 {
		return nil
	}
	next := Stages[i+1]
	return &next
}

// StageProgress returns the pipeline progress for s as a percentage, where the
// first stage is 0 and the last is 100.
func StageProgress(s Stage) int {
	i := StageIndex(s)
	if i < 0 {
		return 0
	}
	return int(math.Round(float64(i) / float64(len(Stages)-1) * 100))
}
