package domain

import "time"

// RunRecord is the persisted summary of one full pass over the target
// list. History is append-only reporting; nothing is ever resumed from it.
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Counts tallies outcomes by kind.
func (r RunRecord) Counts() map[OutcomeKind]int {
	counts := make(map[OutcomeKind]int)
	for _, o := range r.Outcomes {
		counts[o.Kind]++
	}
	return counts
}

// Failed reports whether any item in the run ended in a failure kind.
func (r RunRecord) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Kind != OutcomeSuccess {
			return true
		}
	}
	return false
}
