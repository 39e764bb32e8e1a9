package models

import "fmt"

// Phase is the step of a commit-reveal round. It only ever moves forward.
type Phase uint8

const (
	PhaseCommit Phase = iota
	PhaseReveal
	PhaseResults
)

func (p Phase) String() string {
	switch p {
	case PhaseCommit:
		return "commit"
	case PhaseReveal:
		return "reveal"
	case PhaseResults:
		return "results"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Next returns the phase that follows p and whether one exists.
func (p Phase) Next() (Phase, bool) {
	if p >= PhaseResults {
		return p, false
	}
	return p + 1, true
}

func (p Phase) Valid() bool {
	return p <= PhaseResults
}
