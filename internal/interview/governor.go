// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package interview

import (
	"fmt"
	"math"

	"github.com/parley-dev/parley/internal/planner"
	"github.com/parley-dev/parley/internal/store"
)

// GovernorInputs is the deterministic session view the governor rules on.
type GovernorInputs struct {
	ElapsedMinutes  float64
	DurationMinutes int
	QuestionsAsked  int
	Phase           store.Phase
}

// Resolution is the governed outcome of one planner proposal.
type Resolution struct {
	Action    store.Action
	Reasoning string
	// Context carries the override explanation or the truncated raw
	// payload of a malformed proposal, for the decision log.
	Context    string
	Overridden bool
}

// MinWrapUpElapsed is the fraction of the configured duration that must
// have passed before a WRAP_UP proposal is honored.
const MinWrapUpElapsed = 0.8

// minWrapUpQuestions returns the minimum questions required before
// WRAP_UP is honored: max(3, ceil(duration/5)).
func minWrapUpQuestions(durationMinutes int) int {
	n := int(math.Ceil(float64(durationMinutes) / 5))
	if n < 3 {
		return 3
	}
	return n
}

// MaxQuestions returns the hard question ceiling: duration/4 clamped to [6, 12].
func MaxQuestions(durationMinutes int) int {
	n := durationMinutes / 4
	if n < 6 {
		return 6
	}
	if n > 12 {
		return 12
	}
	return n
}

// Resolve validates a planner proposal against session timing and
// counters. It is total: a nil proposal error passes the decision
// through (demoting premature WRAP_UP), and any proposal error
// (unreachable provider, upstream failure, schema-invalid payload)
// synthesizes MOVE_NEXT rather than surfacing to the caller.
func Resolve(d planner.Decision, proposeErr error, in GovernorInputs) Resolution {
	if proposeErr != nil || !planner.KnownAction(d.Action) {
		return Resolution{
			Action:     store.ActionMoveNext,
			Reasoning:  "parse failure",
			Context:    d.Raw,
			Overridden: true,
		}
	}

	switch d.Action {
	case store.ActionWrapUp:
		// WRAP_UP is advisory: the planner routinely proposes it far
		// too early. Honor it only once both thresholds are met.
		minElapsed := MinWrapUpElapsed * float64(in.DurationMinutes)
		minQuestions := minWrapUpQuestions(in.DurationMinutes)

		if in.ElapsedMinutes < minElapsed {
			return Resolution{
				Action:    store.ActionMoveNext,
				Reasoning: d.Reasoning,
				Context: fmt.Sprintf("wrap_up demoted: elapsed %.1f min below threshold %.1f min",
					in.ElapsedMinutes, minElapsed),
				Overridden: true,
			}
		}
		if in.QuestionsAsked < minQuestions {
			return Resolution{
				Action:    store.ActionMoveNext,
				Reasoning: d.Reasoning,
				Context: fmt.Sprintf("wrap_up demoted: %d questions below threshold %d",
					in.QuestionsAsked, minQuestions),
				Overridden: true,
			}
		}
		return Resolution{Action: store.ActionWrapUp, Reasoning: d.Reasoning}

	case store.ActionChangePhase:
		// Always honored; the orchestrator advances via NextPhase.
		return Resolution{Action: store.ActionChangePhase, Reasoning: d.Reasoning}

	default:
		return Resolution{Action: d.Action, Reasoning: d.Reasoning}
	}
}

// ShouldTerminate is the hard-termination rule, evaluated after every
// turn regardless of what the planner proposed. It is the system's sole
// guarantee of eventual termination: it fires even when the planner
// never proposes WRAP_UP or returns garbage forever.
func ShouldTerminate(in GovernorInputs) (bool, string) {
	if in.Phase == store.PhaseCompleted {
		return true, "phase already completed"
	}
	if in.ElapsedMinutes >= float64(in.DurationMinutes) {
		return true, fmt.Sprintf("elapsed %.1f min reached duration %d min", in.ElapsedMinutes, in.DurationMinutes)
	}
	if max := MaxQuestions(in.DurationMinutes); in.QuestionsAsked >= max {
		return true, fmt.Sprintf("question count %d reached ceiling %d", in.QuestionsAsked, max)
	}
	return false, ""
}
