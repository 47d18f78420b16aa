// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package store

import (
	"time"
)

// --- Session configuration ---

// InterviewMode selects how the assistant behaves during a session.
type InterviewMode string

const (
	// ModePractice gives structured feedback after every answer.
	ModePractice InterviewMode = "practice"
	// ModeMock runs an autonomous timed interview.
	ModeMock InterviewMode = "mock"
)

// Familiarity controls how recognisable the questions should be.
type Familiarity string

const (
	FamiliarityKnown  Familiarity = "known"
	FamiliarityMixed  Familiarity = "mixed"
	FamiliarityUnique Familiarity = "unique"
)

// SessionConfig is the immutable configuration a session is created with.
type SessionConfig struct {
	Role                string        `json:"role"`
	Seniority           string        `json:"seniority"`
	InterviewTypes      []string      `json:"interview_types"`
	Company             string        `json:"company,omitempty"`
	DurationMinutes     int           `json:"duration_minutes"`
	QuestionFamiliarity Familiarity   `json:"question_familiarity"`
	Mode                InterviewMode `json:"interview_mode"`
}

// --- Session state ---

// Phase is a named stage in the fixed interview lifecycle ordering.
type Phase string

const (
	PhaseSetup        Phase = "setup"
	PhaseWarmup       Phase = "warmup"
	PhaseBehavioral   Phase = "behavioral"
	PhaseTechnical    Phase = "technical"
	PhaseSystemDesign Phase = "system_design"
	PhaseProduct      Phase = "product"
	PhaseWrapUp       Phase = "wrap_up"
	PhaseCompleted    Phase = "completed"
)

// SessionState is the mutable portion of a session record.
// EndTime is set iff the session has ended; Active == false implies
// EndTime is set and Phase == PhaseCompleted.
type SessionState struct {
	Phase          Phase      `json:"phase"`
	QuestionsAsked int        `json:"questions_asked"`
	StartTime      time.Time  `json:"start_time"`
	LastActivity   time.Time  `json:"last_activity"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Active         bool       `json:"is_active"`
}

// ElapsedMinutes returns the minutes since the session started, as seen at now.
func (s SessionState) ElapsedMinutes(now time.Time) float64 {
	if s.StartTime.IsZero() {
		return 0
	}
	return now.Sub(s.StartTime).Minutes()
}

// --- Transcript ---

// TurnRole identifies the author of a transcript turn.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
	TurnRoleSystem    TurnRole = "system"
)

// Turn is one entry in the append-only transcript. Phase records the
// session phase at the time the turn was appended; FeedbackScore is
// set only on practice-mode assistant turns.
type Turn struct {
	Role          TurnRole  `json:"role"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	Phase         Phase     `json:"phase,omitempty"`
	FeedbackScore *int      `json:"feedback_score,omitempty"`
}

// --- Decision log ---

// Action is a conversational action, either proposed by the planner or
// synthesized by the governor/moderation layers.
type Action string

const (
	ActionAskFollowup Action = "ASK_FOLLOWUP"
	ActionMoveNext    Action = "MOVE_NEXT"
	ActionChangePhase Action = "CHANGE_PHASE"
	ActionClarify     Action = "CLARIFY"
	ActionWrapUp      Action = "WRAP_UP"
	ActionRedirect    Action = "REDIRECT"
	ActionModerate    Action = "MODERATE"
	ActionTerminate   Action = "TERMINATE"
)

// DecisionEntry is one entry in the append-only decision log.
type DecisionEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Reasoning string    `json:"reasoning"`
	Context   string    `json:"context,omitempty"`
}

// --- Evaluation ---

// Evaluation is the structured end-of-session result. It is written
// exactly once, when a session completes through the non-terminated path.
type Evaluation struct {
	OverallScore   int            `json:"overall_score"`
	PhaseScores    map[string]int `json:"phase_scores,omitempty"`
	Strengths      []string       `json:"strengths"`
	Weaknesses     []string       `json:"weaknesses"`
	Recommendation string         `json:"recommendation"`
	Summary        string         `json:"summary"`
}

// --- Session record ---

// Session is the full persisted record for one interview session.
// It is mutated only by the turn orchestrator, one turn at a time,
// and persisted as a single atomic write per turn.
type Session struct {
	ID         string
	Config     SessionConfig
	State      SessionState
	Transcript []Turn
	Decisions  []DecisionEntry
	Evaluation *Evaluation

	// LastIdempotencyKey is the client-supplied key of the most recently
	// committed turn. A retry carrying the same key replays the stored
	// assistant turn instead of appending a duplicate.
	LastIdempotencyKey string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WarningCount derives the authoritative moderation warning count from
// the decision log: the number of MODERATE entries.
func (s *Session) WarningCount() int {
	n := 0
	for _, d := range s.Decisions {
		if d.Action == ActionModerate {
			n++
		}
	}
	return n
}

// LastAssistantTurn returns the most recent assistant turn, or nil if
// the transcript has none.
func (s *Session) LastAssistantTurn() *Turn {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == TurnRoleAssistant {
			return &s.Transcript[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the session record. The orchestrator
// mutates a clone so a failed persist leaves the stored record untouched.
func (s *Session) Clone() *Session {
	out := *s

	out.Config.InterviewTypes = append([]string(nil), s.Config.InterviewTypes...)
	out.Transcript = append([]Turn(nil), s.Transcript...)
	out.Decisions = append([]DecisionEntry(nil), s.Decisions...)

	for i, turn := range s.Transcript {
		if turn.FeedbackScore != nil {
			score := *turn.FeedbackScore
			out.Transcript[i].FeedbackScore = &score
		}
	}

	if s.State.EndTime != nil {
		end := *s.State.EndTime
		out.State.EndTime = &end
	}

	if s.Evaluation != nil {
		eval := *s.Evaluation
		eval.Strengths = append([]string(nil), s.Evaluation.Strengths...)
		eval.Weaknesses = append([]string(nil), s.Evaluation.Weaknesses...)
		if s.Evaluation.PhaseScores != nil {
			eval.PhaseScores = make(map[string]int, len(s.Evaluation.PhaseScores))
			for k, v := range s.Evaluation.PhaseScores {
				eval.PhaseScores[k] = v
			}
		}
		out.Evaluation = &eval
	}

	return &out
}

// --- Query options ---

// ListOpts provides pagination parameters for list operations.
type ListOpts struct {
	Limit  int
	Offset int
}
