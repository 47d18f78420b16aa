// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import (
	"context"
	"time"

	"github.com/parley-dev/parley/internal/interview"
	"github.com/parley-dev/parley/internal/store"
)

// InterviewService provides the session operations REST handlers call.
// *interview.Orchestrator satisfies it; tests substitute a fake.
type InterviewService interface {
	CreateSession(ctx context.Context, cfg store.SessionConfig) (*store.Session, error)
	SendMessage(ctx context.Context, sessionID, text, idempotencyKey string) (*interview.TurnResult, error)
	GetSession(ctx context.Context, id string) (*store.Session, error)
	GetEvaluation(ctx context.Context, id string) (*store.Evaluation, error)
	ListSessions(ctx context.Context, opts store.ListOpts) ([]*store.Session, error)
}

// --- REST representations ---

// StateView is the REST representation of session state.
type StateView struct {
	Phase          string     `json:"phase" doc:"Current interview phase"`
	QuestionsAsked int        `json:"questions_asked" doc:"Questions consumed so far"`
	StartTime      time.Time  `json:"start_time" doc:"Session start"`
	LastActivity   time.Time  `json:"last_activity" doc:"Last turn timestamp"`
	EndTime        *time.Time `json:"end_time,omitempty" doc:"Set once the session has ended"`
	Active         bool       `json:"is_active" doc:"Whether the session accepts messages"`
	WarningCount   int        `json:"warning_count" doc:"Moderation warnings issued"`
}

// TurnView is the REST representation of one transcript turn.
type TurnView struct {
	Role          string    `json:"role" doc:"Turn author (user, assistant, system)"`
	Content       string    `json:"content" doc:"Turn text"`
	Timestamp     time.Time `json:"timestamp" doc:"When the turn was appended"`
	Phase         string    `json:"phase,omitempty" doc:"Phase at the time of the turn"`
	FeedbackScore *int      `json:"feedback_score,omitempty" doc:"Practice-mode score, 0-10"`
}

// DecisionView is the REST representation of one decision log entry.
type DecisionView struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action" doc:"Resolved action"`
	Reasoning string    `json:"reasoning" doc:"Planner or governor reasoning"`
	Context   string    `json:"context,omitempty" doc:"Override or fallback detail"`
}

// EvaluationView is the REST representation of the final evaluation.
type EvaluationView struct {
	OverallScore   int            `json:"overall_score" doc:"Overall score, 0-10"`
	PhaseScores    map[string]int `json:"phase_scores,omitempty" doc:"Per-phase scores"`
	Strengths      []string       `json:"strengths"`
	Weaknesses     []string       `json:"weaknesses"`
	Recommendation string         `json:"recommendation" doc:"Hire recommendation"`
	Summary        string         `json:"summary"`
}

// SessionSummary is the REST representation of a session in list results.
type SessionSummary struct {
	ID        string    `json:"id" doc:"Session identifier"`
	Role      string    `json:"role" doc:"Interview role"`
	Mode      string    `json:"interview_mode" doc:"practice or mock"`
	Phase     string    `json:"phase" doc:"Current phase"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionDetail is the full REST representation of a session record.
type SessionDetail struct {
	ID         string              `json:"id" doc:"Session identifier"`
	Config     store.SessionConfig `json:"config" doc:"Immutable session configuration"`
	State      StateView           `json:"state"`
	Transcript []TurnView          `json:"transcript"`
	Decisions  []DecisionView      `json:"decisions"`
	Evaluation *EvaluationView     `json:"evaluation,omitempty" doc:"Present once the session completed"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// --- Mapping helpers ---

func stateView(sess *store.Session) StateView {
	return StateView{
		Phase:          string(sess.State.Phase),
		QuestionsAsked: sess.State.QuestionsAsked,
		StartTime:      sess.State.StartTime,
		LastActivity:   sess.State.LastActivity,
		EndTime:        sess.State.EndTime,
		Active:         sess.State.Active,
		WarningCount:   sess.WarningCount(),
	}
}

func turnView(t store.Turn) TurnView {
	return TurnView{
		Role:          string(t.Role),
		Content:       t.Content,
		Timestamp:     t.Timestamp,
		Phase:         string(t.Phase),
		FeedbackScore: t.FeedbackScore,
	}
}

func evaluationView(e *store.Evaluation) *EvaluationView {
	if e == nil {
		return nil
	}
	return &EvaluationView{
		OverallScore:   e.OverallScore,
		PhaseScores:    e.PhaseScores,
		Strengths:      e.Strengths,
		Weaknesses:     e.Weaknesses,
		Recommendation: e.Recommendation,
		Summary:        e.Summary,
	}
}

func sessionDetail(sess *store.Session) SessionDetail {
	transcript := make([]TurnView, 0, len(sess.Transcript))
	for _, t := range sess.Transcript {
		transcript = append(transcript, turnView(t))
	}

	decisions := make([]DecisionView, 0, len(sess.Decisions))
	for _, d := range sess.Decisions {
		decisions = append(decisions, DecisionView{
			Timestamp: d.Timestamp,
			Action:    string(d.Action),
			Reasoning: d.Reasoning,
			Context:   d.Context,
		})
	}

	return SessionDetail{
		ID:         sess.ID,
		Config:     sess.Config,
		State:      stateView(sess),
		Transcript: transcript,
		Decisions:  decisions,
		Evaluation: evaluationView(sess.Evaluation),
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	}
}

func sessionSummary(sess *store.Session) SessionSummary {
	return SessionSummary{
		ID:        sess.ID,
		Role:      sess.Config.Role,
		Mode:      string(sess.Config.Mode),
		Phase:     string(sess.State.Phase),
		Active:    sess.State.Active,
		CreatedAt: sess.CreatedAt,
	}
}
