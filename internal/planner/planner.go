// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package planner exposes one planning interface over interchangeable
// LLM providers. The planner is untrusted: its structured outputs are
// validated at the façade boundary and schema failures are reported as
// typed errors, never as panics or decode exceptions.
package planner

import (
	"context"

	"github.com/parley-dev/parley/internal/store"
)

// Provider is a single LLM backend capable of text completion.
type Provider interface {
	Name() string
	// Probe checks reachability once at process start. It is never
	// called again after the façade has selected its active provider.
	Probe(ctx context.Context) error
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Close() error
}

// CompletionRequest is a single prompt/response exchange with a provider.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Decision is the planner's proposed next conversational action.
type Decision struct {
	Action    store.Action `json:"action"`
	Reasoning string       `json:"reasoning"`
	// Raw preserves the (truncated) provider payload for the decision log.
	Raw string `json:"-"`
}

// Severity grades a moderation finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Verdict is the structured result of classifying one user turn.
type Verdict struct {
	Appropriate bool     `json:"is_appropriate"`
	OnTopic     bool     `json:"is_on_topic"`
	Profanity   bool     `json:"contains_profanity"`
	Severity    Severity `json:"severity"`
	Reason      string   `json:"reason"`
}

// Feedback is the structured practice-mode response to one answer.
type Feedback struct {
	Score        int      `json:"score"`
	Critique     string   `json:"critique"`
	SampleAnswer string   `json:"sample_answer"`
	Improvements []string `json:"improvements"`
	NextQuestion string   `json:"next_question"`
}

// PlanningContext carries the session view a planner call needs.
type PlanningContext struct {
	Config         store.SessionConfig
	Phase          store.Phase
	QuestionsAsked int
	ElapsedMinutes float64
	// Window is the recent transcript tail, oldest first.
	Window []store.Turn
	// UserInput is the inbound message being handled, when relevant.
	UserInput string
}

// ModerationContext carries what the moderation classifier sees: the
// inbound text, the question it answers, and a short rolling window.
type ModerationContext struct {
	Input             string
	PrecedingQuestion string
	Window            []store.Turn
}

// plannedActions is the closed set of actions the planner may propose.
// TERMINATE is excluded: only the moderation escalation path and the
// hard-termination rule may end a session.
var plannedActions = map[store.Action]bool{
	store.ActionAskFollowup: true,
	store.ActionMoveNext:    true,
	store.ActionChangePhase: true,
	store.ActionClarify:     true,
	store.ActionWrapUp:      true,
	store.ActionRedirect:    true,
	store.ActionModerate:    true,
}

// KnownAction reports whether a is an action the planner may propose.
func KnownAction(a store.Action) bool {
	return plannedActions[a]
}
