// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package interview

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/parley-dev/parley/internal/planner"
	"github.com/parley-dev/parley/internal/store"
)

// fakePlanner is a scripted Planner for orchestration tests. Each
// response field is returned verbatim; call counters record what the
// pipeline actually invoked.
type fakePlanner struct {
	reachable bool

	decision   planner.Decision
	proposeErr error

	content    string
	contentErr error

	opening    string
	openingErr error

	verdict    planner.Verdict
	verdictErr error

	feedback    planner.Feedback
	feedbackErr error

	evaluation *store.Evaluation
	evalErr    error

	proposeCalls    int
	contentCalls    int
	moderationCalls int
	feedbackCalls   int
	evalCalls       int
}

var _ Planner = (*fakePlanner)(nil)

// newFakePlanner returns a reachable planner that passes moderation and
// proposes ASK_FOLLOWUP, the most neutral scripted behavior.
func newFakePlanner() *fakePlanner {
	return &fakePlanner{
		reachable: true,
		decision:  planner.Decision{Action: store.ActionAskFollowup, Reasoning: "dig deeper"},
		content:   "Tell me more about that.",
		opening:   "Welcome! Tell me about yourself.",
		verdict:   planner.Verdict{Appropriate: true, OnTopic: true, Severity: planner.SeverityLow},
		feedback: planner.Feedback{
			Score:        7,
			Critique:     "Solid answer, could use more detail.",
			NextQuestion: "What would you do differently?",
		},
		evaluation: &store.Evaluation{
			OverallScore:   7,
			Strengths:      []string{"communication"},
			Weaknesses:     []string{"depth"},
			Recommendation: "hire",
			Summary:        "A solid performance overall.",
		},
	}
}

func (f *fakePlanner) Reachable() bool { return f.reachable }

func (f *fakePlanner) ActiveProvider() string {
	if !f.reachable {
		return ""
	}
	return "fake"
}

func (f *fakePlanner) ProposeAction(context.Context, planner.PlanningContext) (planner.Decision, error) {
	f.proposeCalls++
	return f.decision, f.proposeErr
}

func (f *fakePlanner) GenerateContent(context.Context, store.Action, planner.PlanningContext) (string, error) {
	f.contentCalls++
	return f.content, f.contentErr
}

func (f *fakePlanner) GenerateOpening(context.Context, store.SessionConfig) (string, error) {
	return f.opening, f.openingErr
}

func (f *fakePlanner) ClassifyModeration(context.Context, planner.ModerationContext) (planner.Verdict, error) {
	f.moderationCalls++
	return f.verdict, f.verdictErr
}

func (f *fakePlanner) GenerateFeedback(context.Context, planner.PlanningContext) (planner.Feedback, error) {
	f.feedbackCalls++
	return f.feedback, f.feedbackErr
}

func (f *fakePlanner) GenerateEvaluation(context.Context, planner.PlanningContext) (*store.Evaluation, error) {
	f.evalCalls++
	return f.evaluation, f.evalErr
}

// testConfig is a valid 30-minute mock-interview configuration.
func testConfig(mode store.InterviewMode) store.SessionConfig {
	return store.SessionConfig{
		Role:                "software_engineer",
		Seniority:           "senior",
		InterviewTypes:      []string{"behavioral", "technical"},
		DurationMinutes:     30,
		QuestionFamiliarity: store.FamiliarityMixed,
		Mode:                mode,
	}
}

// testOrchestrator wires an orchestrator over a memory store and fake
// planner, with a controllable clock starting at base.
func testOrchestrator(t *testing.T, fp *fakePlanner) (*Orchestrator, *clock) {
	t.Helper()

	clk := &clock{at: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	o := NewOrchestrator(store.NewMemorySessionStore(), fp, slog.New(slog.DiscardHandler))
	o.now = clk.now
	return o, clk
}

type clock struct {
	at time.Time
}

func (c *clock) now() time.Time { return c.at }

func (c *clock) advance(d time.Duration) { c.at = c.at.Add(d) }
