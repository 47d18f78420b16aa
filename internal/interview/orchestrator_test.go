// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package interview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-dev/parley/internal/planner"
	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

func TestCreateSession(t *testing.T) {
	t.Run("seeds warmup and the opening turn", func(t *testing.T) {
		fp := newFakePlanner()
		o, _ := testOrchestrator(t, fp)

		sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
		require.NoError(t, err)

		assert.NotEmpty(t, sess.ID)
		assert.Equal(t, store.PhaseWarmup, sess.State.Phase)
		assert.True(t, sess.State.Active)
		assert.Zero(t, sess.State.QuestionsAsked)
		require.Len(t, sess.Transcript, 1)
		assert.Equal(t, store.TurnRoleAssistant, sess.Transcript[0].Role)
		assert.Equal(t, "Welcome! Tell me about yourself.", sess.Transcript[0].Content)

		// The record is persisted, not just returned.
		got, err := o.GetSession(context.Background(), sess.ID)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
	})

	t.Run("rejects invalid config before any state is created", func(t *testing.T) {
		fp := newFakePlanner()
		o, _ := testOrchestrator(t, fp)

		cfg := testConfig(store.ModeMock)
		cfg.DurationMinutes = 0

		_, err := o.CreateSession(context.Background(), cfg)
		require.Error(t, err)
		assert.True(t, parleyerr.IsInvalidInput(err))
	})

	t.Run("rejects when no provider was reachable", func(t *testing.T) {
		fp := newFakePlanner()
		fp.reachable = false
		o, _ := testOrchestrator(t, fp)

		_, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
		require.Error(t, err)
		assert.True(t, parleyerr.HasCode(err, parleyerr.CodePlannerUnavailable))
	})

	t.Run("falls back to a static greeting when opening generation fails", func(t *testing.T) {
		fp := newFakePlanner()
		fp.openingErr = errors.New("upstream down")
		o, _ := testOrchestrator(t, fp)

		sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
		require.NoError(t, err)
		require.Len(t, sess.Transcript, 1)
		assert.Contains(t, sess.Transcript[0].Content, "software engineer")
	})
}

func TestSendMessageMockFlow(t *testing.T) {
	fp := newFakePlanner()
	o, clk := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	clk.advance(2 * time.Minute)
	result, err := o.SendMessage(context.Background(), sess.ID, "I led the migration project.", "")
	require.NoError(t, err)

	assert.Equal(t, store.TurnRoleAssistant, result.Turn.Role)
	assert.Equal(t, "Tell me more about that.", result.Turn.Content)
	assert.Equal(t, 1, result.State.QuestionsAsked)
	assert.True(t, result.State.Active)
	assert.Nil(t, result.Evaluation)
	assert.Equal(t, 1, fp.proposeCalls)
	assert.Equal(t, 1, fp.contentCalls)

	// Both turns and the decision are committed in one write.
	got, err := o.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Transcript, 3)
	assert.Equal(t, store.TurnRoleUser, got.Transcript[1].Role)
	require.Len(t, got.Decisions, 1)
	assert.Equal(t, store.ActionAskFollowup, got.Decisions[0].Action)
}

func TestSendMessageChangePhase(t *testing.T) {
	fp := newFakePlanner()
	fp.decision = planner.Decision{Action: store.ActionChangePhase, Reasoning: "topic exhausted"}
	o, _ := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	result, err := o.SendMessage(context.Background(), sess.ID, "done with warmup", "")
	require.NoError(t, err)

	assert.Equal(t, store.PhaseBehavioral, result.State.Phase)
	assert.Equal(t, store.PhaseBehavioral, result.Turn.Phase)
}

func TestSendMessageWrapUpDemotedEarly(t *testing.T) {
	fp := newFakePlanner()
	fp.decision = planner.Decision{Action: store.ActionWrapUp, Reasoning: "wrapping"}
	o, clk := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	clk.advance(1 * time.Minute)
	result, err := o.SendMessage(context.Background(), sess.ID, "first answer", "")
	require.NoError(t, err)

	// Turn 1 of a 30-minute session: WRAP_UP is always demoted.
	assert.True(t, result.State.Active)
	assert.Less(t, PhaseIndex(result.State.Phase), PhaseIndex(store.PhaseWrapUp))

	got, err := o.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Decisions, 1)
	assert.Equal(t, store.ActionMoveNext, got.Decisions[0].Action)
	assert.Contains(t, got.Decisions[0].Context, "demoted")
}

func TestSendMessageMalformedProposal(t *testing.T) {
	fp := newFakePlanner()
	fp.decision = planner.Decision{Raw: `{"act`}
	fp.proposeErr = parleyerr.New(parleyerr.CodePlannerResponseInvalid, "planner payload failed schema check")
	o, _ := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	result, err := o.SendMessage(context.Background(), sess.ID, "an answer", "")
	require.NoError(t, err, "parse failures must never surface to the caller")

	assert.Equal(t, store.TurnRoleAssistant, result.Turn.Role)
	assert.NotEmpty(t, result.Turn.Content)
	assert.True(t, result.State.Active)

	got, err := o.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Decisions, 1)
	assert.Equal(t, store.ActionMoveNext, got.Decisions[0].Action)
	assert.Equal(t, "parse failure", got.Decisions[0].Reasoning)
	assert.Equal(t, `{"act`, got.Decisions[0].Context)
}

func TestSendMessageContentFallback(t *testing.T) {
	fp := newFakePlanner()
	fp.contentErr = errors.New("upstream flaked")
	o, _ := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	result, err := o.SendMessage(context.Background(), sess.ID, "an answer", "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Turn.Content)
}

func TestHardTerminationByQuestionCeiling(t *testing.T) {
	fp := newFakePlanner()
	fp.decision = planner.Decision{Action: store.ActionMoveNext, Reasoning: "next"}
	o, clk := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	// 30 minutes -> ceiling of 7 questions. A planner that always says
	// MOVE_NEXT still terminates by the 7th user turn.
	var result *TurnResult
	for i := 0; i < 7; i++ {
		clk.advance(time.Minute)
		result, err = o.SendMessage(context.Background(), sess.ID, "another answer", "")
		require.NoError(t, err)
		if i < 6 {
			require.True(t, result.State.Active, "terminated early on turn %d", i+1)
		}
	}

	assert.False(t, result.State.Active)
	assert.Equal(t, store.PhaseCompleted, result.State.Phase)
	assert.NotNil(t, result.State.EndTime)
	require.NotNil(t, result.Evaluation)
	assert.Equal(t, 7, result.Evaluation.OverallScore)
	assert.Equal(t, 1, fp.evalCalls)
}

func TestHardTerminationByElapsedTime(t *testing.T) {
	fp := newFakePlanner()
	o, clk := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	clk.advance(31 * time.Minute)
	result, err := o.SendMessage(context.Background(), sess.ID, "sorry, got distracted", "")
	require.NoError(t, err)

	assert.False(t, result.State.Active)
	assert.Equal(t, store.PhaseCompleted, result.State.Phase)
	require.NotNil(t, result.Evaluation)

	// Follow-up messages are rejected.
	_, err = o.SendMessage(context.Background(), sess.ID, "hello?", "")
	require.Error(t, err)
	assert.True(t, parleyerr.HasCode(err, parleyerr.CodeSessionInactive))
}

func TestEvaluationFallbackOnPlannerFailure(t *testing.T) {
	fp := newFakePlanner()
	fp.evalErr = errors.New("upstream down")
	o, clk := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	clk.advance(31 * time.Minute)
	result, err := o.SendMessage(context.Background(), sess.ID, "late answer", "")
	require.NoError(t, err)

	require.NotNil(t, result.Evaluation, "a completed session always carries an evaluation")
	assert.Equal(t, "no_recommendation", result.Evaluation.Recommendation)
}

func TestModerationEscalation(t *testing.T) {
	fp := newFakePlanner()
	fp.verdict = planner.Verdict{Appropriate: true, OnTopic: true, Profanity: true, Severity: planner.SeverityMedium, Reason: "profanity"}
	o, _ := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	// First violation: warning, question not consumed, no planning.
	result, err := o.SendMessage(context.Background(), sess.ID, "expletive-laden answer", "")
	require.NoError(t, err)
	assert.True(t, result.State.Active)
	assert.Zero(t, result.State.QuestionsAsked)
	assert.Contains(t, result.Turn.Content, "professional")
	assert.Zero(t, fp.proposeCalls)

	got, err := o.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.WarningCount())

	// Second violation: terminate, no evaluation, no planner call.
	result, err = o.SendMessage(context.Background(), sess.ID, "more expletives", "")
	require.NoError(t, err)
	assert.False(t, result.State.Active)
	assert.Equal(t, store.PhaseCompleted, result.State.Phase)
	assert.Nil(t, result.Evaluation, "a moderation-terminated session earns no evaluation")
	assert.Zero(t, fp.proposeCalls)
	assert.Zero(t, fp.evalCalls)

	_, err = o.SendMessage(context.Background(), sess.ID, "hello?", "")
	require.Error(t, err)
	assert.True(t, parleyerr.HasCode(err, parleyerr.CodeSessionInactive))
}

func TestModerationRedirect(t *testing.T) {
	fp := newFakePlanner()
	fp.verdict = planner.Verdict{Appropriate: true, OnTopic: false, Severity: planner.SeverityLow, Reason: "off topic"}
	o, _ := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	result, err := o.SendMessage(context.Background(), sess.ID, "what's your favorite movie?", "")
	require.NoError(t, err)

	assert.True(t, result.State.Active)
	assert.Zero(t, result.State.QuestionsAsked, "a redirected turn consumes no question")
	assert.Contains(t, result.Turn.Content, "Welcome! Tell me about yourself.",
		"the redirect restates the open question")
	assert.Zero(t, fp.proposeCalls)

	got, err := o.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Decisions, 1)
	assert.Equal(t, store.ActionRedirect, got.Decisions[0].Action)
	assert.Zero(t, got.WarningCount(), "redirects are not warnings")
}

func TestPracticeMode(t *testing.T) {
	t.Run("returns structured feedback with a score", func(t *testing.T) {
		fp := newFakePlanner()
		o, _ := testOrchestrator(t, fp)

		sess, err := o.CreateSession(context.Background(), testConfig(store.ModePractice))
		require.NoError(t, err)

		result, err := o.SendMessage(context.Background(), sess.ID, "my answer", "")
		require.NoError(t, err)

		assert.Equal(t, 1, fp.feedbackCalls)
		assert.Zero(t, fp.proposeCalls, "practice mode bypasses the governor")
		require.NotNil(t, result.Turn.FeedbackScore)
		assert.Equal(t, 7, *result.Turn.FeedbackScore)
		assert.Contains(t, result.Turn.Content, "Score: 7/10")
		assert.Contains(t, result.Turn.Content, "What would you do differently?")
	})

	t.Run("falls back gracefully when feedback fails", func(t *testing.T) {
		fp := newFakePlanner()
		fp.feedbackErr = errors.New("upstream down")
		o, _ := testOrchestrator(t, fp)

		sess, err := o.CreateSession(context.Background(), testConfig(store.ModePractice))
		require.NoError(t, err)

		result, err := o.SendMessage(context.Background(), sess.ID, "my answer", "")
		require.NoError(t, err)
		assert.NotEmpty(t, result.Turn.Content)
		assert.Nil(t, result.Turn.FeedbackScore)
	})

	t.Run("practice sessions still hit the hard ceiling", func(t *testing.T) {
		fp := newFakePlanner()
		o, clk := testOrchestrator(t, fp)

		sess, err := o.CreateSession(context.Background(), testConfig(store.ModePractice))
		require.NoError(t, err)

		clk.advance(31 * time.Minute)
		result, err := o.SendMessage(context.Background(), sess.ID, "late answer", "")
		require.NoError(t, err)
		assert.False(t, result.State.Active)
		require.NotNil(t, result.Evaluation)
	})
}

func TestIdempotentRetry(t *testing.T) {
	fp := newFakePlanner()
	o, _ := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	first, err := o.SendMessage(context.Background(), sess.ID, "my answer", "key-1")
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	// Same key: the stored turn is replayed, nothing new is appended.
	retry, err := o.SendMessage(context.Background(), sess.ID, "my answer", "key-1")
	require.NoError(t, err)
	assert.True(t, retry.Replayed)
	assert.Equal(t, first.Turn.Content, retry.Turn.Content)
	assert.Equal(t, 1, fp.proposeCalls)

	got, err := o.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Transcript, 3)

	// A new key runs the pipeline again.
	_, err = o.SendMessage(context.Background(), sess.ID, "next answer", "key-2")
	require.NoError(t, err)
	assert.Equal(t, 2, fp.proposeCalls)
}

func TestGetEvaluation(t *testing.T) {
	fp := newFakePlanner()
	o, clk := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	_, err = o.GetEvaluation(context.Background(), sess.ID)
	require.Error(t, err)
	assert.True(t, parleyerr.HasCode(err, parleyerr.CodeSessionEvaluationNotReady))

	clk.advance(31 * time.Minute)
	_, err = o.SendMessage(context.Background(), sess.ID, "final answer", "")
	require.NoError(t, err)

	// Idempotent read: two calls return the same stored value.
	eval1, err := o.GetEvaluation(context.Background(), sess.ID)
	require.NoError(t, err)
	eval2, err := o.GetEvaluation(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, eval1, eval2)

	_, err = o.GetEvaluation(context.Background(), "no-such-session")
	require.Error(t, err)
	assert.True(t, parleyerr.IsNotFound(err))
}

func TestPhaseMonotonicity(t *testing.T) {
	// Alternate CHANGE_PHASE and MOVE_NEXT proposals; observed phases
	// must be non-decreasing until the jump to completed.
	fp := newFakePlanner()
	o, clk := testOrchestrator(t, fp)

	sess, err := o.CreateSession(context.Background(), testConfig(store.ModeMock))
	require.NoError(t, err)

	prev := PhaseIndex(store.PhaseWarmup)
	for i := 0; i < 7; i++ {
		if i%2 == 0 {
			fp.decision = planner.Decision{Action: store.ActionChangePhase, Reasoning: "advance"}
		} else {
			fp.decision = planner.Decision{Action: store.ActionMoveNext, Reasoning: "next"}
		}
		clk.advance(time.Minute)

		result, err := o.SendMessage(context.Background(), sess.ID, "answer", "")
		require.NoError(t, err)
		if result.State.Phase == store.PhaseCompleted {
			break
		}
		idx := PhaseIndex(result.State.Phase)
		require.GreaterOrEqual(t, idx, prev, "phase regressed on turn %d", i+1)
		prev = idx
	}
}
