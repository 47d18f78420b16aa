// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package interview contains the deterministic supervision layer over
// the untrusted planner: the phase state machine, the moderation guard,
// the decision governor, and the turn orchestrator that ties them to
// the session store.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parley-dev/parley/internal/planner"
	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// TurnResult is what one committed turn returns to the caller: the
// assistant turn, the post-turn state, and the evaluation when the
// turn completed the session.
type TurnResult struct {
	Turn       store.Turn
	State      store.SessionState
	Evaluation *store.Evaluation
	// Replayed is true when an idempotent retry returned the
	// previously committed turn instead of running the pipeline.
	Replayed bool
}

// Orchestrator is the sole mutator of session records. Each inbound
// message runs the full turn pipeline against a clone of the stored
// record and commits it in a single write, so a failed turn persists
// nothing.
type Orchestrator struct {
	sessions store.SessionStore
	planner  Planner
	guard    *Guard
	logger   *slog.Logger

	// now is swapped in tests to step through session timelines.
	now func() time.Time
}

// NewOrchestrator wires the orchestrator to its collaborators.
func NewOrchestrator(sessions store.SessionStore, p Planner, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions: sessions,
		planner:  p,
		guard:    NewGuard(p, logger),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession validates the configuration, seeds the warmup phase and
// the opening assistant turn, and persists the new record. It refuses
// to create sessions when no planner provider was reachable at startup:
// a session that can never produce a turn is worse than an error.
func (o *Orchestrator) CreateSession(ctx context.Context, cfg store.SessionConfig) (*store.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !o.planner.Reachable() {
		return nil, parleyerr.New(parleyerr.CodePlannerUnavailable,
			"no planner provider reachable, refusing to create session")
	}

	now := o.now()
	sess := &store.Session{
		ID:     uuid.NewString(),
		Config: cfg,
		State: store.SessionState{
			Phase:        store.PhaseWarmup,
			StartTime:    now,
			LastActivity: now,
			Active:       true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	opening, err := o.planner.GenerateOpening(ctx, cfg)
	if err != nil || strings.TrimSpace(opening) == "" {
		// Availability over polish: a generic greeting beats a failed create.
		o.logger.Warn("opening generation failed, using static greeting",
			"session_id", sess.ID, "error", err)
		opening = staticOpening(cfg)
	}
	sess.Transcript = append(sess.Transcript, store.Turn{
		Role:      store.TurnRoleAssistant,
		Content:   opening,
		Timestamp: now,
		Phase:     store.PhaseWarmup,
	})

	if err := o.sessions.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	o.logger.Info("session created",
		"session_id", sess.ID,
		"role", cfg.Role,
		"mode", string(cfg.Mode),
		"duration_minutes", cfg.DurationMinutes)
	return sess, nil
}

// GetSession returns the full session record.
func (o *Orchestrator) GetSession(ctx context.Context, id string) (*store.Session, error) {
	return o.sessions.GetSession(ctx, id)
}

// ListSessions returns stored sessions, newest first.
func (o *Orchestrator) ListSessions(ctx context.Context, opts store.ListOpts) ([]*store.Session, error) {
	return o.sessions.ListSessions(ctx, opts)
}

// GetEvaluation returns the write-once evaluation for a completed
// session. Reads are idempotent: the stored value is returned verbatim
// every time.
func (o *Orchestrator) GetEvaluation(ctx context.Context, id string) (*store.Evaluation, error) {
	sess, err := o.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Evaluation == nil {
		return nil, parleyerr.New(parleyerr.CodeSessionEvaluationNotReady,
			"evaluation not ready: session has not completed",
			parleyerr.FieldSessionID(id),
			parleyerr.FieldPhase(string(sess.State.Phase)),
		)
	}
	return sess.Evaluation, nil
}

// SendMessage runs one inbound user message through the turn pipeline:
// append, moderate, plan (or coach), hard-termination check, commit.
// The whole turn is persisted in a single write; on a persistence
// failure nothing is committed and the caller may retry with the same
// idempotency key.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID, text, idempotencyKey string) (*TurnResult, error) {
	stored, err := o.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// A retry of the last committed turn replays its stored result
	// instead of appending a duplicate exchange.
	if idempotencyKey != "" && idempotencyKey == stored.LastIdempotencyKey {
		last := stored.LastAssistantTurn()
		if last != nil {
			return &TurnResult{
				Turn:       *last,
				State:      stored.State,
				Evaluation: stored.Evaluation,
				Replayed:   true,
			}, nil
		}
	}

	if !stored.State.Active {
		return nil, parleyerr.New(parleyerr.CodeSessionInactive,
			"session is no longer active",
			parleyerr.FieldSessionID(sessionID),
			parleyerr.FieldPhase(string(stored.State.Phase)),
		)
	}

	sess := stored.Clone()
	now := o.now()

	// Step 1: record the user's turn.
	sess.Transcript = append(sess.Transcript, store.Turn{
		Role:      store.TurnRoleUser,
		Content:   text,
		Timestamp: now,
		Phase:     sess.State.Phase,
	})
	sess.State.QuestionsAsked++
	sess.State.LastActivity = now

	// Step 2: moderation guard. A flagged turn never reaches the
	// planner and never consumes a question.
	outcome := o.guard.Screen(ctx, sess, text)

	var assistant store.Turn
	moderationTerminated := false

	switch outcome.Action {
	case store.ActionTerminate:
		sess.State.QuestionsAsked--
		o.appendDecision(sess, now, store.ActionTerminate, outcome.Reasoning, moderationContext(outcome))
		o.finalize(sess, now, nil)
		moderationTerminated = true
		assistant = store.Turn{
			Role:      store.TurnRoleAssistant,
			Content:   terminationMessage,
			Timestamp: now,
			Phase:     sess.State.Phase,
		}

	case store.ActionModerate:
		sess.State.QuestionsAsked--
		o.appendDecision(sess, now, store.ActionModerate, outcome.Reasoning, moderationContext(outcome))
		assistant = store.Turn{
			Role:      store.TurnRoleAssistant,
			Content:   moderationWarning(sess),
			Timestamp: now,
			Phase:     sess.State.Phase,
		}

	case store.ActionRedirect:
		sess.State.QuestionsAsked--
		o.appendDecision(sess, now, store.ActionRedirect, outcome.Reasoning, moderationContext(outcome))
		assistant = store.Turn{
			Role:      store.TurnRoleAssistant,
			Content:   redirectMessage(sess),
			Timestamp: now,
			Phase:     sess.State.Phase,
		}

	default:
		// Step 3: mode branch.
		if sess.Config.Mode == store.ModePractice {
			assistant = o.practiceTurn(ctx, sess, now, text)
		} else {
			assistant = o.mockTurn(ctx, sess, now, text)
		}
	}

	// Step 4: hard-termination check. It runs on every turn that left
	// the session active, moderated or not: a moderated turn still
	// advances the clock, and this check is the sole guarantee of
	// eventual termination.
	if !moderationTerminated && sess.State.Active {
		in := GovernorInputs{
			ElapsedMinutes:  sess.State.ElapsedMinutes(now),
			DurationMinutes: sess.Config.DurationMinutes,
			QuestionsAsked:  sess.State.QuestionsAsked,
			Phase:           sess.State.Phase,
		}
		if terminate, reason := ShouldTerminate(in); terminate {
			o.appendDecision(sess, now, store.ActionTerminate, reason, "")
			eval := o.generateEvaluation(ctx, sess, now)
			o.finalize(sess, now, eval)
			assistant.Phase = sess.State.Phase
		}
	}

	// Step 5: commit the whole turn in one write.
	sess.Transcript = append(sess.Transcript, assistant)
	sess.LastIdempotencyKey = idempotencyKey
	if err := o.sessions.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	o.logger.Info("turn committed",
		"session_id", sess.ID,
		"phase", string(sess.State.Phase),
		"questions_asked", sess.State.QuestionsAsked,
		"active", sess.State.Active)

	return &TurnResult{
		Turn:       assistant,
		State:      sess.State,
		Evaluation: sess.Evaluation,
	}, nil
}

// practiceTurn produces structured coaching feedback for the answer
// just given. Practice mode bypasses the governor entirely: there is no
// autonomous phase or timing logic, just feedback per answer.
func (o *Orchestrator) practiceTurn(ctx context.Context, sess *store.Session, now time.Time, text string) store.Turn {
	pc := o.planningContext(sess, now, text)

	fb, err := o.planner.GenerateFeedback(ctx, pc)
	if err != nil {
		o.logger.Warn("feedback generation failed, using fallback",
			"session_id", sess.ID, "error", err)
		return store.Turn{
			Role:      store.TurnRoleAssistant,
			Content:   fallbackFeedbackMessage,
			Timestamp: now,
			Phase:     sess.State.Phase,
		}
	}

	score := fb.Score
	return store.Turn{
		Role:          store.TurnRoleAssistant,
		Content:       formatFeedback(fb),
		Timestamp:     now,
		Phase:         sess.State.Phase,
		FeedbackScore: &score,
	}
}

// mockTurn runs the autonomous interviewer: propose, govern, generate.
func (o *Orchestrator) mockTurn(ctx context.Context, sess *store.Session, now time.Time, text string) store.Turn {
	pc := o.planningContext(sess, now, text)
	in := GovernorInputs{
		ElapsedMinutes:  pc.ElapsedMinutes,
		DurationMinutes: sess.Config.DurationMinutes,
		QuestionsAsked:  sess.State.QuestionsAsked,
		Phase:           sess.State.Phase,
	}

	proposal, proposeErr := o.planner.ProposeAction(ctx, pc)
	res := Resolve(proposal, proposeErr, in)
	if res.Overridden {
		o.logger.Info("planner proposal overridden",
			"session_id", sess.ID,
			"proposed", string(proposal.Action),
			"resolved", string(res.Action),
			"context", res.Context)
	}
	o.appendDecision(sess, now, res.Action, res.Reasoning, res.Context)

	switch res.Action {
	case store.ActionChangePhase:
		sess.State.Phase = NextPhase(sess.State.Phase)
	case store.ActionWrapUp:
		sess.State.Phase = store.PhaseWrapUp
	}

	content, err := o.planner.GenerateContent(ctx, res.Action, o.planningContext(sess, now, text))
	if err != nil || strings.TrimSpace(content) == "" {
		o.logger.Warn("content generation failed, using fallback",
			"session_id", sess.ID, "action", string(res.Action), "error", err)
		content = fallbackContent(res.Action)
	}

	return store.Turn{
		Role:      store.TurnRoleAssistant,
		Content:   content,
		Timestamp: now,
		Phase:     sess.State.Phase,
	}
}

// generateEvaluation asks the planner for the end-of-session
// evaluation, substituting a neutral record when the call fails: a
// completed session always carries an evaluation.
func (o *Orchestrator) generateEvaluation(ctx context.Context, sess *store.Session, now time.Time) *store.Evaluation {
	eval, err := o.planner.GenerateEvaluation(ctx, o.planningContext(sess, now, ""))
	if err != nil {
		o.logger.Warn("evaluation generation failed, using fallback",
			"session_id", sess.ID, "error", err)
		return &store.Evaluation{
			Strengths:      []string{},
			Weaknesses:     []string{},
			Recommendation: "no_recommendation",
			Summary:        "The evaluation could not be generated for this session.",
		}
	}
	return eval
}

// finalize freezes a session: inactive, end time set, phase completed.
// eval is nil on the moderation-terminated path, which never earns one.
func (o *Orchestrator) finalize(sess *store.Session, now time.Time, eval *store.Evaluation) {
	end := now
	sess.State.Active = false
	sess.State.EndTime = &end
	sess.State.Phase = store.PhaseCompleted
	if sess.Evaluation == nil {
		sess.Evaluation = eval
	}
}

func (o *Orchestrator) appendDecision(sess *store.Session, now time.Time, action store.Action, reasoning, context string) {
	sess.Decisions = append(sess.Decisions, store.DecisionEntry{
		Timestamp: now,
		Action:    action,
		Reasoning: reasoning,
		Context:   context,
	})
}

// planningWindow is how many trailing transcript turns planner calls see.
const planningWindow = 10

func (o *Orchestrator) planningContext(sess *store.Session, now time.Time, input string) planner.PlanningContext {
	return planner.PlanningContext{
		Config:         sess.Config,
		Phase:          sess.State.Phase,
		QuestionsAsked: sess.State.QuestionsAsked,
		ElapsedMinutes: sess.State.ElapsedMinutes(now),
		Window:         transcriptTail(sess.Transcript, planningWindow),
		UserInput:      input,
	}
}

func moderationContext(outcome ModerationOutcome) string {
	if outcome.Fallback {
		return "fallback heuristic"
	}
	return fmt.Sprintf("severity=%s profanity=%t on_topic=%t",
		outcome.Verdict.Severity, outcome.Verdict.Profanity, outcome.Verdict.OnTopic)
}

// --- Synthesized assistant messages ---

const terminationMessage = "This session has been ended due to repeated " +
	"inappropriate responses. Thank you for your time."

const fallbackFeedbackMessage = "I wasn't able to generate detailed feedback " +
	"for that answer. Let's keep going: could you expand on your last point?"

// moderationWarning restates the open question after a first violation.
func moderationWarning(sess *store.Session) string {
	if q := pendingQuestion(sess); q != "" {
		return "Let's keep this professional. Returning to the question: " + q
	}
	return "Let's keep this professional and stay focused on the interview."
}

// redirectMessage steers an off-topic answer back to the open question.
func redirectMessage(sess *store.Session) string {
	if q := pendingQuestion(sess); q != "" {
		return "Let's stay on track. The question was: " + q
	}
	return "Let's stay focused on the interview."
}

// pendingQuestion is the most recent assistant turn, i.e. the question
// the flagged user turn was answering.
func pendingQuestion(sess *store.Session) string {
	for i := len(sess.Transcript) - 1; i >= 0; i-- {
		if sess.Transcript[i].Role == store.TurnRoleAssistant {
			return sess.Transcript[i].Content
		}
	}
	return ""
}

func staticOpening(cfg store.SessionConfig) string {
	role := strings.ReplaceAll(cfg.Role, "_", " ")
	return fmt.Sprintf("Welcome to your %s interview for the %s role. "+
		"Let's start with a warmup: tell me a bit about yourself and what "+
		"you've been working on recently.", cfg.Mode, role)
}

// formatFeedback renders practice feedback as one assistant message.
func formatFeedback(fb planner.Feedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Score: %d/10\n\n%s", fb.Score, fb.Critique)
	if fb.SampleAnswer != "" {
		b.WriteString("\n\nA strong answer might look like:\n")
		b.WriteString(fb.SampleAnswer)
	}
	if len(fb.Improvements) > 0 {
		b.WriteString("\n\nTo improve:")
		for _, imp := range fb.Improvements {
			b.WriteString("\n- ")
			b.WriteString(imp)
		}
	}
	if fb.NextQuestion != "" {
		b.WriteString("\n\nNext question: ")
		b.WriteString(fb.NextQuestion)
	}
	return b.String()
}

// fallbackContent is the per-action static message used when content
// generation fails after the action has already been resolved.
func fallbackContent(action store.Action) string {
	switch action {
	case store.ActionAskFollowup:
		return "Could you go one level deeper on that last point?"
	case store.ActionClarify:
		return "Could you clarify what you meant there?"
	case store.ActionWrapUp:
		return "We're coming up on time. Do you have any questions for me?"
	case store.ActionRedirect:
		return "Let's get back to the question at hand."
	default:
		return "Thanks. Let's move on to the next question: walk me through " +
			"a recent project you're proud of and the trade-offs you made."
	}
}
