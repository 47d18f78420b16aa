// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package interview

import (
	"context"
	"log/slog"
	"strings"

	"github.com/parley-dev/parley/internal/planner"
	"github.com/parley-dev/parley/internal/store"
)

// moderationWindow is how many transcript turns (both roles) the
// classifier sees: three exchanges.
const moderationWindow = 6

// suspiciousInputLen is the fallback heuristic threshold: when the
// classifier is unavailable, trimmed input shorter than this is treated
// as suspicious.
const suspiciousInputLen = 5

// ModerationOutcome is the guard's verdict on one inbound turn.
// Action is empty when the input passes and the normal planning
// pipeline should proceed.
type ModerationOutcome struct {
	Action    store.Action
	Verdict   planner.Verdict
	Reasoning string
	// Fallback is true when the classifier was unreachable and the
	// deterministic heuristic decided instead.
	Fallback bool
}

// Guard screens every inbound user turn before it reaches the planning
// pipeline. Escalation is stateless here: the warning count it rules on
// is derived from the session's decision log, never from a separate
// counter that could drift.
type Guard struct {
	planner Planner
	logger  *slog.Logger
}

// NewGuard creates a moderation guard over the given planner.
func NewGuard(p Planner, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{planner: p, logger: logger}
}

// Screen classifies input against the session's recent transcript and
// applies the escalation policy:
//
//   - profanity or a severity-high verdict escalates: the first
//     violation yields MODERATE, any later one yields TERMINATE
//   - off-topic (but otherwise clean) input yields REDIRECT
//   - anything else passes with an empty Action
//
// Screen never returns an error: if the classifier is unreachable or
// returns garbage, a deterministic heuristic stands in for it.
func (g *Guard) Screen(ctx context.Context, sess *store.Session, input string) ModerationOutcome {
	verdict, fallback := g.classify(ctx, sess, input)

	// Severity high escalates on its own: the classifier is untrusted,
	// and an inconsistent payload marking a high-severity turn as
	// appropriate must not slip past the guard.
	if verdict.Profanity || verdict.Severity == planner.SeverityHigh {
		if sess.WarningCount() >= 1 {
			return ModerationOutcome{
				Action:    store.ActionTerminate,
				Verdict:   verdict,
				Reasoning: "second moderation violation: " + verdict.Reason,
				Fallback:  fallback,
			}
		}
		return ModerationOutcome{
			Action:    store.ActionModerate,
			Verdict:   verdict,
			Reasoning: verdict.Reason,
			Fallback:  fallback,
		}
	}

	if !verdict.OnTopic {
		return ModerationOutcome{
			Action:    store.ActionRedirect,
			Verdict:   verdict,
			Reasoning: verdict.Reason,
			Fallback:  fallback,
		}
	}

	return ModerationOutcome{Verdict: verdict, Fallback: fallback}
}

// classify calls the moderation classifier, falling back to a
// deterministic heuristic when the call fails for any reason. The
// fallback never escalates: a suspicious turn maps to off-topic (a
// redirect), and everything else passes.
func (g *Guard) classify(ctx context.Context, sess *store.Session, input string) (planner.Verdict, bool) {
	mc := planner.ModerationContext{
		Input:  input,
		Window: transcriptTail(sess.Transcript, moderationWindow),
	}
	if last := sess.LastAssistantTurn(); last != nil {
		mc.PrecedingQuestion = last.Content
	}

	verdict, err := g.planner.ClassifyModeration(ctx, mc)
	if err == nil {
		return verdict, false
	}
	g.logger.Warn("moderation classifier unavailable, using fallback heuristic",
		"session_id", sess.ID, "error", err)

	if len(strings.TrimSpace(input)) < suspiciousInputLen {
		return planner.Verdict{
			Appropriate: true,
			OnTopic:     false,
			Severity:    planner.SeverityLow,
			Reason:      "input too short to classify, treated as suspicious",
		}, true
	}
	return planner.Verdict{
		Appropriate: true,
		OnTopic:     true,
		Severity:    planner.SeverityLow,
		Reason:      "classifier unavailable, input passed by fallback",
	}, true
}

// transcriptTail returns the last n turns, oldest first.
func transcriptTail(transcript []store.Turn, n int) []store.Turn {
	if len(transcript) <= n {
		return transcript
	}
	return transcript[len(transcript)-n:]
}
