// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package planner

import (
	"context"
	"log/slog"
	"time"

	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// probeTimeout bounds each startup reachability probe.
const probeTimeout = 10 * time.Second

// Facade exposes the planner operation surface over the provider that
// won the startup probe. The selection is made exactly once, at process
// start; the resulting Facade is immutable, so reads need no locking
// and a later recovery of the primary never causes a switch back.
type Facade struct {
	active Provider
	logger *slog.Logger
}

// Select probes the primary provider, then the secondary, and returns a
// Facade bound to the first one that responded. If neither responds the
// Facade is still returned: Reachable() reports false and every call
// fails with planner.providers.unavailable.
//
// Select is the explicit initialization step; pass the returned handle
// to collaborators instead of reaching for process globals.
func Select(ctx context.Context, logger *slog.Logger, primary, secondary Provider) *Facade {
	if logger == nil {
		logger = slog.Default()
	}

	for _, p := range []Provider{primary, secondary} {
		if p == nil {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Probe(probeCtx)
		cancel()
		if err != nil {
			logger.Warn("planner provider unreachable", "provider", p.Name(), "error", err)
			continue
		}
		logger.Info("planner provider selected", "provider", p.Name())
		return &Facade{active: p, logger: logger}
	}

	logger.Error("no planner provider reachable")
	return &Facade{logger: logger}
}

// Reachable reports whether a provider was selected at startup.
func (f *Facade) Reachable() bool {
	return f.active != nil
}

// ActiveProvider returns the selected provider's name, or "" when no
// provider was reachable at startup.
func (f *Facade) ActiveProvider() string {
	if f.active == nil {
		return ""
	}
	return f.active.Name()
}

// Close shuts down the selected provider.
func (f *Facade) Close() error {
	if f.active == nil {
		return nil
	}
	return f.active.Close()
}

func (f *Facade) complete(ctx context.Context, req CompletionRequest) (string, error) {
	if f.active == nil {
		return "", parleyerr.New(parleyerr.CodePlannerUnavailable, "no planner provider reachable")
	}

	text, err := f.active.Complete(ctx, req)
	if err != nil {
		return "", parleyerr.Wrap(err, parleyerr.CodePlannerUpstreamFailure,
			"completion call failed",
			parleyerr.FieldProvider(f.active.Name()),
		)
	}
	return text, nil
}

// ProposeAction asks the planner for the next conversational action.
// The error is either planner.providers.unavailable,
// planner.upstream.failure, or planner.response.invalid; in the invalid
// case the returned Decision carries the truncated raw payload so the
// caller can log it alongside its own fallback.
func (f *Facade) ProposeAction(ctx context.Context, pc PlanningContext) (Decision, error) {
	raw, err := f.complete(ctx, CompletionRequest{
		System:      systemPlanner,
		Prompt:      proposePrompt(pc),
		MaxTokens:   300,
		Temperature: 0.2,
	})
	if err != nil {
		return Decision{}, err
	}

	d, err := decodeDecision(raw)
	if err != nil {
		f.logger.Warn("planner decision failed schema check", "provider", f.active.Name(), "raw", TruncateRaw(raw))
		return d, err
	}
	return d, nil
}

// GenerateContent produces the interviewer's next message for the
// resolved action.
func (f *Facade) GenerateContent(ctx context.Context, action store.Action, pc PlanningContext) (string, error) {
	return f.complete(ctx, CompletionRequest{
		System:      systemInterviewer,
		Prompt:      contentPrompt(action, pc),
		MaxTokens:   600,
		Temperature: 0.7,
	})
}

// GenerateOpening produces the first assistant turn for a new session.
func (f *Facade) GenerateOpening(ctx context.Context, cfg store.SessionConfig) (string, error) {
	return f.complete(ctx, CompletionRequest{
		System:      systemInterviewer,
		Prompt:      openingPrompt(cfg),
		MaxTokens:   400,
		Temperature: 0.7,
	})
}

// ClassifyModeration classifies one inbound user turn.
func (f *Facade) ClassifyModeration(ctx context.Context, mc ModerationContext) (Verdict, error) {
	raw, err := f.complete(ctx, CompletionRequest{
		System:      systemModerator,
		Prompt:      moderationPrompt(mc),
		MaxTokens:   200,
		Temperature: 0,
	})
	if err != nil {
		return Verdict{}, err
	}
	return decodeVerdict(raw)
}

// GenerateFeedback produces structured practice-mode feedback for the
// answer in pc.UserInput.
func (f *Facade) GenerateFeedback(ctx context.Context, pc PlanningContext) (Feedback, error) {
	raw, err := f.complete(ctx, CompletionRequest{
		System:      systemCoach,
		Prompt:      feedbackPrompt(pc),
		MaxTokens:   900,
		Temperature: 0.4,
	})
	if err != nil {
		return Feedback{}, err
	}
	return decodeFeedback(raw)
}

// GenerateEvaluation produces the end-of-session evaluation.
func (f *Facade) GenerateEvaluation(ctx context.Context, pc PlanningContext) (*store.Evaluation, error) {
	raw, err := f.complete(ctx, CompletionRequest{
		System:      systemEvaluator,
		Prompt:      evaluationPrompt(pc),
		MaxTokens:   900,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}
	return decodeEvaluation(raw)
}
