// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package interview

import (
	"context"

	"github.com/parley-dev/parley/internal/planner"
	"github.com/parley-dev/parley/internal/store"
)

// Planner is the façade surface the orchestration layer depends on.
// *planner.Facade satisfies it; tests substitute a scripted fake.
type Planner interface {
	Reachable() bool
	ActiveProvider() string
	ProposeAction(ctx context.Context, pc planner.PlanningContext) (planner.Decision, error)
	GenerateContent(ctx context.Context, action store.Action, pc planner.PlanningContext) (string, error)
	GenerateOpening(ctx context.Context, cfg store.SessionConfig) (string, error)
	ClassifyModeration(ctx context.Context, mc planner.ModerationContext) (planner.Verdict, error)
	GenerateFeedback(ctx context.Context, pc planner.PlanningContext) (planner.Feedback, error)
	GenerateEvaluation(ctx context.Context, pc planner.PlanningContext) (*store.Evaluation, error)
}
