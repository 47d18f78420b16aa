// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package planner

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// fakeProvider is a scripted Provider for façade tests.
type fakeProvider struct {
	name        string
	probeErr    error
	response    string
	completeErr error

	probeCalls    int
	completeCalls int
	closed        bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Probe(context.Context) error {
	f.probeCalls++
	return f.probeErr
}

func (f *fakeProvider) Complete(context.Context, CompletionRequest) (string, error) {
	f.completeCalls++
	return f.response, f.completeErr
}

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testPlanningContext() PlanningContext {
	return PlanningContext{
		Config: store.SessionConfig{
			Role:                "software_engineer",
			Seniority:           "senior",
			InterviewTypes:      []string{"behavioral"},
			DurationMinutes:     30,
			QuestionFamiliarity: store.FamiliarityMixed,
			Mode:                store.ModeMock,
		},
		Phase:          store.PhaseBehavioral,
		QuestionsAsked: 2,
		ElapsedMinutes: 10,
		UserInput:      "my answer",
	}
}

func TestSelect(t *testing.T) {
	t.Run("primary wins when reachable", func(t *testing.T) {
		primary := &fakeProvider{name: "anthropic"}
		secondary := &fakeProvider{name: "ollama"}

		f := Select(context.Background(), testLogger(), primary, secondary)

		assert.True(t, f.Reachable())
		assert.Equal(t, "anthropic", f.ActiveProvider())
		assert.Equal(t, 1, primary.probeCalls)
		assert.Zero(t, secondary.probeCalls, "secondary is not probed once the primary answered")
	})

	t.Run("falls over to secondary when primary unreachable", func(t *testing.T) {
		primary := &fakeProvider{name: "anthropic", probeErr: errors.New("connection refused")}
		secondary := &fakeProvider{name: "ollama"}

		f := Select(context.Background(), testLogger(), primary, secondary)

		assert.True(t, f.Reachable())
		assert.Equal(t, "ollama", f.ActiveProvider())
	})

	t.Run("selection is immutable for the process lifetime", func(t *testing.T) {
		primary := &fakeProvider{name: "anthropic", probeErr: errors.New("down at startup")}
		secondary := &fakeProvider{name: "ollama", response: `ok`}

		f := Select(context.Background(), testLogger(), primary, secondary)
		require.Equal(t, "ollama", f.ActiveProvider())

		// The primary recovering later must not cause a switch back.
		primary.probeErr = nil
		_, _ = f.GenerateContent(context.Background(), store.ActionMoveNext, testPlanningContext())
		assert.Equal(t, "ollama", f.ActiveProvider())
		assert.Zero(t, primary.completeCalls)
		assert.Equal(t, 1, secondary.completeCalls)
	})

	t.Run("neither reachable", func(t *testing.T) {
		primary := &fakeProvider{name: "anthropic", probeErr: errors.New("down")}
		secondary := &fakeProvider{name: "ollama", probeErr: errors.New("down")}

		f := Select(context.Background(), testLogger(), primary, secondary)

		assert.False(t, f.Reachable())
		assert.Empty(t, f.ActiveProvider())

		_, err := f.GenerateContent(context.Background(), store.ActionMoveNext, testPlanningContext())
		require.Error(t, err)
		assert.True(t, parleyerr.HasCode(err, parleyerr.CodePlannerUnavailable))
	})

	t.Run("nil primary is skipped", func(t *testing.T) {
		secondary := &fakeProvider{name: "ollama"}

		f := Select(context.Background(), testLogger(), nil, secondary)

		assert.Equal(t, "ollama", f.ActiveProvider())
	})
}

func TestFacadeProposeAction(t *testing.T) {
	t.Run("valid proposal", func(t *testing.T) {
		p := &fakeProvider{name: "anthropic", response: `{"action":"ASK_FOLLOWUP","reasoning":"shallow"}`}
		f := Select(context.Background(), testLogger(), p, nil)

		d, err := f.ProposeAction(context.Background(), testPlanningContext())
		require.NoError(t, err)
		assert.Equal(t, store.ActionAskFollowup, d.Action)
	})

	t.Run("schema failure returns raw for the decision log", func(t *testing.T) {
		p := &fakeProvider{name: "anthropic", response: "I think we should wrap up now!"}
		f := Select(context.Background(), testLogger(), p, nil)

		d, err := f.ProposeAction(context.Background(), testPlanningContext())
		require.Error(t, err)
		assert.True(t, parleyerr.HasCode(err, parleyerr.CodePlannerResponseInvalid))
		assert.Equal(t, "I think we should wrap up now!", d.Raw)
	})

	t.Run("upstream failure", func(t *testing.T) {
		p := &fakeProvider{name: "anthropic", completeErr: errors.New("503")}
		f := Select(context.Background(), testLogger(), p, nil)

		_, err := f.ProposeAction(context.Background(), testPlanningContext())
		require.Error(t, err)
		assert.True(t, parleyerr.IsUpstreamFailure(err))
	})
}

func TestFacadeClassifyModeration(t *testing.T) {
	p := &fakeProvider{name: "anthropic", response: `{"is_appropriate":true,"is_on_topic":false,"severity":"low","reason":"tangent"}`}
	f := Select(context.Background(), testLogger(), p, nil)

	v, err := f.ClassifyModeration(context.Background(), ModerationContext{Input: "off we go"})
	require.NoError(t, err)
	assert.True(t, v.Appropriate)
	assert.False(t, v.OnTopic)
}

func TestFacadeGenerateEvaluation(t *testing.T) {
	p := &fakeProvider{name: "anthropic", response: `{"overall_score":7,"strengths":["clarity"],"weaknesses":[],"recommendation":"hire","summary":"Good."}`}
	f := Select(context.Background(), testLogger(), p, nil)

	e, err := f.GenerateEvaluation(context.Background(), testPlanningContext())
	require.NoError(t, err)
	assert.Equal(t, 7, e.OverallScore)
	assert.Equal(t, "hire", e.Recommendation)
}

func TestFacadeClose(t *testing.T) {
	p := &fakeProvider{name: "anthropic"}
	f := Select(context.Background(), testLogger(), p, nil)

	require.NoError(t, f.Close())
	assert.True(t, p.closed)

	empty := Select(context.Background(), testLogger(), nil, nil)
	assert.NoError(t, empty.Close())
}
