// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

func validConfig() SessionConfig {
	return SessionConfig{
		Role:                "software_engineer",
		Seniority:           "senior",
		InterviewTypes:      []string{"behavioral", "technical"},
		DurationMinutes:     30,
		QuestionFamiliarity: FamiliarityMixed,
		Mode:                ModeMock,
	}
}

func TestSessionConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SessionConfig)
		wantErr string
	}{
		{"valid", func(*SessionConfig) {}, ""},
		{"unknown role", func(c *SessionConfig) { c.Role = "astronaut" }, "unknown role"},
		{"seniority wrong for role", func(c *SessionConfig) { c.Role = "product_manager"; c.Seniority = "staff" }, "seniority"},
		{"no interview types", func(c *SessionConfig) { c.InterviewTypes = nil }, "at least one"},
		{"type wrong for role", func(c *SessionConfig) { c.Role = "product_manager"; c.Seniority = "senior"; c.InterviewTypes = []string{"system_design"} }, "interview type"},
		{"zero duration", func(c *SessionConfig) { c.DurationMinutes = 0 }, "duration_minutes"},
		{"negative duration", func(c *SessionConfig) { c.DurationMinutes = -5 }, "duration_minutes"},
		{"bad familiarity", func(c *SessionConfig) { c.QuestionFamiliarity = "vaguely" }, "question_familiarity"},
		{"bad mode", func(c *SessionConfig) { c.Mode = "speedrun" }, "interview_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, parleyerr.HasCode(err, parleyerr.CodeSessionConfigInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSessionValidate(t *testing.T) {
	now := time.Now()
	base := func() *Session {
		return &Session{
			ID:     "s1",
			Config: validConfig(),
			State:  SessionState{Phase: PhaseWarmup, StartTime: now, Active: true},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		s := base()
		s.ID = ""
		assert.Error(t, s.Validate())
	})

	t.Run("inactive requires end time and completed phase", func(t *testing.T) {
		s := base()
		s.State.Active = false
		assert.Error(t, s.Validate())

		end := now
		s.State.EndTime = &end
		assert.Error(t, s.Validate(), "phase must also be completed")

		s.State.Phase = PhaseCompleted
		assert.NoError(t, s.Validate())
	})

	t.Run("negative question count", func(t *testing.T) {
		s := base()
		s.State.QuestionsAsked = -1
		assert.Error(t, s.Validate())
	})
}

func TestWarningCount(t *testing.T) {
	s := &Session{
		Decisions: []DecisionEntry{
			{Action: ActionMoveNext},
			{Action: ActionModerate},
			{Action: ActionRedirect},
			{Action: ActionModerate},
			{Action: ActionTerminate},
		},
	}
	assert.Equal(t, 2, s.WarningCount())
	assert.Zero(t, (&Session{}).WarningCount())
}

func TestLastAssistantTurn(t *testing.T) {
	s := &Session{
		Transcript: []Turn{
			{Role: TurnRoleAssistant, Content: "q1"},
			{Role: TurnRoleUser, Content: "a1"},
			{Role: TurnRoleAssistant, Content: "q2"},
			{Role: TurnRoleUser, Content: "a2"},
		},
	}
	turn := s.LastAssistantTurn()
	require.NotNil(t, turn)
	assert.Equal(t, "q2", turn.Content)

	assert.Nil(t, (&Session{}).LastAssistantTurn())
}

func TestSessionClone(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Hour)
	score := 8
	orig := &Session{
		ID:     "s1",
		Config: validConfig(),
		State:  SessionState{Phase: PhaseCompleted, StartTime: now, EndTime: &end},
		Transcript: []Turn{
			{Role: TurnRoleAssistant, Content: "q", FeedbackScore: &score},
		},
		Decisions: []DecisionEntry{{Action: ActionMoveNext}},
		Evaluation: &Evaluation{
			OverallScore: 7,
			PhaseScores:  map[string]int{"technical": 6},
			Strengths:    []string{"clarity"},
		},
	}

	clone := orig.Clone()

	// Mutating the clone must not leak into the original.
	clone.Transcript = append(clone.Transcript, Turn{Role: TurnRoleUser, Content: "a"})
	*clone.Transcript[0].FeedbackScore = 1
	*clone.State.EndTime = now
	clone.Evaluation.PhaseScores["technical"] = 0
	clone.Evaluation.Strengths[0] = "changed"
	clone.Config.InterviewTypes[0] = "changed"

	assert.Len(t, orig.Transcript, 1)
	assert.Equal(t, 8, *orig.Transcript[0].FeedbackScore)
	assert.Equal(t, end, *orig.State.EndTime)
	assert.Equal(t, 6, orig.Evaluation.PhaseScores["technical"])
	assert.Equal(t, "clarity", orig.Evaluation.Strengths[0])
	assert.Equal(t, "behavioral", orig.Config.InterviewTypes[0])
}

func TestElapsedMinutes(t *testing.T) {
	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	state := SessionState{StartTime: start}

	assert.InDelta(t, 12.5, state.ElapsedMinutes(start.Add(12*time.Minute+30*time.Second)), 0.001)
	assert.Zero(t, SessionState{}.ElapsedMinutes(start))
}
