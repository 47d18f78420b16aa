// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package store

import (
	"slices"
	"strings"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// roleProfile describes the valid seniority and interview-type sets for a role.
type roleProfile struct {
	seniorities    []string
	interviewTypes []string
}

var roleProfiles = map[string]roleProfile{
	"software_engineer": {
		seniorities:    []string{"junior", "mid", "senior", "staff", "principal"},
		interviewTypes: []string{"behavioral", "technical", "system_design"},
	},
	"engineering_manager": {
		seniorities:    []string{"manager", "senior_manager", "director"},
		interviewTypes: []string{"behavioral", "technical", "system_design"},
	},
	"product_manager": {
		seniorities:    []string{"associate", "mid", "senior", "principal"},
		interviewTypes: []string{"behavioral", "product"},
	},
	"data_scientist": {
		seniorities:    []string{"junior", "mid", "senior", "staff"},
		interviewTypes: []string{"behavioral", "technical"},
	},
}

// Roles returns the known role identifiers in sorted order.
func Roles() []string {
	out := make([]string, 0, len(roleProfiles))
	for role := range roleProfiles {
		out = append(out, role)
	}
	slices.Sort(out)
	return out
}

// Valid reports whether the mode is a known interview mode.
func (m InterviewMode) Valid() bool {
	switch m {
	case ModePractice, ModeMock:
		return true
	default:
		return false
	}
}

// Valid reports whether the familiarity is a known value.
func (f Familiarity) Valid() bool {
	switch f {
	case FamiliarityKnown, FamiliarityMixed, FamiliarityUnique:
		return true
	default:
		return false
	}
}

// Valid reports whether the role is a known transcript turn role.
func (r TurnRole) Valid() bool {
	switch r {
	case TurnRoleUser, TurnRoleAssistant, TurnRoleSystem:
		return true
	default:
		return false
	}
}

// Validate checks a SessionConfig against the role catalogue. All
// violations are rejected before any session state is created.
func (c SessionConfig) Validate() error {
	profile, ok := roleProfiles[c.Role]
	if !ok {
		return parleyerr.Errorf(parleyerr.CodeSessionConfigInvalid,
			"config: unknown role %q, expected one of [%s]", c.Role, strings.Join(Roles(), ", "))
	}

	if !slices.Contains(profile.seniorities, c.Seniority) {
		return parleyerr.Errorf(parleyerr.CodeSessionConfigInvalid,
			"config: seniority %q is not valid for role %q, expected one of [%s]",
			c.Seniority, c.Role, strings.Join(profile.seniorities, ", "))
	}

	if len(c.InterviewTypes) == 0 {
		return parleyerr.New(parleyerr.CodeSessionConfigInvalid, "config: at least one interview type is required")
	}
	for _, it := range c.InterviewTypes {
		if !slices.Contains(profile.interviewTypes, it) {
			return parleyerr.Errorf(parleyerr.CodeSessionConfigInvalid,
				"config: interview type %q is not valid for role %q, expected one of [%s]",
				it, c.Role, strings.Join(profile.interviewTypes, ", "))
		}
	}

	if c.DurationMinutes <= 0 {
		return parleyerr.Errorf(parleyerr.CodeSessionConfigInvalid,
			"config: duration_minutes must be positive, got %d", c.DurationMinutes)
	}

	if !c.QuestionFamiliarity.Valid() {
		return parleyerr.Errorf(parleyerr.CodeSessionConfigInvalid,
			"config: invalid question_familiarity %q", c.QuestionFamiliarity)
	}

	if !c.Mode.Valid() {
		return parleyerr.Errorf(parleyerr.CodeSessionConfigInvalid,
			"config: invalid interview_mode %q", c.Mode)
	}

	return nil
}

// Validate checks that the Session has all required fields set correctly.
func (s *Session) Validate() error {
	if s.ID == "" {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "session: ID is required")
	}
	if err := s.Config.Validate(); err != nil {
		return err
	}
	if s.State.StartTime.IsZero() {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "session: StartTime is required")
	}
	if !s.State.Active && (s.State.EndTime == nil || s.State.Phase != PhaseCompleted) {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput,
			"session: inactive sessions must have EndTime set and phase completed")
	}
	if s.State.QuestionsAsked < 0 {
		return parleyerr.Errorf(parleyerr.CodeStoreInvalidInput,
			"session: QuestionsAsked must be >= 0, got %d", s.State.QuestionsAsked)
	}
	for _, turn := range s.Transcript {
		if !turn.Role.Valid() {
			return parleyerr.Errorf(parleyerr.CodeStoreInvalidInput, "session: invalid turn role %q", turn.Role)
		}
	}
	return nil
}
