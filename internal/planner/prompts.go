// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package planner

import (
	"fmt"
	"strings"

	"github.com/parley-dev/parley/internal/store"
)

// System prompts. The wording is deliberately plain: control flow is
// enforced by the governor, not by prompt engineering.

const systemInterviewer = `You are an experienced interviewer running a structured mock interview. Stay in character and keep responses concise.`

const systemPlanner = `You decide the next interviewer action. Respond with a single JSON object: {"action": one of ASK_FOLLOWUP, MOVE_NEXT, CHANGE_PHASE, CLARIFY, WRAP_UP, REDIRECT, MODERATE, "reasoning": short string}. No other text.`

const systemModerator = `You classify one candidate message for safety and relevance. Respond with a single JSON object: {"is_appropriate": bool, "is_on_topic": bool, "contains_profanity": bool, "severity": "low"|"medium"|"high", "reason": short string}. No other text.`

const systemCoach = `You are an interview coach reviewing one answer. Respond with a single JSON object: {"score": 0-10, "critique": string, "sample_answer": string, "improvements": [strings], "next_question": string}. No other text.`

const systemEvaluator = `You write the final evaluation for a completed mock interview. Respond with a single JSON object: {"overall_score": 0-10, "phase_scores": {phase: 0-10}, "strengths": [strings], "weaknesses": [strings], "recommendation": string, "summary": string}. No other text.`

// formatProfile renders the session configuration for prompts.
func formatProfile(cfg store.SessionConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s (%s)\n", cfg.Role, cfg.Seniority)
	fmt.Fprintf(&b, "Interview types: %s\n", strings.Join(cfg.InterviewTypes, ", "))
	if cfg.Company != "" {
		fmt.Fprintf(&b, "Target company: %s\n", cfg.Company)
	}
	fmt.Fprintf(&b, "Duration: %d minutes\n", cfg.DurationMinutes)
	fmt.Fprintf(&b, "Question familiarity: %s\n", cfg.QuestionFamiliarity)
	return b.String()
}

// formatWindow renders a transcript tail, oldest first.
func formatWindow(window []store.Turn) string {
	if len(window) == 0 {
		return "(no prior exchanges)"
	}
	var b strings.Builder
	for _, turn := range window {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	return b.String()
}

func proposePrompt(pc PlanningContext) string {
	var b strings.Builder
	b.WriteString(formatProfile(pc.Config))
	fmt.Fprintf(&b, "Current phase: %s\n", pc.Phase)
	fmt.Fprintf(&b, "Questions asked: %d\n", pc.QuestionsAsked)
	fmt.Fprintf(&b, "Elapsed: %.1f of %d minutes\n\n", pc.ElapsedMinutes, pc.Config.DurationMinutes)
	b.WriteString("Recent exchanges:\n")
	b.WriteString(formatWindow(pc.Window))
	fmt.Fprintf(&b, "\nCandidate's latest answer:\n%s\n", pc.UserInput)
	return b.String()
}

func contentPrompt(action store.Action, pc PlanningContext) string {
	var b strings.Builder
	b.WriteString(formatProfile(pc.Config))
	fmt.Fprintf(&b, "Current phase: %s\n\n", pc.Phase)
	b.WriteString("Recent exchanges:\n")
	b.WriteString(formatWindow(pc.Window))

	switch action {
	case store.ActionAskFollowup:
		b.WriteString("\nAsk one focused follow-up question on the candidate's latest answer.")
	case store.ActionChangePhase:
		fmt.Fprintf(&b, "\nOpen the %s phase with its first question.", pc.Phase)
	case store.ActionClarify:
		b.WriteString("\nThe candidate seems confused. Briefly clarify your previous question and re-ask it.")
	case store.ActionWrapUp:
		b.WriteString("\nWrap up: thank the candidate and ask if they have any final questions.")
	default:
		b.WriteString("\nAsk the next interview question for the current phase.")
	}
	return b.String()
}

func openingPrompt(cfg store.SessionConfig) string {
	var b strings.Builder
	b.WriteString(formatProfile(cfg))
	b.WriteString("\nGreet the candidate, set expectations for the session, and ask one short warmup question (e.g. a brief self-introduction).")
	return b.String()
}

func moderationPrompt(mc ModerationContext) string {
	var b strings.Builder
	b.WriteString("Recent exchanges:\n")
	b.WriteString(formatWindow(mc.Window))
	fmt.Fprintf(&b, "\nInterviewer's question:\n%s\n", mc.PrecedingQuestion)
	fmt.Fprintf(&b, "\nCandidate's message to classify:\n%s\n", mc.Input)
	return b.String()
}

func feedbackPrompt(pc PlanningContext) string {
	var b strings.Builder
	b.WriteString(formatProfile(pc.Config))
	b.WriteString("\nRecent exchanges:\n")
	b.WriteString(formatWindow(pc.Window))
	fmt.Fprintf(&b, "\nAnswer under review:\n%s\n", pc.UserInput)
	return b.String()
}

func evaluationPrompt(pc PlanningContext) string {
	var b strings.Builder
	b.WriteString(formatProfile(pc.Config))
	fmt.Fprintf(&b, "Questions asked: %d\n", pc.QuestionsAsked)
	fmt.Fprintf(&b, "Elapsed: %.1f minutes\n\n", pc.ElapsedMinutes)
	b.WriteString("Full transcript:\n")
	b.WriteString(formatWindow(pc.Window))
	return b.String()
}
