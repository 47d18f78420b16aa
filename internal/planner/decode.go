// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package planner

import (
	"encoding/json"
	"strings"

	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// maxRawContext caps how much of a malformed payload is preserved in
// error fields and the decision log.
const maxRawContext = 240

// TruncateRaw shortens a raw provider payload for logging.
func TruncateRaw(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxRawContext {
		return s
	}
	return s[:maxRawContext] + "…"
}

// extractJSON returns the first balanced top-level JSON object in s.
// Models frequently wrap their JSON in prose or code fences; anything
// outside the outermost braces is discarded.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeInto extracts and unmarshals the JSON object in raw into dest.
func decodeInto(raw string, dest any) error {
	payload, ok := extractJSON(raw)
	if !ok {
		return parleyerr.New(
			parleyerr.CodePlannerResponseInvalid,
			"no JSON object in provider response",
			parleyerr.Field("raw", TruncateRaw(raw)),
		)
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return parleyerr.Wrap(err, parleyerr.CodePlannerResponseInvalid,
			"unmarshalling provider response",
			parleyerr.Field("raw", TruncateRaw(raw)),
		)
	}
	return nil
}

// decodeDecision parses and validates a proposed decision payload.
func decodeDecision(raw string) (Decision, error) {
	var d Decision
	if err := decodeInto(raw, &d); err != nil {
		return Decision{Raw: TruncateRaw(raw)}, err
	}

	d.Action = store.Action(strings.ToUpper(strings.TrimSpace(string(d.Action))))
	d.Raw = TruncateRaw(raw)

	if !KnownAction(d.Action) {
		return Decision{Raw: d.Raw}, parleyerr.New(
			parleyerr.CodePlannerResponseInvalid,
			"unknown action in provider response: "+string(d.Action),
			parleyerr.Field("raw", d.Raw),
		)
	}
	return d, nil
}

// decodeVerdict parses and validates a moderation payload. The two
// classification booleans are required: without them a bare `{}` would
// decode to an all-false verdict and read as off-topic.
func decodeVerdict(raw string) (Verdict, error) {
	var aux struct {
		Appropriate *bool  `json:"is_appropriate"`
		OnTopic     *bool  `json:"is_on_topic"`
		Profanity   bool   `json:"contains_profanity"`
		Severity    string `json:"severity"`
		Reason      string `json:"reason"`
	}
	if err := decodeInto(raw, &aux); err != nil {
		return Verdict{}, err
	}

	if aux.Appropriate == nil || aux.OnTopic == nil {
		return Verdict{}, parleyerr.New(
			parleyerr.CodePlannerResponseInvalid,
			"moderation response missing is_appropriate or is_on_topic",
			parleyerr.Field("raw", TruncateRaw(raw)),
		)
	}

	sev := Severity(strings.ToLower(strings.TrimSpace(aux.Severity)))
	switch sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
	case "":
		sev = SeverityLow
	default:
		return Verdict{}, parleyerr.New(
			parleyerr.CodePlannerResponseInvalid,
			"unknown severity in moderation response: "+string(sev),
			parleyerr.Field("raw", TruncateRaw(raw)),
		)
	}

	return Verdict{
		Appropriate: *aux.Appropriate,
		OnTopic:     *aux.OnTopic,
		Profanity:   aux.Profanity,
		Severity:    sev,
		Reason:      aux.Reason,
	}, nil
}

// decodeFeedback parses and validates a practice-feedback payload.
func decodeFeedback(raw string) (Feedback, error) {
	var f Feedback
	if err := decodeInto(raw, &f); err != nil {
		return Feedback{}, err
	}

	if f.Score < 0 || f.Score > 10 {
		return Feedback{}, parleyerr.Errorf(
			parleyerr.CodePlannerResponseInvalid,
			"feedback score %d outside 0-10", f.Score,
		)
	}
	if f.Critique == "" {
		return Feedback{}, parleyerr.New(parleyerr.CodePlannerResponseInvalid, "feedback critique is empty")
	}
	return f, nil
}

// decodeEvaluation parses and validates an end-of-session evaluation payload.
func decodeEvaluation(raw string) (*store.Evaluation, error) {
	var e store.Evaluation
	if err := decodeInto(raw, &e); err != nil {
		return nil, err
	}

	if e.OverallScore < 0 || e.OverallScore > 10 {
		return nil, parleyerr.Errorf(
			parleyerr.CodePlannerResponseInvalid,
			"evaluation score %d outside 0-10", e.OverallScore,
		)
	}
	if e.Summary == "" {
		return nil, parleyerr.New(parleyerr.CodePlannerResponseInvalid, "evaluation summary is empty")
	}
	return &e, nil
}
