// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// RegisterServices sets the interview service and registers REST routes.
func (s *Server) RegisterServices(svc InterviewService) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "create-session",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions",
		Summary:     "Create an interview session",
		Tags:        []string{"sessions"},
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "send-message",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/messages",
		Summary:     "Send a candidate message",
		Tags:        []string{"sessions"},
	}, s.handleSendMessage)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get session details",
		Tags:        []string{"sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-evaluation",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/evaluation",
		Summary:     "Get the final evaluation",
		Tags:        []string{"sessions"},
	}, s.handleGetEvaluation)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions",
		Summary:     "List sessions",
		Tags:        []string{"sessions"},
	}, s.handleListSessions)
}

// --- Request/Response types for huma ---

type createSessionInput struct {
	Body store.SessionConfig
}
type createSessionOutput struct {
	Body struct {
		SessionID string    `json:"session_id" doc:"New session identifier"`
		FirstTurn TurnView  `json:"first_turn" doc:"Opening assistant turn"`
		State     StateView `json:"state"`
	}
}

type sendMessageInput struct {
	ID             string `path:"id"`
	IdempotencyKey string `header:"Idempotency-Key" doc:"Optional retry key; a repeat of the last committed key replays the stored turn"`
	Body           struct {
		Text string `json:"text" minLength:"1" doc:"Candidate message"`
	}
}
type sendMessageOutput struct {
	Body struct {
		Turn       TurnView        `json:"turn" doc:"Assistant turn produced this exchange"`
		State      StateView       `json:"state"`
		Evaluation *EvaluationView `json:"evaluation,omitempty" doc:"Present when this turn completed the session"`
		Replayed   bool            `json:"replayed,omitempty" doc:"True when an idempotent retry was served from the stored record"`
	}
}

type sessionIDInput struct {
	ID string `path:"id"`
}
type getSessionOutput struct {
	Body SessionDetail
}

type getEvaluationOutput struct {
	Body EvaluationView
}

type listSessionsInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"500" doc:"Page size, default 100"`
	Offset int `query:"offset" minimum:"0" doc:"Page offset"`
}
type listSessionsOutput struct {
	Body struct {
		Sessions []SessionSummary `json:"sessions"`
	}
}

// --- Handlers ---

func (s *Server) handleCreateSession(ctx context.Context, input *createSessionInput) (*createSessionOutput, error) {
	sess, err := s.services.CreateSession(ctx, input.Body)
	if err != nil {
		return nil, apiError(err)
	}

	out := &createSessionOutput{}
	out.Body.SessionID = sess.ID
	if last := sess.LastAssistantTurn(); last != nil {
		out.Body.FirstTurn = turnView(*last)
	}
	out.Body.State = stateView(sess)
	return out, nil
}

func (s *Server) handleSendMessage(ctx context.Context, input *sendMessageInput) (*sendMessageOutput, error) {
	result, err := s.services.SendMessage(ctx, input.ID, input.Body.Text, input.IdempotencyKey)
	if err != nil {
		return nil, apiError(err)
	}

	out := &sendMessageOutput{}
	out.Body.Turn = turnView(result.Turn)
	out.Body.State = StateView{
		Phase:          string(result.State.Phase),
		QuestionsAsked: result.State.QuestionsAsked,
		StartTime:      result.State.StartTime,
		LastActivity:   result.State.LastActivity,
		EndTime:        result.State.EndTime,
		Active:         result.State.Active,
	}
	out.Body.Evaluation = evaluationView(result.Evaluation)
	out.Body.Replayed = result.Replayed
	return out, nil
}

func (s *Server) handleGetSession(ctx context.Context, input *sessionIDInput) (*getSessionOutput, error) {
	sess, err := s.services.GetSession(ctx, input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &getSessionOutput{Body: sessionDetail(sess)}, nil
}

func (s *Server) handleGetEvaluation(ctx context.Context, input *sessionIDInput) (*getEvaluationOutput, error) {
	eval, err := s.services.GetEvaluation(ctx, input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &getEvaluationOutput{Body: *evaluationView(eval)}, nil
}

func (s *Server) handleListSessions(ctx context.Context, input *listSessionsInput) (*listSessionsOutput, error) {
	sessions, err := s.services.ListSessions(ctx, store.ListOpts{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, apiError(err)
	}

	out := &listSessionsOutput{}
	out.Body.Sessions = make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out.Body.Sessions = append(out.Body.Sessions, sessionSummary(sess))
	}
	return out, nil
}

// apiError maps a service error to a huma status error using the code
// taxonomy. Internal detail stays in the server log; clients get the
// message and status only.
func apiError(err error) error {
	status := parleyerr.HTTPStatus(err)
	return huma.NewError(status, err.Error())
}
