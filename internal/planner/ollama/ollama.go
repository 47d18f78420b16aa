// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package ollama adapts a local Ollama daemon as a planner provider via
// its OpenAI-compatible chat completion endpoint.
package ollama

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/parley-dev/parley/internal/planner"
)

const (
	// defaultEndpoint is the Ollama daemon's OpenAI-compatible base URL.
	defaultEndpoint = "http://127.0.0.1:11434/v1"
	defaultModel    = "llama3.1"
)

// Config holds local provider configuration.
type Config struct {
	Endpoint string
	Model    string
}

// Provider implements planner.Provider against a local Ollama daemon.
// It is the secondary in the default failover order, used when the
// remote primary is unreachable at startup.
type Provider struct {
	client openaisdk.Client
	model  string
}

// Compile-time interface check.
var _ planner.Provider = (*Provider)(nil)

// New creates a new Ollama provider.
func New(cfg Config) *Provider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	// Ollama ignores the API key but the SDK requires one to be set.
	client := openaisdk.NewClient(
		option.WithBaseURL(endpoint),
		option.WithAPIKey("ollama"),
	)

	return &Provider{client: client, model: model}
}

func (p *Provider) Name() string { return "ollama" }

// Probe lists models to confirm the daemon is up and the model catalog
// is readable.
func (p *Provider) Probe(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("ollama: probe failed: %w", err)
	}
	return nil
}

func (p *Provider) Complete(ctx context.Context, req planner.CompletionRequest) (string, error) {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openaisdk.SystemMessage(req.System))
	}
	messages = append(messages, openaisdk.UserMessage(req.Prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(p.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openaisdk.Float(float64(req.Temperature))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("ollama: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Close() error { return nil }
