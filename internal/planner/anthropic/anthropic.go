// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package anthropic

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/parley-dev/parley/internal/planner"
)

// defaultModel is used when no model is configured.
const defaultModel = "claude-sonnet-4-5"

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements planner.Provider using the Anthropic Messages API.
// It is the remote primary in the default failover order.
type Provider struct {
	client anthropicsdk.Client
	model  string
}

// Compile-time interface check.
var _ planner.Provider = (*Provider)(nil)

// New creates a new Anthropic provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: missing api_key in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
		model:  model,
	}, nil
}

func (p *Provider) Name() string { return "anthropic" }

// Probe lists models as a cheap reachability and credential check.
func (p *Provider) Probe(ctx context.Context) error {
	_, err := p.client.Models.List(ctx, anthropicsdk.ModelListParams{})
	if err != nil {
		return fmt.Errorf("anthropic: probe failed: %w", err)
	}
	return nil
}

func (p *Provider) Complete(ctx context.Context, req planner.CompletionRequest) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(p.model),
		MaxTokens: maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
		},
	}

	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{
			{Text: req.System},
		}
	}

	if req.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(float64(req.Temperature))
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: message call: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func (p *Provider) Close() error { return nil }
