package curation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stackspy/stackspy/internal/types"
)

// Extraction is a simple task: the model reads page text and fills in a
// small JSON schema. The cost-efficient model is enough; STACKSPY_MODEL
// overrides it for experiments.
const (
	// ModelDefault is the cost-efficient model used for field extraction
	ModelDefault = "claude-3-5-haiku-20241022"

	// maxPageBytes caps how much page text is sent per extraction
	maxPageBytes = 48 * 1024
)

// extractionModel returns the extraction model, checking STACKSPY_MODEL first
func extractionModel() string {
	if model := os.Getenv("STACKSPY_MODEL"); model != "" {
		return model
	}
	return ModelDefault
}

// Extractor pulls structured snapshot fields out of scraped page text
// using the Anthropic API.
type Extractor struct {
	client  *anthropic.Client
	model   string
	timeout time.Duration
}

// NewExtractor creates an extractor. Requires ANTHROPIC_API_KEY.
func NewExtractor() (*Extractor, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Extractor{
		client:  &client,
		model:   extractionModel(),
		timeout: 60 * time.Second,
	}, nil
}

// Extract asks the model for the tool's current version, price, and
// feature list based on the given page text.
func (e *Extractor) Extract(ctx context.Context, toolName, pageText string) (*types.Snapshot, error) {
	if len(pageText) > maxPageBytes {
		pageText = pageText[:maxPageBytes]
	}

	prompt := fmt.Sprintf(`You are extracting product facts about the software tool %q from its web page.

Respond with ONLY a JSON object in this exact shape (omit fields you cannot determine):
{"version": "...", "price": "...", "features": ["...", "..."], "description": "one sentence"}

Page text:
%s`, toolName, pageText)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction API call failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	snapshot, err := parseSnapshot(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	return snapshot, nil
}

// parseSnapshot parses the model's JSON response, tolerating code fences
// around the object.
func parseSnapshot(text string) (*types.Snapshot, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var snapshot types.Snapshot
	if err := json.Unmarshal([]byte(text), &snapshot); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &snapshot, nil
}
