package agent

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/atelier-dev/atelier/pkg/workspace"
)

// DefaultModel is the generation model used when the config names none.
const DefaultModel = "gemini-2.5-flash"

// Responder is the external text-generation call that stands in for an agent.
// A single blocking RPC with no internal retry: callers own timeouts (via ctx)
// and failure handling.
type Responder interface {
	Query(ctx context.Context, role workspace.AgentRole, query, contextText string) (string, error)
}

// GeminiResponder queries Google's Gemini API, dressing each request in the
// system prompt for the requested specialist role.
type GeminiResponder struct {
	client *genai.Client
	model  string
}

// NewGeminiResponder creates a responder backed by the Gemini API.
// The API key must be set; a missing key is a constructor error rather than
// a per-query surprise.
func NewGeminiResponder(ctx context.Context, apiKey, model string) (*GeminiResponder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if model == "" {
		model = DefaultModel
	}

	return &GeminiResponder{
		client: client,
		model:  model,
	}, nil
}

// Query sends the role's system prompt plus the (optional) context and the
// query to the model and returns the generated text. Errors from the API,
// including context deadline expiry, are returned unwrapped in meaning:
// the caller marks the task failed.
func (g *GeminiResponder) Query(ctx context.Context, role workspace.AgentRole, query, contextText string) (string, error) {
	if err := role.Validate(); err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(BuildPrompt(query, contextText), genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt(role), genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to get response from %s agent: %w", role, err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from %s agent", role)
	}

	return text, nil
}

// BuildPrompt combines free-form context and the user query into the prompt
// body sent to the model. Context, when present, leads.
func BuildPrompt(query, contextText string) string {
	if contextText == "" {
		return query
	}
	return fmt.Sprintf("Context: %s\n\nUser Query: %s", contextText, query)
}
