package classifier

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for classification.
const DefaultModelName = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Message is one turn of a conversation sent to the model.
type Message struct {
	// Role is "user" or "model".
	Role string
	Text string
}

// Request is a single call to the natural-language classifier.
type Request struct {
	// System is an optional system instruction.
	System   string
	Messages []Message
	// JSON asks the model to answer with application/json.
	JSON bool
}

// Prompt builds a single-turn JSON request.
func Prompt(text string) Request {
	return Request{
		Messages: []Message{{Role: "user", Text: text}},
		JSON:     true,
	}
}

// Generator is the external natural-language classifier. It returns the
// model's raw text; interpreting it is the Adapter's job.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeminiGenerator is the concrete Generator backed by the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini client for the given API key and model.
// An empty model selects DefaultModelName.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewGeminiGenerator: api key is required")
	}
	if model == "" {
		model = DefaultModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: create genai client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate sends the request to Gemini and returns the response text.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("Generate: no messages")
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Generate: %w", ErrEmptyResponse)
	}
	return text, nil
}

// Ensure GeminiGenerator implements Generator.
var _ Generator = (*GeminiGenerator)(nil)
