// Package ai turns free-text search queries into structured item filters
// using a language model.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/reclaim-app/reclaim/internal/model"
)

// LLM is the single completion call the interpreter needs. Tests provide a
// canned implementation.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Filters is the structured reading of a natural-language query.
type Filters struct {
	Type     string   `json:"type,omitempty"`
	Category string   `json:"category,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Location string   `json:"location,omitempty"`
}

// Anthropic implements LLM via the Anthropic Messages API.
type Anthropic struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropic builds the production LLM. baseURL overrides the API endpoint
// when non-empty, which tests use to point at a local server.
func NewAnthropic(apiKey, modelName, baseURL string) *Anthropic {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &Anthropic{
		client: anthropic.NewClient(apiKey, opts...),
		model:  anthropic.Model(modelName),
	}
}

func (a *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     a.model,
		MaxTokens: 512,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}
	return resp.GetFirstContentText(), nil
}

// Interpreter extracts search filters from queries.
type Interpreter struct {
	llm LLM
}

func NewInterpreter(llm LLM) *Interpreter {
	return &Interpreter{llm: llm}
}

const promptTemplate = `You convert a lost-and-found search query into a JSON filter.
Respond with ONLY a JSON object, no prose, with these optional fields:
  "type": "lost" or "found" if the query implies one
  "category": one of %s
  "keywords": up to 5 distinguishing words from the query
  "location": a place name if the query mentions one

Query: %q`

// Interpret asks the model for filters and validates what comes back. Values
// the model invents outside the known enums are dropped rather than failing
// the whole query.
func (in *Interpreter) Interpret(ctx context.Context, query string) (*Filters, error) {
	prompt := fmt.Sprintf(promptTemplate, strings.Join(model.Categories, ", "), query)

	raw, err := in.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var filters Filters
	if err := json.Unmarshal(extractJSON(raw), &filters); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}

	if filters.Type != "" && !model.ValidItemType(filters.Type) {
		filters.Type = ""
	}
	if filters.Category != "" && !model.ValidCategory(filters.Category) {
		filters.Category = ""
	}
	if len(filters.Keywords) > 5 {
		filters.Keywords = filters.Keywords[:5]
	}

	return &filters, nil
}

// extractJSON tolerates markdown fences and surrounding prose by slicing from
// the first '{' to the last '}'.
func extractJSON(s string) []byte {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return []byte(s)
	}
	return []byte(s[start : end+1])
}
