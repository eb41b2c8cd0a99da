package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/litscout/discovery-engine/internal/llm"
)

// QueryUnderstander rewrites or expands a query into alternate search-term
// phrasings. It runs concurrently with the main fan-out; the fan-out always
// uses the original query, so a slow or failing understander only costs the
// supplementary phase.
type QueryUnderstander interface {
	Understand(ctx context.Context, query string) ([]string, error)
}

const understandSystemPrompt = `You are a research librarian rewriting search queries for academic paper indices.
Given a query, produce up to 3 alternate phrasings that use different but equivalent
terminology (synonyms, field-specific vocabulary, spelled-out abbreviations).
Respond with JSON only: {"phrasings": ["...", "..."]}. Do not include the original query.`

// LLMUnderstander generates alternate phrasings with a chat completion.
type LLMUnderstander struct {
	client       *llm.Client
	maxPhrasings int
}

// NewLLMUnderstander creates an understander backed by the given client.
func NewLLMUnderstander(client *llm.Client) *LLMUnderstander {
	return &LLMUnderstander{client: client, maxPhrasings: 3}
}

// Understand asks the model for alternate phrasings of the query.
func (u *LLMUnderstander) Understand(ctx context.Context, query string) ([]string, error) {
	content, err := u.client.CompleteJSON(ctx, understandSystemPrompt, fmt.Sprintf("Query: %s", query))
	if err != nil {
		return nil, fmt.Errorf("understanding query: %w", err)
	}

	var parsed struct {
		Phrasings []string `json:"phrasings"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parsing phrasings response: %w", err)
	}

	var phrasings []string
	for _, p := range parsed.Phrasings {
		if p == "" || p == query {
			continue
		}
		phrasings = append(phrasings, p)
		if len(phrasings) >= u.maxPhrasings {
			break
		}
	}
	return phrasings, nil
}
