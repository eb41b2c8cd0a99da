package rank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/llm"
)

// maxAbstractChars bounds how much abstract text goes into the prompt.
const maxAbstractChars = 400

// LLMRanker asks a chat model to re-score papers against the query in a
// single batched prompt. Papers the model omits keep a lexical fallback
// score rather than being dropped.
type LLMRanker struct {
	client  *llm.Client
	lexical *LexicalRanker
}

var _ Ranker = (*LLMRanker)(nil)

// NewLLMRanker creates a new LLM-assisted ranker.
func NewLLMRanker(client *llm.Client) *LLMRanker {
	return &LLMRanker{
		client:  client,
		lexical: NewLexicalRanker(),
	}
}

// Name identifies the strategy.
func (r *LLMRanker) Name() string { return "llm" }

const rankSystemPrompt = `You are a research librarian scoring academic papers for relevance to a query.
Respond with a JSON object of the form {"scores": [{"id": <int>, "score": <float 0..1>}, ...]}.
Score 1.0 means the paper directly addresses the query; 0.0 means unrelated.`

// scoreResponse is the expected model output shape.
type scoreResponse struct {
	Scores []struct {
		ID    int     `json:"id"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

// Rank sends one batched prompt and applies returned scores.
func (r *LLMRanker) Rank(ctx context.Context, papers []*domain.Paper, req Request) ([]*domain.Paper, error) {
	if len(papers) == 0 {
		return papers, nil
	}

	// Seed every paper with a lexical score so model omissions and
	// partial responses still leave a usable ordering.
	if _, err := r.lexical.Rank(ctx, papers, req); err != nil {
		return nil, err
	}

	content, err := r.client.CompleteJSON(ctx, rankSystemPrompt, r.buildUserPrompt(papers, req))
	if err != nil {
		return nil, fmt.Errorf("llm ranking: %w", err)
	}

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("llm ranking: parsing scores: %w", err)
	}

	for _, s := range parsed.Scores {
		if s.ID < 0 || s.ID >= len(papers) {
			continue
		}
		papers[s.ID].RelevanceScore = clamp01(s.Score)
	}

	sortByScore(papers)
	return papers, nil
}

// buildUserPrompt lists the papers with stable numeric ids.
func (r *LLMRanker) buildUserPrompt(papers []*domain.Paper, req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", req.Query)
	if req.SemanticContext != "" {
		fmt.Fprintf(&b, "Context: %s\n", req.SemanticContext)
	}
	if len(req.CoreTerms) > 0 {
		fmt.Fprintf(&b, "Core terms: %s\n", strings.Join(req.CoreTerms, ", "))
	}
	b.WriteString("\nPapers:\n")

	for i, p := range papers {
		abstract := p.Abstract
		if len(abstract) > maxAbstractChars {
			abstract = abstract[:maxAbstractChars] + "..."
		}
		fmt.Fprintf(&b, "[%d] %s (%d). %s\n", i, p.Title, p.Year, abstract)
	}
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
