package rank

import (
	"context"
	"fmt"
	"math"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/llm"
)

// EmbeddingRanker scores papers by cosine similarity between the query
// embedding and each paper's title+abstract embedding. Cosine similarity
// is mapped from [-1,1] into [0,1].
type EmbeddingRanker struct {
	client *llm.Client
}

var _ Ranker = (*EmbeddingRanker)(nil)

// NewEmbeddingRanker creates a new embedding-similarity ranker.
func NewEmbeddingRanker(client *llm.Client) *EmbeddingRanker {
	return &EmbeddingRanker{client: client}
}

// Name identifies the strategy.
func (r *EmbeddingRanker) Name() string { return "embedding" }

// Rank embeds the query and all papers in one call each and scores by
// cosine similarity.
func (r *EmbeddingRanker) Rank(ctx context.Context, papers []*domain.Paper, req Request) ([]*domain.Paper, error) {
	if len(papers) == 0 {
		return papers, nil
	}

	queryText := req.Query
	if req.SemanticContext != "" {
		queryText += "\n" + req.SemanticContext
	}

	texts := make([]string, 0, len(papers)+1)
	texts = append(texts, queryText)
	for _, p := range papers {
		text := p.Title
		if p.Abstract != "" {
			abstract := p.Abstract
			if len(abstract) > 1000 {
				abstract = abstract[:1000]
			}
			text += "\n" + abstract
		}
		texts = append(texts, text)
	}

	vectors, err := r.client.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding ranking: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding ranking: got %d vectors for %d texts", len(vectors), len(texts))
	}

	queryVec := vectors[0]
	for i, p := range papers {
		p.RelevanceScore = (cosine(queryVec, vectors[i+1]) + 1) / 2
	}

	sortByScore(papers)
	return papers, nil
}

// cosine computes cosine similarity between two vectors, 0 when either
// has zero magnitude or lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
