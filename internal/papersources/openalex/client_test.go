package openalex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/papersources"
)

func newTestClient(serverURL string) *Client {
	return New(Config{
		BaseURL:   serverURL,
		RateLimit: 100,
		BurstSize: 100,
		Enabled:   true,
	})
}

func TestSearch_ConvertsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works", r.URL.Path)
		assert.Equal(t, "protein folding", r.URL.Query().Get("search"))

		w.Write([]byte(`{
			"meta": {"count": 1},
			"results": [{
				"id": "https://openalex.org/W123",
				"doi": "https://doi.org/10.1000/fold.1",
				"title": "Predicting Protein Structures",
				"publication_year": 2021,
				"cited_by_count": 9000,
				"abstract_inverted_index": {"Protein": [0], "folding": [1], "solved.": [2]},
				"authorships": [{"author": {"display_name": "John Jumper"}}],
				"primary_location": {
					"landing_page_url": "https://nature.com/articles/fold1",
					"source": {"display_name": "Nature"}
				},
				"best_oa_location": {"pdf_url": "https://nature.com/articles/fold1.pdf", "is_oa": true},
				"open_access": {"is_oa": true, "oa_status": "hybrid", "oa_url": "https://nature.com/articles/fold1.pdf"}
			}]
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	result, err := client.Search(context.Background(), papersources.SearchParams{Query: "protein folding"})
	require.NoError(t, err)
	require.Len(t, result.Papers, 1)

	paper := result.Papers[0]
	assert.Equal(t, "Predicting Protein Structures", paper.Title)
	assert.Equal(t, "Protein folding solved.", paper.Abstract)
	assert.Equal(t, "10.1000/fold.1", paper.DOI, "doi.org prefix is stripped")
	assert.Equal(t, []string{"John Jumper"}, paper.Authors)
	assert.Equal(t, "https://nature.com/articles/fold1.pdf", paper.PDFURL)
	assert.Equal(t, "Nature", paper.Journal)
	assert.True(t, paper.IsOpenAccess)
	assert.Equal(t, domain.SourceOpenAlex, paper.Source)
}

func TestSearch_FiltersAndPaging(t *testing.T) {
	var gotFilter, gotPerPage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("filter")
		gotPerPage = r.URL.Query().Get("per-page")
		w.Write([]byte(`{"meta": {"count": 0}, "results": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Search(context.Background(), papersources.SearchParams{
		Query:          "q",
		MaxResults:     10,
		YearFrom:       2015,
		OpenAccessOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "from_publication_date:2015-01-01,is_oa:true", gotFilter)
	assert.Equal(t, "10", gotPerPage)
}

func TestReconstructAbstract(t *testing.T) {
	tests := []struct {
		name  string
		index map[string][]int
		want  string
	}{
		{
			name: "ordinary index",
			index: map[string][]int{
				"Deep":     {0},
				"learning": {1},
				"for":      {2},
				"vision":   {3},
			},
			want: "Deep learning for vision",
		},
		{
			name: "repeated token",
			index: map[string][]int{
				"the":   {0, 2},
				"more":  {1},
				"merrier": {3},
			},
			want: "the more the merrier",
		},
		{
			name:  "empty index",
			index: nil,
			want:  "",
		},
		{
			name: "sparse positions are compacted",
			index: map[string][]int{
				"gap": {0},
				"end": {5},
			},
			want: "gap end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reconstructAbstract(tt.index))
		})
	}
}
