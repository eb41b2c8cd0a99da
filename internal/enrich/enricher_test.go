package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litscout/discovery-engine/internal/domain"
	"github.com/litscout/discovery-engine/internal/unpaywall"
)

type fakeMetadataClient struct {
	records map[string]*domain.Paper
	gotDOIs []string
	err     error
}

func (f *fakeMetadataClient) GetBatch(_ context.Context, dois []string) (map[string]*domain.Paper, error) {
	f.gotDOIs = append(f.gotDOIs, dois...)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]*domain.Paper)
	for _, doi := range dois {
		if r, ok := f.records[doi]; ok {
			out[doi] = r
		}
	}
	return out, nil
}

func TestCrossrefEnricher_FillsGapsOnly(t *testing.T) {
	client := &fakeMetadataClient{records: map[string]*domain.Paper{
		"10.1/sparse": {
			DOI:           "10.1/sparse",
			Journal:       "Nature Methods",
			CitationCount: 77,
			Year:          2019,
			Abstract:      "Backfilled abstract.",
		},
	}}

	sparse := &domain.Paper{DOI: "10.1/sparse", Title: "Sparse", Journal: ""}
	complete := &domain.Paper{DOI: "10.2/full", Title: "Full", Journal: "Cell", CitationCount: 5, Year: 2020, Abstract: "Has one."}
	noDOI := &domain.Paper{Title: "No DOI"}

	err := NewCrossrefEnricher(client).Enrich(context.Background(), []*domain.Paper{sparse, complete, noDOI})
	require.NoError(t, err)

	assert.Equal(t, "Nature Methods", sparse.Journal)
	assert.Equal(t, 77, sparse.CitationCount)
	assert.Equal(t, 2019, sparse.Year)
	assert.Equal(t, "Backfilled abstract.", sparse.Abstract)

	assert.NotContains(t, client.gotDOIs, "10.2/full", "complete papers are not looked up")
	assert.Equal(t, "Cell", complete.Journal)
}

func TestCrossrefEnricher_NeverOverwrites(t *testing.T) {
	client := &fakeMetadataClient{records: map[string]*domain.Paper{
		"10.1/x": {DOI: "10.1/x", Journal: "Wrong Journal", Year: 1999, Abstract: "other"},
	}}

	p := &domain.Paper{DOI: "10.1/x", Title: "T", Journal: "Right Journal", Abstract: ""}
	err := NewCrossrefEnricher(client).Enrich(context.Background(), []*domain.Paper{p})
	require.NoError(t, err)

	assert.Equal(t, "Right Journal", p.Journal, "existing fields are kept")
	assert.Equal(t, 1999, p.Year, "missing fields are filled")
	assert.Equal(t, "other", p.Abstract)
}

type fakeOALookup struct {
	locations map[string]*unpaywall.Location
	errs      map[string]error
	enabled   bool
	calls     int
}

func (f *fakeOALookup) Enabled() bool { return f.enabled }

func (f *fakeOALookup) Lookup(_ context.Context, doi string) (*unpaywall.Location, error) {
	f.calls++
	norm := domain.NormalizeDOI(doi)
	if err, ok := f.errs[norm]; ok {
		return nil, err
	}
	return f.locations[norm], nil
}

func TestUnpaywallEnricher_FillsPDF(t *testing.T) {
	lookup := &fakeOALookup{
		enabled: true,
		locations: map[string]*unpaywall.Location{
			"10.1/a": {PDFURL: "https://repo/a.pdf", IsOpenAccess: true},
		},
	}

	missing := &domain.Paper{DOI: "10.1/a", Title: "A"}
	hasPDF := &domain.Paper{DOI: "10.2/b", Title: "B", PDFURL: "https://x/b.pdf"}

	err := NewUnpaywallEnricher(lookup).Enrich(context.Background(), []*domain.Paper{missing, hasPDF})
	require.NoError(t, err)

	assert.Equal(t, "https://repo/a.pdf", missing.PDFURL)
	assert.True(t, missing.IsOpenAccess)
	assert.Equal(t, 1, lookup.calls, "papers with a PDF are not looked up")
}

func TestUnpaywallEnricher_IndividualFailureDoesNotStopBatch(t *testing.T) {
	lookup := &fakeOALookup{
		enabled: true,
		errs:    map[string]error{"10.1/bad": errors.New("boom")},
		locations: map[string]*unpaywall.Location{
			"10.2/good": {PDFURL: "https://repo/good.pdf", IsOpenAccess: true},
		},
	}

	bad := &domain.Paper{DOI: "10.1/bad", Title: "Bad"}
	good := &domain.Paper{DOI: "10.2/good", Title: "Good"}

	err := NewUnpaywallEnricher(lookup).Enrich(context.Background(), []*domain.Paper{bad, good})
	assert.Error(t, err, "the last error is reported for logging")
	assert.Equal(t, "https://repo/good.pdf", good.PDFURL, "later papers still enriched")
}

func TestUnpaywallEnricher_DisabledIsNoop(t *testing.T) {
	lookup := &fakeOALookup{enabled: false}
	p := &domain.Paper{DOI: "10.1/a", Title: "A"}

	err := NewUnpaywallEnricher(lookup).Enrich(context.Background(), []*domain.Paper{p})
	require.NoError(t, err)
	assert.Zero(t, lookup.calls)
}

func TestRunAll_SwallowsFailures(t *testing.T) {
	failing := &failingEnricher{}
	papers := []*domain.Paper{{Title: "T"}}

	// Must not panic or propagate.
	RunAll(context.Background(), zerolog.Nop(), []Enricher{failing}, papers)
	assert.True(t, failing.called)
}

type failingEnricher struct{ called bool }

func (f *failingEnricher) Enrich(context.Context, []*domain.Paper) error {
	f.called = true
	return errors.New("always fails")
}

func (f *failingEnricher) Name() string { return "failing" }
