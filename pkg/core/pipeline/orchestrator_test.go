package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheets/pkg/core/facts"
	"finsheets/pkg/core/ingest"
	"finsheets/pkg/core/reconcile"
	"finsheets/pkg/core/taxonomy"
)

type stubArchive struct {
	issuer    ingest.Issuer
	issuerErr error
	facts     []facts.ConceptFact
	factsErr  error
	refs      []ingest.FilingRef
	refsErr   error
	markup    map[string]string
}

func (s *stubArchive) ResolveIssuer(_ context.Context, _ string) (ingest.Issuer, error) {
	return s.issuer, s.issuerErr
}

func (s *stubArchive) CompanyFacts(_ context.Context, _ string) ([]facts.ConceptFact, error) {
	return s.facts, s.factsErr
}

func (s *stubArchive) FilingIndex(_ context.Context, _ string, _ []string, limit int) ([]ingest.FilingRef, error) {
	if s.refsErr != nil {
		return nil, s.refsErr
	}
	if limit > 0 && limit < len(s.refs) {
		return s.refs[:limit], nil
	}
	return s.refs, nil
}

func (s *stubArchive) FilingMarkup(_ context.Context, ref ingest.FilingRef) (string, error) {
	markup, ok := s.markup[ref.AccessionNumber]
	if !ok {
		return "", fmt.Errorf("document %s unavailable", ref.AccessionNumber)
	}
	return markup, nil
}

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func quarterlyFacts(t *testing.T) []facts.ConceptFact {
	t.Helper()
	mk := func(value float64, start, end string, fp facts.FiscalPeriod) facts.ConceptFact {
		f, err := facts.NewDurationFact("Revenues", facts.UnitUSD, value, date(start), date(end), date(end).Year(), fp, "10-Q", date(end).AddDate(0, 1, 0))
		require.NoError(t, err)
		return f
	}
	return []facts.ConceptFact{
		mk(100e6, "2023-01-01", "2023-03-31", facts.Q1),
		mk(120e6, "2023-04-01", "2023-06-30", facts.Q2),
		mk(110e6, "2023-07-01", "2023-09-30", facts.Q3),
		mk(480e6, "2023-01-01", "2023-12-31", facts.FY),
	}
}

func testOrchestrator(archive Archive) *Orchestrator {
	return NewOrchestrator(archive, Options{
		LookbackYears: 3,
		now:           func() time.Time { return date("2024-06-30") },
	})
}

func TestExtractHappyPath(t *testing.T) {
	archive := &stubArchive{
		issuer: ingest.Issuer{CIK: "0000320193", Name: "Apple Inc.", Ticker: "AAPL"},
		facts:  quarterlyFacts(t),
	}
	result, err := testOrchestrator(archive).Extract(context.Background(), "AAPL", 0, false)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, "Apple Inc.", result.Issuer.Name)
	assert.Equal(t, 2022, result.FromYear)
	assert.Equal(t, 2024, result.ToYear)
	require.Len(t, result.Statements, 3)

	is := result.Statements[taxonomy.IncomeStatement]
	q4 := is.Cell(reconcile.PeriodKey{Year: 2023, Period: facts.Q4}, "revenue")
	assert.InDelta(t, 150, q4.Value, 0.01)
	assert.NotEmpty(t, result.Manifest)
	assert.Empty(t, result.Candidates)
}

func TestExtractPerRequestLookbackOverride(t *testing.T) {
	archive := &stubArchive{
		issuer: ingest.Issuer{CIK: "0000320193", Name: "Apple Inc."},
		facts:  quarterlyFacts(t),
	}
	// Orchestrator default is 3 years; the caller widens this run to 5.
	result, err := testOrchestrator(archive).Extract(context.Background(), "AAPL", 5, false)
	require.NoError(t, err)
	assert.Equal(t, 2020, result.FromYear)
	assert.Equal(t, 2024, result.ToYear)
}

func TestIssuerResolutionFailureIsFetchingStage(t *testing.T) {
	archive := &stubArchive{issuerErr: errors.New("ticker ZZZZ not found")}

	_, err := testOrchestrator(archive).Extract(context.Background(), "ZZZZ", 0, false)
	var failure *ExtractionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, StageFetching, failure.Stage)
	assert.Contains(t, failure.Reason, "ZZZZ")
}

func TestZeroFactsAbortsAtResolving(t *testing.T) {
	archive := &stubArchive{issuer: ingest.Issuer{CIK: "0000000001", Name: "Shell Co"}}

	_, err := testOrchestrator(archive).Extract(context.Background(), "1", 0, false)
	var failure *ExtractionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, StageResolving, failure.Stage)
	assert.Contains(t, failure.Reason, "no facts")
}

func TestSegmentScanProducesCandidates(t *testing.T) {
	const segmentDoc = `
<table>
  <tr><th>Segment</th><th>2021</th><th>2022</th><th>2023</th></tr>
  <tr><td>Cloud</td><td>1,200</td><td>1,450</td><td>1,800</td></tr>
  <tr><td>Devices</td><td>900</td><td>850</td><td>820</td></tr>
</table>`
	archive := &stubArchive{
		issuer: ingest.Issuer{CIK: "0000320193", Name: "Apple Inc."},
		facts:  quarterlyFacts(t),
		refs: []ingest.FilingRef{
			{CIK: "0000320193", AccessionNumber: "acc-1", PrimaryDocument: "a.htm", Form: "10-K"},
			{CIK: "0000320193", AccessionNumber: "acc-2", PrimaryDocument: "b.htm", Form: "10-Q"},
		},
		// acc-2 has no document; the fetch failure is skipped, not fatal.
		markup: map[string]string{"acc-1": segmentDoc},
	}

	result, err := testOrchestrator(archive).Extract(context.Background(), "AAPL", 0, true)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "acc-1", result.Candidates[0].SourceFilingID)
	assert.GreaterOrEqual(t, result.Candidates[0].Confidence, 0.5)
}

func TestFilingIndexFailureIsClassifyingStage(t *testing.T) {
	archive := &stubArchive{
		issuer:  ingest.Issuer{CIK: "0000320193", Name: "Apple Inc."},
		facts:   quarterlyFacts(t),
		refsErr: errors.New("archive unavailable"),
	}

	_, err := testOrchestrator(archive).Extract(context.Background(), "AAPL", 0, true)
	var failure *ExtractionFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, StageClassifying, failure.Stage)
}
