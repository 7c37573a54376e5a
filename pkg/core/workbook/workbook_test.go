package workbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsheets/pkg/core/assemble"
	"finsheets/pkg/core/facts"
	"finsheets/pkg/core/ingest"
	"finsheets/pkg/core/pipeline"
	"finsheets/pkg/core/segments"
	"finsheets/pkg/core/taxonomy"
)

func testResult(t *testing.T) *pipeline.Result {
	t.Helper()
	date := func(s string) time.Time {
		ts, _ := time.Parse("2006-01-02", s)
		return ts
	}
	s := facts.NewStore()
	mk := func(value float64, start, end string, fp facts.FiscalPeriod) {
		f, err := facts.NewDurationFact("Revenues", facts.UnitUSD, value, date(start), date(end), date(end).Year(), fp, "10-Q", date(end).AddDate(0, 1, 0))
		require.NoError(t, err)
		s.Add(f)
	}
	mk(100e6, "2023-01-01", "2023-03-31", facts.Q1)
	mk(120e6, "2023-04-01", "2023-06-30", facts.Q2)
	mk(110e6, "2023-07-01", "2023-09-30", facts.Q3)
	mk(480e6, "2023-01-01", "2023-12-31", facts.FY)

	statements := make(map[taxonomy.Statement]*assemble.StatementTable)
	assembler := assemble.New(s, 2023, 2023)
	for _, st := range taxonomy.Statements() {
		table, err := assembler.Assemble(st)
		require.NoError(t, err)
		statements[st] = table
	}

	return &pipeline.Result{
		RequestID:  "req-1",
		Issuer:     ingest.Issuer{CIK: "0000320193", Name: "Apple Inc."},
		FromYear:   2023,
		ToYear:     2023,
		Statements: statements,
		Candidates: []segments.CandidateTable{
			{
				SourceFilingID: "0000320193-23-000106",
				HeaderLabels:   []string{"Segment", "2022", "2023"},
				RowLabels:      []string{"Cloud", "Devices"},
				Matrix:         [][]string{{"Cloud", "1200", "1450"}, {"Devices", "900", "850"}},
				Confidence:     0.87,
			},
		},
	}
}

func TestBuildEmitsStatementAndCandidateSheets(t *testing.T) {
	f, err := NewWriter().Build(testResult(t))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Annual — Income Stmt")
	assert.Contains(t, sheets, "Quarterly — Income Stmt")
	assert.Contains(t, sheets, "Seg-KPI 1 0000320193-23-000106")
	assert.NotContains(t, sheets, "Sheet1")

	// Balance sheet and cash flow have no facts; no sheets for them.
	assert.NotContains(t, sheets, "Annual — Balance Sheet")
	assert.NotContains(t, sheets, "Annual — Cash Flow")
}

func TestStatementSheetValuesAndGaps(t *testing.T) {
	f, err := NewWriter().Build(testResult(t))
	require.NoError(t, err)
	defer f.Close()

	// Quarterly tab, newest first: B2 = Q4 2023 and its revenue is the
	// derived 150.
	header, err := f.GetCellValue("Quarterly — Income Stmt", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Q4 2023", header)

	label, err := f.GetCellValue("Quarterly — Income Stmt", "A3")
	require.NoError(t, err)
	assert.Equal(t, "Revenue", label)

	value, err := f.GetCellValue("Quarterly — Income Stmt", "B3")
	require.NoError(t, err)
	assert.Equal(t, "150.00", value)

	// Cost of revenue was never reported; its cells render as dashes.
	gap, err := f.GetCellValue("Quarterly — Income Stmt", "B4")
	require.NoError(t, err)
	assert.Equal(t, "—", gap)
}

func TestCandidateSheetCarriesConfidence(t *testing.T) {
	f, err := NewWriter().Build(testResult(t))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Seg-KPI 1 0000320193-23-000106", "A1")
	require.NoError(t, err)
	assert.Contains(t, title, "confidence 0.87")

	cell, err := f.GetCellValue("Seg-KPI 1 0000320193-23-000106", "B3")
	require.NoError(t, err)
	assert.Equal(t, "1200", cell)
}
