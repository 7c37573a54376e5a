// Package segments pulls candidate segment/geography/KPI tables out of raw
// filing markup. Everything here is best-effort heuristics: candidates carry
// a confidence score for downstream review instead of a pass/fail verdict,
// and "no tables found" is a normal zero-candidate outcome, not an error.
package segments

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"finsheets/pkg/core/assemble"
)

// CandidateTable is one scored table lifted from filing markup. Not
// guaranteed correct; Confidence must be surfaced to the consumer.
type CandidateTable struct {
	SourceFilingID string     `json:"source_filing_id"`
	HeaderLabels   []string   `json:"header_labels"`
	RowLabels      []string   `json:"row_labels"`
	Matrix         [][]string `json:"matrix"`
	Confidence     float64    `json:"confidence_score"`
	PeriodHint     string     `json:"period_hint,omitempty"`
}

// MarkupParseError marks one filing whose markup could not be parsed. Fatal
// for that document's candidates only; the classifier moves on.
type MarkupParseError struct {
	FilingID string
	Err      error
}

func (e *MarkupParseError) Error() string {
	return fmt.Sprintf("unparseable markup in filing %s: %v", e.FilingID, e.Err)
}

func (e *MarkupParseError) Unwrap() error { return e.Err }

// Boilerplate that dominates filings but never holds segment data: covers,
// auditor blocks, certifications, XBRL scaffolding, legal exhibits.
var junkPattern = regexp.MustCompile(`(?i)` +
	`table of contents|exhibit index|incorporated herein by reference|` +
	`certification of chief|pursuant to rule 13a|pursuant to section 906|` +
	`instance document|taxonomy extension|inline xbrl|` +
	`ernst.*young|deloitte|kpmg|pricewaterhousecoopers|/s/ |` +
	`trading arrangement|rule 10b5|shares to be sold|expiration date|` +
	`accounting standard|fasb issued|asc 842|adoption method|` +
	`bylaws|certificate of incorporation|indenture.*trustee`)

var (
	yearToken    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	quarterToken = regexp.MustCompile(`(?i)\b(q[1-4]|(first|second|third|fourth)\s+quarter)\b`)
	monthToken   = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`)
)

const (
	headerWeight  = 0.4
	numericWeight = 0.4
	labelWeight   = 0.2

	// Fraction of label and value overlap at which a candidate is treated as
	// a re-rendering of an already-assembled statement.
	duplicateOverlap = 0.6
)

// Classifier scores markup tables against the structured statements already
// assembled for the issuer, so it can suppress duplicates of them.
type Classifier struct {
	threshold  float64
	statements []*assemble.StatementTable
}

// NewClassifier configures the score cutoff; candidates below it are
// discarded. The statements, when given, feed duplicate suppression.
func NewClassifier(threshold float64, statements ...*assemble.StatementTable) *Classifier {
	return &Classifier{threshold: threshold, statements: statements}
}

// Classify extracts scored candidates from one filing's markup. A parse
// failure returns a MarkupParseError and no candidates; a clean document with
// nothing useful returns zero candidates and no error.
func (c *Classifier) Classify(filingID, markup string) ([]CandidateTable, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &MarkupParseError{FilingID: filingID, Err: err}
	}

	dupe := newStatementIndex(c.statements)

	var out []CandidateTable
	seen := make(map[string]bool)
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		grid := expandTable(table)
		if !usefulGrid(grid) {
			return
		}
		candidate, ok := c.score(filingID, grid)
		if !ok || candidate.Confidence < c.threshold {
			return
		}
		fp := fingerprint(grid)
		if seen[fp] {
			return
		}
		seen[fp] = true
		if dupe.matches(candidate) {
			return
		}
		out = append(out, candidate)
	})
	return out, nil
}

// usefulGrid applies the cheap structural prefilter before any scoring:
// minimum shape, no boilerplate in the leading rows, some digits somewhere,
// and a minimum fill ratio.
func usefulGrid(grid [][]string) bool {
	if len(grid) < 3 || len(grid[0]) < 2 {
		return false
	}

	var sample strings.Builder
	for i := 0; i < len(grid) && i < 4; i++ {
		sample.WriteString(strings.Join(grid[i], " "))
		sample.WriteString(" ")
	}
	if junkPattern.MatchString(sample.String()) {
		return false
	}

	nonEmpty, total, hasDigits := 0, 0, false
	for _, row := range grid {
		for _, cell := range row {
			total++
			if cell != "" {
				nonEmpty++
			}
			if !hasDigits && strings.IndexFunc(cell, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0 {
				hasDigits = true
			}
		}
	}
	return hasDigits && float64(nonEmpty)/float64(total) >= 0.15
}

// score decides whether a grid is a candidate and computes its confidence.
// Requirements: a header row with period-like tokens in at least 2 of 3
// consecutive columns, and at least 2 data rows whose non-label cells are
// majority numeric.
func (c *Classifier) score(filingID string, grid [][]string) (CandidateTable, bool) {
	headerIdx, periodCols := findPeriodHeader(grid)
	if headerIdx < 0 {
		return CandidateTable{}, false
	}
	header := grid[headerIdx]
	data := grid[headerIdx+1:]

	numericRows := 0
	numericCells, dataCells := 0, 0
	nonNumericLabels := 0
	var rowLabels []string
	var matrix [][]string

	for _, row := range data {
		label := row[0]
		rowNumeric, rowTotal := 0, 0
		for _, cell := range row[1:] {
			if cell == "" {
				continue
			}
			rowTotal++
			if _, ok := parseNumeric(cell); ok {
				rowNumeric++
			}
		}
		numericCells += rowNumeric
		dataCells += rowTotal
		if rowTotal > 0 && rowNumeric*2 > rowTotal {
			numericRows++
		}
		if _, labelIsNumber := parseNumeric(label); label != "" && !labelIsNumber {
			nonNumericLabels++
		}
		rowLabels = append(rowLabels, label)
		matrix = append(matrix, row)
	}

	if numericRows < 2 || dataCells == 0 {
		return CandidateTable{}, false
	}

	headerScore := math.Min(1, float64(periodCols)/float64(max(len(header)-1, 1)))
	numericRatio := float64(numericCells) / float64(dataCells)
	labelRatio := float64(nonNumericLabels) / float64(len(data))

	confidence := headerWeight*headerScore + numericWeight*numericRatio + labelWeight*labelRatio

	return CandidateTable{
		SourceFilingID: filingID,
		HeaderLabels:   header,
		RowLabels:      rowLabels,
		Matrix:         matrix,
		Confidence:     math.Round(confidence*10000) / 10000,
		PeriodHint:     yearToken.FindString(strings.Join(header, " ")),
	}, true
}

func isPeriodToken(s string) bool {
	return yearToken.MatchString(s) || quarterToken.MatchString(s) || monthToken.MatchString(s)
}

// findPeriodHeader scans the top rows for one whose columns carry period
// tokens in at least 2 of 3 consecutive cells. Returns the row index and the
// total period-token column count, or -1 when no row qualifies.
func findPeriodHeader(grid [][]string) (int, int) {
	limit := len(grid) - 2
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		row := grid[i]
		total := 0
		windowHit := false
		for j, cell := range row {
			if !isPeriodToken(cell) {
				continue
			}
			total++
			// Count tokens inside the 3-column window starting here.
			inWindow := 1
			for k := j + 1; k < len(row) && k < j+3; k++ {
				if isPeriodToken(row[k]) {
					inWindow++
				}
			}
			if inWindow >= 2 {
				windowHit = true
			}
		}
		if windowHit {
			return i, total
		}
	}
	return -1, 0
}

func fingerprint(grid [][]string) string {
	var sb strings.Builder
	for _, row := range grid {
		sb.WriteString(strings.Join(row, "|"))
		sb.WriteString("\n")
		if sb.Len() > 300 {
			break
		}
	}
	return sb.String()
}

// statementIndex holds the labels and populated cell values of the assembled
// statements, for recognizing markup tables that re-render the same data.
type statementIndex struct {
	labels map[string]bool
	values []float64
}

func newStatementIndex(statements []*assemble.StatementTable) *statementIndex {
	idx := &statementIndex{labels: make(map[string]bool)}
	for _, st := range statements {
		if st == nil {
			continue
		}
		for _, label := range st.Labels {
			idx.labels[normalizeLabel(label)] = true
		}
		for _, p := range st.Periods {
			for _, item := range st.ItemKeys {
				cell := st.Cell(p, item)
				if cell.Status != assemble.StatusMissing {
					idx.values = append(idx.values, cell.Value)
				}
			}
		}
	}
	return idx
}

// matches reports whether a candidate's row labels and numeric values both
// overlap an assembled statement heavily enough to call it a duplicate.
func (idx *statementIndex) matches(c CandidateTable) bool {
	if len(idx.values) == 0 {
		return false
	}

	labelHits, labelTotal := 0, 0
	for _, label := range c.RowLabels {
		if label == "" {
			continue
		}
		labelTotal++
		if idx.labels[normalizeLabel(label)] {
			labelHits++
		}
	}
	if labelTotal == 0 || float64(labelHits)/float64(labelTotal) < duplicateOverlap {
		return false
	}

	valueHits, valueTotal := 0, 0
	for _, row := range c.Matrix {
		for _, cell := range row[1:] {
			v, ok := parseNumeric(cell)
			if !ok {
				continue
			}
			valueTotal++
			if idx.hasValue(v) {
				valueHits++
			}
		}
	}
	return valueTotal > 0 && float64(valueHits)/float64(valueTotal) >= duplicateOverlap
}

func (idx *statementIndex) hasValue(v float64) bool {
	for _, sv := range idx.values {
		tol := math.Max(math.Abs(sv)*0.005, 0.01)
		if math.Abs(sv-v) <= tol {
			return true
		}
	}
	return false
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
