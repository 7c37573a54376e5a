// Package reconcile derives a complete quarterly+annual period grid from the
// partial, overlapping periods issuers actually report.
//
// Filers report annual durations directly but rarely re-report a standalone
// Q4, and some report only year-to-date cumulatives. This package fills the
// gaps arithmetically: Q4 = FY − (Q1+Q2+Q3), Qn = YTD(n) − YTD(n−1). All
// arithmetic happens in the fact's reported unit; the assembler applies the
// final unit conversion in one place so rounding error never compounds
// across subtraction steps.
package reconcile

import (
	"fmt"
	"time"

	"finsheets/pkg/core/facts"
)

// PeriodKey identifies one cell column: a fiscal quarter or full year.
type PeriodKey struct {
	Year   int
	Period facts.FiscalPeriod
}

// orderIndex places FY after Q4 within a year.
func (k PeriodKey) orderIndex() int {
	if k.Period == facts.FY {
		return 5
	}
	return k.Period.QuarterIndex()
}

// Less orders keys by (fiscal year, quarter index, FY last).
func (k PeriodKey) Less(o PeriodKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.orderIndex() < o.orderIndex()
}

// IsAnnual reports whether the key is a full-year period.
func (k PeriodKey) IsAnnual() bool {
	return k.Period == facts.FY
}

// String renders a stable sortable form, e.g. "2023Q1" or "2023FY".
func (k PeriodKey) String() string {
	return fmt.Sprintf("%d%s", k.Year, k.Period)
}

// Label renders the display form used for spreadsheet column headers.
func (k PeriodKey) Label() string {
	if k.IsAnnual() {
		return fmt.Sprintf("FY%d", k.Year)
	}
	return fmt.Sprintf("%s %d", k.Period, k.Year)
}

// Keys returns the full ordered grid of period keys for a year range,
// inclusive on both ends: Q1..Q4 then FY for each year.
func Keys(fromYear, toYear int) []PeriodKey {
	var keys []PeriodKey
	for y := fromYear; y <= toYear; y++ {
		for _, p := range []facts.FiscalPeriod{facts.Q1, facts.Q2, facts.Q3, facts.Q4, facts.FY} {
			keys = append(keys, PeriodKey{Year: y, Period: p})
		}
	}
	return keys
}

// Window computes the inclusive fiscal-year range for a lookback request.
func Window(lookbackYears int, now time.Time) (fromYear, toYear int) {
	toYear = now.Year()
	fromYear = toYear - lookbackYears + 1
	return fromYear, toYear
}
