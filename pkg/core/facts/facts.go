// Package facts holds the normalized accounting facts for a single issuer.
//
// A ConceptFact is one reported value from the structured-fact payload of the
// filing archive. Facts are immutable once created; restatements of the same
// concept and period are resolved by the Store, which keeps the latest-filed
// value per period key.
package facts

import (
	"fmt"
	"time"
)

// Unit identifies the declared unit of a reported fact.
// Anything outside the four recognized units is carried through verbatim so
// the assembler can report it as unrecognized instead of silently dropping it.
type Unit string

const (
	UnitUSD         Unit = "USD"
	UnitUSDPerShare Unit = "USD/shares"
	UnitShares      Unit = "shares"
	UnitPure        Unit = "pure"
)

// PeriodKind distinguishes balance-sheet style point-in-time values from
// income/cash-flow style accumulated values.
type PeriodKind string

const (
	KindInstant  PeriodKind = "instant"
	KindDuration PeriodKind = "duration"
)

// FiscalPeriod is the filer-declared fiscal focus of a fact.
type FiscalPeriod string

const (
	Q1 FiscalPeriod = "Q1"
	Q2 FiscalPeriod = "Q2"
	Q3 FiscalPeriod = "Q3"
	Q4 FiscalPeriod = "Q4"
	FY FiscalPeriod = "FY"
)

// QuarterIndex returns 1-4 for quarterly periods and 0 for FY or unknown.
func (p FiscalPeriod) QuarterIndex() int {
	switch p {
	case Q1:
		return 1
	case Q2:
		return 2
	case Q3:
		return 3
	case Q4:
		return 4
	}
	return 0
}

// ConceptFact is one reported accounting fact.
// Invariant: duration facts carry both Start and End; instant facts carry
// End only (Start is the zero time). Use the constructors to enforce this.
type ConceptFact struct {
	Tag          string       `json:"tag"`
	Unit         Unit         `json:"unit"`
	Value        float64      `json:"value"`
	Kind         PeriodKind   `json:"kind"`
	Start        time.Time    `json:"start,omitempty"`
	End          time.Time    `json:"end"`
	FiscalYear   int          `json:"fiscal_year"`
	FiscalPeriod FiscalPeriod `json:"fiscal_period"`
	Form         string       `json:"form"`
	Filed        time.Time    `json:"filed"`
}

// NewDurationFact builds a duration fact, requiring both period endpoints.
func NewDurationFact(tag string, unit Unit, value float64, start, end time.Time, fy int, fp FiscalPeriod, form string, filed time.Time) (ConceptFact, error) {
	if start.IsZero() || end.IsZero() {
		return ConceptFact{}, fmt.Errorf("duration fact %s requires both period start and end", tag)
	}
	if end.Before(start) {
		return ConceptFact{}, fmt.Errorf("duration fact %s has end %s before start %s", tag, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return ConceptFact{
		Tag: tag, Unit: unit, Value: value,
		Kind: KindDuration, Start: start, End: end,
		FiscalYear: fy, FiscalPeriod: fp, Form: form, Filed: filed,
	}, nil
}

// NewInstantFact builds an instant fact, carrying a period end only.
func NewInstantFact(tag string, unit Unit, value float64, end time.Time, fy int, fp FiscalPeriod, form string, filed time.Time) (ConceptFact, error) {
	if end.IsZero() {
		return ConceptFact{}, fmt.Errorf("instant fact %s requires a period end", tag)
	}
	return ConceptFact{
		Tag: tag, Unit: unit, Value: value,
		Kind: KindInstant, End: end,
		FiscalYear: fy, FiscalPeriod: fp, Form: form, Filed: filed,
	}, nil
}

// SpanDays returns the duration of the fact's period in days, 0 for instants.
func (f ConceptFact) SpanDays() int {
	if f.Kind != KindDuration {
		return 0
	}
	return int(f.End.Sub(f.Start).Hours() / 24)
}
