package reconcile

import (
	"fmt"
	"math"
	"sort"
	"time"

	"finsheets/pkg/core/facts"
)

// Day-span windows for classifying a duration fact. The slack accounts for
// 52/53-week fiscal calendars and quarter-length variation.
const (
	quarterMinDays = 60
	quarterMaxDays = 110
	halfMinDays    = 150
	halfMaxDays    = 200
	nineMinDays    = 240
	nineMaxDays    = 290
	annualMinDays  = 300
	annualMaxDays  = 400

	// Slack when matching a shorter period into an annual window.
	anchorSlackDays = 10
)

// Value is one reconciled number for a period, still in the unit it was
// reported in. Alias chains can mix units across periods, so the unit
// travels with each value rather than being assumed per concept.
type Value struct {
	Amount  float64
	Unit    facts.Unit
	Derived bool
}

// Grid maps period keys to reconciled values for a single concept.
type Grid map[PeriodKey]Value

// DerivationAmbiguousError records a subtraction that was refused because
// more than one term was unknown. Non-fatal: the period stays missing.
type DerivationAmbiguousError struct {
	Key      PeriodKey
	Unknowns int
}

func (e *DerivationAmbiguousError) Error() string {
	return fmt.Sprintf("cannot derive %s: %d unknown terms in subtraction", e.Key, e.Unknowns)
}

// UnitMismatchError records a derivation refused because its terms were
// reported in different units. Non-fatal: the period stays missing.
type UnitMismatchError struct {
	Key   PeriodKey
	Units []facts.Unit
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("cannot derive %s: terms reported in mixed units %v", e.Key, e.Units)
}

// Problem attaches a non-fatal reconciliation error to the period it left
// missing, for the assembler's manifest.
type Problem struct {
	Key PeriodKey
	Err error
}

type spanClass int

const (
	spanUnknown spanClass = iota
	spanQuarter
	spanHalf // cumulative through Q2
	spanNine // cumulative through Q3
	spanAnnual
)

func classifySpan(days int) spanClass {
	switch {
	case days >= quarterMinDays && days <= quarterMaxDays:
		return spanQuarter
	case days >= halfMinDays && days <= halfMaxDays:
		return spanHalf
	case days >= nineMinDays && days <= nineMaxDays:
		return spanNine
	case days >= annualMinDays && days <= annualMaxDays:
		return spanAnnual
	}
	return spanUnknown
}

// term is one reported amount with its declared unit. Derivations only ever
// combine terms sharing a unit.
type term struct {
	amount float64
	unit   facts.Unit
}

// fiscalYearSlots collects everything reported for one fiscal year of one
// concept: discrete quarters, cumulatives, and the annual total.
type fiscalYearSlots struct {
	quarters [5]*term // index 1-4
	ytd2     *term
	ytd3     *term
	annual   *term
}

// ReconcileDuration fills true quarterly and annual values for one
// concept's duration facts. Returned amounts are in the reported unit.
func ReconcileDuration(ff []facts.ConceptFact) (Grid, []Problem) {
	grid := make(Grid)
	var problems []Problem

	// Annual facts anchor fiscal years: a year's label is the calendar year
	// its fiscal period ends in, and its window places the shorter periods.
	anchors := make(map[int]facts.ConceptFact)
	for _, f := range ff {
		if classifySpan(f.SpanDays()) == spanAnnual {
			anchors[f.End.Year()] = f
		}
	}

	years := make(map[int]*fiscalYearSlots)
	slotsFor := func(y int) *fiscalYearSlots {
		if years[y] == nil {
			years[y] = &fiscalYearSlots{}
		}
		return years[y]
	}

	for _, f := range ff {
		class := classifySpan(f.SpanDays())
		if class == spanUnknown {
			// Multi-year cumulatives and odd stub periods (fiscal-year-end
			// changes) are left out of the grid rather than guessed.
			continue
		}

		year, qIdx := placeDuration(f, class, anchors)
		if year == 0 {
			continue
		}
		slots := slotsFor(year)
		t := term{amount: f.Value, unit: f.Unit}

		switch class {
		case spanAnnual:
			slots.annual = &t
		case spanHalf:
			slots.ytd2 = &t
		case spanNine:
			slots.ytd3 = &t
		case spanQuarter:
			if qIdx >= 1 && qIdx <= 4 && slots.quarters[qIdx] == nil {
				slots.quarters[qIdx] = &t
			}
		}
	}

	yearList := make([]int, 0, len(years))
	for y := range years {
		yearList = append(yearList, y)
	}
	sort.Ints(yearList)

	for _, y := range yearList {
		problems = append(problems, fillYear(grid, y, years[y])...)
	}
	return grid, problems
}

// placeDuration assigns a classified duration fact to a fiscal year label
// and, for discrete quarters, a quarter index.
func placeDuration(f facts.ConceptFact, class spanClass, anchors map[int]facts.ConceptFact) (year, qIdx int) {
	if class == spanAnnual {
		return f.End.Year(), 0
	}

	// Prefer an annual anchor whose window contains this period; it handles
	// non-calendar fiscal years correctly.
	for y, a := range anchors {
		if !f.Start.Before(a.Start.AddDate(0, 0, -anchorSlackDays)) &&
			!f.End.After(a.End.AddDate(0, 0, anchorSlackDays)) {
			if class == spanQuarter {
				offsetDays := f.Start.Sub(a.Start).Hours() / 24
				idx := int(math.Round(offsetDays/91)) + 1
				if idx < 1 || idx > 4 {
					return 0, 0
				}
				return y, idx
			}
			return y, 0
		}
	}

	// No anchor: fall back to calendar placement, with the filer-declared
	// fiscal period as a tiebreaker for quarters.
	year = f.End.Year()
	if class != spanQuarter {
		return year, 0
	}
	if idx := f.FiscalPeriod.QuarterIndex(); idx != 0 {
		return year, idx
	}
	return year, (int(f.End.Month())-1)/3 + 1
}

// fillYear applies the derivation rules for one fiscal year. The
// one-unknown rule is enforced in a single place: a subtraction with more
// than one unknown term is refused and recorded, never partially applied.
// Terms reported in different units are never combined; that derivation is
// refused and recorded the same way.
func fillYear(grid Grid, year int, slots *fiscalYearSlots) []Problem {
	var problems []Problem

	key := func(p facts.FiscalPeriod) PeriodKey {
		return PeriodKey{Year: year, Period: p}
	}
	set := func(p facts.FiscalPeriod, t term, derived bool) {
		grid[key(p)] = Value{Amount: t.amount, Unit: t.unit, Derived: derived}
	}
	ambiguous := func(p facts.FiscalPeriod, unknowns int) {
		problems = append(problems, Problem{
			Key: key(p),
			Err: &DerivationAmbiguousError{Key: key(p), Unknowns: unknowns},
		})
	}
	mixed := func(p facts.FiscalPeriod, units ...facts.Unit) {
		problems = append(problems, Problem{
			Key: key(p),
			Err: &UnitMismatchError{Key: key(p), Units: units},
		})
	}

	q := slots.quarters
	for i := 1; i <= 4; i++ {
		if q[i] != nil {
			set(quarterPeriod(i), *q[i], false)
		}
	}

	// Qn = YTD(n) − YTD(n−1), with YTD(1) = Q1.
	if q[2] == nil && slots.ytd2 != nil {
		switch {
		case q[1] == nil:
			ambiguous(facts.Q2, 2)
		case q[1].unit != slots.ytd2.unit:
			mixed(facts.Q2, slots.ytd2.unit, q[1].unit)
		default:
			t := term{amount: slots.ytd2.amount - q[1].amount, unit: q[1].unit}
			q[2] = &t
			set(facts.Q2, t, true)
		}
	}
	if q[3] == nil && slots.ytd3 != nil {
		var prior *term
		refused := false
		if slots.ytd2 != nil {
			prior = slots.ytd2
		} else if q[1] != nil && q[2] != nil {
			if q[1].unit == q[2].unit {
				prior = &term{amount: q[1].amount + q[2].amount, unit: q[1].unit}
			} else {
				mixed(facts.Q3, q[1].unit, q[2].unit)
				refused = true
			}
		}
		switch {
		case refused:
		case prior == nil:
			ambiguous(facts.Q3, 2)
		case prior.unit != slots.ytd3.unit:
			mixed(facts.Q3, slots.ytd3.unit, prior.unit)
		default:
			t := term{amount: slots.ytd3.amount - prior.amount, unit: prior.unit}
			q[3] = &t
			set(facts.Q3, t, true)
		}
	}

	if slots.annual != nil {
		set(facts.FY, *slots.annual, false)

		// Q4 plug: filers report the annual directly and never restate a
		// discrete Q4, so it is derived by subtraction when exactly one
		// unknown remains.
		if q[4] == nil {
			known := 0
			sum := 0.0
			units := []facts.Unit{slots.annual.unit}
			sameUnit := true
			for i := 1; i <= 3; i++ {
				if q[i] != nil {
					known++
					sum += q[i].amount
					units = append(units, q[i].unit)
					if q[i].unit != slots.annual.unit {
						sameUnit = false
					}
				}
			}
			switch {
			case known == 3 && sameUnit:
				set(facts.Q4, term{amount: slots.annual.amount - sum, unit: slots.annual.unit}, true)
			case known == 3:
				mixed(facts.Q4, units...)
			case known == 0:
				// Annual-only issuer: nothing to subtract against, and no
				// derivation was attempted. Quarters stay plainly missing.
			default:
				ambiguous(facts.Q4, 4-known)
			}
		}
	}

	return problems
}

func quarterPeriod(i int) facts.FiscalPeriod {
	switch i {
	case 1:
		return facts.Q1
	case 2:
		return facts.Q2
	case 3:
		return facts.Q3
	}
	return facts.Q4
}

// ReconcileInstant maps instant facts onto the grid. Instants are never
// subtracted or otherwise derived: the balance at a period end is itself the
// value. A fiscal-year-end balance fills both the FY column and Q4, since
// the year-end balance sheet is also the fourth quarter's. The first fact to
// claim a key keeps it (input order is deterministic, sorted by period end);
// a later fact landing on an occupied key is a re-rendering of the same
// balance, not a restatement — the store already resolved those.
func ReconcileInstant(ff []facts.ConceptFact) Grid {
	grid := make(Grid)
	claim := func(k PeriodKey, f facts.ConceptFact) {
		if _, taken := grid[k]; taken {
			return
		}
		grid[k] = Value{Amount: f.Value, Unit: f.Unit}
	}
	for _, f := range ff {
		year := f.End.Year()
		switch {
		case f.FiscalPeriod == facts.FY:
			claim(PeriodKey{Year: year, Period: facts.FY}, f)
			claim(PeriodKey{Year: year, Period: facts.Q4}, f)
		case f.FiscalPeriod.QuarterIndex() != 0 && hintFresh(f):
			claim(PeriodKey{Year: year, Period: f.FiscalPeriod}, f)
		default:
			q := quarterPeriod((int(f.End.Month())-1)/3 + 1)
			claim(PeriodKey{Year: year, Period: q}, f)
		}
	}
	return grid
}

// hintFresh reports whether the filer-declared fiscal period can be trusted
// for this fact. The declared period describes the filing, not the fact:
// prior-period comparatives inside a filing carry the filing's own focus, so
// the hint is only honored when the fact was filed shortly after its period
// end (i.e. it is the filing's current period).
func hintFresh(f facts.ConceptFact) bool {
	return !f.Filed.IsZero() && f.Filed.Sub(f.End) < 180*24*time.Hour
}
