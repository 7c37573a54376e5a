package assemble

import (
	"fmt"
	"math"

	"finsheets/pkg/core/facts"
)

// Normalized cell precision: $MM at 2dp, MM shares at 3dp, per-share and
// ratio values at 4dp.
const (
	currencyPrecision = 2
	sharesPrecision   = 3
	perSharePrecision = 4
)

// UnrecognizedUnitError marks a fact whose declared unit has no conversion
// path. Fatal for that single cell only: the cell is recorded missing with
// this reason and the rest of the statement is unaffected.
type UnrecognizedUnitError struct {
	Tag  string
	Unit facts.Unit
}

func (e *UnrecognizedUnitError) Error() string {
	return fmt.Sprintf("unrecognized unit %q on concept %s", e.Unit, e.Tag)
}

// convertValue normalizes a reconciled amount by its declared unit. Exactly
// one conversion path exists per recognized unit; anything else is a hard,
// reported failure rather than a silent coercion.
func convertValue(amount float64, unit facts.Unit, tag string) (float64, error) {
	switch unit {
	case facts.UnitUSD:
		return roundTo(amount/1e6, currencyPrecision), nil
	case facts.UnitShares:
		return roundTo(amount/1e6, sharesPrecision), nil
	case facts.UnitUSDPerShare:
		return roundTo(amount, perSharePrecision), nil
	case facts.UnitPure:
		return roundTo(amount, perSharePrecision), nil
	default:
		return 0, &UnrecognizedUnitError{Tag: tag, Unit: unit}
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
