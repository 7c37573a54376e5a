package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finsheets/pkg/core/facts"
)

// Namespaces worth scanning in companyfacts. Everything else is extension
// taxonomies with issuer-specific tags the resolver cannot chain.
var factNamespaces = []string{"us-gaap", "dei", "invest"}

// skipConcepts are entity/DEI concepts so generic or dimensional they add
// noise rather than value.
var skipConcepts = map[string]bool{
	"EntityCommonStockSharesOutstanding":  true,
	"EntityPublicFloat":                   true,
	"EntityNumberOfEmployees":             true,
	"DocumentFiscalYearFocus":             true,
	"DocumentFiscalPeriodFocus":           true,
	"DocumentPeriodEndDate":               true,
	"EntityRegistrantName":                true,
	"EntityCentralIndexKey":               true,
	"TradingSymbol":                       true,
	"CommonStockSharesAuthorized":         true,
	"CommonStockParOrStatedValuePerShare": true,
	"CommonStockSharesIssued":             true,
	"PreferredStockSharesAuthorized":      true,
	"PreferredStockSharesIssued":          true,
	"PreferredStockSharesOutstanding":     true,
}

// Unit bucket priority when a concept is filed under several units. Unknown
// units are carried through verbatim so the assembler can record them as
// unconvertible instead of the fact silently vanishing.
var unitPriority = []string{"USD", "USD/shares", "shares", "pure"}

type factEntry struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Val   *float64 `json:"val"`
	FY    int      `json:"fy"`
	FP    string   `json:"fp"`
	Form  string   `json:"form"`
	Filed string   `json:"filed"`
}

type companyFactsResponse struct {
	EntityName string `json:"entityName"`
	Facts      map[string]map[string]struct {
		Units map[string][]factEntry `json:"units"`
	} `json:"facts"`
}

// CompanyFacts fetches and flattens the issuer's XBRL facts. Only annual and
// quarterly report forms survive; skip-listed concepts never enter the
// result. Restatement precedence is the store's concern, not ours: every
// surviving entry is returned.
func (c *Client) CompanyFacts(ctx context.Context, cik string) ([]facts.ConceptFact, error) {
	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.dataURL, PadCIK(cik))

	var payload companyFactsResponse
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return nil, err
	}

	validForms := make(map[string]bool)
	for _, f := range append(append([]string{}, AnnualForms...), QuarterlyForms...) {
		validForms[f] = true
	}

	var out []facts.ConceptFact
	for _, ns := range factNamespaces {
		concepts, ok := payload.Facts[ns]
		if !ok {
			continue
		}
		names := make([]string, 0, len(concepts))
		for name := range concepts {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if skipConcepts[name] {
				continue
			}
			unit, entries := pickUnitBucket(concepts[name].Units)
			if unit == "" {
				continue
			}
			for _, e := range entries {
				f, ok := entryToFact(name, unit, e, validForms)
				if !ok {
					continue
				}
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// pickUnitBucket chooses one unit per concept by priority; concepts filed
// only under an unrecognized unit keep it (first alphabetically, for
// determinism).
func pickUnitBucket(units map[string][]factEntry) (string, []factEntry) {
	for _, u := range unitPriority {
		if entries, ok := units[u]; ok {
			return u, entries
		}
	}
	keys := make([]string, 0, len(units))
	for u := range units {
		keys = append(keys, u)
	}
	if len(keys) == 0 {
		return "", nil
	}
	sort.Strings(keys)
	return keys[0], units[keys[0]]
}

func entryToFact(tag, unit string, e factEntry, validForms map[string]bool) (facts.ConceptFact, bool) {
	if e.Val == nil || e.End == "" || !validForms[e.Form] {
		return facts.ConceptFact{}, false
	}

	end, err := time.Parse("2006-01-02", e.End)
	if err != nil {
		return facts.ConceptFact{}, false
	}
	filed, _ := time.Parse("2006-01-02", e.Filed)

	if e.Start == "" {
		f, err := facts.NewInstantFact(tag, facts.Unit(unit), *e.Val, end, e.FY, facts.FiscalPeriod(e.FP), e.Form, filed)
		if err != nil {
			return facts.ConceptFact{}, false
		}
		return f, true
	}

	start, err := time.Parse("2006-01-02", e.Start)
	if err != nil {
		return facts.ConceptFact{}, false
	}
	f, err := facts.NewDurationFact(tag, facts.Unit(unit), *e.Val, start, end, e.FY, facts.FiscalPeriod(e.FP), e.Form, filed)
	if err != nil {
		return facts.ConceptFact{}, false
	}
	return f, true
}
