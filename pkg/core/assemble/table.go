// Package assemble builds the three canonical statements from resolved facts
// and reconciled periods, normalizes units, and computes derived line items.
package assemble

import (
	"sort"

	"finsheets/pkg/core/reconcile"
	"finsheets/pkg/core/taxonomy"
)

// CellStatus records how a statement cell was populated.
type CellStatus string

const (
	StatusReported CellStatus = "reported"
	StatusDerived  CellStatus = "derived"
	StatusMissing  CellStatus = "missing"
)

// Cell is one normalized statement value. Values are $MM for currency items,
// MM shares for share counts, and $ for per-share items.
type Cell struct {
	Value  float64    `json:"value"`
	Status CellStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// StatementTable is one assembled statement: line items by period.
// Cells is keyed by PeriodKey.String() then line-item key, so the table
// round-trips through JSON; Periods preserves the typed, ordered keys.
type StatementTable struct {
	Statement taxonomy.Statement         `json:"statement"`
	Periods   []reconcile.PeriodKey      `json:"-"`
	ItemKeys  []string                   `json:"item_keys"`
	Labels    map[string]string          `json:"labels"`
	Cells     map[string]map[string]Cell `json:"cells"`

	// PeriodLabels mirrors Periods for serialized consumers.
	PeriodLabels []string `json:"periods"`
}

func newTable(st taxonomy.Statement, periods []reconcile.PeriodKey) *StatementTable {
	t := &StatementTable{
		Statement: st,
		Periods:   periods,
		Labels:    make(map[string]string),
		Cells:     make(map[string]map[string]Cell),
	}
	for _, p := range periods {
		t.Cells[p.String()] = make(map[string]Cell)
		t.PeriodLabels = append(t.PeriodLabels, p.String())
	}
	return t
}

func (t *StatementTable) addItem(key, label string) {
	t.ItemKeys = append(t.ItemKeys, key)
	t.Labels[key] = label
}

func (t *StatementTable) setCell(p reconcile.PeriodKey, item string, c Cell) {
	t.Cells[p.String()][item] = c
}

// Cell returns the cell for a period and line item. Absent cells read as
// missing.
func (t *StatementTable) Cell(p reconcile.PeriodKey, item string) Cell {
	c, ok := t.Cells[p.String()][item]
	if !ok {
		return Cell{Status: StatusMissing}
	}
	return c
}

// Quarterly returns the view of the table restricted to quarterly periods.
// Columns are kept even when every cell is missing, so an annual-only issuer
// yields a quarterly tab of explicit gaps rather than a vanished tab.
func (t *StatementTable) Quarterly() *StatementTable {
	return t.subset(func(p reconcile.PeriodKey) bool { return !p.IsAnnual() })
}

// Annual returns the view restricted to full-year periods.
func (t *StatementTable) Annual() *StatementTable {
	return t.subset(func(p reconcile.PeriodKey) bool { return p.IsAnnual() })
}

func (t *StatementTable) subset(keep func(reconcile.PeriodKey) bool) *StatementTable {
	out := &StatementTable{
		Statement: t.Statement,
		ItemKeys:  t.ItemKeys,
		Labels:    t.Labels,
		Cells:     make(map[string]map[string]Cell),
	}
	for _, p := range t.Periods {
		if keep(p) {
			out.Periods = append(out.Periods, p)
			out.PeriodLabels = append(out.PeriodLabels, p.String())
			out.Cells[p.String()] = t.Cells[p.String()]
		}
	}
	return out
}

// HasValues reports whether any cell in the table is populated.
func (t *StatementTable) HasValues() bool {
	for _, p := range t.Periods {
		for _, item := range t.ItemKeys {
			if t.Cell(p, item).Status != StatusMissing {
				return true
			}
		}
	}
	return false
}

// ManifestEntry records the provenance of one cell for downstream consumers.
type ManifestEntry struct {
	Statement taxonomy.Statement `json:"statement"`
	Period    string             `json:"period"`
	Item      string             `json:"item"`
	Status    CellStatus         `json:"status"`
	Reason    string             `json:"reason,omitempty"`
}

// Manifest lists every cell's provenance in deterministic order:
// period-major, then reference-file item order.
func (t *StatementTable) Manifest() []ManifestEntry {
	periods := make([]reconcile.PeriodKey, len(t.Periods))
	copy(periods, t.Periods)
	sort.Slice(periods, func(i, j int) bool { return periods[i].Less(periods[j]) })

	var out []ManifestEntry
	for _, p := range periods {
		for _, item := range t.ItemKeys {
			c := t.Cell(p, item)
			out = append(out, ManifestEntry{
				Statement: t.Statement,
				Period:    p.String(),
				Item:      item,
				Status:    c.Status,
				Reason:    c.Reason,
			})
		}
	}
	return out
}
