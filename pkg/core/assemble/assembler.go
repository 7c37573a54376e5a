package assemble

import (
	"fmt"
	"sync"

	"finsheets/pkg/core/facts"
	"finsheets/pkg/core/reconcile"
	"finsheets/pkg/core/taxonomy"
)

// Derived line items appended after the tagged ones. EBITDA and Free Cash
// Flow are never directly tagged; Gross Profit is derived only when the
// issuer did not report it (reported wins over derived).
const (
	itemEBITDA       = "ebitda"
	itemFreeCashFlow = "free_cash_flow"
)

// Assembler populates statement tables for one issuer over a fiscal-year
// window. It is a pure consumer of the fact store and safe for concurrent
// use, so the three statements can be assembled in parallel.
type Assembler struct {
	resolver *taxonomy.Resolver
	fromYear int
	toYear   int

	// itemGrids caches per-item reconciliation so cross-statement derived
	// items (EBITDA needs the cash-flow D&A) don't recompute.
	mu        sync.Mutex
	itemGrids map[string]itemGrid
}

type itemGrid struct {
	grid     reconcile.Grid
	problems map[reconcile.PeriodKey]string
	resolved bool
}

// New creates an assembler over a read-only fact store and window.
func New(store *facts.Store, fromYear, toYear int) *Assembler {
	return &Assembler{
		resolver:  taxonomy.NewResolver(store),
		fromYear:  fromYear,
		toYear:    toYear,
		itemGrids: make(map[string]itemGrid),
	}
}

// gridFor resolves and reconciles one line item, caching the result.
func (a *Assembler) gridFor(item taxonomy.LineItem) itemGrid {
	a.mu.Lock()
	defer a.mu.Unlock()
	if g, ok := a.itemGrids[item.Key]; ok {
		return g
	}

	g := itemGrid{problems: make(map[reconcile.PeriodKey]string)}
	resolved, err := a.resolver.Resolve(item)
	if err != nil {
		// ErrUnresolvedConcept: non-fatal, the item reads missing everywhere.
		a.itemGrids[item.Key] = g
		return g
	}

	g.resolved = true
	if item.Statement.Kind() == facts.KindInstant {
		g.grid = reconcile.ReconcileInstant(resolved)
	} else {
		var problems []reconcile.Problem
		g.grid, problems = reconcile.ReconcileDuration(resolved)
		for _, p := range problems {
			g.problems[p.Key] = p.Err.Error()
		}
	}
	a.itemGrids[item.Key] = g
	return g
}

// Assemble builds one statement table for the window. Every populated cell
// traces to exactly one retained fact or one derivation formula; nothing is
// silently overwritten.
func (a *Assembler) Assemble(st taxonomy.Statement) (*StatementTable, error) {
	items, err := taxonomy.Items(st)
	if err != nil {
		return nil, fmt.Errorf("failed to load line items for %s: %w", st, err)
	}

	table := newTable(st, reconcile.Keys(a.fromYear, a.toYear))

	for _, item := range items {
		table.addItem(item.Key, item.Label)
		g := a.gridFor(item)

		for _, p := range table.Periods {
			if !g.resolved {
				table.setCell(p, item.Key, Cell{Status: StatusMissing, Reason: "no concept tag alias matched"})
				continue
			}
			v, ok := g.grid[p]
			if !ok {
				table.setCell(p, item.Key, Cell{Status: StatusMissing, Reason: g.problems[p]})
				continue
			}
			// The unit travels with each reconciled value: alias chains can
			// mix units across periods, and a foreign-unit period must fail
			// conversion on its own rather than ride another period's unit.
			converted, convErr := convertValue(v.Amount, v.Unit, item.Key)
			if convErr != nil {
				table.setCell(p, item.Key, Cell{Status: StatusMissing, Reason: convErr.Error()})
				continue
			}
			status := StatusReported
			if v.Derived {
				status = StatusDerived
			}
			table.setCell(p, item.Key, Cell{Value: converted, Status: status})
		}
	}

	switch st {
	case taxonomy.IncomeStatement:
		a.deriveGrossProfit(table)
		a.deriveEBITDA(table)
	case taxonomy.CashFlow:
		a.deriveFreeCashFlow(table)
	}

	return table, nil
}

// deriveGrossProfit fills gross_profit cells the issuer left untagged with
// Revenue − Cost of Revenue. Reported values always win over the derivation.
func (a *Assembler) deriveGrossProfit(table *StatementTable) {
	for _, p := range table.Periods {
		if table.Cell(p, "gross_profit").Status != StatusMissing {
			continue
		}
		rev := table.Cell(p, "revenue")
		cost := table.Cell(p, "cost_of_revenue")
		if rev.Status == StatusMissing || cost.Status == StatusMissing {
			continue
		}
		table.setCell(p, "gross_profit", Cell{
			Value:  roundTo(rev.Value-cost.Value, currencyPrecision),
			Status: StatusDerived,
			Reason: "Revenue - Cost of Revenue",
		})
	}
}

// deriveEBITDA computes Operating Income + D&A. D&A lives on the cash-flow
// statement, so it is reconciled directly here; when it is unavailable the
// cell stays missing rather than being approximated.
func (a *Assembler) deriveEBITDA(table *StatementTable) {
	table.addItem(itemEBITDA, "EBITDA")

	daItem, err := taxonomy.ItemByKey("depreciation_amortization")
	if err != nil {
		for _, p := range table.Periods {
			table.setCell(p, itemEBITDA, Cell{Status: StatusMissing, Reason: err.Error()})
		}
		return
	}
	da := a.gridFor(daItem)

	for _, p := range table.Periods {
		op := table.Cell(p, "operating_income")
		if op.Status == StatusMissing {
			table.setCell(p, itemEBITDA, Cell{Status: StatusMissing, Reason: "operating income unavailable"})
			continue
		}
		dv, ok := da.grid[p]
		if !da.resolved || !ok {
			table.setCell(p, itemEBITDA, Cell{Status: StatusMissing, Reason: "D&A unavailable"})
			continue
		}
		daConverted, convErr := convertValue(dv.Amount, dv.Unit, daItem.Key)
		if convErr != nil {
			table.setCell(p, itemEBITDA, Cell{Status: StatusMissing, Reason: convErr.Error()})
			continue
		}
		table.setCell(p, itemEBITDA, Cell{
			Value:  roundTo(op.Value+daConverted, currencyPrecision),
			Status: StatusDerived,
			Reason: "Operating Income + D&A",
		})
	}
}

// deriveFreeCashFlow computes CFO − CapEx.
func (a *Assembler) deriveFreeCashFlow(table *StatementTable) {
	table.addItem(itemFreeCashFlow, "Free Cash Flow")

	for _, p := range table.Periods {
		cfo := table.Cell(p, "cash_from_operations")
		capex := table.Cell(p, "capital_expenditures")
		if cfo.Status == StatusMissing || capex.Status == StatusMissing {
			table.setCell(p, itemFreeCashFlow, Cell{Status: StatusMissing, Reason: "CFO or CapEx unavailable"})
			continue
		}
		table.setCell(p, itemFreeCashFlow, Cell{
			Value:  roundTo(cfo.Value-capex.Value, currencyPrecision),
			Status: StatusDerived,
			Reason: "CFO - CapEx",
		})
	}
}
