// Package taxonomy maps vendor concept tags to canonical statement line
// items via ordered fallback chains.
//
// The chains are static reference data embedded at build time
// (aliases.hjson); they are never mutated at runtime. Resolution is a pure
// function over the fact store: chain order beats fact recency, and a line
// item with no matching alias is reported missing, never inferred from
// unrelated tags.
package taxonomy

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	hjson "github.com/hjson/hjson-go/v4"

	"finsheets/pkg/core/facts"
)

//go:embed aliases.hjson
var aliasesSource []byte

// Statement identifies the statement a line item belongs to.
type Statement string

const (
	IncomeStatement Statement = "IS"
	BalanceSheet    Statement = "BS"
	CashFlow        Statement = "CF"
)

// Statements lists the three statement types in presentation order.
func Statements() []Statement {
	return []Statement{IncomeStatement, BalanceSheet, CashFlow}
}

// Kind returns the period kind of facts backing this statement's items.
// Balance-sheet items are point-in-time; everything else accumulates.
func (s Statement) Kind() facts.PeriodKind {
	if s == BalanceSheet {
		return facts.KindInstant
	}
	return facts.KindDuration
}

// LineItem is a named slot in a statement with its ordered alias chain.
type LineItem struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Statement Statement `json:"statement"`
	Aliases   []string  `json:"aliases"`
}

type referenceFile struct {
	Items []LineItem `json:"items"`
}

var (
	loadOnce  sync.Once
	loadErr   error
	allItems  []LineItem
	itemByKey map[string]LineItem
)

func load() {
	var ref referenceFile
	if err := hjson.Unmarshal(aliasesSource, &ref); err != nil {
		loadErr = fmt.Errorf("failed to parse embedded alias reference: %w", err)
		return
	}
	itemByKey = make(map[string]LineItem, len(ref.Items))
	for _, item := range ref.Items {
		if len(item.Aliases) == 0 {
			loadErr = fmt.Errorf("line item %q has an empty alias chain", item.Key)
			return
		}
		if _, dup := itemByKey[item.Key]; dup {
			loadErr = fmt.Errorf("duplicate line item key %q", item.Key)
			return
		}
		itemByKey[item.Key] = item
	}
	allItems = ref.Items
}

// Items returns the line items of one statement, in reference-file order.
func Items(st Statement) ([]LineItem, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil, loadErr
	}
	var out []LineItem
	for _, item := range allItems {
		if item.Statement == st {
			out = append(out, item)
		}
	}
	return out, nil
}

// ItemByKey looks up a single line item across all statements.
func ItemByKey(key string) (LineItem, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return LineItem{}, loadErr
	}
	item, ok := itemByKey[key]
	if !ok {
		return LineItem{}, fmt.Errorf("unknown line item key %q", key)
	}
	return item, nil
}

// ErrUnresolvedConcept is returned when no alias in a line item's chain
// matched any fact. The caller marks the item missing and continues.
var ErrUnresolvedConcept = errors.New("no concept tag alias matched")

// Resolver resolves line items against one issuer's fact store.
type Resolver struct {
	store *facts.Store
}

// NewResolver wraps a read-only fact store.
func NewResolver(store *facts.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the facts backing a line item. For every period, the fact
// comes from the first alias in the chain that reported that period, so an
// issuer that drifted from a legacy tag to a current one contributes its
// full history: current-tag periods from the current tag, older periods from
// the legacy tag. Returns ErrUnresolvedConcept when no alias matched at all.
func (r *Resolver) Resolve(item LineItem) ([]facts.ConceptFact, error) {
	kind := item.Statement.Kind()

	type periodSlot struct {
		end    string
		period facts.FiscalPeriod
	}
	claimed := make(map[periodSlot]bool)

	var resolved []facts.ConceptFact
	for _, alias := range item.Aliases {
		for _, f := range r.store.FactsForTag(alias) {
			if f.Kind != kind {
				continue
			}
			slot := periodSlot{end: f.End.Format("2006-01-02"), period: f.FiscalPeriod}
			if claimed[slot] {
				continue
			}
			claimed[slot] = true
			resolved = append(resolved, f)
		}
	}

	if len(resolved) == 0 {
		return nil, fmt.Errorf("line item %q: %w", item.Key, ErrUnresolvedConcept)
	}
	return resolved, nil
}
