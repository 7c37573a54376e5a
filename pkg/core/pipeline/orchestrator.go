// Package pipeline sequences one extraction end to end:
// fetch -> resolve -> reconcile -> assemble -> classify -> deliver.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"finsheets/pkg/core/assemble"
	"finsheets/pkg/core/facts"
	"finsheets/pkg/core/ingest"
	"finsheets/pkg/core/reconcile"
	"finsheets/pkg/core/segments"
	"finsheets/pkg/core/taxonomy"
)

// Archive is the regulatory filing archive the pipeline consumes.
// *ingest.Client satisfies it; tests substitute stubs.
type Archive interface {
	ResolveIssuer(ctx context.Context, identifier string) (ingest.Issuer, error)
	CompanyFacts(ctx context.Context, cik string) ([]facts.ConceptFact, error)
	FilingIndex(ctx context.Context, cik string, forms []string, limit int) ([]ingest.FilingRef, error)
	FilingMarkup(ctx context.Context, ref ingest.FilingRef) (string, error)
}

// Options tunes one orchestrator.
type Options struct {
	LookbackYears     int
	MaxSegmentFilings int
	SegmentThreshold  float64

	// markupFetchConcurrency bounds parallel document downloads.
	markupFetchConcurrency int

	// now is swapped in tests to pin the lookback window.
	now func() time.Time
}

const (
	defaultLookbackYears     = 5
	defaultMaxSegmentFilings = 8
	defaultSegmentThreshold  = 0.5
)

// Result is one finished extraction.
type Result struct {
	RequestID   string                                         `json:"request_id"`
	Issuer      ingest.Issuer                                  `json:"issuer"`
	FromYear    int                                            `json:"from_year"`
	ToYear      int                                            `json:"to_year"`
	Statements  map[taxonomy.Statement]*assemble.StatementTable `json:"statements"`
	Candidates  []segments.CandidateTable                      `json:"candidates,omitempty"`
	Manifest    []assemble.ManifestEntry                       `json:"manifest"`
	GeneratedAt time.Time                                      `json:"generated_at"`
}

// Orchestrator runs extractions against one archive.
type Orchestrator struct {
	archive Archive
	opts    Options
}

// NewOrchestrator wires an orchestrator; zero-valued options get defaults.
func NewOrchestrator(archive Archive, opts Options) *Orchestrator {
	if opts.LookbackYears <= 0 {
		opts.LookbackYears = defaultLookbackYears
	}
	if opts.MaxSegmentFilings <= 0 {
		opts.MaxSegmentFilings = defaultMaxSegmentFilings
	}
	if opts.SegmentThreshold <= 0 {
		opts.SegmentThreshold = defaultSegmentThreshold
	}
	if opts.markupFetchConcurrency <= 0 {
		opts.markupFetchConcurrency = 4
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Orchestrator{archive: archive, opts: opts}
}

// Extract runs the full pipeline for one issuer identifier (ticker or CIK).
// lookbackYears overrides the configured window when positive; zero keeps
// the orchestrator default. A partially successful run still returns
// complete statements with missing cells marked; only fetch-level and
// zero-facts conditions abort.
func (o *Orchestrator) Extract(ctx context.Context, identifier string, lookbackYears int, includeSegments bool) (*Result, error) {
	start := o.opts.now()
	lookback := o.opts.LookbackYears
	if lookbackYears > 0 {
		lookback = lookbackYears
	}
	fmt.Printf("[Pipeline] Starting extraction for %s (lookback %d years)\n", identifier, lookback)

	// FETCHING
	issuer, err := o.archive.ResolveIssuer(ctx, identifier)
	if err != nil {
		return nil, fail(StageFetching, fmt.Sprintf("issuer resolution failed: %v", err), err)
	}
	fmt.Printf("[Pipeline] Resolved %s -> %s (%s)\n", identifier, issuer.CIK, issuer.Name)

	rawFacts, err := o.archive.CompanyFacts(ctx, issuer.CIK)
	if err != nil {
		return nil, fail(StageFetching, fmt.Sprintf("company facts fetch failed: %v", err), err)
	}

	// RESOLVING: load the store; it is read-only from here on.
	store := facts.NewStore()
	for _, f := range rawFacts {
		store.Add(f)
	}
	if store.Len() == 0 {
		return nil, fail(StageResolving, fmt.Sprintf("no facts returned for issuer %s", issuer.CIK), nil)
	}
	fmt.Printf("[Pipeline] Loaded %d facts across %d concepts\n", store.Len(), len(store.Tags()))

	// RECONCILING + ASSEMBLING: one assembler shared by three parallel
	// statement builds.
	fromYear, toYear := reconcile.Window(lookback, o.opts.now())
	assembler := assemble.New(store, fromYear, toYear)

	statements := make(map[taxonomy.Statement]*assemble.StatementTable, 3)
	g, gctx := errgroup.WithContext(ctx)
	results := make([]*assemble.StatementTable, len(taxonomy.Statements()))
	for i, st := range taxonomy.Statements() {
		i, st := i, st
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			table, err := assembler.Assemble(st)
			if err != nil {
				return fmt.Errorf("%s: %w", st, err)
			}
			results[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fail(StageAssembling, fmt.Sprintf("statement assembly failed: %v", err), err)
	}

	var manifest []assemble.ManifestEntry
	for i, st := range taxonomy.Statements() {
		statements[st] = results[i]
		manifest = append(manifest, results[i].Manifest()...)
	}

	result := &Result{
		RequestID:   uuid.New().String(),
		Issuer:      issuer,
		FromYear:    fromYear,
		ToYear:      toYear,
		Statements:  statements,
		Manifest:    manifest,
		GeneratedAt: o.opts.now(),
	}

	// CLASSIFYING
	if includeSegments {
		candidates, err := o.classify(ctx, issuer, results)
		if err != nil {
			return nil, err
		}
		result.Candidates = candidates
	}

	fmt.Printf("[Pipeline] Extraction for %s completed in %v (%d candidates)\n",
		issuer.CIK, o.opts.now().Sub(start), len(result.Candidates))
	return result, nil
}

// classify scans recent filings for segment/KPI tables. Per-document parse
// and fetch failures are logged and skipped; only the index fetch is fatal
// for the stage.
func (o *Orchestrator) classify(ctx context.Context, issuer ingest.Issuer, statements []*assemble.StatementTable) ([]segments.CandidateTable, error) {
	forms := append(append([]string{}, ingest.AnnualForms...), ingest.QuarterlyForms...)
	refs, err := o.archive.FilingIndex(ctx, issuer.CIK, forms, o.opts.MaxSegmentFilings)
	if err != nil {
		return nil, fail(StageClassifying, fmt.Sprintf("filing index fetch failed: %v", err), err)
	}
	fmt.Printf("[Pipeline] Scanning %d filings for segment tables\n", len(refs))

	classifier := segments.NewClassifier(o.opts.SegmentThreshold, statements...)

	// Indexed slots keep candidate order deterministic under parallel fetch.
	perFiling := make([][]segments.CandidateTable, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.markupFetchConcurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			markup, err := o.archive.FilingMarkup(gctx, ref)
			if err != nil {
				fmt.Printf("[Pipeline] Warning: failed to fetch %s: %v. Skipping.\n", ref.ID(), err)
				return nil
			}
			candidates, err := classifier.Classify(ref.ID(), markup)
			if err != nil {
				fmt.Printf("[Pipeline] Warning: %v. Skipping.\n", err)
				return nil
			}
			perFiling[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fail(StageClassifying, fmt.Sprintf("segment scan aborted: %v", err), err)
	}

	var out []segments.CandidateTable
	for _, candidates := range perFiling {
		out = append(out, candidates...)
	}
	return out, nil
}
