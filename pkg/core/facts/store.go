package facts

import "sort"

// factKey identifies the slot a fact occupies for restatement purposes.
// Two filings reporting the same concept for the same period end compete for
// the same slot; the later-filed one wins.
type factKey struct {
	Tag    string
	End    string // YYYY-MM-DD
	Kind   PeriodKind
	Period FiscalPeriod
}

// Store is the deduplicated, period-tagged collection of facts for one
// issuer. It is built once per extraction and treated as read-only after
// resolution begins; Add must not be called concurrently with readers.
type Store struct {
	byKey map[factKey]ConceptFact
	byTag map[string][]factKey
}

// NewStore creates an empty fact store.
func NewStore() *Store {
	return &Store{
		byKey: make(map[factKey]ConceptFact),
		byTag: make(map[string][]factKey),
	}
}

// Add inserts a fact, applying the restatement rule: if a fact already
// occupies the same (tag, period end, kind, fiscal period) slot, the one
// with the later filed date is retained.
func (s *Store) Add(f ConceptFact) {
	key := factKey{
		Tag:    f.Tag,
		End:    f.End.Format("2006-01-02"),
		Kind:   f.Kind,
		Period: f.FiscalPeriod,
	}
	existing, ok := s.byKey[key]
	if ok {
		if !newerFiling(existing, f) {
			return
		}
		s.byKey[key] = f
		return
	}
	s.byKey[key] = f
	s.byTag[f.Tag] = append(s.byTag[f.Tag], key)
}

// newerFiling reports whether candidate should replace existing.
// This is the single restatement-wins policy shared by every concept.
func newerFiling(existing, candidate ConceptFact) bool {
	return candidate.Filed.After(existing.Filed)
}

// FactsForTag returns the retained facts for one concept tag, sorted by
// period end then fiscal period for deterministic downstream iteration.
func (s *Store) FactsForTag(tag string) []ConceptFact {
	keys := s.byTag[tag]
	if len(keys) == 0 {
		return nil
	}
	out := make([]ConceptFact, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.byKey[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].End.Equal(out[j].End) {
			return out[i].End.Before(out[j].End)
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].FiscalPeriod < out[j].FiscalPeriod
	})
	return out
}

// Tags returns every concept tag present, sorted.
func (s *Store) Tags() []string {
	tags := make([]string, 0, len(s.byTag))
	for tag := range s.byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Len returns the number of retained facts.
func (s *Store) Len() int {
	return len(s.byKey)
}
