// Package learn derives recurring patterns from debate history and scores new
// requests against them. Everything here is a rebuildable read-model: the
// history store is the only source of truth, and rebuilds operate on a
// point-in-time snapshot so they never block the debate path.
package learn

import (
	"sort"
	"strings"
	"sync"

	"arbiter/internal/store"
)

// Pattern is one recurring signature across past debates, with its outcome
// history attached.
type Pattern struct {
	Signature   string   `json:"signature"` // keyword family, e.g. "transaction_boundaries"
	Keywords    []string `json:"keywords"`
	Frequency   int      `json:"frequency"`
	Confirmed   int      `json:"confirmed"`
	Unconfirmed int      `json:"unconfirmed"`
	AvgScore    float64  `json:"avg_score"`
}

// ConfirmedRatio is the share of recorded outcomes that were confirmed.
// Unrecorded outcomes do not count either way.
func (p Pattern) ConfirmedRatio() float64 {
	decided := p.Confirmed + p.Unconfirmed
	if decided == 0 {
		return 0.5 // no evidence either way
	}
	return float64(p.Confirmed) / float64(decided)
}

// signatureKeywords are the keyword families mined from disagreement text.
type signatureKeywords struct {
	name  string
	words []string
}

var riskSignatures = []signatureKeywords{
	{"circular_imports", []string{"circular", "import", "cycle"}},
	{"transaction_boundaries", []string{"transaction", "atomic", "rollback", "commit"}},
	{"missing_migration", []string{"migration", "schema", "alter"}},
	{"tight_coupling", []string{"coupling", "tightly", "coupled"}},
	{"unclear_interfaces", []string{"interface", "contract", "boundary"}},
	{"insufficient_testing", []string{"untested", "coverage", "missing test"}},
	{"performance_regression", []string{"performance", "slow", "regression"}},
	{"backward_compatibility", []string{"backward", "breaking", "deprecated"}},
}

// PatternModel holds the current derived pattern set. Safe for concurrent
// reads during a rebuild: Rebuild swaps the whole set under a write lock.
type PatternModel struct {
	mu       sync.RWMutex
	patterns []Pattern
	// MinFrequency is how many occurrences a signature needs before it
	// counts as a pattern.
	MinFrequency int
}

// NewPatternModel creates an empty model with the default frequency floor.
func NewPatternModel() *PatternModel {
	return &PatternModel{MinFrequency: 2}
}

// Patterns returns the current pattern set, most frequent first.
func (m *PatternModel) Patterns() []Pattern {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Pattern, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Rebuild recomputes the pattern set from a snapshot of history records.
// The snapshot is the caller's: records appended after it was taken are
// simply picked up by the next rebuild.
func (m *PatternModel) Rebuild(records []*store.Record) {
	type acc struct {
		freq        int
		confirmed   int
		unconfirmed int
		scoreSum    int
	}
	accs := make(map[string]*acc)

	for _, rec := range records {
		if rec.Consensus == nil {
			continue
		}
		text := recordText(rec)
		for _, sig := range riskSignatures {
			if !containsAny(text, sig.words) {
				continue
			}
			a := accs[sig.name]
			if a == nil {
				a = &acc{}
				accs[sig.name] = a
			}
			a.freq++
			a.scoreSum += rec.Consensus.ConsensusScore
			if rec.Outcome != nil {
				if rec.Outcome.Confirmed {
					a.confirmed++
				} else {
					a.unconfirmed++
				}
			}
		}
	}

	var patterns []Pattern
	for _, sig := range riskSignatures {
		a := accs[sig.name]
		if a == nil || a.freq < m.MinFrequency {
			continue
		}
		patterns = append(patterns, Pattern{
			Signature:   sig.name,
			Keywords:    sig.words,
			Frequency:   a.freq,
			Confirmed:   a.confirmed,
			Unconfirmed: a.unconfirmed,
			AvgScore:    float64(a.scoreSum) / float64(a.freq),
		})
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Frequency > patterns[j].Frequency })

	m.mu.Lock()
	m.patterns = patterns
	m.mu.Unlock()
}

// recordText flattens the searchable text of a record: topic, focus areas,
// artifact paths, and every disagreement line.
func recordText(rec *store.Record) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(rec.Request.Topic))
	for _, fa := range rec.Request.FocusAreas {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(fa))
	}
	for _, art := range rec.Request.Artifacts {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(art.Path))
	}
	if rec.Consensus != nil {
		for _, d := range rec.Consensus.Disagreements {
			b.WriteByte(' ')
			b.WriteString(strings.ToLower(d.Text))
		}
	}
	return b.String()
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
