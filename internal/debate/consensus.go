package debate

import (
	"fmt"
	"math"
	"strings"
)

// EngineConfig tunes score reconciliation. Zero values fall back to defaults
// via NewEngine.
type EngineConfig struct {
	// WeightA and WeightB weight the two scores in the base average.
	WeightA float64
	WeightB float64
	// WideSplitThreshold is the score gap beyond which confidence drops and
	// the result is pulled toward the lower score.
	WideSplitThreshold int
	// MaxPoints caps how many agreements/disagreements are reported.
	MaxPoints int
}

// DefaultEngineConfig mirrors the behavior verified against the worked
// examples: equal weights, wide split at a 30 point gap, top 5 points.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		WeightA:            0.5,
		WeightB:            0.5,
		WideSplitThreshold: 30,
		MaxPoints:          5,
	}
}

// Engine reconciles scored opinions into a single consensus verdict.
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates a consensus engine, filling unset config fields with
// defaults.
func NewEngine(cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.WeightA <= 0 && cfg.WeightB <= 0 {
		cfg.WeightA, cfg.WeightB = def.WeightA, def.WeightB
	}
	if cfg.WideSplitThreshold <= 0 {
		cfg.WideSplitThreshold = def.WideSplitThreshold
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = def.MaxPoints
	}
	return &Engine{cfg: cfg}
}

// Reconcile merges two opinions into a ConsensusResult. Both opinions must be
// present; a missing opinion is an orchestration-level condition handled by
// ReconcileDegraded. The consensus score is commutative in the two scores.
func (e *Engine) Reconcile(a, b *Opinion) (*ConsensusResult, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("reconcile: both opinions required (a=%v b=%v)", a != nil, b != nil)
	}

	diff := a.Score - b.Score
	if diff < 0 {
		diff = -diff
	}

	wsum := e.cfg.WeightA + e.cfg.WeightB
	base := (float64(a.Score)*e.cfg.WeightA + float64(b.Score)*e.cfg.WeightB) / wsum

	score := int(math.Round(base))
	if diff > e.cfg.WideSplitThreshold {
		// Wide split: pull the average halfway toward the lower score so a
		// split like 88/40 can never read as agreement.
		lower := math.Min(float64(a.Score), float64(b.Score))
		score = int(math.Round(lower + (base-lower)/2))
	}
	score = clampScore(score)

	agreements, disagreements := matchFindings(a, b, e.cfg.MaxPoints)

	return &ConsensusResult{
		ConsensusScore:  score,
		Interpretation:  BandFor(score),
		Recommendation:  RecommendationFor(score),
		OpinionA:        a,
		OpinionB:        b,
		Agreements:      agreements,
		Disagreements:   disagreements,
		ScoreDifference: diff,
	}, nil
}

// ReconcileDegraded builds a verdict from the single surviving opinion after
// the other invoker failed. The score is taken as-is, the band is demoted one
// level, and a disagreement entry records the missing perspective.
func (e *Engine) ReconcileDegraded(surviving *Opinion, missingSource string) (*ConsensusResult, error) {
	if surviving == nil {
		return nil, fmt.Errorf("reconcile degraded: surviving opinion required")
	}
	score := clampScore(surviving.Score)
	res := &ConsensusResult{
		ConsensusScore: score,
		Interpretation: Demote(BandFor(score)),
		Recommendation: RecommendationFor(score),
		Degraded:       true,
		Disagreements: []DisagreementPoint{{
			Source: missingSource,
			Text:   fmt.Sprintf("no opinion from %s: backend failed, verdict based on %s alone", missingSource, surviving.Source),
		}},
	}
	if surviving.Source == "B" {
		res.OpinionB = surviving
	} else {
		res.OpinionA = surviving
	}
	return res, nil
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// matchFindings extracts agreements (same category and sentiment, overlapping
// wording) and disagreements (findings with no counterpart on the other side).
func matchFindings(a, b *Opinion, max int) ([]string, []DisagreementPoint) {
	var agreements []string
	matchedA := make([]bool, len(a.Findings))
	matchedB := make([]bool, len(b.Findings))

	for i, fa := range a.Findings {
		for j, fb := range b.Findings {
			if matchedB[j] {
				continue
			}
			if findingsAgree(fa, fb) {
				matchedA[i] = true
				matchedB[j] = true
				agreements = append(agreements, fa.Text)
				break
			}
		}
	}

	var disagreements []DisagreementPoint
	for i, fa := range a.Findings {
		if !matchedA[i] {
			disagreements = append(disagreements, DisagreementPoint{Source: a.Source, Text: fa.Text})
		}
	}
	for j, fb := range b.Findings {
		if !matchedB[j] {
			disagreements = append(disagreements, DisagreementPoint{Source: b.Source, Text: fb.Text})
		}
	}

	if len(agreements) > max {
		agreements = agreements[:max]
	}
	if len(disagreements) > max {
		disagreements = disagreements[:max]
	}
	return agreements, disagreements
}

// findingsAgree is a fuzzy match: same category, same sentiment, and enough
// shared significant tokens. Exact text equality is not required.
func findingsAgree(a, b Finding) bool {
	if a.Category != b.Category || a.Positive != b.Positive {
		return false
	}
	ta := tokenize(a.Text)
	tb := tokenize(b.Text)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	shared := 0
	for tok := range ta {
		if tb[tok] {
			shared++
		}
	}
	smaller := len(ta)
	if len(tb) < smaller {
		smaller = len(tb)
	}
	// A third of the smaller token set must overlap, with at least one hit.
	return shared >= (smaller+2)/3
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "is": true, "it": true, "this": true, "that": true,
	"for": true, "on": true, "with": true, "be": true, "are": true, "as": true,
}

func tokenize(text string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,;:!?()[]\"'")
		if len(f) < 3 || stopwords[f] {
			continue
		}
		out[f] = true
	}
	return out
}
