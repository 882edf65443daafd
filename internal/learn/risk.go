package learn

import (
	"sort"
	"strings"

	"arbiter/internal/debate"
)

// focusAreaFor maps a risk signature to the focus area a new debate should
// probe when that risk matched.
var focusAreaFor = map[string]string{
	"circular_imports":       "architecture",
	"transaction_boundaries": "database",
	"missing_migration":      "database",
	"tight_coupling":         "architecture",
	"unclear_interfaces":     "architecture",
	"insufficient_testing":   "testing",
	"performance_regression": "performance",
	"backward_compatibility": "architecture",
}

// RiskModel scores a new request against the derived pattern set.
type RiskModel struct {
	patterns *PatternModel
}

// NewRiskModel wires a risk model over a pattern model.
func NewRiskModel(patterns *PatternModel) *RiskModel {
	return &RiskModel{patterns: patterns}
}

// Assess matches the request's text against pattern signatures and grades
// the risk. Confidence scales with how many patterns matched, how frequent
// they are, and how their past outcomes went: patterns whose debates were
// later confirmed wrong weigh heavier.
func (r *RiskModel) Assess(req debate.Request) *debate.RiskAssessment {
	text := requestText(req)
	patterns := r.patterns.Patterns()

	var matches []debate.PatternMatch
	var focusAreas []string
	seenFocus := make(map[string]bool)
	riskWeight := 0.0

	for _, p := range patterns {
		if !containsAny(text, p.Keywords) {
			continue
		}
		relevance := relevanceOf(p)
		matches = append(matches, debate.PatternMatch{
			Signature: p.Signature,
			Frequency: p.Frequency,
			Relevance: relevance,
		})
		riskWeight += relevance * (1 - p.ConfirmedRatio())
		if fa, ok := focusAreaFor[p.Signature]; ok && !seenFocus[fa] {
			seenFocus[fa] = true
			focusAreas = append(focusAreas, fa)
		}
	}

	if len(matches) == 0 {
		return &debate.RiskAssessment{Level: "low", Confidence: 0}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Relevance > matches[j].Relevance })
	sort.Strings(focusAreas)

	level := "low"
	if riskWeight >= 0.6 {
		level = "high"
	} else if riskWeight >= 0.25 {
		level = "medium"
	}

	return &debate.RiskAssessment{
		Level:               level,
		Confidence:          confidenceOf(matches),
		MatchedPatterns:     matches,
		SuggestedFocusAreas: focusAreas,
	}
}

// relevanceOf weighs a pattern by its frequency (capped at 10 occurrences)
// and its failure history.
func relevanceOf(p Pattern) float64 {
	freq := float64(p.Frequency) / 10
	if freq > 1 {
		freq = 1
	}
	failurePenalty := 1 - p.ConfirmedRatio()
	return 0.6*freq + 0.4*failurePenalty
}

// confidenceOf blends match count and average frequency, mirroring how the
// pattern evidence accumulates: more matched patterns seen more often means
// stronger grounds for the advisory.
func confidenceOf(matches []debate.PatternMatch) float64 {
	countScore := float64(len(matches)) / 5
	if countScore > 1 {
		countScore = 1
	}
	freqSum := 0
	for _, m := range matches {
		freqSum += m.Frequency
	}
	avgFreq := float64(freqSum) / float64(len(matches)) / 10
	if avgFreq > 1 {
		avgFreq = 1
	}
	c := 0.5*countScore + 0.5*avgFreq
	if c > 1 {
		c = 1
	}
	return c
}

func requestText(req debate.Request) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(req.Topic))
	for _, fa := range req.FocusAreas {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(fa))
	}
	for _, art := range req.Artifacts {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(art.Path))
	}
	return b.String()
}
