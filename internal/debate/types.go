package debate

import "time"

// DefaultTargetConsensus is used when a request does not set one.
const DefaultTargetConsensus = 75

// Artifact is one referenced piece of content under debate. The digest is
// computed over content, never over the path, so moving a file does not
// invalidate caches.
type Artifact struct {
	Path   string `json:"path,omitempty"`
	Digest string `json:"digest"`
	Size   int    `json:"size,omitempty"`
}

// Request describes one debate. Immutable once submitted.
type Request struct {
	Topic           string     `json:"topic"`
	Artifacts       []Artifact `json:"artifacts,omitempty"`
	FocusAreas      []string   `json:"focus_areas,omitempty"`
	TargetConsensus int        `json:"target_consensus"`
}

// Severity of a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Finding is one structured point extracted from a backend response.
type Finding struct {
	Category string   `json:"category"`
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
	Positive bool     `json:"positive,omitempty"`
}

// Opinion is one backend's scored evaluation of a request.
type Opinion struct {
	Source   string    `json:"source"` // role label: "A" or "B"
	Score    int       `json:"score"`  // 0-100
	Summary  string    `json:"summary"`
	Findings []Finding `json:"findings,omitempty"`
}

// Interpretation bands for a consensus score.
type Interpretation string

const (
	StrongAgreement   Interpretation = "Strong Agreement"    // >= 90
	GoodAgreement     Interpretation = "Good Agreement"      // 75-89
	ModerateAgreement Interpretation = "Moderate Agreement"  // 60-74
	Disagreement      Interpretation = "Disagreement"        // < 60
)

// Recommendation is the action derived from the consensus score.
type Recommendation string

const (
	Proceed            Recommendation = "PROCEED"
	ProceedWithCaution Recommendation = "PROCEED_WITH_CAUTION"
	Revise             Recommendation = "REVISE"
	Block              Recommendation = "BLOCK"
)

// Disagreement entries carry the source whose finding had no counterpart.
type DisagreementPoint struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// ConsensusResult is the reconciled verdict over two opinions. Derived
// deterministically; never mutated after construction.
type ConsensusResult struct {
	ConsensusScore  int                 `json:"consensus_score"`
	Interpretation  Interpretation      `json:"interpretation"`
	Recommendation  Recommendation      `json:"recommendation"`
	OpinionA        *Opinion            `json:"opinion_a,omitempty"`
	OpinionB        *Opinion            `json:"opinion_b,omitempty"`
	Agreements      []string            `json:"agreements,omitempty"`
	Disagreements   []DisagreementPoint `json:"disagreements,omitempty"`
	ScoreDifference int                 `json:"score_difference"`
	Degraded        bool                `json:"degraded,omitempty"`
}

// Timings breaks the debate pipeline down per phase.
type Timings struct {
	Precheck  time.Duration `json:"precheck"`
	InvokeA   time.Duration `json:"invoke_a"`
	InvokeB   time.Duration `json:"invoke_b"`
	Reconcile time.Duration `json:"reconcile"`
	Total     time.Duration `json:"total"`
}

// Result is the orchestrator's produced shape: the consensus verdict plus
// cache and timing metadata.
type Result struct {
	DebateID  string           `json:"debate_id,omitempty"`
	Consensus *ConsensusResult `json:"consensus"`
	Risk      *RiskAssessment  `json:"risk,omitempty"`
	CacheHit  bool             `json:"cache_hit"`
	Elapsed   time.Duration    `json:"elapsed_time"`
	Timings   Timings          `json:"timings"`
}

// RiskAssessment is the pre-debate advisory produced by the risk model.
type RiskAssessment struct {
	Level               string         `json:"risk_level"` // low, medium, high
	Confidence          float64        `json:"confidence"` // 0-1
	MatchedPatterns     []PatternMatch `json:"matched_patterns,omitempty"`
	SuggestedFocusAreas []string       `json:"suggested_focus_areas,omitempty"`
}

// PatternMatch names a historical pattern that matched the current request.
type PatternMatch struct {
	Signature string  `json:"signature"`
	Frequency int     `json:"frequency"`
	Relevance float64 `json:"relevance"`
}

// BandFor maps a consensus score to its interpretation band. Bands are
// disjoint: every score maps to exactly one.
func BandFor(score int) Interpretation {
	switch {
	case score >= 90:
		return StrongAgreement
	case score >= 75:
		return GoodAgreement
	case score >= 60:
		return ModerateAgreement
	default:
		return Disagreement
	}
}

// RecommendationFor maps a consensus score to an action. REVISE is chosen
// over BLOCK only at score >= 40.
func RecommendationFor(score int) Recommendation {
	switch {
	case score >= 90:
		return Proceed
	case score >= 75:
		return ProceedWithCaution
	case score >= 40:
		return Revise
	default:
		return Block
	}
}

// Demote returns the band one level more cautious than b. Disagreement
// stays where it is.
func Demote(b Interpretation) Interpretation {
	switch b {
	case StrongAgreement:
		return GoodAgreement
	case GoodAgreement:
		return ModerateAgreement
	default:
		return Disagreement
	}
}
