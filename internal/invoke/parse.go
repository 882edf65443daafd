package invoke

import (
	"regexp"
	"strconv"
	"strings"

	"arbiter/internal/debate"
)

// Score extraction patterns, most specific first. Backends are asked to end
// with "Score: NN/100" but in practice emit several variants.
var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:score|rating):\s*(\d{1,3})`),
	regexp.MustCompile(`(\d{1,3})\s*/\s*100`),
	regexp.MustCompile(`(?i)(?:give|assign)\s+(?:it\s+)?(?:a\s+)?(\d{1,3})`),
}

// categoryKeywords classifies a sentence into a finding category. Families
// follow the recurring-risk taxonomy learned from debate history. Checked in
// order so classification is deterministic when several families match.
var categoryKeywords = []struct {
	name  string
	words []string
}{
	{"security", []string{"security", "vulnerability", "injection", "secret", "credential", "auth"}},
	{"database", []string{"transaction", "migration", "schema", "database", "rollback", "atomic", "query"}},
	{"architecture", []string{"coupling", "dependency", "circular", "interface", "boundary", "architecture", "design", "module"}},
	{"testing", []string{"test", "coverage", "untested", "regression suite", "assertion"}},
	{"performance", []string{"performance", "slow", "latency", "optimization", "memory", "allocation"}},
	{"compatibility", []string{"backward", "compatibility", "breaking", "deprecated", "version"}},
}

var negativeKeywords = []string{
	"disagree", "concern", "risk", "issue", "problem", "wrong", "incorrect",
	"mistake", "missing", "lacks", "incomplete", "alternative", "instead",
	"flaw", "danger", "fragile",
}

var positiveKeywords = []string{
	"agree", "correct", "good", "excellent", "well-designed", "appropriate",
	"solid", "sound", "effective", "reasonable", "clean",
}

var highSeverityKeywords = []string{"critical", "severe", "must", "blocker", "data loss", "corruption"}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// ExtractScore pulls a 0-100 score out of free-form backend output,
// returning def when none is found.
func ExtractScore(text string, def int) int {
	for _, pat := range scorePatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 0 && n <= 100 {
			return n
		}
	}
	return def
}

// ParseOpinion turns a backend's raw text response into a structured Opinion:
// score, truncated summary, and keyword-classified findings.
func ParseOpinion(response, source string, defaultScore int) *debate.Opinion {
	op := &debate.Opinion{
		Source:  source,
		Score:   ExtractScore(response, defaultScore),
		Summary: summarize(response, 200),
	}
	for _, sentence := range splitSentences(response) {
		f, ok := classify(sentence)
		if ok {
			op.Findings = append(op.Findings, f)
		}
	}
	return op
}

// classify maps a sentence to a Finding when it expresses a positive or
// negative judgment. Neutral narration produces no finding.
func classify(sentence string) (debate.Finding, bool) {
	lower := strings.ToLower(sentence)

	positive := containsAny(lower, positiveKeywords)
	negative := containsAny(lower, negativeKeywords)
	if !positive && !negative {
		return debate.Finding{}, false
	}

	category := "general"
	for _, cat := range categoryKeywords {
		if containsAny(lower, cat.words) {
			category = cat.name
			break
		}
	}

	severity := debate.SeverityLow
	if negative {
		severity = debate.SeverityMedium
		if containsAny(lower, highSeverityKeywords) {
			severity = debate.SeverityHigh
		}
	}

	return debate.Finding{
		Category: category,
		Text:     strings.TrimSpace(sentence),
		Severity: severity,
		Positive: positive && !negative,
	}, true
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func summarize(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}
