package invoke

import (
	"testing"

	"arbiter/internal/debate"
)

func TestExtractScore(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"canonical", "Looks good overall.\nScore: 85/100", 85},
		{"colon only", "score: 72", 72},
		{"rating variant", "Rating: 90", 90},
		{"slash hundred", "I'd put this at 64/100 given the risks.", 64},
		{"give phrasing", "I would give it a 55 for now", 55},
		{"no score falls back", "This is a thoughtful proposal with no number.", 75},
		{"out of range ignored", "Score: 250", 75},
		{"zero is valid", "Score: 0/100", 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExtractScore(c.text, 75); got != c.want {
				t.Fatalf("ExtractScore(%q): got %d, want %d", c.text, got, c.want)
			}
		})
	}
}

func TestParseOpinion(t *testing.T) {
	response := "The migration plan is solid and the schema changes are appropriate. " +
		"However, there is a critical risk of data loss during the rollback step. " +
		"The weather outside is irrelevant narration. " +
		"Score: 68/100"

	op := ParseOpinion(response, "A", 75)
	if op.Source != "A" {
		t.Fatalf("source: got %q", op.Source)
	}
	if op.Score != 68 {
		t.Fatalf("score: got %d, want 68", op.Score)
	}
	if op.Summary == "" {
		t.Fatal("summary empty")
	}
	if len(op.Findings) != 2 {
		t.Fatalf("findings: got %d (%+v), want 2", len(op.Findings), op.Findings)
	}

	positive := op.Findings[0]
	if positive.Category != "database" || !positive.Positive || positive.Severity != debate.SeverityLow {
		t.Fatalf("positive finding misclassified: %+v", positive)
	}

	negative := op.Findings[1]
	if negative.Category != "database" || negative.Positive || negative.Severity != debate.SeverityHigh {
		t.Fatalf("negative finding misclassified: %+v", negative)
	}
}

func TestParseOpinion_NeutralTextHasNoFindings(t *testing.T) {
	op := ParseOpinion("The service reads config at startup. It then listens. Score: 80/100", "B", 75)
	if len(op.Findings) != 0 {
		t.Fatalf("neutral narration produced findings: %+v", op.Findings)
	}
}

func TestClassify_CategoryOrderIsDeterministic(t *testing.T) {
	// A sentence matching several families must always classify the same way.
	sentence := "concern about the security of the database transaction handling"
	for i := 0; i < 20; i++ {
		f, ok := classify(sentence)
		if !ok {
			t.Fatal("sentence with a judgment keyword produced no finding")
		}
		if f.Category != "security" {
			t.Fatalf("iteration %d: category %q, want security (first family checked)", i, f.Category)
		}
	}
}

func TestSummarize_TruncatesRunesNotBytes(t *testing.T) {
	long := ""
	for i := 0; i < 300; i++ {
		long += "é"
	}
	got := summarize(long, 200)
	if len([]rune(got)) != 200 {
		t.Fatalf("summary length: %d runes, want 200", len([]rune(got)))
	}
}
