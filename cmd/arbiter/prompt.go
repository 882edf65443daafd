package main

import (
	"fmt"
	"os"
	"strings"

	"arbiter/internal/debate"
)

// maxContextLines bounds how much of each artifact goes into the prompt.
const maxContextLines = 200

// promptBuilder renders role-specific prompts. Role A gets the primary
// analysis framing, role B the critical counter-perspective, so the two
// opinions come from genuinely different stances even when the backends are
// the same model family.
type promptBuilder struct {
	contexts map[string]string // artifact path -> truncated content
}

func newPromptBuilder(paths []string) *promptBuilder {
	b := &promptBuilder{contexts: make(map[string]string)}
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			continue // already validated when the artifact was loaded
		}
		b.contexts[p] = truncateLines(string(content), maxContextLines)
	}
	return b
}

func (b *promptBuilder) build(req debate.Request, role string) string {
	var sb strings.Builder

	if role == "B" {
		sb.WriteString("You are a senior software architect providing a COUNTER-PERSPECTIVE on this proposal.\n")
		sb.WriteString("Be skeptical and critical; identify risks and concerns others might miss.\n\n")
	} else {
		sb.WriteString("You are a senior software architect reviewing this proposal.\n")
		sb.WriteString("Provide an independent, thorough analysis.\n\n")
	}

	fmt.Fprintf(&sb, "PROPOSAL:\n%s\n\n", req.Topic)

	if len(req.Artifacts) > 0 {
		sb.WriteString("RELEVANT CONTEXT:\n")
		for _, art := range req.Artifacts {
			if ctx, ok := b.contexts[art.Path]; ok {
				fmt.Fprintf(&sb, "--- %s ---\n%s\n", art.Path, ctx)
			}
		}
		sb.WriteString("\n")
	}

	if len(req.FocusAreas) > 0 {
		sb.WriteString("FOCUS AREAS:\n")
		for _, area := range req.FocusAreas {
			fmt.Fprintf(&sb, "- %s\n", area)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("End your response with a numerical score (0-100) like 'Score: 85/100'.\n")
	return sb.String()
}

func truncateLines(s string, max int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	return strings.Join(lines[:max], "\n") + "\n... (truncated)"
}
