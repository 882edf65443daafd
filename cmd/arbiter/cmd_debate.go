package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"arbiter/internal/debate"
)

var debateFlags struct {
	configPath string
	dbPath     string
	focus      []string
	target     int
	timeout    time.Duration
	jsonOut    bool
}

var debateCmd = &cobra.Command{
	Use:   "debate <topic> [artifact files...]",
	Short: "Run a two-backend debate and print the consensus verdict",
	Long: `Fans the topic (plus any artifact files) out to both configured backends
concurrently, reconciles their scored opinions, and prints the consensus.

Identical requests within the cache TTL return the cached verdict:

  arbiter debate "Refactor the payment service" internal/pay/service.go
  arbiter debate "Split user model" --focus database --focus architecture`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDebate,
}

func init() {
	f := debateCmd.Flags()
	f.StringVar(&debateFlags.configPath, "config", "", "Config file path (default: .arbiter/config.yaml)")
	f.StringVar(&debateFlags.dbPath, "db", "", "History DB path (overrides config)")
	f.StringSliceVar(&debateFlags.focus, "focus", nil, "Focus area (repeatable)")
	f.IntVar(&debateFlags.target, "target", 0, "Target consensus score 0-100 (default from config)")
	f.DurationVar(&debateFlags.timeout, "timeout", 10*time.Minute, "Overall request deadline")
	f.BoolVar(&debateFlags.jsonOut, "json", false, "Print the raw result as JSON")
}

func runDebate(cmd *cobra.Command, args []string) error {
	configPath := debateFlags.configPath
	if configPath == "" {
		configPath = ".arbiter/config.yaml"
	}
	comps, err := buildComponents(configPath, debateFlags.dbPath)
	if err != nil {
		return err
	}
	defer comps.close()

	topic := args[0]
	paths := args[1:]

	artifacts, err := debate.LoadArtifacts(paths)
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	target := debateFlags.target
	if target == 0 {
		target = comps.cfg.TargetConsensus
	}
	req := debate.Request{
		Topic:           topic,
		Artifacts:       artifacts,
		FocusAreas:      debateFlags.focus,
		TargetConsensus: target,
	}

	builder := newPromptBuilder(paths)
	comps.orchestrator.PromptFor = builder.build

	ctx, cancel := cmd.Context(), func() {}
	if debateFlags.timeout > 0 {
		ctx, cancel = contextWithTimeout(ctx, debateFlags.timeout)
	}
	defer cancel()

	result, err := comps.orchestrator.RunDebate(ctx, req)
	if err != nil {
		return err
	}

	if debateFlags.jsonOut {
		return printJSON(os.Stdout, result)
	}
	printResult(os.Stdout, req, result)
	return nil
}

// printResult renders the human-readable consensus report.
func printResult(w *os.File, req debate.Request, result *debate.Result) {
	cons := result.Consensus
	line := strings.Repeat("=", 60)

	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "CONSENSUS VERDICT")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Topic:           %s\n", req.Topic)
	fmt.Fprintf(w, "Consensus Score: %d/100 (target %d)\n", cons.ConsensusScore, req.TargetConsensus)
	fmt.Fprintf(w, "Interpretation:  %s\n", cons.Interpretation)
	fmt.Fprintf(w, "Recommendation:  %s\n", cons.Recommendation)
	if cons.Degraded {
		fmt.Fprintln(w, "Mode:            DEGRADED (one backend failed)")
	}
	if opA := cons.OpinionA; opA != nil {
		fmt.Fprintf(w, "Backend A:       %d/100\n", opA.Score)
	}
	if opB := cons.OpinionB; opB != nil {
		fmt.Fprintf(w, "Backend B:       %d/100\n", opB.Score)
	}

	if len(cons.Agreements) > 0 {
		fmt.Fprintln(w, "\nPoints of agreement:")
		for i, a := range cons.Agreements {
			fmt.Fprintf(w, "  %d. %s\n", i+1, a)
		}
	}
	if len(cons.Disagreements) > 0 {
		fmt.Fprintln(w, "\nDisagreements:")
		for i, d := range cons.Disagreements {
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, d.Source, d.Text)
		}
	}
	if result.Risk != nil && len(result.Risk.MatchedPatterns) > 0 {
		fmt.Fprintf(w, "\nPre-check: %s risk (confidence %.0f%%)\n", result.Risk.Level, result.Risk.Confidence*100)
		for _, m := range result.Risk.MatchedPatterns {
			fmt.Fprintf(w, "  - %s (seen %dx)\n", m.Signature, m.Frequency)
		}
	}

	fmt.Fprintln(w)
	if result.CacheHit {
		fmt.Fprintf(w, "Elapsed: %s (cache hit)\n", result.Elapsed.Round(time.Millisecond))
	} else {
		fmt.Fprintf(w, "Elapsed: %s (A: %s, B: %s)\n",
			result.Elapsed.Round(time.Millisecond),
			result.Timings.InvokeA.Round(time.Millisecond),
			result.Timings.InvokeB.Round(time.Millisecond))
	}
	if result.DebateID != "" {
		fmt.Fprintf(w, "Debate ID: %s (record the outcome later with 'arbiter outcome')\n", result.DebateID)
	}
	fmt.Fprintln(w, line)
}
