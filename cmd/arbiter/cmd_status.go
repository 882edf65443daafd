package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusFlags struct {
	configPath string
	dbPath     string
	jsonOut    bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show history stats, cache state, and learned patterns",
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusFlags.configPath, "config", "", "Config file path (default: .arbiter/config.yaml)")
	f.StringVar(&statusFlags.dbPath, "db", "", "History DB path (overrides config)")
	f.BoolVar(&statusFlags.jsonOut, "json", false, "Print status as JSON")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	configPath := statusFlags.configPath
	if configPath == "" {
		configPath = ".arbiter/config.yaml"
	}
	comps, err := buildComponents(configPath, statusFlags.dbPath)
	if err != nil {
		return err
	}
	defer comps.close()

	stats, err := comps.store.Stats()
	if err != nil {
		return fmt.Errorf("load history stats: %w", err)
	}
	patterns := comps.patterns.Patterns()

	if statusFlags.jsonOut {
		return printJSON(os.Stdout, map[string]any{
			"history":  stats,
			"cache":    comps.cache.Stats(),
			"patterns": patterns,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Debates:       %d (avg consensus %.1f)\n", stats.TotalDebates, stats.AvgConsensus)
	fmt.Fprintf(out, "Outcomes:      %d confirmed, %d wrong, %d pending\n",
		stats.ConfirmedCount, stats.UnconfirmedCount, stats.PendingCount)
	cs := comps.cache.Stats()
	fmt.Fprintf(out, "Cache:         %d entries (%d valid, %d expired)\n", cs.Total, cs.Valid, cs.Expired)

	if len(patterns) == 0 {
		fmt.Fprintln(out, "Patterns:      none yet (need recurring signatures in history)")
		return nil
	}
	fmt.Fprintf(out, "Patterns:      %d learned\n", len(patterns))
	for _, p := range patterns {
		fmt.Fprintf(out, "  %-26s seen %dx, avg score %.0f, confirmed ratio %.2f\n",
			p.Signature, p.Frequency, p.AvgScore, p.ConfirmedRatio())
	}
	return nil
}
