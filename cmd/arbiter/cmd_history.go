package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"arbiter/internal/store"
)

var historyFlags struct {
	configPath string
	dbPath     string
	limit      int
	jsonOut    bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past debates, most recent first",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.configPath, "config", "", "Config file path (default: .arbiter/config.yaml)")
	f.StringVar(&historyFlags.dbPath, "db", "", "History DB path (overrides config)")
	f.IntVar(&historyFlags.limit, "limit", 20, "Maximum records to show")
	f.BoolVar(&historyFlags.jsonOut, "json", false, "Print records as JSON")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	configPath := historyFlags.configPath
	if configPath == "" {
		configPath = ".arbiter/config.yaml"
	}
	comps, err := buildComponents(configPath, historyFlags.dbPath)
	if err != nil {
		return err
	}
	defer comps.close()

	records, err := comps.store.GetRecent(historyFlags.limit)
	if err != nil {
		return err
	}

	if historyFlags.jsonOut {
		return printJSON(os.Stdout, records)
	}

	if len(records) == 0 {
		fmt.Println("No debates recorded yet.")
		return nil
	}
	for _, rec := range records {
		printHistoryLine(rec)
	}
	return nil
}

func printHistoryLine(rec *store.Record) {
	outcome := "pending"
	if rec.Outcome != nil {
		if rec.Outcome.Confirmed {
			outcome = "confirmed"
		} else {
			outcome = "wrong"
		}
	}
	score := 0
	recommendation := ""
	if rec.Consensus != nil {
		score = rec.Consensus.ConsensusScore
		recommendation = string(rec.Consensus.Recommendation)
	}
	fmt.Printf("%s  %s  %3d/100  %-20s  %-9s  %s\n",
		rec.ID[:8],
		rec.CreatedAt.Local().Format(time.DateTime),
		score,
		recommendation,
		outcome,
		truncateTopic(rec.Request.Topic, 50))
}

func truncateTopic(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
