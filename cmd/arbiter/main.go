package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Dual-backend debate orchestration with consensus scoring",
	Long: "Arbiter fans a proposal out to two reasoning backends, reconciles their\nscored opinions into one consensus verdict, and learns from confirmed outcomes.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(debateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(outcomeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
