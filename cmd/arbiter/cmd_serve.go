package main

import (
	"context"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"arbiter/internal/debate"
	"arbiter/internal/logging"
	mcpserver "arbiter/internal/mcp"
)

var serveFlags struct {
	configPath string
	dbPath     string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio for agent host integration",
	Long: `Starts an MCP server over stdin/stdout exposing run_debate, record_outcome,
get_history, and get_stats. An agent host connects via its mcp.json and calls
the debate pipeline directly.

The server monitors for parent process death. When the host disconnects or
restarts, the server self-terminates to prevent zombie processes.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.configPath, "config", "", "Config file path (default: .arbiter/config.yaml)")
	f.StringVar(&serveFlags.dbPath, "db", "", "History DB path (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath := serveFlags.configPath
	if configPath == "" {
		configPath = ".arbiter/config.yaml"
	}
	comps, err := buildComponents(configPath, serveFlags.dbPath)
	if err != nil {
		return err
	}
	defer comps.close()

	// Tool calls carry artifact paths per request, so the prompt builder is
	// rebuilt from the request instead of being fixed at startup.
	comps.orchestrator.PromptFor = func(req debate.Request, role string) string {
		paths := make([]string, 0, len(req.Artifacts))
		for _, a := range req.Artifacts {
			paths = append(paths, a.Path)
		}
		return newPromptBuilder(paths).build(req, role)
	}

	srv := mcpserver.NewServer(mcpserver.Deps{
		Orchestrator: comps.orchestrator,
		Store:        comps.store,
		Learner:      comps.learner,
		Cache:        comps.cache,
		Patterns:     comps.patterns,
	})
	defer srv.Shutdown()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting arbiter MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
