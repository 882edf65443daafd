// Package mcp exposes the debate pipeline as MCP tools over stdio, so an
// agent host can run debates and record outcomes without shelling out to the
// CLI.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"arbiter/internal/cache"
	"arbiter/internal/debate"
	"arbiter/internal/learn"
	"arbiter/internal/logging"
	"arbiter/internal/orchestrate"
	"arbiter/internal/store"
)

// DefaultDebateTimeout bounds a single run_debate call when the client does
// not pass its own timeout.
var DefaultDebateTimeout = 10 * time.Minute

// Deps are the pipeline components the server operates on. The caller owns
// their lifecycle; Shutdown does not close them.
type Deps struct {
	Orchestrator *orchestrate.Orchestrator
	Store        store.Store
	Learner      *learn.Learner
	Cache        *cache.Cache
	Patterns     *learn.PatternModel
}

// Server wraps the MCP SDK server around the debate pipeline.
type Server struct {
	MCPServer *sdkmcp.Server

	deps Deps
}

// NewServer creates an MCP server exposing the debate tools.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "arbiter", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_debate",
		Description: "Run a two-backend debate on a proposal and return the consensus verdict. Identical requests within the cache TTL return the cached verdict.",
	}, s.handleRunDebate)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "record_outcome",
		Description: "Record whether a past debate's recommendation held up. Sets the outcome exactly once and refreshes the learned pattern model.",
	}, s.handleRecordOutcome)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_history",
		Description: "List past debates, most recent first.",
	}, s.handleGetHistory)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_stats",
		Description: "Get aggregate history stats, cache state, and the learned risk patterns.",
	}, s.handleGetStats)
}

// --- Tool input/output types ---

type runDebateInput struct {
	Topic           string   `json:"topic" jsonschema:"the proposal or question to debate"`
	Artifacts       []string `json:"artifacts,omitempty" jsonschema:"file paths providing context for the debate"`
	FocusAreas      []string `json:"focus_areas,omitempty" jsonschema:"aspects to weigh (e.g. database, architecture, testing)"`
	TargetConsensus int      `json:"target_consensus,omitempty" jsonschema:"consensus score considered sufficient (default 75)"`
	TimeoutMS       int      `json:"timeout_ms,omitempty" jsonschema:"max wait in milliseconds (default 10 minutes)"`
}

type runDebateOutput struct {
	DebateID       string                     `json:"debate_id,omitempty"`
	ConsensusScore int                        `json:"consensus_score"`
	Interpretation string                     `json:"interpretation"`
	Recommendation string                     `json:"recommendation"`
	ScoreA         int                        `json:"score_a,omitempty"`
	ScoreB         int                        `json:"score_b,omitempty"`
	Agreements     []string                   `json:"agreements,omitempty"`
	Disagreements  []debate.DisagreementPoint `json:"disagreements,omitempty"`
	Degraded       bool                       `json:"degraded,omitempty"`
	CacheHit       bool                       `json:"cache_hit"`
	Risk           *debate.RiskAssessment     `json:"risk,omitempty"`
	ElapsedMS      int64                      `json:"elapsed_ms"`
}

type recordOutcomeInput struct {
	DebateID  string `json:"debate_id" jsonschema:"debate ID from run_debate or get_history"`
	Confirmed bool   `json:"confirmed" jsonschema:"true if the recommendation proved correct"`
	Notes     string `json:"notes,omitempty" jsonschema:"free-form notes about what happened"`
}

type recordOutcomeOutput struct {
	OK string `json:"ok"`
}

type getHistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum records to return (default 20)"`
}

type getHistoryOutput struct {
	Records []*store.Record `json:"records"`
	Total   int             `json:"total"`
}

type getStatsInput struct{}

type getStatsOutput struct {
	History  *store.Stats    `json:"history"`
	Cache    cache.Stats     `json:"cache"`
	Patterns []learn.Pattern `json:"patterns"`
}

// --- Tool handlers ---

func (s *Server) handleRunDebate(ctx context.Context, _ *sdkmcp.CallToolRequest, input runDebateInput) (*sdkmcp.CallToolResult, runDebateOutput, error) {
	artifacts, err := debate.LoadArtifacts(input.Artifacts)
	if err != nil {
		return nil, runDebateOutput{}, fmt.Errorf("run_debate: %w", err)
	}
	req := debate.Request{
		Topic:           input.Topic,
		Artifacts:       artifacts,
		FocusAreas:      input.FocusAreas,
		TargetConsensus: input.TargetConsensus,
	}

	timeout := DefaultDebateTimeout
	if input.TimeoutMS > 0 {
		timeout = time.Duration(input.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.deps.Orchestrator.RunDebate(ctx, req)
	if err != nil {
		if errors.Is(err, orchestrate.ErrInvalidRequest) {
			return nil, runDebateOutput{}, fmt.Errorf("run_debate: %w", err)
		}
		return nil, runDebateOutput{}, fmt.Errorf("run_debate failed: %w", err)
	}

	cons := result.Consensus
	out := runDebateOutput{
		DebateID:       result.DebateID,
		ConsensusScore: cons.ConsensusScore,
		Interpretation: string(cons.Interpretation),
		Recommendation: string(cons.Recommendation),
		Agreements:     cons.Agreements,
		Disagreements:  cons.Disagreements,
		Degraded:       cons.Degraded,
		CacheHit:       result.CacheHit,
		Risk:           result.Risk,
		ElapsedMS:      result.Elapsed.Milliseconds(),
	}
	if cons.OpinionA != nil {
		out.ScoreA = cons.OpinionA.Score
	}
	if cons.OpinionB != nil {
		out.ScoreB = cons.OpinionB.Score
	}
	return nil, out, nil
}

func (s *Server) handleRecordOutcome(ctx context.Context, _ *sdkmcp.CallToolRequest, input recordOutcomeInput) (*sdkmcp.CallToolResult, recordOutcomeOutput, error) {
	if input.DebateID == "" {
		return nil, recordOutcomeOutput{}, fmt.Errorf("debate_id is required")
	}

	err := s.deps.Learner.Learn(input.DebateID, input.Confirmed, input.Notes)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, recordOutcomeOutput{}, fmt.Errorf("no debate with id %s", input.DebateID)
	case errors.Is(err, store.ErrAlreadyRecorded):
		return nil, recordOutcomeOutput{}, fmt.Errorf("debate %s already has an outcome recorded", input.DebateID)
	case err != nil:
		return nil, recordOutcomeOutput{}, fmt.Errorf("record_outcome: %w", err)
	}

	logging.New("mcp").Info("outcome recorded", "debate_id", input.DebateID, "confirmed", input.Confirmed)
	return nil, recordOutcomeOutput{OK: "outcome recorded"}, nil
}

func (s *Server) handleGetHistory(ctx context.Context, _ *sdkmcp.CallToolRequest, input getHistoryInput) (*sdkmcp.CallToolResult, getHistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	records, err := s.deps.Store.GetRecent(limit)
	if err != nil {
		return nil, getHistoryOutput{}, fmt.Errorf("get_history: %w", err)
	}
	return nil, getHistoryOutput{Records: records, Total: len(records)}, nil
}

func (s *Server) handleGetStats(ctx context.Context, _ *sdkmcp.CallToolRequest, _ getStatsInput) (*sdkmcp.CallToolResult, getStatsOutput, error) {
	stats, err := s.deps.Store.Stats()
	if err != nil {
		return nil, getStatsOutput{}, fmt.Errorf("get_stats: %w", err)
	}
	return nil, getStatsOutput{
		History:  stats,
		Cache:    s.deps.Cache.Stats(),
		Patterns: s.deps.Patterns.Patterns(),
	}, nil
}

// Shutdown waits for any in-flight learner rebuild. The store and cache are
// owned by the caller.
func (s *Server) Shutdown() {
	if s.deps.Learner != nil {
		s.deps.Learner.Wait()
	}
}
