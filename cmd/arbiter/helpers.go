package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"arbiter/internal/cache"
	"arbiter/internal/config"
	"arbiter/internal/debate"
	"arbiter/internal/invoke"
	"arbiter/internal/learn"
	"arbiter/internal/logging"
	"arbiter/internal/orchestrate"
	"arbiter/internal/store"
)

// components bundles everything a command needs. Built per invocation from
// config; nothing here is a package-level singleton.
type components struct {
	cfg          *config.Config
	store        store.Store
	cache        *cache.Cache
	patterns     *learn.PatternModel
	risk         *learn.RiskModel
	learner      *learn.Learner
	orchestrator *orchestrate.Orchestrator
}

func (c *components) close() {
	if c.learner != nil {
		c.learner.Wait()
	}
	if c.store != nil {
		_ = c.store.Close()
	}
}

// buildComponents wires the full pipeline from the config file.
func buildComponents(configPath, dbPathOverride string) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	dbPath := cfg.DBPath
	if dbPathOverride != "" {
		dbPath = dbPathOverride
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	patterns := learn.NewPatternModel()
	learner := learn.NewLearner(st, patterns)
	// Seed the pattern model from existing history; an empty or failed
	// rebuild just means no advisory this run.
	if err := learner.Rebuild(); err != nil {
		logging.New("main").Warn("initial pattern rebuild failed", "error", err)
	}
	risk := learn.NewRiskModel(patterns)

	engine := debate.NewEngine(debate.EngineConfig{
		WeightA:            cfg.WeightA,
		WeightB:            cfg.WeightB,
		WideSplitThreshold: cfg.WideSplitThreshold,
	})

	resultCache := cache.New(
		cache.WithTTL(time.Duration(cfg.CacheTTL)),
		cache.WithCapacity(cfg.CacheCapacity),
	)

	invokerA := invoke.NewExecInvoker(cfg.BackendA.Command, cfg.BackendA.Args, time.Duration(cfg.BackendA.Timeout))
	invokerB := invoke.NewExecInvoker(cfg.BackendB.Command, cfg.BackendB.Args, time.Duration(cfg.BackendB.Timeout))

	orch := orchestrate.New(invokerA, invokerB, engine, resultCache, st, risk)

	return &components{
		cfg:          cfg,
		store:        st,
		cache:        resultCache,
		patterns:     patterns,
		risk:         risk,
		learner:      learner,
		orchestrator: orch,
	}, nil
}

func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
