// Package orchestrate composes the debate pipeline: fingerprint, cache
// check, risk pre-check, concurrent fan-out to both backends, consensus
// reconciliation, and persistence.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"arbiter/internal/cache"
	"arbiter/internal/debate"
	"arbiter/internal/invoke"
	"arbiter/internal/learn"
	"arbiter/internal/logging"
	"arbiter/internal/store"
)

var (
	// ErrBothInvokersFailed is fatal for the request: no opinion survived.
	ErrBothInvokersFailed = errors.New("both invokers failed")
	// ErrInvalidRequest covers an empty topic or unreadable artifact.
	ErrInvalidRequest = errors.New("invalid request")
)

// State names one stage of the debate pipeline. States are not re-entrant;
// a failed request is not retried here, retry is a caller decision.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateCacheCheck State = "CACHE_CHECK"
	StateCacheHit   State = "CACHE_HIT"
	StateCacheMiss  State = "CACHE_MISS"
	StatePrecheck   State = "PRECHECK"
	StateDispatched State = "DISPATCHED"
	StateAwaiting   State = "AWAITING"
	StateReconciled State = "RECONCILED"
	StatePersisted  State = "PERSISTED"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Orchestrator runs debates end to end. All collaborators are injected:
// there are no ambient singletons, so the pipeline tests without real
// backends.
type Orchestrator struct {
	invokerA invoke.Invoker
	invokerB invoke.Invoker
	engine   *debate.Engine
	cache    *cache.Cache
	store    store.Store
	risk     *learn.RiskModel

	// PromptFor builds the role-specific prompt sent to a backend. The
	// default wraps the topic; the CLI installs a richer builder.
	PromptFor func(req debate.Request, role string) string

	// OnState observes state transitions, mostly for tests and displays.
	OnState func(State)
}

// New wires an orchestrator. The risk model may be nil to skip pre-checks.
func New(a, b invoke.Invoker, engine *debate.Engine, c *cache.Cache, st store.Store, risk *learn.RiskModel) *Orchestrator {
	return &Orchestrator{
		invokerA:  a,
		invokerB:  b,
		engine:    engine,
		cache:     c,
		store:     st,
		risk:      risk,
		PromptFor: defaultPrompt,
	}
}

func (o *Orchestrator) setState(s State) {
	if o.OnState != nil {
		o.OnState(s)
	}
}

// RunDebate executes one debate. The caller's context bounds the whole
// RECEIVED→DONE path; each backend call additionally runs under its own
// timeout inside the invoker. Identical concurrent requests collapse into
// one backend round-trip through the cache's single-flight guarantee.
func (o *Orchestrator) RunDebate(ctx context.Context, req debate.Request) (*debate.Result, error) {
	logger := logging.New("orchestrate")
	start := time.Now()

	o.setState(StateReceived)
	if err := validate(req); err != nil {
		o.setState(StateFailed)
		return nil, err
	}
	if req.TargetConsensus <= 0 {
		req.TargetConsensus = debate.DefaultTargetConsensus
	}

	o.setState(StateCacheCheck)
	key := debate.Fingerprint(req)

	var result debate.Result
	cons, hit, err := o.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*debate.ConsensusResult, error) {
		o.setState(StateCacheMiss)
		return o.computeDebate(ctx, key, req, &result)
	})
	if err != nil {
		o.setState(StateFailed)
		return nil, err
	}
	if hit {
		o.setState(StateCacheHit)
		logger.Info("cache hit", "fingerprint", key[:12], "score", cons.ConsensusScore)
	}

	o.setState(StateDone)
	result.Consensus = cons
	result.CacheHit = hit
	result.Elapsed = time.Since(start)
	result.Timings.Total = result.Elapsed
	return &result, nil
}

// computeDebate is the cache-miss path: precheck, fan-out, reconcile,
// persist. It mutates the shared result with per-phase metadata; the cache
// only stores the consensus.
func (o *Orchestrator) computeDebate(ctx context.Context, key string, req debate.Request, result *debate.Result) (*debate.ConsensusResult, error) {
	logger := logging.New("orchestrate")

	o.setState(StatePrecheck)
	precheckStart := time.Now()
	if o.risk != nil {
		result.Risk = o.risk.Assess(req)
		if len(result.Risk.MatchedPatterns) > 0 {
			logger.Info("pre-check advisory",
				"risk", result.Risk.Level,
				"confidence", result.Risk.Confidence,
				"patterns", len(result.Risk.MatchedPatterns))
		}
	}
	result.Timings.Precheck = time.Since(precheckStart)

	o.setState(StateDispatched)
	opA, opB, errA, errB := o.fanOut(ctx, req, result)

	o.setState(StateAwaiting)
	if errA != nil && errB != nil {
		return nil, fmt.Errorf("%w: A: %v; B: %v", ErrBothInvokersFailed, errA, errB)
	}

	reconcileStart := time.Now()
	var cons *debate.ConsensusResult
	var err error
	switch {
	case errA == nil && errB == nil:
		cons, err = o.engine.Reconcile(opA, opB)
	case errA != nil:
		logger.Warn("degraded mode: invoker A failed", "error", errA)
		cons, err = o.engine.ReconcileDegraded(opB, "A")
	default:
		logger.Warn("degraded mode: invoker B failed", "error", errB)
		cons, err = o.engine.ReconcileDegraded(opA, "B")
	}
	if err != nil {
		return nil, err
	}
	result.Timings.Reconcile = time.Since(reconcileStart)
	o.setState(StateReconciled)

	// Persistence is fire-and-forget with respect to the caller's deadline:
	// once reached, cancellation no longer aborts the record.
	rec := &store.Record{
		ID:          uuid.NewString(),
		Fingerprint: key,
		Request:     req,
		Consensus:   cons,
	}
	if err := o.store.Append(rec); err != nil {
		logger.Warn("history append failed", "error", err)
	} else {
		result.DebateID = rec.ID
	}
	o.setState(StatePersisted)

	logger.Info("debate reconciled",
		"debate_id", result.DebateID,
		"score", cons.ConsensusScore,
		"interpretation", string(cons.Interpretation),
		"recommendation", string(cons.Recommendation),
		"degraded", cons.Degraded)
	return cons, nil
}

// fanOut dispatches both backends concurrently and waits for both outcomes.
// The slower call is never race-cancelled: both opinions are required input
// for reconciliation, so errors are captured per slot instead of failing the
// group.
func (o *Orchestrator) fanOut(ctx context.Context, req debate.Request, result *debate.Result) (opA, opB *debate.Opinion, errA, errB error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		opA, errA = o.invokerA.Invoke(ctx, o.PromptFor(req, "A"), "A")
		result.Timings.InvokeA = time.Since(start)
		if opA != nil {
			opA.Source = "A"
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		opB, errB = o.invokerB.Invoke(ctx, o.PromptFor(req, "B"), "B")
		result.Timings.InvokeB = time.Since(start)
		if opB != nil {
			opB.Source = "B"
		}
		return nil
	})
	_ = g.Wait() // errors captured per slot
	return opA, opB, errA, errB
}

func validate(req debate.Request) error {
	if strings.TrimSpace(req.Topic) == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidRequest)
	}
	for _, a := range req.Artifacts {
		if a.Digest == "" {
			return fmt.Errorf("%w: artifact %q has no content digest", ErrInvalidRequest, a.Path)
		}
	}
	return nil
}

func defaultPrompt(req debate.Request, role string) string {
	return fmt.Sprintf("[%s] %s", role, req.Topic)
}
