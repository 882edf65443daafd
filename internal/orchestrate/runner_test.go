package orchestrate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"arbiter/internal/cache"
	"arbiter/internal/debate"
	"arbiter/internal/invoke"
	"arbiter/internal/learn"
	"arbiter/internal/store"
)

func fixedInvoker(score int) invoke.Invoker {
	return invoke.Func(func(_ context.Context, _, role string) (*debate.Opinion, error) {
		return &debate.Opinion{Source: role, Score: score}, nil
	})
}

func failingInvoker(err error) invoke.Invoker {
	return invoke.Func(func(context.Context, string, string) (*debate.Opinion, error) {
		return nil, err
	})
}

func newTestOrchestrator(a, b invoke.Invoker) (*Orchestrator, *store.MemStore) {
	st := store.NewMemStore()
	engine := debate.NewEngine(debate.EngineConfig{})
	c := cache.New()
	risk := learn.NewRiskModel(learn.NewPatternModel())
	return New(a, b, engine, c, st, risk), st
}

func TestRunDebate_BothSucceed(t *testing.T) {
	o, st := newTestOrchestrator(fixedInvoker(90), fixedInvoker(92))

	res, err := o.RunDebate(context.Background(), debate.Request{Topic: "ship it"})
	if err != nil {
		t.Fatalf("RunDebate: %v", err)
	}
	if res.Consensus.ConsensusScore != 91 || res.Consensus.Degraded {
		t.Fatalf("consensus: %+v", res.Consensus)
	}
	if res.CacheHit {
		t.Fatal("first run flagged as cache hit")
	}
	if res.DebateID == "" {
		t.Fatal("no debate id assigned")
	}

	// The debate was persisted under that id.
	rec, err := st.Get(res.DebateID)
	if err != nil {
		t.Fatalf("Get persisted record: %v", err)
	}
	if rec.Consensus.ConsensusScore != 91 || rec.Request.Topic != "ship it" {
		t.Fatalf("persisted record: %+v", rec)
	}
	if rec.Fingerprint != debate.Fingerprint(rec.Request) {
		t.Fatal("persisted fingerprint does not match the request")
	}
}

func TestRunDebate_DefaultsTargetConsensus(t *testing.T) {
	o, st := newTestOrchestrator(fixedInvoker(80), fixedInvoker(80))
	res, err := o.RunDebate(context.Background(), debate.Request{Topic: "no target set"})
	if err != nil {
		t.Fatalf("RunDebate: %v", err)
	}
	rec, err := st.Get(res.DebateID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Request.TargetConsensus != debate.DefaultTargetConsensus {
		t.Fatalf("target: got %d, want default %d", rec.Request.TargetConsensus, debate.DefaultTargetConsensus)
	}
}

func TestRunDebate_InvalidRequest(t *testing.T) {
	o, _ := newTestOrchestrator(fixedInvoker(80), fixedInvoker(80))

	if _, err := o.RunDebate(context.Background(), debate.Request{Topic: "   "}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("blank topic: got %v, want ErrInvalidRequest", err)
	}

	req := debate.Request{Topic: "ok", Artifacts: []debate.Artifact{{Path: "x.go"}}}
	if _, err := o.RunDebate(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("digestless artifact: got %v, want ErrInvalidRequest", err)
	}
}

func TestRunDebate_DegradedWhenOneFails(t *testing.T) {
	o, _ := newTestOrchestrator(failingInvoker(invoke.ErrTimeout), fixedInvoker(95))

	res, err := o.RunDebate(context.Background(), debate.Request{Topic: "half a debate"})
	if err != nil {
		t.Fatalf("RunDebate: %v", err)
	}
	cons := res.Consensus
	if !cons.Degraded {
		t.Fatal("degraded flag not set")
	}
	if cons.ConsensusScore != 95 {
		t.Fatalf("score: got %d, want surviving 95", cons.ConsensusScore)
	}
	if cons.Interpretation != debate.GoodAgreement {
		t.Fatalf("interpretation: got %s, want demoted Good Agreement", cons.Interpretation)
	}
	if len(cons.Disagreements) != 1 || cons.Disagreements[0].Source != "A" {
		t.Fatalf("disagreements: %+v", cons.Disagreements)
	}
	if cons.OpinionB == nil || cons.OpinionB.Source != "B" {
		t.Fatalf("surviving opinion: %+v", cons.OpinionB)
	}
}

func TestRunDebate_BothFail(t *testing.T) {
	o, st := newTestOrchestrator(failingInvoker(invoke.ErrTimeout), failingInvoker(invoke.ErrProcess))

	_, err := o.RunDebate(context.Background(), debate.Request{Topic: "doomed"})
	if !errors.Is(err, ErrBothInvokersFailed) {
		t.Fatalf("got %v, want ErrBothInvokersFailed", err)
	}
	// Failures pass through the cache layer wrapped.
	if !errors.Is(err, cache.ErrComputationFailed) {
		t.Fatalf("error not wrapped by the cache layer: %v", err)
	}

	// Nothing persisted, nothing cached: a retry reruns the backends.
	if recent, _ := st.GetRecent(10); len(recent) != 0 {
		t.Fatalf("failed debate persisted: %+v", recent)
	}
}

func TestRunDebate_FailureNotCached(t *testing.T) {
	var calls atomic.Int32
	// Both backends fail on the first debate, then recover.
	flaky := invoke.Func(func(_ context.Context, _, role string) (*debate.Opinion, error) {
		if calls.Add(1) <= 2 {
			return nil, invoke.ErrProcess
		}
		return &debate.Opinion{Source: role, Score: 80}, nil
	})
	o, _ := newTestOrchestrator(flaky, flaky)

	if _, err := o.RunDebate(context.Background(), debate.Request{Topic: "flaky"}); err == nil {
		t.Fatal("expected first run to fail")
	}

	// Retry with identical request must reach the backends again.
	res, err := o.RunDebate(context.Background(), debate.Request{Topic: "flaky"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.CacheHit {
		t.Fatal("retry after failure served from cache")
	}
}

func TestRunDebate_CacheHitOnRepeat(t *testing.T) {
	var calls atomic.Int32
	counting := invoke.Func(func(_ context.Context, _, role string) (*debate.Opinion, error) {
		calls.Add(1)
		return &debate.Opinion{Source: role, Score: 85}, nil
	})
	o, st := newTestOrchestrator(counting, counting)

	req := debate.Request{Topic: "same request twice", FocusAreas: []string{"database"}}
	first, err := o.RunDebate(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := o.RunDebate(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.CacheHit || !second.CacheHit {
		t.Fatalf("cache hits: first=%v second=%v", first.CacheHit, second.CacheHit)
	}
	if calls.Load() != 2 {
		t.Fatalf("backends invoked %d times, want 2 (one debate)", calls.Load())
	}
	if second.Consensus.ConsensusScore != first.Consensus.ConsensusScore {
		t.Fatal("cached verdict differs from the original")
	}
	// The cached run persists no second record.
	if recent, _ := st.GetRecent(10); len(recent) != 1 {
		t.Fatalf("records: got %d, want 1", len(recent))
	}
}

func TestRunDebate_ConcurrentIdenticalRequestsCollapse(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	slow := invoke.Func(func(ctx context.Context, _, role string) (*debate.Opinion, error) {
		calls.Add(1)
		<-release
		return &debate.Opinion{Source: role, Score: 75}, nil
	})
	o, _ := newTestOrchestrator(slow, slow)

	req := debate.Request{Topic: "stampede"}
	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = o.RunDebate(context.Background(), req)
		}(i)
	}
	// Let the callers pile up on the flight, then release both backends.
	for calls.Load() < 2 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("backends invoked %d times for %d concurrent callers, want 2", got, n)
	}
}

func TestRunDebate_StateSequence(t *testing.T) {
	o, _ := newTestOrchestrator(fixedInvoker(80), fixedInvoker(84))

	var states []State
	o.OnState = func(s State) { states = append(states, s) }

	if _, err := o.RunDebate(context.Background(), debate.Request{Topic: "observe me"}); err != nil {
		t.Fatalf("RunDebate: %v", err)
	}

	want := []State{
		StateReceived, StateCacheCheck, StateCacheMiss, StatePrecheck,
		StateDispatched, StateAwaiting, StateReconciled, StatePersisted, StateDone,
	}
	if len(states) != len(want) {
		t.Fatalf("states: got %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("state %d: got %s, want %s", i, states[i], want[i])
		}
	}
}

func TestRunDebate_RiskAdvisoryAttached(t *testing.T) {
	st := store.NewMemStore()
	patterns := learn.NewPatternModel()
	seed := func(topic string) {
		rec := &store.Record{
			ID:        topic,
			Request:   debate.Request{Topic: topic},
			Consensus: &debate.ConsensusResult{ConsensusScore: 50},
			Outcome:   &store.Outcome{Confirmed: false},
		}
		if err := st.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	seed("transaction rollback broke checkout")
	seed("another transaction boundary mishap")
	recs, _ := st.GetRecent(10)
	patterns.Rebuild(recs)

	o := New(fixedInvoker(80), fixedInvoker(80), debate.NewEngine(debate.EngineConfig{}),
		cache.New(), st, learn.NewRiskModel(patterns))

	res, err := o.RunDebate(context.Background(), debate.Request{Topic: "touch the payment transaction logic"})
	if err != nil {
		t.Fatalf("RunDebate: %v", err)
	}
	if res.Risk == nil || len(res.Risk.MatchedPatterns) == 0 {
		t.Fatalf("risk advisory missing: %+v", res.Risk)
	}
	if res.Risk.MatchedPatterns[0].Signature != "transaction_boundaries" {
		t.Fatalf("matched: %+v", res.Risk.MatchedPatterns)
	}
}
