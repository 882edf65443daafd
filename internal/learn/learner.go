package learn

import (
	"fmt"
	"sync"

	"arbiter/internal/logging"
	"arbiter/internal/store"
)

// Learner records outcomes and keeps the pattern model current. Outcome
// writes go to the history store; the pattern rebuild runs asynchronously so
// the caller never waits on it, and rebuild failures are logged, not
// returned.
type Learner struct {
	store    store.Store
	patterns *PatternModel

	wg sync.WaitGroup
}

// NewLearner wires a learner over the history store and pattern model.
func NewLearner(st store.Store, patterns *PatternModel) *Learner {
	return &Learner{store: st, patterns: patterns}
}

// Learn records whether a past debate's recommendation held up, then kicks
// off a pattern rebuild in the background. Store errors (unknown id, outcome
// already set) propagate to the caller; rebuild errors never do.
func (l *Learner) Learn(debateID string, confirmed bool, notes string) error {
	if err := l.store.RecordOutcome(debateID, confirmed, notes); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.rebuild()
	}()
	return nil
}

// Rebuild refreshes the pattern model synchronously from current history.
func (l *Learner) Rebuild() error {
	return l.rebuildErr()
}

func (l *Learner) rebuild() {
	if err := l.rebuildErr(); err != nil {
		logging.New("learn").Warn("pattern rebuild failed", "error", err)
	}
}

func (l *Learner) rebuildErr() error {
	records, err := l.store.GetRecent(1000)
	if err != nil {
		return fmt.Errorf("load history snapshot: %w", err)
	}
	l.patterns.Rebuild(records)
	return nil
}

// Wait blocks until pending background rebuilds finish. Used on shutdown and
// in tests.
func (l *Learner) Wait() {
	l.wg.Wait()
}
