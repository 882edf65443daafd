package learn

import (
	"errors"
	"testing"

	"arbiter/internal/store"
)

func TestLearn_RecordsOutcomeAndRebuilds(t *testing.T) {
	st := store.NewMemStore()
	patterns := NewPatternModel()
	l := NewLearner(st, patterns)

	r1 := recordWithTopic("circular import in the auth package", 60)
	r2 := recordWithTopic("break the circular dependency cycle", 58)
	for _, r := range []*store.Record{r1, r2} {
		if err := st.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if err := l.Learn(r1.ID, false, "it broke in prod"); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	l.Wait()

	got, err := st.Get(r1.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Outcome == nil || got.Outcome.Confirmed || got.Outcome.Notes != "it broke in prod" {
		t.Fatalf("outcome: %+v", got.Outcome)
	}

	ps := patterns.Patterns()
	if len(ps) != 1 || ps[0].Signature != "circular_imports" {
		t.Fatalf("patterns after learn: %+v", ps)
	}
	if ps[0].Unconfirmed != 1 {
		t.Fatalf("rebuild did not pick up the outcome: %+v", ps[0])
	}
}

func TestLearn_StoreErrorsPropagate(t *testing.T) {
	l := NewLearner(store.NewMemStore(), NewPatternModel())

	if err := l.Learn("no-such-id", true, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	l.Wait()
}

func TestLearn_SecondOutcomeRejected(t *testing.T) {
	st := store.NewMemStore()
	l := NewLearner(st, NewPatternModel())

	rec := recordWithTopic("some topic", 70)
	if err := st.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Learn(rec.ID, true, ""); err != nil {
		t.Fatalf("first Learn: %v", err)
	}
	if err := l.Learn(rec.ID, false, ""); !errors.Is(err, store.ErrAlreadyRecorded) {
		t.Fatalf("second Learn: got %v, want ErrAlreadyRecorded", err)
	}
	l.Wait()
}
