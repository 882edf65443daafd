package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"arbiter/internal/debate"
)

func newRecord(topic string, score int) *Record {
	return &Record{
		ID:          uuid.NewString(),
		Fingerprint: debate.Fingerprint(debate.Request{Topic: topic}),
		Request:     debate.Request{Topic: topic, TargetConsensus: 75},
		Consensus: &debate.ConsensusResult{
			ConsensusScore: score,
			Interpretation: debate.BandFor(score),
			Recommendation: debate.RecommendationFor(score),
		},
	}
}

// forEachStore runs a subtest against both implementations so the SQLite and
// in-memory stores cannot drift apart.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemStore())
	})
}

func TestAppendAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		rec := newRecord("split the user model", 82)
		if err := s.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}

		got, err := s.Get(rec.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ID != rec.ID || got.Fingerprint != rec.Fingerprint {
			t.Fatalf("identity mismatch: %+v", got)
		}
		if diff := cmp.Diff(rec.Request, got.Request); diff != "" {
			t.Fatalf("request round-trip (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(rec.Consensus, got.Consensus); diff != "" {
			t.Fatalf("consensus round-trip (-want +got):\n%s", diff)
		}
		if got.CreatedAt.IsZero() {
			t.Fatal("CreatedAt not filled")
		}
		if got.Outcome != nil {
			t.Fatalf("fresh record has an outcome: %+v", got.Outcome)
		}
	})
}

func TestGetUnknownID(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		if _, err := s.Get(uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
}

func TestGetRecentOrderAndLimit(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		base := time.Now().UTC().Add(-time.Hour)
		var ids []string
		for i := 0; i < 5; i++ {
			rec := newRecord(fmt.Sprintf("topic %d", i), 70+i)
			rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			if err := s.Append(rec); err != nil {
				t.Fatalf("Append %d: %v", i, err)
			}
			ids = append(ids, rec.ID)
		}

		recent, err := s.GetRecent(3)
		if err != nil {
			t.Fatalf("GetRecent: %v", err)
		}
		if len(recent) != 3 {
			t.Fatalf("got %d records, want 3", len(recent))
		}
		// Newest first: 4, 3, 2.
		for i, want := range []string{ids[4], ids[3], ids[2]} {
			if recent[i].ID != want {
				t.Fatalf("position %d: got %s, want %s", i, recent[i].ID, want)
			}
		}
	})
}

func TestRecordOutcome_SetOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		rec := newRecord("cache invalidation", 65)
		if err := s.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}

		if err := s.RecordOutcome(rec.ID, true, "shipped fine"); err != nil {
			t.Fatalf("RecordOutcome: %v", err)
		}

		got, err := s.Get(rec.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Outcome == nil || !got.Outcome.Confirmed || got.Outcome.Notes != "shipped fine" {
			t.Fatalf("outcome: %+v", got.Outcome)
		}
		if got.Outcome.RecordedAt.IsZero() {
			t.Fatal("RecordedAt not set")
		}

		// Second attempt must fail and must not overwrite.
		if err := s.RecordOutcome(rec.ID, false, "changed my mind"); !errors.Is(err, ErrAlreadyRecorded) {
			t.Fatalf("second RecordOutcome: got %v, want ErrAlreadyRecorded", err)
		}
		got, _ = s.Get(rec.ID)
		if !got.Outcome.Confirmed || got.Outcome.Notes != "shipped fine" {
			t.Fatalf("outcome overwritten: %+v", got.Outcome)
		}
	})
}

func TestRecordOutcome_UnknownID(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		if err := s.RecordOutcome(uuid.NewString(), true, ""); !errors.Is(err, ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
}

func TestRecordOutcome_ConcurrentExactlyOneWins(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		rec := newRecord("risky migration", 55)
		if err := s.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}

		const n = 8
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.RecordOutcome(rec.ID, i%2 == 0, fmt.Sprintf("caller %d", i))
			}(i)
		}
		wg.Wait()

		wins := 0
		for i, err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrAlreadyRecorded):
			default:
				t.Fatalf("caller %d: unexpected error %v", i, err)
			}
		}
		if wins != 1 {
			t.Fatalf("%d concurrent callers succeeded, want exactly 1", wins)
		}
	})
}

func TestStats(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		empty, err := s.Stats()
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if empty.TotalDebates != 0 || empty.AvgConsensus != 0 {
			t.Fatalf("empty stats: %+v", empty)
		}

		r1 := newRecord("one", 80)
		r2 := newRecord("two", 60)
		r3 := newRecord("three", 70)
		for _, r := range []*Record{r1, r2, r3} {
			if err := s.Append(r); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
		if err := s.RecordOutcome(r1.ID, true, ""); err != nil {
			t.Fatalf("RecordOutcome: %v", err)
		}
		if err := s.RecordOutcome(r2.ID, false, ""); err != nil {
			t.Fatalf("RecordOutcome: %v", err)
		}

		st, err := s.Stats()
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		want := &Stats{TotalDebates: 3, AvgConsensus: 70, ConfirmedCount: 1, UnconfirmedCount: 1, PendingCount: 1}
		if diff := cmp.Diff(want, st); diff != "" {
			t.Fatalf("stats (-want +got):\n%s", diff)
		}
	})
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "arbiter.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open with missing parents: %v", err)
	}
	defer s.Close()
	if err := s.Append(newRecord("persist me", 75)); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := newRecord("survives restart", 88)
	if err := s.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Request.Topic != "survives restart" {
		t.Fatalf("topic after reopen: %q", got.Request.Topic)
	}
}
