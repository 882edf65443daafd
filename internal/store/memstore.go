package store

import (
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store for tests and ephemeral runs.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*Record)}
}

func (m *MemStore) Append(rec *Record) error {
	if rec == nil || rec.ID == "" {
		return ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *MemStore) Get(id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemStore) GetRecent(limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MemStore) RecordOutcome(id string, confirmed bool, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Outcome != nil {
		return ErrAlreadyRecorded
	}
	rec.Outcome = &Outcome{
		Confirmed:  confirmed,
		Notes:      notes,
		RecordedAt: time.Now().UTC(),
	}
	return nil
}

func (m *MemStore) Stats() (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := &Stats{TotalDebates: len(m.records)}
	total := 0
	for _, rec := range m.records {
		if rec.Consensus != nil {
			total += rec.Consensus.ConsensusScore
		}
		switch {
		case rec.Outcome == nil:
			st.PendingCount++
		case rec.Outcome.Confirmed:
			st.ConfirmedCount++
		default:
			st.UnconfirmedCount++
		}
	}
	if len(m.records) > 0 {
		st.AvgConsensus = float64(total) / float64(len(m.records))
	}
	return st, nil
}

func (m *MemStore) Close() error { return nil }
