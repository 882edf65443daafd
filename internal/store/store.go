// Package store persists debate history. Records are append-only: the single
// mutation allowed after creation is recording the human-confirmed outcome,
// and that happens at most once per record.
package store

import (
	"errors"
	"time"

	"arbiter/internal/debate"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Open() creates the parent dir (.arbiter).
const DefaultDBPath = ".arbiter/arbiter.db"

var (
	// ErrNotFound means the debate id does not exist.
	ErrNotFound = errors.New("history record not found")
	// ErrAlreadyRecorded means the record's outcome was already set.
	ErrAlreadyRecorded = errors.New("outcome already recorded")
)

// Outcome is the human-confirmed result of acting on a debate's
// recommendation. Set at most once; a correction requires a new record
// referencing the old one via SupersedesID.
type Outcome struct {
	Confirmed  bool      `json:"confirmed"`
	Notes      string    `json:"notes,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Record is one persisted debate.
type Record struct {
	ID           string                  `json:"id"` // UUID
	Fingerprint  string                  `json:"fingerprint"`
	Request      debate.Request          `json:"request"`
	Consensus    *debate.ConsensusResult `json:"consensus"`
	CreatedAt    time.Time               `json:"created_at"`
	Outcome      *Outcome                `json:"outcome,omitempty"`
	SupersedesID string                  `json:"supersedes_id,omitempty"`
}

// Stats aggregates counts across all records.
type Stats struct {
	TotalDebates     int     `json:"total_debates"`
	AvgConsensus     float64 `json:"avg_consensus"`
	ConfirmedCount   int     `json:"confirmed_count"`
	UnconfirmedCount int     `json:"unconfirmed_count"`
	PendingCount     int     `json:"pending_count"`
}

// Store is the persistence facade for debate history. Implementations are
// SQLite (durable) or in-memory (tests). Appends under concurrency each get
// a fresh identity; concurrent RecordOutcome calls on one id let exactly one
// succeed.
type Store interface {
	// Append persists a new record. The record's ID must be set by the
	// caller (a fresh UUID); CreatedAt is filled if zero.
	Append(rec *Record) error
	// Get returns the record by id, or ErrNotFound.
	Get(id string) (*Record, error)
	// GetRecent returns up to limit records, most recent first.
	GetRecent(limit int) ([]*Record, error)
	// RecordOutcome sets a record's outcome exactly once. Returns
	// ErrNotFound for an unknown id and ErrAlreadyRecorded when the outcome
	// was already set.
	RecordOutcome(id string, confirmed bool, notes string) error
	// Stats returns aggregate counts.
	Stats() (*Stats, error)
	Close() error
}
