package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"arbiter/internal/debate"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .arbiter) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer connection: concurrent outcome updates serialize here
	// instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	if _, err := s.db.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var v int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersionV1 {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// Append inserts a new debate record.
func (s *SqlStore) Append(rec *Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if rec.ID == "" {
		return errors.New("record id is empty")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	reqPayload, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	consPayload, err := json.Marshal(rec.Consensus)
	if err != nil {
		return fmt.Errorf("marshal consensus: %w", err)
	}
	var score int
	var recommendation string
	if rec.Consensus != nil {
		score = rec.Consensus.ConsensusScore
		recommendation = string(rec.Consensus.Recommendation)
	}
	var supersedes any
	if rec.SupersedesID != "" {
		supersedes = rec.SupersedesID
	}
	_, err = s.db.Exec(
		`INSERT INTO debates(id, fingerprint, topic, request_payload, consensus_payload,
		                     consensus_score, recommendation, created_at, supersedes_id)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Fingerprint, rec.Request.Topic, reqPayload, consPayload,
		score, recommendation, rec.CreatedAt.UTC().Format(time.RFC3339Nano), supersedes,
	)
	if err != nil {
		return fmt.Errorf("insert debate: %w", err)
	}
	return nil
}

// Get returns the record by id, or ErrNotFound.
func (s *SqlStore) Get(id string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT id, fingerprint, request_payload, consensus_payload, created_at,
		        outcome_confirmed, outcome_notes, outcome_recorded_at, supersedes_id
		 FROM debates WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get debate: %w", err)
	}
	return rec, nil
}

// GetRecent returns up to limit records, newest first.
func (s *SqlStore) GetRecent(limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, fingerprint, request_payload, consensus_payload, created_at,
		        outcome_confirmed, outcome_notes, outcome_recorded_at, supersedes_id
		 FROM debates ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list debates: %w", err)
	}
	defer rows.Close()
	var list []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan debate: %w", err)
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list debates: %w", err)
	}
	return list, nil
}

// RecordOutcome sets the outcome once. The conditional UPDATE makes the
// set-once rule hold under concurrent callers: only one of two racing calls
// can match the NULL guard.
func (s *SqlStore) RecordOutcome(id string, confirmed bool, notes string) error {
	confirmedInt := 0
	if confirmed {
		confirmedInt = 1
	}
	res, err := s.db.Exec(
		`UPDATE debates
		 SET outcome_confirmed = ?, outcome_notes = ?, outcome_recorded_at = ?
		 WHERE id = ? AND outcome_recorded_at IS NULL`,
		confirmedInt, notes, nowUTC(), id,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	if n == 1 {
		return nil
	}
	// Nothing updated: distinguish missing id from already-set outcome.
	var exists int
	err = s.db.QueryRow("SELECT COUNT(*) FROM debates WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrAlreadyRecorded
}

// Stats returns aggregate counts across all debates.
func (s *SqlStore) Stats() (*Stats, error) {
	st := &Stats{}
	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(AVG(consensus_score), 0),
		        COALESCE(SUM(CASE WHEN outcome_confirmed = 1 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN outcome_confirmed = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN outcome_recorded_at IS NULL THEN 1 ELSE 0 END), 0)
		 FROM debates`,
	).Scan(&st.TotalDebates, &st.AvgConsensus, &st.ConfirmedCount, &st.UnconfirmedCount, &st.PendingCount)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var reqPayload, consPayload []byte
	var createdAt string
	var confirmed sql.NullInt64
	var notes, recordedAt, supersedes sql.NullString
	err := row.Scan(&rec.ID, &rec.Fingerprint, &reqPayload, &consPayload, &createdAt,
		&confirmed, &notes, &recordedAt, &supersedes)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(reqPayload, &rec.Request); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	var cons debate.ConsensusResult
	if err := json.Unmarshal(consPayload, &cons); err != nil {
		return nil, fmt.Errorf("unmarshal consensus: %w", err)
	}
	rec.Consensus = &cons
	rec.CreatedAt = parseTime(createdAt)
	if recordedAt.Valid {
		rec.Outcome = &Outcome{
			Confirmed:  confirmed.Valid && confirmed.Int64 == 1,
			Notes:      notes.String,
			RecordedAt: parseTime(recordedAt.String),
		}
	}
	if supersedes.Valid {
		rec.SupersedesID = supersedes.String
	}
	return &rec, nil
}
