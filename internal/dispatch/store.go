package dispatch

import (
	"database/sql"
	"errors"
	"time"

	"github.com/exportengine/engine/internal/model"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrRunNotFound is returned by RunStore.Get when no Run Record exists for
// the given runId.
var ErrRunNotFound = errors.New("run not found")

// RunStore persists Run Records durably enough that a restart between
// "second identical runId arrives" and "first run completes" does not lose
// the idempotency cache (Design Note §9 "deduplication storage").
type RunStore interface {
	Get(runID string) (model.RunRecord, error)
	LatestSucceeded(configID string) (model.RunRecord, error)
	LatestRunning(configID string) (model.RunRecord, bool, error)
	Insert(rec model.RunRecord) error
	Update(rec model.RunRecord) error
	StuckRuns(olderThan time.Time) ([]model.RunRecord, error)
}

// sqliteRunStore is the modernc.org/sqlite-backed RunStore, the transactional
// store the design note calls for (read-committed is sufficient; the
// engine does not require serializable isolation).
type sqliteRunStore struct {
	db *sql.DB
}

// NewSQLiteRunStore constructs a RunStore against the runs table (schema in
// internal/database/db.go).
func NewSQLiteRunStore(db *sql.DB) RunStore {
	return &sqliteRunStore{db: db}
}

func (s *sqliteRunStore) Get(runID string) (model.RunRecord, error) {
	row := s.db.QueryRow(`SELECT run_id, config_id, trigger, state, started_at, ended_at,
		row_count, error_message, destination, triggered_by, stats_blob FROM runs WHERE run_id = ?`, runID)
	return scanRun(row)
}

func (s *sqliteRunStore) LatestSucceeded(configID string) (model.RunRecord, error) {
	row := s.db.QueryRow(`SELECT run_id, config_id, trigger, state, started_at, ended_at,
		row_count, error_message, destination, triggered_by, stats_blob FROM runs
		WHERE config_id = ? AND state = ? ORDER BY started_at DESC LIMIT 1`, configID, string(model.RunSucceeded))
	return scanRun(row)
}

func (s *sqliteRunStore) LatestRunning(configID string) (model.RunRecord, bool, error) {
	row := s.db.QueryRow(`SELECT run_id, config_id, trigger, state, started_at, ended_at,
		row_count, error_message, destination, triggered_by, stats_blob FROM runs
		WHERE config_id = ? AND state IN (?, ?) ORDER BY started_at DESC LIMIT 1`,
		configID, string(model.RunPending), string(model.RunRunning))
	rec, err := scanRun(row)
	if errors.Is(err, ErrRunNotFound) {
		return model.RunRecord{}, false, nil
	}
	if err != nil {
		return model.RunRecord{}, false, err
	}
	return rec, true, nil
}

func (s *sqliteRunStore) Insert(rec model.RunRecord) error {
	blob, err := encodeStats(rec.Stats)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO runs (run_id, config_id, trigger, state, started_at, ended_at,
		row_count, error_message, destination, triggered_by, stats_blob) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.ConfigID, string(rec.Trigger), string(rec.State), rec.StartedAt.Unix(), nullableUnix(rec.EndedAt),
		rec.RowCount, rec.ErrorMessage, rec.Destination, rec.TriggeredBy, blob)
	return err
}

func (s *sqliteRunStore) Update(rec model.RunRecord) error {
	blob, err := encodeStats(rec.Stats)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE runs SET state=?, ended_at=?, row_count=?, error_message=?, stats_blob=? WHERE run_id=?`,
		string(rec.State), nullableUnix(rec.EndedAt), rec.RowCount, rec.ErrorMessage, blob, rec.RunID)
	return err
}

func (s *sqliteRunStore) StuckRuns(olderThan time.Time) ([]model.RunRecord, error) {
	rows, err := s.db.Query(`SELECT run_id, config_id, trigger, state, started_at, ended_at,
		row_count, error_message, destination, triggered_by, stats_blob FROM runs
		WHERE state IN (?, ?) AND started_at < ?`,
		string(model.RunPending), string(model.RunRunning), olderThan.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		rec, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row *sql.Row) (model.RunRecord, error) {
	rec, err := scanRunRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, ErrRunNotFound
	}
	return rec, err
}

func scanRunRows(row *sql.Rows) (model.RunRecord, error) {
	return scanRunRecord(row)
}

func scanRunRecord(s rowScanner) (model.RunRecord, error) {
	var rec model.RunRecord
	var trigger, state string
	var startedAt int64
	var endedAt sql.NullInt64
	var blob []byte

	err := s.Scan(&rec.RunID, &rec.ConfigID, &trigger, &state, &startedAt, &endedAt,
		&rec.RowCount, &rec.ErrorMessage, &rec.Destination, &rec.TriggeredBy, &blob)
	if err != nil {
		return model.RunRecord{}, err
	}

	rec.Trigger = model.Trigger(trigger)
	rec.State = model.RunState(state)
	rec.StartedAt = time.Unix(startedAt, 0).UTC()
	if endedAt.Valid {
		rec.EndedAt = time.Unix(endedAt.Int64, 0).UTC()
	}
	if len(blob) > 0 {
		stats, err := decodeStats(blob)
		if err != nil {
			return model.RunRecord{}, err
		}
		rec.Stats = stats
	}
	return rec, nil
}

func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

// encodeStats compresses a run's statistics into a compact binary blob.
// msgpack over JSON here because this column is internal-only and never
// queried by SQL (unlike every other runs column).
func encodeStats(stats model.Stats) ([]byte, error) {
	return msgpack.Marshal(stats)
}

func decodeStats(blob []byte) (model.Stats, error) {
	var stats model.Stats
	err := msgpack.Unmarshal(blob, &stats)
	return stats, err
}
