package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerdcore/filecore/internal/decision"
	"github.com/nerdcore/filecore/internal/logging"
	"github.com/nerdcore/filecore/internal/parser"
	"github.com/nerdcore/filecore/internal/scoring"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	op_descriptor TEXT NOT NULL,
	context_fingerprint TEXT NOT NULL,
	analysis TEXT NOT NULL,
	decision TEXT NOT NULL,
	outcome TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_history_fingerprint ON history(context_fingerprint);

CREATE TABLE IF NOT EXISTS backups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id INTEGER NOT NULL REFERENCES history(id),
	path TEXT NOT NULL,
	backup_path TEXT NOT NULL,
	existed INTEGER NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_backups_record ON backups(record_id);
`

// Store is a single-writer SQLite-backed history store. Writes are
// serialized through db's single open connection (SetMaxOpenConns(1)); WAL
// mode lets readers proceed concurrently with an in-flight write.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes (creating if absent) the SQLite database at path.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryHistory, "Open")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.HistoryDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.HistoryDebug("failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.HistoryDebug("failed to set synchronous=NORMAL: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	logging.History("history store opened at %s", path)
	return &Store{db: db, dbPath: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert records a newly-decided batch and returns its assigned ID.
func (s *Store) Insert(ops []parser.OperationWithMetadata, contextFingerprint string, analysis scoring.UnifiedScore, dec decision.ExecutionDecision) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opJSON, err := json.Marshal(ops)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal operations: %w", err)
	}
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal analysis: %w", err)
	}
	decisionJSON, err := json.Marshal(dec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal decision: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO history (op_descriptor, context_fingerprint, analysis, decision) VALUES (?, ?, ?, ?)`,
		string(opJSON), contextFingerprint, string(analysisJSON), string(decisionJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert history record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	logging.HistoryDebug("inserted history record %d (fingerprint=%s)", id, contextFingerprint)
	return id, nil
}

// UpdateOutcome attaches the eventually-known execution outcome to a record.
func (s *Store) UpdateOutcome(id int64, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	_, err = s.db.Exec(
		`UPDATE history SET outcome = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(outcomeJSON), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update outcome for record %d: %w", id, err)
	}
	return nil
}

// RecordBackup stores where a pre-execution snapshot was written.
func (s *Store) RecordBackup(recordID int64, path, backupPath string, existed bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existedInt := 0
	if existed {
		existedInt = 1
	}
	res, err := s.db.Exec(
		`INSERT INTO backups (record_id, path, backup_path, existed) VALUES (?, ?, ?, ?)`,
		recordID, path, backupPath, existedInt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record backup: %w", err)
	}
	return res.LastInsertId()
}

// BackupsFor returns every backup recorded for a batch.
func (s *Store) BackupsFor(recordID int64) ([]BackupInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, record_id, path, backup_path, existed, created_at FROM backups WHERE record_id = ?`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	defer rows.Close()

	var out []BackupInfo
	for rows.Next() {
		var b BackupInfo
		var existedInt int
		if err := rows.Scan(&b.ID, &b.RecordID, &b.Path, &b.BackupPath, &existedInt, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup row: %w", err)
		}
		b.Existed = existedInt != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

// Get fetches a single record by ID.
func (s *Store) Get(id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT id, op_descriptor, context_fingerprint, analysis, decision, outcome, created_at, updated_at FROM history WHERE id = ?`, id)
	return scanRecord(row)
}

// Recent returns the most recently created records, newest first, bounded
// by limit.
func (s *Store) Recent(limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, op_descriptor, context_fingerprint, analysis, decision, outcome, created_at, updated_at FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Statistics computes aggregate outcome counts across all recorded batches.
func (s *Store) Statistics() (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT decision, outcome FROM history`)
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	var stats Statistics
	for rows.Next() {
		var decisionJSON string
		var outcomeJSON sql.NullString
		if err := rows.Scan(&decisionJSON, &outcomeJSON); err != nil {
			return Statistics{}, fmt.Errorf("failed to scan statistics row: %w", err)
		}
		stats.TotalRecords++

		var dec decision.ExecutionDecision
		if json.Unmarshal([]byte(decisionJSON), &dec) == nil && dec.Kind == decision.AutoExecute {
			stats.AutoExecuteCount++
		}

		if outcomeJSON.Valid {
			var out Outcome
			if json.Unmarshal([]byte(outcomeJSON.String), &out) == nil {
				if out.Succeeded {
					stats.SucceededCount++
				} else {
					stats.FailedCount++
				}
				if out.RolledBack {
					stats.RolledBackCount++
				}
			}
		}
	}
	if stats.SucceededCount+stats.FailedCount > 0 {
		stats.SuccessRate = float64(stats.SucceededCount) / float64(stats.SucceededCount+stats.FailedCount)
	}
	return stats, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scannable) (*Record, error) {
	var rec Record
	var opJSON, analysisJSON, decisionJSON string
	var outcomeJSON sql.NullString
	if err := row.Scan(&rec.ID, &opJSON, &rec.ContextFingerprint, &analysisJSON, &decisionJSON, &outcomeJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan history record: %w", err)
	}
	return hydrateRecord(&rec, opJSON, analysisJSON, decisionJSON, outcomeJSON)
}

func scanRows(rows *sql.Rows) (*Record, error) {
	return scanRecord(rows)
}

func hydrateRecord(rec *Record, opJSON, analysisJSON, decisionJSON string, outcomeJSON sql.NullString) (*Record, error) {
	if err := json.Unmarshal([]byte(opJSON), &rec.Operations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operations: %w", err)
	}
	if err := json.Unmarshal([]byte(analysisJSON), &rec.Analysis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	if err := json.Unmarshal([]byte(decisionJSON), &rec.Decision); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
	}
	if outcomeJSON.Valid {
		var out Outcome
		if err := json.Unmarshal([]byte(outcomeJSON.String), &out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outcome: %w", err)
		}
		rec.Outcome = &out
	}
	return rec, nil
}
