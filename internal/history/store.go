// Package history keeps a log of script runs in a sqlite database.
package history

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	executed_at  INTEGER NOT NULL,
	script_path  TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	outcome      TEXT NOT NULL,
	requests     INTEGER NOT NULL DEFAULT 0,
	duration_ns  INTEGER NOT NULL DEFAULT 0,
	return_value TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	failures     TEXT NOT NULL DEFAULT '[]',
	tokens       TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS runs_executed_at ON runs (executed_at DESC);
CREATE INDEX IF NOT EXISTS runs_script_path ON runs (script_path);
`

// Entry is one script execution.
type Entry struct {
	ID          string            `json:"id"`
	ExecutedAt  time.Time         `json:"executedAt"`
	ScriptPath  string            `json:"scriptPath"`
	Title       string            `json:"title"`
	Outcome     string            `json:"outcome"`
	Requests    int               `json:"requests"`
	Duration    time.Duration     `json:"duration"`
	ReturnValue string            `json:"returnValue,omitempty"`
	Error       string            `json:"error,omitempty"`
	Failures    []string          `json:"failures,omitempty"`
	Tokens      map[string]string `json:"tokens,omitempty"`
}

type Store struct {
	db         *sql.DB
	maxEntries int
	mu         sync.Mutex
}

// Open creates the database at path when needed. ":memory:" keeps the log
// in memory for the life of the store.
func Open(path string, maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errdef.New(errdef.CodeIO, "history path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errdef.Wrap(errdef.CodeIO, err, "create history dir")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeIO, err, "open history %s", path)
	}
	// a single connection keeps ":memory:" databases shared between calls
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, errdef.Wrap(errdef.CodeIO, err, "configure history")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errdef.Wrap(errdef.CodeIO, err, "apply history schema")
	}
	return &Store{db: db, maxEntries: maxEntries}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append records entry, assigning an id and timestamp when they are
// missing, and drops the oldest runs beyond the configured maximum.
func (s *Store) Append(entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now()
	}
	if entry.ScriptPath != "" {
		entry.ScriptPath = filepath.Clean(entry.ScriptPath)
	}
	failures, err := json.Marshal(entry.Failures)
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeIO, err, "encode failures")
	}
	tokens, err := json.Marshal(entry.Tokens)
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeIO, err, "encode tokens")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeIO, err, "begin history write")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO runs
		(id, executed_at, script_path, title, outcome, requests, duration_ns, return_value, error, failures, tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ExecutedAt.UnixNano(),
		entry.ScriptPath,
		entry.Title,
		entry.Outcome,
		entry.Requests,
		int64(entry.Duration),
		entry.ReturnValue,
		entry.Error,
		string(failures),
		string(tokens),
	)
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeIO, err, "insert history entry")
	}
	_, err = tx.Exec(`DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY executed_at DESC, id DESC LIMIT ?)`, s.maxEntries)
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeIO, err, "trim history")
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeIO, err, "commit history write")
	}
	return entry, nil
}

// Entries returns every run, newest first.
func (s *Store) Entries() ([]Entry, error) {
	return s.query(`SELECT id, executed_at, script_path, title, outcome, requests, duration_ns,
		return_value, error, failures, tokens FROM runs ORDER BY executed_at DESC, id DESC`)
}

// ByScript returns the runs of the script at path, newest first.
func (s *Store) ByScript(path string) ([]Entry, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	return s.query(`SELECT id, executed_at, script_path, title, outcome, requests, duration_ns,
		return_value, error, failures, tokens FROM runs WHERE script_path = ?
		ORDER BY executed_at DESC, id DESC`, filepath.Clean(trimmed))
}

func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return false, errdef.Wrap(errdef.CodeIO, err, "delete history entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errdef.Wrap(errdef.CodeIO, err, "delete history entry")
	}
	return n > 0, nil
}

func (s *Store) query(q string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeIO, err, "query history")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                Entry
			executedAt, dur  int64
			failures, tokens string
		)
		if err := rows.Scan(
			&e.ID,
			&executedAt,
			&e.ScriptPath,
			&e.Title,
			&e.Outcome,
			&e.Requests,
			&dur,
			&e.ReturnValue,
			&e.Error,
			&failures,
			&tokens,
		); err != nil {
			return nil, errdef.Wrap(errdef.CodeIO, err, "scan history entry")
		}
		e.ExecutedAt = time.Unix(0, executedAt)
		e.Duration = time.Duration(dur)
		if err := json.Unmarshal([]byte(failures), &e.Failures); err != nil {
			return nil, errdef.Wrap(errdef.CodeIO, err, "decode failures of %s", e.ID)
		}
		if err := json.Unmarshal([]byte(tokens), &e.Tokens); err != nil {
			return nil, errdef.Wrap(errdef.CodeIO, err, "decode tokens of %s", e.ID)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeIO, err, "read history")
	}
	return out, nil
}
