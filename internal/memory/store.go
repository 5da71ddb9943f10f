// Package memory keeps a durable per-project log of agent tasks in SQLite
// with an FTS5 index, and replays recent entries into new agent sessions.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const (
	// DirName is the hidden per-project directory holding the database.
	DirName = ".codebridge"
	// FileName is the database file inside DirName.
	FileName = "memories.db"

	timeLayout = "2006-01-02T15:04:05.000000"
)

// Entry is one executed task. Entries are append-only.
type Entry struct {
	ID           int64     `json:"id"`
	Project      string    `json:"project"`
	Time         time.Time `json:"time"`
	Task         string    `json:"task"`
	Summary      string    `json:"summary"`
	FilesChanged []string  `json:"files_changed"`
	AgentSession string    `json:"session_id"`
	CostUSD      float64   `json:"cost_usd"`
	Model        string    `json:"model"`
}

// Stats holds aggregate figures for a project.
type Stats struct {
	Count     int     `json:"count"`
	TotalCost float64 `json:"total_cost"`
}

// Store is the memory database of one project root.
type Store struct {
	db   *sql.DB
	path string
}

// Path returns the database file path for a project root.
func Path(root string) string {
	return filepath.Join(root, DirName, FileName)
}

// Open opens (creating if needed) the memory database under root.
func Open(root string) (*Store, error) {
	dbPath := Path(root)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}
	// One connection keeps the per-connection pragmas in effect for every query.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			project       TEXT NOT NULL,
			timestamp     TEXT NOT NULL,
			user_msg      TEXT NOT NULL,
			summary       TEXT NOT NULL,
			files_changed TEXT NOT NULL DEFAULT '[]',
			session_id    TEXT NOT NULL DEFAULT '',
			cost_usd      REAL NOT NULL DEFAULT 0,
			model         TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project, id DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			user_msg,
			summary,
			content='memories',
			content_rowid='id'
		);
	`)
	return err
}

// SaveEntry appends e and indexes its task and summary in one transaction.
// A zero e.Time is replaced with the current time.
func (s *Store) SaveEntry(ctx context.Context, e Entry) (int64, error) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	files := e.FilesChanged
	if files == nil {
		files = []string{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return 0, fmt.Errorf("memory: encode files: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("memory: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO memories (project, timestamp, user_msg, summary, files_changed, session_id, cost_usd, model)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Project, e.Time.Format(timeLayout), e.Task, e.Summary, string(filesJSON), e.AgentSession, e.CostUSD, e.Model,
	)
	if err != nil {
		return 0, fmt.Errorf("memory: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("memory: insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memories_fts (rowid, user_msg, summary) VALUES (?, ?, ?)`,
		id, e.Task, e.Summary,
	); err != nil {
		return 0, fmt.Errorf("memory: index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("memory: commit: %w", err)
	}
	return id, nil
}

const entryColumns = `m.id, m.project, m.timestamp, m.user_msg, m.summary, m.files_changed, m.session_id, m.cost_usd, m.model`

// Recent returns the last n entries of project, oldest first.
func (s *Store) Recent(ctx context.Context, project string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	entries, err := s.query(ctx,
		`SELECT `+entryColumns+` FROM memories m WHERE m.project = ? ORDER BY m.id DESC LIMIT ?`,
		project, n,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: recent: %w", err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Search looks query up in the FTS index. When that finds nothing (the
// default tokenizer handles CJK text poorly) it falls back to a
// case-sensitive substring match, newest first. An empty project searches
// all projects.
func (s *Store) Search(ctx context.Context, query, project string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	if ftsQuery := sanitizeFTS(query); ftsQuery != "" {
		sqlStr := `SELECT ` + entryColumns + `
			FROM memories_fts fts
			JOIN memories m ON m.id = fts.rowid
			WHERE memories_fts MATCH ?`
		args := []any{ftsQuery}
		if project != "" {
			sqlStr += " AND m.project = ?"
			args = append(args, project)
		}
		sqlStr += " ORDER BY fts.rank LIMIT ?"
		args = append(args, limit)

		// FTS syntax errors fall through to the substring search.
		if entries, err := s.query(ctx, sqlStr, args...); err == nil && len(entries) > 0 {
			return entries, nil
		}
	}

	sqlStr := `SELECT ` + entryColumns + `
		FROM memories m
		WHERE (instr(m.user_msg, ?) > 0 OR instr(m.summary, ?) > 0)`
	args := []any{query, query}
	if project != "" {
		sqlStr += " AND m.project = ?"
		args = append(args, project)
	}
	sqlStr += " ORDER BY m.id DESC LIMIT ?"
	args = append(args, limit)

	entries, err := s.query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}
	return entries, nil
}

// Stats returns the entry count and total cost of project, or of all
// projects when project is empty.
func (s *Store) Stats(ctx context.Context, project string) (Stats, error) {
	sqlStr := `SELECT COUNT(*), COALESCE(SUM(cost_usd), 0) FROM memories`
	var args []any
	if project != "" {
		sqlStr += " WHERE project = ?"
		args = append(args, project)
	}

	var st Stats
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&st.Count, &st.TotalCost); err != nil {
		return Stats{}, fmt.Errorf("memory: stats: %w", err)
	}
	st.TotalCost = math.Round(st.TotalCost*1e4) / 1e4
	return st, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			timestamp string
			files     string
		)
		if err := rows.Scan(&e.ID, &e.Project, &timestamp, &e.Task, &e.Summary, &files, &e.AgentSession, &e.CostUSD, &e.Model); err != nil {
			return nil, err
		}
		e.Time, _ = time.ParseInLocation(timeLayout, timestamp, time.Local)
		_ = json.Unmarshal([]byte(files), &e.FilesChanged)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "fix auth bug" → `"fix" "auth" "bug"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}
