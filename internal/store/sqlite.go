package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/comply/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; audit appends from concurrent API requests queue
	// in the pool instead of failing with "database is locked".
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.ToLower(strings.TrimPrefix(p, "PRAGMA ")), err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Runs ---

const runColumns = `id, state, rounds, content, limits_json, verdict_json, drafts_json, reason, created_at, updated_at`

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = newULID()
	}
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	limits, verdict, drafts, err := encodeRun(run)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.State), run.Rounds, run.Content, limits, verdict, drafts, run.Reason, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunListFilter) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if filter.State != "" {
		query += ` WHERE state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.Run) error {
	run.UpdatedAt = time.Now().UTC()
	limits, verdict, drafts, err := encodeRun(run)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state=?, rounds=?, content=?, limits_json=?, verdict_json=?, drafts_json=?, reason=?, updated_at=?
		WHERE id=?`,
		string(run.State), run.Rounds, run.Content, limits, verdict, drafts, run.Reason, run.UpdatedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*models.Run, error) {
	run := &models.Run{}
	var state, limits, drafts string
	var verdict sql.NullString
	if err := sc.Scan(&run.ID, &state, &run.Rounds, &run.Content, &limits, &verdict, &drafts, &run.Reason, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.State = models.PipelineState(state)
	if err := json.Unmarshal([]byte(limits), &run.Limits); err != nil {
		return nil, fmt.Errorf("decode limits: %w", err)
	}
	if len(run.Limits) == 0 {
		run.Limits = nil
	}
	if err := json.Unmarshal([]byte(drafts), &run.Drafts); err != nil {
		return nil, fmt.Errorf("decode drafts: %w", err)
	}
	if len(run.Drafts) == 0 {
		run.Drafts = nil
	}
	if verdict.Valid {
		run.Verdict = &models.Verdict{}
		if err := json.Unmarshal([]byte(verdict.String), run.Verdict); err != nil {
			return nil, fmt.Errorf("decode verdict: %w", err)
		}
	}
	return run, nil
}

func encodeRun(run *models.Run) (limits string, verdict sql.NullString, drafts string, err error) {
	lb, err := json.Marshal(nonNilLimits(run.Limits))
	if err != nil {
		return "", verdict, "", fmt.Errorf("encode limits: %w", err)
	}
	if run.Verdict != nil {
		vb, err := json.Marshal(run.Verdict)
		if err != nil {
			return "", verdict, "", fmt.Errorf("encode verdict: %w", err)
		}
		verdict = sql.NullString{String: string(vb), Valid: true}
	}
	d := run.Drafts
	if d == nil {
		d = map[models.Channel]string{}
	}
	db, err := json.Marshal(d)
	if err != nil {
		return "", verdict, "", fmt.Errorf("encode drafts: %w", err)
	}
	return string(lb), verdict, string(db), nil
}

func nonNilLimits(l models.ChannelLimits) models.ChannelLimits {
	if l == nil {
		return models.ChannelLimits{}
	}
	return l
}

// --- Audit entries ---

func (s *SQLiteStore) AppendAuditEntry(ctx context.Context, runID string, e *models.AuditEntry) error {
	citations := e.Citations
	if citations == nil {
		citations = []string{}
	}
	cb, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("encode citations: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (run_id, sequence_number, timestamp, reviewer_identity, raw_message, decision, citations_json, supersedes, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, e.SequenceNumber, e.Timestamp.UTC().Format(time.RFC3339Nano), e.ReviewerIdentity, e.RawMessage,
		string(e.Decision), string(cb), e.Supersedes, e.PrevHash, e.Hash,
	)
	if err != nil {
		return fmt.Errorf("append audit entry %d for run %s: %w", e.SequenceNumber, runID, err)
	}
	return nil
}

func (s *SQLiteStore) ListAuditEntries(ctx context.Context, runID string) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence_number, timestamp, reviewer_identity, raw_message, decision, citations_json, supersedes, prev_hash, hash
		FROM audit_entries WHERE run_id = ? ORDER BY sequence_number`, runID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var ts, decision, citations string
		if err := rows.Scan(&e.SequenceNumber, &ts, &e.ReviewerIdentity, &e.RawMessage, &decision, &citations, &e.Supersedes, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp %q: %w", ts, err)
		}
		e.Decision = models.Decision(decision)
		if err := json.Unmarshal([]byte(citations), &e.Citations); err != nil {
			return nil, fmt.Errorf("decode citations: %w", err)
		}
		if len(e.Citations) == 0 {
			e.Citations = nil
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
