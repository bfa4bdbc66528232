package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a store holds no matching checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	replica    INTEGER NOT NULL,
	step       INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON checkpoints (run_id, replica, step);
`

// Entry is one stored checkpoint payload.
type Entry struct {
	ID        string
	RunID     string
	Replica   int
	Step      int64
	Payload   []byte
	CreatedAt time.Time
}

// Store keeps encoded checkpoints of ensemble runs in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save stores payload as the checkpoint of replica at step and returns the
// new entry ID.
func (s *Store) Save(ctx context.Context, runID string, replica int, step int64, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	if replica < 0 {
		return "", fmt.Errorf("replica must be >= 0, got %d", replica)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("payload is required")
	}

	id := uuid.NewString()
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO checkpoints (id, run_id, replica, step, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, id, runID, replica, step, payload, time.Now().UTC().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	return id, nil
}

// Latest returns the checkpoint of replica with the highest step.
func (s *Store) Latest(ctx context.Context, runID string, replica int) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, run_id, replica, step, payload, created_at
FROM checkpoints
WHERE run_id = ? AND replica = ?
ORDER BY step DESC, created_at DESC
LIMIT 1
`, runID, replica)

	var (
		e       Entry
		created int64
	)
	err := row.Scan(&e.ID, &e.RunID, &e.Replica, &e.Step, &e.Payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("run %s replica %d: %w", runID, replica, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("latest checkpoint: %w", err)
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	return e, nil
}

// Replicas lists the replicas of runID that have at least one checkpoint.
func (s *Store) Replicas(ctx context.Context, runID string) ([]int, error) {
	return queryColumn[int](ctx, s, `
SELECT DISTINCT replica FROM checkpoints WHERE run_id = ? ORDER BY replica
`, runID)
}

// Runs lists the stored run IDs.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	return queryColumn[string](ctx, s, `
SELECT run_id FROM checkpoints GROUP BY run_id ORDER BY MIN(created_at), run_id
`)
}

func queryColumn[T any](ctx context.Context, s *Store, query string, args ...any) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var v T
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan checkpoints: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return out, nil
}
