package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // driver "sqlite" (pure Go)

	"mercator-hq/webdev/pkg/build"
)

// Config configures a Store.
type Config struct {
	// Driver is "sqlite" or "sqlite3". Default: "sqlite".
	Driver string

	// Path is the database file. Parent directories are created.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	Logger *slog.Logger
}

// Store persists build records in SQLite. It implements build.Observer and
// the router's publish observer so it can be attached directly to both.
type Store struct {
	db        *sql.DB
	config    Config
	logger    *slog.Logger
	closeOnce sync.Once

	insertStmt  *sql.Stmt
	finishStmt  *sql.Stmt
	publishStmt *sql.Stmt
}

// Open opens or creates the history database.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.Driver != "sqlite" && cfg.Driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "history")

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps per-connection pragmas in effect and matches
	// SQLite's single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, config: cfg, logger: logger}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.prepareStatements(); err != nil {
		s.closeStatements()
		db.Close()
		return nil, err
	}

	logger.Debug("history store opened", "path", cfg.Path, "driver", cfg.Driver)
	return s, nil
}

// initialize enables WAL, sets the busy timeout and creates the schema.
func (s *Store) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case version > SchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	return nil
}

func (s *Store) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO builds (job_id, root, state, exit_code, error, tail, revision, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO UPDATE SET
			state = excluded.state,
			exit_code = excluded.exit_code,
			error = excluded.error,
			tail = excluded.tail,
			revision = excluded.revision,
			finished_at = excluded.finished_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.finishStmt, err = s.db.Prepare(`
		UPDATE builds SET state = ?, exit_code = ?, error = ?, tail = ?, revision = ?, finished_at = ?
		WHERE job_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare finish statement: %w", err)
	}

	s.publishStmt, err = s.db.Prepare(`
		UPDATE builds SET published = ?, published_at = ?, publish_error = ?
		WHERE job_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare publish statement: %w", err)
	}

	return nil
}

// Record inserts rec, or updates the outcome of an existing record with the
// same job ID.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.JobID == "" {
		return fmt.Errorf("job id cannot be empty")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	tail, err := encodeTail(rec.Tail)
	if err != nil {
		return err
	}

	_, err = s.insertStmt.ExecContext(ctx,
		rec.JobID,
		rec.Root,
		rec.State,
		rec.ExitCode,
		rec.Error,
		tail,
		rec.Revision,
		toMillis(rec.StartedAt),
		toMillis(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record build %s: %w", rec.JobID, err)
	}
	return nil
}

// Finish stores the outcome of a build recorded earlier.
func (s *Store) Finish(ctx context.Context, rec Record) error {
	tail, err := encodeTail(rec.Tail)
	if err != nil {
		return err
	}

	result, err := s.finishStmt.ExecContext(ctx,
		rec.State,
		rec.ExitCode,
		rec.Error,
		tail,
		rec.Revision,
		toMillis(rec.FinishedAt),
		rec.JobID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish build %s: %w", rec.JobID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		// JobStarted was missed; keep the outcome anyway.
		return s.Record(ctx, rec)
	}
	return nil
}

// MarkPublished records the publish outcome for jobID. A nil publishErr
// marks the build as published.
func (s *Store) MarkPublished(ctx context.Context, jobID string, publishErr error) error {
	published := 1
	msg := ""
	if publishErr != nil {
		published = 0
		msg = publishErr.Error()
	}

	result, err := s.publishStmt.ExecContext(ctx, published, time.Now().UnixMilli(), msg, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark build %s published: %w", jobID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return nil
}

const selectColumns = `job_id, root, state, exit_code, error, tail, revision,
	started_at, finished_at, published, published_at, publish_error`

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := "SELECT " + selectColumns + " FROM builds ORDER BY started_at DESC, job_id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// Get returns the record for jobID or ErrNotFound.
func (s *Store) Get(ctx context.Context, jobID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM builds WHERE job_id = ?", jobID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return rec, err
}

// Prune deletes all but the newest keep records and returns how many were
// removed. keep <= 0 is a no-op.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM builds WHERE job_id NOT IN (
			SELECT job_id FROM builds ORDER BY started_at DESC, job_id LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune builds: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(deleted), nil
}

// Close releases the database. Close is idempotent.
func (s *Store) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.closeStatements()
		closeErr = s.db.Close()
	})
	return closeErr
}

func (s *Store) closeStatements() {
	for _, stmt := range []*sql.Stmt{s.insertStmt, s.finishStmt, s.publishStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// JobStarted implements build.Observer.
func (s *Store) JobStarted(job *build.Job) {
	ctx, cancel := s.observerContext()
	defer cancel()

	err := s.Record(ctx, Record{
		JobID:     job.ID(),
		Root:      job.Root(),
		State:     build.Running.String(),
		StartedAt: job.StartedAt(),
	})
	if err != nil {
		s.logger.Warn("failed to record build start", "job_id", job.ID(), "error", err)
	}
}

// JobFinished implements build.Observer.
func (s *Store) JobFinished(job *build.Job, res build.Result) {
	ctx, cancel := s.observerContext()
	defer cancel()

	if err := s.Finish(ctx, FromResult(res)); err != nil {
		s.logger.Warn("failed to record build result", "job_id", job.ID(), "error", err)
	}
}

// Published records the outcome of publishing jobID's output.
func (s *Store) Published(jobID string, _ time.Duration, err error) {
	ctx, cancel := s.observerContext()
	defer cancel()

	if markErr := s.MarkPublished(ctx, jobID, err); markErr != nil {
		s.logger.Warn("failed to record publish", "job_id", jobID, "error", markErr)
	}
}

func (s *Store) observerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*s.config.BusyTimeout)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var tail string
	var startedAt, finishedAt, publishedAt int64
	var published int

	err := row.Scan(
		&rec.JobID,
		&rec.Root,
		&rec.State,
		&rec.ExitCode,
		&rec.Error,
		&tail,
		&rec.Revision,
		&startedAt,
		&finishedAt,
		&published,
		&publishedAt,
		&rec.PublishError,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("failed to scan row: %w", err)
	}

	rec.StartedAt = fromMillis(startedAt)
	rec.FinishedAt = fromMillis(finishedAt)
	rec.PublishedAt = fromMillis(publishedAt)
	rec.Published = published != 0
	if tail != "" {
		if err := json.Unmarshal([]byte(tail), &rec.Tail); err != nil {
			return Record{}, fmt.Errorf("failed to unmarshal tail: %w", err)
		}
	}
	return rec, nil
}

func encodeTail(tail []string) (string, error) {
	if len(tail) == 0 {
		return "", nil
	}
	data, err := json.Marshal(tail)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tail: %w", err)
	}
	return string(data), nil
}
