package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"menuvision/internal/config"
	"menuvision/internal/menu"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// StaleReclaimMessage is the error message recorded on jobs whose heartbeat
// went stale, typically after a daemon crash mid-run.
const StaleReclaimMessage = "processing interrupted: heartbeat expired"

// Open initializes or connects to the jobs database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// NewJob inserts a pending job for a submitted menu image and returns it.
func (s *Store) NewJob(ctx context.Context, imagePath string) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	err := s.execWithRetry(ctx,
		`INSERT INTO jobs (id, status, image_path, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		id, StatusPending, imagePath, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID loads a job snapshot. Returns (nil, nil) when the job is absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return job, nil
}

// Update persists the full job snapshot.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("update requires a job")
	}
	dishesJSON, err := json.Marshal(job.Dishes)
	if err != nil {
		return fmt.Errorf("marshal dishes: %w", err)
	}
	job.UpdatedAt = time.Now().UTC()

	err = s.execWithRetry(ctx,
		`UPDATE jobs SET
            status = ?, source_language = ?, dishes_json = ?, error_message = ?,
            image_path = ?, progress_stage = ?, progress_message = ?,
            updated_at = ?, started_at = ?, deadline = ?, last_heartbeat = ?
         WHERE id = ?`,
		job.Status,
		nullableString(stringValue(job.SourceLanguage)),
		string(dishesJSON),
		job.ErrorMessage,
		job.ImagePath,
		job.ProgressStage,
		job.ProgressMessage,
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.Deadline),
		nullableTime(job.LastHeartbeat),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	return nil
}

// NextPending returns the oldest pending job, or nil when none is waiting.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+" FROM jobs WHERE status = ? ORDER BY created_at ASC LIMIT 1",
		StatusPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return job, nil
}

// List returns all jobs, newest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" FROM jobs ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateHeartbeat bumps the heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithRetry(ctx,
		"UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?",
		now, now, id,
	)
}

// ReclaimStaleProcessing fails processing jobs whose heartbeat predates the
// cutoff, so a crashed daemon does not leave jobs stuck in-flight forever.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, progress_stage = 'Failed',
            progress_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StatusFailed,
		StaleReclaimMessage,
		StaleReclaimMessage,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// Summary aggregates job counts per lifecycle state.
func (s *Store) Summary(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM jobs GROUP BY status")
	if err != nil {
		return HealthSummary{}, fmt.Errorf("summarize jobs: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan summary row: %w", err)
		}
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending = count
		case StatusProcessing:
			summary.Processing = count
		case StatusCompleted:
			summary.Completed = count
		case StatusPartial:
			summary.Partial = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

const selectColumns = `SELECT id, status, source_language, dishes_json, error_message,
    image_path, progress_stage, progress_message,
    created_at, updated_at, started_at, deadline, last_heartbeat`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job            Job
		sourceLanguage sql.NullString
		dishesJSON     string
		createdAt      string
		updatedAt      string
		startedAt      sql.NullString
		deadline       sql.NullString
		lastHeartbeat  sql.NullString
	)
	err := row.Scan(
		&job.ID, &job.Status, &sourceLanguage, &dishesJSON, &job.ErrorMessage,
		&job.ImagePath, &job.ProgressStage, &job.ProgressMessage,
		&createdAt, &updatedAt, &startedAt, &deadline, &lastHeartbeat,
	)
	if err != nil {
		return nil, err
	}

	status, ok := ParseStatus(string(job.Status))
	if !ok {
		return nil, fmt.Errorf("job %s has unknown status %q", job.ID, job.Status)
	}
	job.Status = status

	if sourceLanguage.Valid && strings.TrimSpace(sourceLanguage.String) != "" {
		value := sourceLanguage.String
		job.SourceLanguage = &value
	}
	if dishesJSON != "" {
		if err := json.Unmarshal([]byte(dishesJSON), &job.Dishes); err != nil {
			return nil, fmt.Errorf("decode dishes for job %s: %w", job.ID, err)
		}
	}
	if job.Dishes == nil {
		job.Dishes = []menu.Dish{}
	}

	if job.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if job.StartedAt, err = parseOptionalTimestamp(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if job.Deadline, err = parseOptionalTimestamp(deadline); err != nil {
		return nil, fmt.Errorf("parse deadline: %w", err)
	}
	if job.LastHeartbeat, err = parseOptionalTimestamp(lastHeartbeat); err != nil {
		return nil, fmt.Errorf("parse last_heartbeat: %w", err)
	}

	return &job, nil
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

func parseOptionalTimestamp(value sql.NullString) (*time.Time, error) {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
