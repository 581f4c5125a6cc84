package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const jobColumns = `j.id, j.job_type, j.total_count, j.processed_count, j.created_at, j.completed_at,
    COALESCE(SUM(CASE WHEN i.status = 'pending' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN i.status = 'running' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN i.status = 'completed' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN i.status = 'failed' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN i.status = 'canceled' THEN 1 ELSE 0 END), 0)`

const jobFrom = ` FROM jobs j LEFT JOIN job_items i ON i.job_id = j.id`

// Enqueue creates one job plus one pending item per paper ID in a
// single transaction, so a crash can never leave a job with a wrong
// item count. It returns the created job without waiting for workers.
func (s *Store) Enqueue(ctx context.Context, jobType JobType, paperIDs []int64) (*Job, error) {
	if _, ok := ParseJobType(string(jobType)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	if len(paperIDs) == 0 {
		return nil, ErrNoPaperIDs
	}

	timestamp := formatTime(nowUTC())
	var jobID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO jobs (job_type, total_count, processed_count, created_at) VALUES (?, ?, 0, ?)`,
			jobType,
			len(paperIDs),
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		jobID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		stmt, err := tx.PrepareContext(
			ctx,
			`INSERT INTO job_items (job_id, paper_id, job_type, status, enqueued_at) VALUES (?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare item insert: %w", err)
		}
		defer stmt.Close()

		for _, paperID := range paperIDs {
			if _, err := stmt.ExecContext(ctx, jobID, paperID, jobType, StatusPending, timestamp); err != nil {
				return fmt.Errorf("insert item for paper %d: %w", paperID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetJob(ctx, jobID)
}

// GetJob fetches a job with its per-status item counts.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+jobFrom+` WHERE j.id = ? GROUP BY j.id`,
		id,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// CancelJob transitions every pending item of the job to canceled.
// Items already running or terminal are untouched; in-flight work is
// never preempted. Returns the refreshed job and the number of items
// canceled.
func (s *Store) CancelJob(ctx context.Context, id int64) (*Job, int64, error) {
	var canceled int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check job: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("job %d: %w", id, ErrNotFound)
		}

		timestamp := formatTime(nowUTC())
		res, err := tx.ExecContext(
			ctx,
			`UPDATE job_items SET status = ?, completed_at = ?, error_message = ?
             WHERE job_id = ? AND status = ?`,
			StatusCanceled,
			timestamp,
			CanceledMessage,
			id,
			StatusPending,
		)
		if err != nil {
			return fmt.Errorf("cancel pending items: %w", err)
		}
		if canceled, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		return refreshJobCounters(ctx, tx, timestamp, id)
	})
	if err != nil {
		return nil, 0, err
	}

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return job, canceled, nil
}

// ClearQueue cancels every pending item across all jobs. Running items
// are unaffected and finish naturally. Returns the number of jobs that
// had items canceled and the number of items canceled.
func (s *Store) ClearQueue(ctx context.Context) (int64, int64, error) {
	var canceledJobs, canceledItems int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(
			ctx,
			`SELECT COUNT(DISTINCT job_id) FROM job_items WHERE status = ?`,
			StatusPending,
		).Scan(&canceledJobs); err != nil {
			return fmt.Errorf("count pending jobs: %w", err)
		}

		timestamp := formatTime(nowUTC())
		res, err := tx.ExecContext(
			ctx,
			`UPDATE job_items SET status = ?, completed_at = ?, error_message = ? WHERE status = ?`,
			StatusCanceled,
			timestamp,
			CanceledMessage,
			StatusPending,
		)
		if err != nil {
			return fmt.Errorf("cancel pending items: %w", err)
		}
		if canceledItems, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		return refreshJobCounters(ctx, tx, timestamp)
	})
	if err != nil {
		return 0, 0, err
	}
	return canceledJobs, canceledItems, nil
}

// ClearHistory deletes jobs whose items are all terminal; their items
// go with them via the cascading foreign key. Active work is never
// touched. Returns the number of jobs deleted.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE id NOT IN (
            SELECT DISTINCT job_id FROM job_items WHERE status IN (?, ?)
        )`,
		StatusPending,
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

// ActiveJobs returns jobs with at least one non-terminal item, newest first.
func (s *Store) ActiveJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+jobFrom+`
         GROUP BY j.id
         HAVING SUM(CASE WHEN i.status IN ('pending', 'running') THEN 1 ELSE 0 END) > 0
         ORDER BY j.created_at DESC, j.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// HistoryJobs returns fully terminal jobs ordered by completion time
// descending. The id tiebreak keeps pagination stable when many jobs
// finish in the same instant.
func (s *Store) HistoryJobs(ctx context.Context, limit, offset int) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+jobFrom+`
         WHERE j.completed_at IS NOT NULL
         GROUP BY j.id
         ORDER BY j.completed_at DESC, j.id DESC
         LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query history jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Stats returns item counts grouped by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM job_items GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status ItemStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusRunning:
			stats.Running = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		case StatusCanceled:
			stats.Canceled = count
		}
	}
	return stats, rows.Err()
}

// refreshJobCounters recomputes processed_count and stamps completed_at
// for jobs that have no non-terminal items left. With no IDs it touches
// every job; callers already hold the transaction.
func refreshJobCounters(ctx context.Context, tx *sql.Tx, timestamp string, jobIDs ...int64) error {
	processedQuery := `UPDATE jobs SET processed_count = (
            SELECT COUNT(1) FROM job_items
            WHERE job_items.job_id = jobs.id AND job_items.status IN ('completed', 'failed', 'canceled')
        )`
	completedQuery := `UPDATE jobs SET completed_at = ?
        WHERE completed_at IS NULL AND NOT EXISTS (
            SELECT 1 FROM job_items
            WHERE job_items.job_id = jobs.id AND job_items.status IN ('pending', 'running')
        )`

	if len(jobIDs) > 0 {
		placeholders := makePlaceholders(len(jobIDs))
		processedQuery += ` WHERE id IN (` + placeholders + `)`
		completedQuery += ` AND id IN (` + placeholders + `)`
	}

	args := make([]any, 0, len(jobIDs)+1)
	for _, id := range jobIDs {
		args = append(args, id)
	}
	if _, err := tx.ExecContext(ctx, processedQuery, args...); err != nil {
		return fmt.Errorf("refresh processed counts: %w", err)
	}

	args = append([]any{timestamp}, args...)
	if _, err := tx.ExecContext(ctx, completedQuery, args...); err != nil {
		return fmt.Errorf("stamp completed jobs: %w", err)
	}
	return nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		jobType      string
		createdRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&jobType,
		&job.TotalCount,
		&job.ProcessedCount,
		&createdRaw,
		&completedRaw,
		&job.PendingCount,
		&job.RunningCount,
		&job.CompletedCount,
		&job.FailedCount,
		&job.CanceledCount,
	); err != nil {
		return nil, err
	}

	job.Type = JobType(jobType)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return &job, nil
}
