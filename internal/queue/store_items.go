package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const itemColumns = "id, job_id, paper_id, job_type, status, result, error_message, enqueued_at, started_at, completed_at, request_id"

// ClaimNext atomically claims the oldest pending item whose paper has
// no other item currently running, flipping it to running. The
// selection and the flip are one conditional UPDATE, so two workers can
// neither claim the same item nor claim different items for the same
// paper - and the guarantee holds across processes sharing the
// database. Returns nil when no eligible item exists.
func (s *Store) ClaimNext(ctx context.Context, requestID string) (*Item, error) {
	if requestID == "" {
		return nil, errors.New("request id is required")
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE job_items SET status = ?, started_at = ?, request_id = ?
         WHERE id = (
            SELECT ji.id FROM job_items ji
            WHERE ji.status = ?
              AND NOT EXISTS (
                SELECT 1 FROM job_items running
                WHERE running.paper_id = ji.paper_id AND running.status = ?
              )
            ORDER BY ji.enqueued_at, ji.id
            LIMIT 1
         )`,
		StatusRunning,
		formatTime(nowUTC()),
		requestID,
		StatusPending,
		StatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("claim next item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM job_items WHERE request_id = ? AND status = ?`,
		requestID,
		StatusRunning,
	)
	item, err := scanItem(row)
	if err != nil {
		return nil, fmt.Errorf("load claimed item: %w", err)
	}
	return item, nil
}

// MarkCompleted finalizes a running item as completed and increments
// the parent job's processed counter in the same transaction.
func (s *Store) MarkCompleted(ctx context.Context, itemID int64, result string) error {
	return s.finalizeItem(ctx, itemID, StatusCompleted, result, "")
}

// MarkFailed finalizes a running item as failed. The failure is local
// to the item; sibling items and other jobs are untouched.
func (s *Store) MarkFailed(ctx context.Context, itemID int64, message string) error {
	return s.finalizeItem(ctx, itemID, StatusFailed, "", message)
}

func (s *Store) finalizeItem(ctx context.Context, itemID int64, status ItemStatus, result, message string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		timestamp := formatTime(nowUTC())
		res, err := tx.ExecContext(
			ctx,
			`UPDATE job_items SET status = ?, result = ?, error_message = ?, completed_at = ?
             WHERE id = ? AND status = ?`,
			status,
			nullableString(result),
			nullableString(message),
			timestamp,
			itemID,
			StatusRunning,
		)
		if err != nil {
			return fmt.Errorf("finalize item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("item %d is not running: %w", itemID, ErrNotFound)
		}

		var jobID int64
		if err := tx.QueryRowContext(ctx, `SELECT job_id FROM job_items WHERE id = ?`, itemID).Scan(&jobID); err != nil {
			return fmt.Errorf("resolve job id: %w", err)
		}
		return refreshJobCounters(ctx, tx, timestamp, jobID)
	})
}

// GetItem fetches a single item by identifier.
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM job_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ItemsForJob returns every item of a job in enqueue order.
func (s *Store) ItemsForJob(ctx context.Context, jobID int64) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM job_items WHERE job_id = ? ORDER BY enqueued_at, id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query job items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ActiveItems returns all non-terminal items in enqueue order.
func (s *Store) ActiveItems(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM job_items WHERE status IN (?, ?) ORDER BY enqueued_at, id`,
		StatusPending,
		StatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("query active items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// HistoryItems returns terminal items ordered by completion time
// descending, with an id tiebreak so pages stay stable while new items
// finish concurrently.
func (s *Store) HistoryItems(ctx context.Context, limit, offset int) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM job_items
         WHERE status IN (?, ?, ?)
         ORDER BY completed_at DESC, id DESC
         LIMIT ? OFFSET ?`,
		StatusCompleted,
		StatusFailed,
		StatusCanceled,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query history items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// RecoverOrphanedRunning resets items left in running state by a crash
// back to pending so the work is retried rather than silently lost.
// Must run before workers start; this is the only automatic retry the
// queue performs.
func (s *Store) RecoverOrphanedRunning(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE job_items SET status = ?, started_at = NULL, request_id = NULL WHERE status = ?`,
		StatusPending,
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("recover orphaned items: %w", err)
	}
	return res.RowsAffected()
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item         Item
		jobType      string
		statusStr    string
		result       sql.NullString
		errorMessage sql.NullString
		enqueuedRaw  sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		requestID    sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.JobID,
		&item.PaperID,
		&jobType,
		&statusStr,
		&result,
		&errorMessage,
		&enqueuedRaw,
		&startedRaw,
		&completedRaw,
		&requestID,
	); err != nil {
		return nil, err
	}

	item.Type = JobType(jobType)
	item.Status = ItemStatus(statusStr)
	item.Result = result.String
	item.ErrorMessage = errorMessage.String
	item.RequestID = requestID.String

	if enqueued, err := parseTimeString(enqueuedRaw.String); err == nil {
		item.EnqueuedAt = enqueued
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			item.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			item.CompletedAt = &completed
		}
	}
	return &item, nil
}
