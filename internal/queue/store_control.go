package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// State returns the current queue control state. The row is seeded at
// schema creation; a missing row is recreated unpaused so a partially
// restored database never wedges the workers.
func (s *Store) State(ctx context.Context) (State, error) {
	ctx = ensureContext(ctx)

	var (
		paused     int
		updatedRaw string
	)
	err := s.db.QueryRowContext(ctx, `SELECT paused, updated_at FROM queue_state WHERE id = 1`).
		Scan(&paused, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return s.resetState(ctx)
	}
	if err != nil {
		return State{}, fmt.Errorf("read queue state: %w", err)
	}

	state := State{Paused: paused != 0}
	if updated, parseErr := parseTimeString(updatedRaw); parseErr == nil {
		state.UpdatedAt = updated
	}
	return state, nil
}

// SetPaused flips the global pause flag. Setting it does not preempt
// running items; workers simply stop claiming new ones.
func (s *Store) SetPaused(ctx context.Context, paused bool) (State, error) {
	timestamp := nowUTC()
	value := 0
	if paused {
		value = 1
	}

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_state (id, paused, updated_at) VALUES (1, ?, ?)
         ON CONFLICT(id) DO UPDATE SET paused = excluded.paused, updated_at = excluded.updated_at`,
		value,
		formatTime(timestamp),
	); err != nil {
		return State{}, fmt.Errorf("set paused: %w", err)
	}

	return State{Paused: paused, UpdatedAt: timestamp}, nil
}

func (s *Store) resetState(ctx context.Context) (State, error) {
	timestamp := nowUTC()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT OR IGNORE INTO queue_state (id, paused, updated_at) VALUES (1, 0, ?)`,
		formatTime(timestamp),
	); err != nil {
		return State{}, fmt.Errorf("seed queue state: %w", err)
	}
	return State{Paused: false, UpdatedAt: timestamp}, nil
}
