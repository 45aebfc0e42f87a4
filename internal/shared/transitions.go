package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TransitionAction enumerates workflow transition log actions.
type TransitionAction string

const (
	// TransitionSend marks the sales hand-off to the supervisor.
	TransitionSend TransitionAction = "SEND"
	// TransitionApprove marks supervisor approval.
	TransitionApprove TransitionAction = "APPROVE"
	// TransitionReopen marks a post-approval edit forcing revision.
	TransitionReopen TransitionAction = "REOPEN"
	// TransitionConfirm marks inquiry confirmation.
	TransitionConfirm TransitionAction = "CONFIRM"
)

// TransitionLog represents a single workflow transition record.
type TransitionLog struct {
	ID      int64
	OrderID int64
	ActorID int64
	Action  TransitionAction
	Note    string
	At      time.Time
}

// TransitionRecorder persists workflow transition history.
type TransitionRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTransitionRecorder constructs TransitionRecorder.
func NewTransitionRecorder(pool *pgxpool.Pool, logger *slog.Logger) *TransitionRecorder {
	return &TransitionRecorder{pool: pool, logger: logger}
}

// Record writes a transition entry to the database.
func (r *TransitionRecorder) Record(ctx context.Context, log TransitionLog) error {
	if r == nil {
		return errors.New("transition recorder not initialised")
	}
	if log.OrderID == 0 {
		return errors.New("transition order id required")
	}
	if log.ActorID == 0 {
		return errors.New("transition actor required")
	}
	if log.Action == "" {
		return errors.New("transition action required")
	}
	// A zero time.Time is a valid timestamptz to pgx, not NULL, so the
	// default has to be applied here rather than in SQL.
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO order_transitions (order_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5)`, log.OrderID, log.ActorID, string(log.Action), log.Note, log.At)
	if err != nil {
		r.logger.Error("record transition", slog.Any("error", err))
		return err
	}
	return nil
}

// List returns the transition history for one order, oldest first.
func (r *TransitionRecorder) List(ctx context.Context, orderID int64) ([]TransitionLog, error) {
	if r == nil {
		return nil, errors.New("transition recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, actor_id, action, note, at
FROM order_transitions WHERE order_id=$1 ORDER BY at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []TransitionLog
	for rows.Next() {
		var l TransitionLog
		var action string
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ActorID, &action, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Action = TransitionAction(action)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
