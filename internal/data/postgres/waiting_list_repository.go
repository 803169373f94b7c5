package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/academy-ledger/internal/domain/waitinglist"
	"github.com/academy-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

type WaitingListRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewWaitingListRepository(logger *slog.Logger, db *persistence.PostgresDB) waitinglist.Repository {
	return &WaitingListRepository{querier: db.Pool(), logger: logger}
}

func (r *WaitingListRepository) WithTx(tx pgx.Tx) waitinglist.Repository {
	return &WaitingListRepository{querier: tx, logger: r.logger}
}

// Add enqueues a student for a group. Re-adding an already queued student
// refreshes the priority and comment instead of creating a second entry.
func (r *WaitingListRepository) Add(ctx context.Context, entry *waitinglist.Entry) error {
	query := `
		INSERT INTO waiting_list (student_id, group_id, birth_year, priority, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, group_id)
		DO UPDATE SET priority = EXCLUDED.priority, comment = EXCLUDED.comment
		RETURNING id, created_at
	`

	err := r.querier.QueryRow(ctx, query,
		entry.StudentID,
		entry.GroupID,
		entry.BirthYear,
		entry.Priority,
		entry.Comment,
		entry.CreatedAt,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to add waiting list entry", "student_id", entry.StudentID, "group_id", entry.GroupID, "error", err)
		return fmt.Errorf("failed to add waiting list entry: %w", err)
	}
	return nil
}

func (r *WaitingListRepository) ListByGroup(ctx context.Context, groupID int64) ([]*waitinglist.Entry, error) {
	query := `
		SELECT id, student_id, group_id, birth_year, priority, comment, created_at
		FROM waiting_list
		WHERE group_id = $1
		ORDER BY priority DESC, created_at ASC, id ASC
	`

	rows, err := r.querier.Query(ctx, query, groupID)
	if err != nil {
		r.logger.Error("Failed to list waiting list", "group_id", groupID, "error", err)
		return nil, fmt.Errorf("failed to list waiting list: %w", err)
	}
	defer rows.Close()

	entries := []*waitinglist.Entry{}
	for rows.Next() {
		var e waitinglist.Entry
		if err := rows.Scan(&e.ID, &e.StudentID, &e.GroupID, &e.BirthYear, &e.Priority, &e.Comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan waiting list entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over waiting list: %w", err)
	}
	return entries, nil
}

func (r *WaitingListRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.querier.Exec(ctx, `DELETE FROM waiting_list WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete waiting list entry", "id", id, "error", err)
		return fmt.Errorf("failed to delete waiting list entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return waitinglist.ErrEntryNotFound(id)
	}
	return nil
}

// DeleteByStudent drops every queue entry of a student and reports how many went
func (r *WaitingListRepository) DeleteByStudent(ctx context.Context, studentID int64) (int64, error) {
	result, err := r.querier.Exec(ctx, `DELETE FROM waiting_list WHERE student_id = $1`, studentID)
	if err != nil {
		r.logger.Error("Failed to clear waiting list entries", "student_id", studentID, "error", err)
		return 0, fmt.Errorf("failed to clear waiting list entries: %w", err)
	}
	return result.RowsAffected(), nil
}

