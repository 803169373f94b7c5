package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/academy-ledger/internal/domain/group"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/student"
	"github.com/academy-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// StudentRepository reads the student records owned by the academy CRM
type StudentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewStudentRepository(logger *slog.Logger, db *persistence.PostgresDB) student.Repository {
	return &StudentRepository{querier: db.Pool(), logger: logger}
}

func (r *StudentRepository) WithTx(tx pgx.Tx) student.Repository {
	return &StudentRepository{querier: tx, logger: r.logger}
}

const studentColumns = `id, first_name, last_name, date_of_birth, face_id, group_id`

func (r *StudentRepository) get(ctx context.Context, where string, arg interface{}) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE ` + where

	var s student.Student
	err := r.querier.QueryRow(ctx, query, arg).Scan(
		&s.ID,
		&s.FirstName,
		&s.LastName,
		&s.DateOfBirth,
		&s.FaceID,
		&s.GroupID,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*student.Student, error) {
	s, err := r.get(ctx, "id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, student.ErrStudentNotFound(id)
		}
		r.logger.Error("Failed to get student", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

// GetByFaceID resolves the identifier sent by the turnstile camera
func (r *StudentRepository) GetByFaceID(ctx context.Context, faceID string) (*student.Student, error) {
	s, err := r.get(ctx, "face_id = $1", faceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Entity: "student", Key: "for face id"}
		}
		r.logger.Error("Failed to get student by face id", "error", err)
		return nil, fmt.Errorf("failed to get student by face id: %w", err)
	}
	return s, nil
}

type GroupRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewGroupRepository(logger *slog.Logger, db *persistence.PostgresDB) group.Repository {
	return &GroupRepository{querier: db.Pool(), logger: logger}
}

func (r *GroupRepository) WithTx(tx pgx.Tx) group.Repository {
	return &GroupRepository{querier: tx, logger: r.logger}
}

func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*group.Group, error) {
	query := `SELECT id, name, capacity, contract_prefix FROM groups WHERE id = $1`

	var g group.Group
	err := r.querier.QueryRow(ctx, query, id).Scan(&g.ID, &g.Name, &g.Capacity, &g.ContractPrefix)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, group.ErrGroupNotFound(id)
		}
		r.logger.Error("Failed to get group", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &g, nil
}
