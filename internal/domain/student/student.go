package student

import (
	"context"
	"strconv"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Student is the read-only view of an enrolled student used by the ledger core
type Student struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	FaceID      *string   `json:"face_id,omitempty"`
	GroupID     *int64    `json:"group_id,omitempty"`
}

func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

func (s *Student) BirthYear() int {
	return s.DateOfBirth.Year()
}

// Repository looks students up by id or by the turnstile face identifier
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Student, error)
	GetByFaceID(ctx context.Context, faceID string) (*Student, error)
	WithTx(tx pgx.Tx) Repository
}

func ErrStudentNotFound(id int64) error {
	return shared.NotFoundError{Entity: "student", Key: strconv.FormatInt(id, 10)}
}
