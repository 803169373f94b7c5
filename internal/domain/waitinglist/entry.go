package waitinglist

import (
	"context"
	"strconv"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Entry holds a student's place in the queue for a full group. It is consumed
// when a contract is created for the student.
type Entry struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	GroupID   int64     `json:"group_id"`
	BirthYear int       `json:"birth_year"`
	Priority  int       `json:"priority"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewEntry(studentID, groupID int64, birthYear, priority int, comment string) *Entry {
	return &Entry{
		StudentID: studentID,
		GroupID:   groupID,
		BirthYear: birthYear,
		Priority:  priority,
		Comment:   comment,
		CreatedAt: time.Now(),
	}
}

// Repository orders entries by priority (highest first), then by arrival
type Repository interface {
	Add(ctx context.Context, entry *Entry) error
	ListByGroup(ctx context.Context, groupID int64) ([]*Entry, error)
	Delete(ctx context.Context, id int64) error
	DeleteByStudent(ctx context.Context, studentID int64) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

func ErrEntryNotFound(id int64) error {
	return shared.NotFoundError{Entity: "waiting list entry", Key: strconv.FormatInt(id, 10)}
}
