package gatelog

import (
	"context"
	"fmt"
	"time"

	"github.com/academy-ledger/internal/domain/shared"
	"go.jetify.com/typeid/v2"
)

const idPrefix = "gate"

// Entry is an append-only record of one turnstile attempt. It is never updated.
type Entry struct {
	ID            string              `json:"id" bson:"_id"`
	StudentID     *int64              `json:"student_id,omitempty" bson:"student_id,omitempty"`
	FaceID        *string             `json:"face_id,omitempty" bson:"face_id,omitempty"`
	Decision      shared.GateDecision `json:"decision" bson:"decision"`
	Allowed       bool                `json:"allowed" bson:"allowed"`
	Reason        string              `json:"reason" bson:"reason"`
	DebtAmount    string              `json:"debt_amount,omitempty" bson:"debt_amount,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	GateTimestamp time.Time           `json:"gate_timestamp" bson:"gate_timestamp"`
}

func NewEntry(studentID *int64, faceID *string, allowed bool, reason string, at time.Time) (*Entry, error) {
	id, err := typeid.Generate(idPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to generate gate log id: %w", err)
	}
	decision := shared.GateDecisionDenied
	if allowed {
		decision = shared.GateDecisionAllowed
	}
	return &Entry{
		ID:            id.String(),
		StudentID:     studentID,
		FaceID:        faceID,
		Decision:      decision,
		Allowed:       allowed,
		Reason:        reason,
		GateTimestamp: at,
	}, nil
}

// Filter narrows gate log listings; nil fields are ignored
type Filter struct {
	From      *time.Time
	To        *time.Time
	StudentID *int64
	Allowed   *bool
	Limit     int
	Offset    int
}

// Repository is insert-and-read only
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]*Entry, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}
