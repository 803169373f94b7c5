package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/group"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/student"
	"github.com/academy-ledger/internal/domain/waitinglist"
	"github.com/academy-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// ContractServiceImpl allocates contract numbers under a per-scope distributed lock.
// The partial unique index on (group_id, birth_year, sequence_number) backs the lock up.
type ContractServiceImpl struct {
	db            persistence.TxBeginner
	locker        persistence.ScopeLocker
	contracts     contract.Repository
	students      student.Repository
	groups        group.Repository
	waitingList   waitinglist.Repository
	defaultPrefix string
	logger        *slog.Logger
}

func NewContractService(
	logger *slog.Logger,
	db persistence.TxBeginner,
	locker persistence.ScopeLocker,
	contracts contract.Repository,
	students student.Repository,
	groups group.Repository,
	waitingList waitinglist.Repository,
	defaultPrefix string,
) ContractService {
	return &ContractServiceImpl{
		db:            db,
		locker:        locker,
		contracts:     contracts,
		students:      students,
		groups:        groups,
		waitingList:   waitingList,
		defaultPrefix: defaultPrefix,
		logger:        logger,
	}
}

func (s *ContractServiceImpl) lockScope(ctx context.Context, scope contract.Scope) (func(), error) {
	release, err := s.locker.Lock(ctx, scope.LockKey())
	if err != nil {
		s.logger.Warn("Failed to lock allocation scope", "group_id", scope.GroupID, "birth_year", scope.BirthYear, "error", err)
		return nil, err
	}
	return release, nil
}

// CreateContract allocates the smallest free sequence of the student's scope, stores the
// contract and consumes the student's waiting-list entry in one transaction. When the group
// is full and req.Enqueue is set, the student is queued and CapacityExceeded is still returned.
func (s *ContractServiceImpl) CreateContract(ctx context.Context, req CreateContractRequest) (*contract.Contract, error) {
	st, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	groupID := req.GroupID
	if groupID == nil {
		groupID = st.GroupID
	}
	if groupID == nil && req.Number == "" {
		return nil, shared.InvalidInputError{Field: "group_id", Reason: "required when no contract number is given"}
	}

	birthYear := st.BirthYear()
	if groupID != nil {
		release, err := s.lockScope(ctx, contract.Scope{GroupID: *groupID, BirthYear: birthYear})
		if err != nil {
			return nil, err
		}
		defer release()
	}

	var created *contract.Contract
	err = retryOnConflict(s.logger, "create_contract", func() error {
		return persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
			contracts := s.contracts.WithTx(tx)

			active, err := contracts.ListActiveByStudent(ctx, st.ID)
			if err != nil {
				return err
			}
			if len(active) > 0 {
				return shared.InvalidStateError{Entity: "student", ID: st.ID, From: "ACTIVE contract " + active[0].Number, Action: "create another contract for"}
			}

			number := req.Number
			var sequence *int
			if groupID != nil {
				g, err := s.groups.WithTx(tx).GetByID(ctx, *groupID)
				if err != nil {
					return err
				}
				scope := contract.Scope{GroupID: g.ID, BirthYear: birthYear}
				used, err := contracts.UsedSequences(ctx, scope)
				if err != nil {
					return err
				}
				n, err := contract.SmallestFree(scope, used, g.Capacity)
				if err != nil {
					return err
				}
				sequence = &n
				if number == "" {
					number = contract.RenderNumber(g.Prefix(s.defaultPrefix), n, birthYear)
				}
			}

			c, err := contract.New(number, st.ID, req.MonthlyFee, req.StartDate, req.EndDate)
			if err != nil {
				return err
			}
			c.GroupID = groupID
			c.BirthYear = birthYear
			c.SequenceNumber = sequence

			if err := contracts.Create(ctx, c); err != nil {
				return err
			}
			if _, err := s.waitingList.WithTx(tx).DeleteByStudent(ctx, st.ID); err != nil {
				return err
			}
			created = c
			return nil
		})
	})

	if errors.Is(err, shared.ErrCapacityExceeded) && req.Enqueue && groupID != nil {
		entry := waitinglist.NewEntry(st.ID, *groupID, birthYear, req.WaitingPriority, "group full at contract creation")
		if addErr := s.waitingList.Add(ctx, entry); addErr != nil {
			s.logger.Error("Failed to queue student on waiting list", "student_id", st.ID, "group_id", *groupID, "error", addErr)
			return nil, addErr
		}
		s.logger.Info("Group full, student queued", "student_id", st.ID, "group_id", *groupID, "waiting_list_id", entry.ID)
		return nil, err
	}
	if err != nil {
		s.logger.Info("Contract creation rejected", "student_id", st.ID, "error", err)
		return nil, err
	}

	s.logger.Info("Contract created",
		"contract_id", created.ID,
		"contract_number", created.Number,
		"student_id", created.StudentID,
		"sequence_number", created.SequenceNumber,
	)
	return created, nil
}

// Terminate moves an ACTIVE contract to COMPLETED or CANCELLED. Its sequence number becomes
// free for the next allocation in the scope.
func (s *ContractServiceImpl) Terminate(ctx context.Context, id int64, status shared.ContractStatus) (*contract.Contract, error) {
	current, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.GroupID != nil {
		release, err := s.lockScope(ctx, contract.Scope{GroupID: *current.GroupID, BirthYear: current.BirthYear})
		if err != nil {
			return nil, err
		}
		defer release()
	}

	var terminated *contract.Contract
	err = persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
		contracts := s.contracts.WithTx(tx)
		c, err := contracts.LockByID(ctx, id)
		if err != nil {
			return err
		}
		version := c.Version
		if err := c.Terminate(status); err != nil {
			return err
		}
		if err := contracts.UpdateStatus(ctx, c.ID, c.Status, version); err != nil {
			return err
		}
		c.Version = version + 1
		terminated = c
		return nil
	})
	if errors.Is(err, shared.ErrConcurrentUpdate) {
		return nil, shared.ErrConflict
	}
	if err != nil {
		s.logger.Info("Contract termination rejected", "contract_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("Contract terminated", "contract_id", id, "status", status, "sequence_number", terminated.SequenceNumber)
	return terminated, nil
}

// Describe is the public contract lookup used by gateway getinfo calls
func (s *ContractServiceImpl) Describe(ctx context.Context, number string) (*ContractInfo, error) {
	c, err := s.contracts.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	st, err := s.students.GetByID(ctx, c.StudentID)
	if err != nil {
		return nil, err
	}
	return &ContractInfo{Contract: c, Student: st}, nil
}

func (s *ContractServiceImpl) AvailableSequences(ctx context.Context, groupID int64, birthYear int) ([]int, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	used, err := s.contracts.UsedSequences(ctx, contract.Scope{GroupID: groupID, BirthYear: birthYear})
	if err != nil {
		return nil, err
	}
	return contract.FreeSequences(used, g.Capacity), nil
}

func (s *ContractServiceImpl) AddToWaitingList(ctx context.Context, entry *waitinglist.Entry) error {
	st, err := s.students.GetByID(ctx, entry.StudentID)
	if err != nil {
		return err
	}
	if _, err := s.groups.GetByID(ctx, entry.GroupID); err != nil {
		return err
	}
	if entry.BirthYear == 0 {
		entry.BirthYear = st.BirthYear()
	}
	if err := s.waitingList.Add(ctx, entry); err != nil {
		s.logger.Error("Failed to add waiting list entry", "student_id", entry.StudentID, "group_id", entry.GroupID, "error", err)
		return err
	}
	s.logger.Info("Student added to waiting list", "waiting_list_id", entry.ID, "student_id", entry.StudentID, "group_id", entry.GroupID)
	return nil
}

func (s *ContractServiceImpl) ListWaitingList(ctx context.Context, groupID int64) ([]*waitinglist.Entry, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.waitingList.ListByGroup(ctx, groupID)
}

func (s *ContractServiceImpl) RemoveFromWaitingList(ctx context.Context, id int64) error {
	return s.waitingList.Delete(ctx, id)
}
