package contract

import (
	"fmt"
	"sort"

	"github.com/academy-ledger/internal/domain/shared"
)

// Scope is the allocator key: sequence numbers are unique and reusable within it.
type Scope struct {
	GroupID   int64
	BirthYear int
}

// LockKey names the distributed lock guarding the scope.
func (s Scope) LockKey() string {
	return fmt.Sprintf("contract-scope:%d:%d", s.GroupID, s.BirthYear)
}

// SmallestFree picks the lowest sequence in [1, capacity] not present in used.
func SmallestFree(scope Scope, used []int, capacity int) (int, error) {
	free := FreeSequences(used, capacity)
	if len(free) == 0 {
		return 0, shared.CapacityExceededError{GroupID: scope.GroupID, BirthYear: scope.BirthYear, Capacity: capacity}
	}
	return free[0], nil
}

// FreeSequences lists the unused sequences in [1, capacity] in ascending order.
func FreeSequences(used []int, capacity int) []int {
	taken := make(map[int]struct{}, len(used))
	for _, n := range used {
		taken[n] = struct{}{}
	}
	free := make([]int, 0, capacity)
	for n := 1; n <= capacity; n++ {
		if _, ok := taken[n]; !ok {
			free = append(free, n)
		}
	}
	sort.Ints(free)
	return free
}

// RenderNumber builds the contract number as prefix + sequence + birth year, e.g. N12020.
func RenderNumber(prefix string, sequence, birthYear int) string {
	return fmt.Sprintf("%s%d%d", prefix, sequence, birthYear)
}
