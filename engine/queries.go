package engine

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/vestflow-xyz/go-vestflow/vesting"
)

// Get returns a copy of the schedule with the given identifier.
func (e *Engine) Get(id string) (*vesting.Schedule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.schedules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vesting.ErrNotFound, id)
	}
	return s.Clone(), nil
}

// LastForHolder returns the most recently created schedule for a holder.
func (e *Engine) LastForHolder(beneficiary string) (*vesting.Schedule, error) {
	beneficiary = vesting.NormalizeAddress(beneficiary)

	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.holderIDs[beneficiary]
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no schedules for %s", vesting.ErrNotFound, beneficiary)
	}
	return e.schedules[ids[len(ids)-1]].Clone(), nil
}

// CountForHolder returns how many schedules a holder has.
func (e *Engine) CountForHolder(beneficiary string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.holderIDs[vesting.NormalizeAddress(beneficiary)])
}

// IDsForHolder returns the holder's schedule identifiers in creation order.
func (e *Engine) IDsForHolder(beneficiary string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.holderIDs[vesting.NormalizeAddress(beneficiary)]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// IDForHolderAndIndex derives the identifier of the index-th schedule of a
// holder. Purely computational; the schedule need not exist yet.
func (e *Engine) IDForHolderAndIndex(beneficiary string, index uint64) string {
	return vesting.ScheduleID(beneficiary, index)
}

// TotalCount returns the number of schedules ever created.
func (e *Engine) TotalCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.order)
}

// ComputeReleasable returns the amount currently claimable from a schedule.
func (e *Engine) ComputeReleasable(id string, now uint64) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.schedules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vesting.ErrNotFound, id)
	}
	return vesting.Releasable(s, now), nil
}

// WithdrawableAmount returns the current uncommitted pool balance.
func (e *Engine) WithdrawableAmount() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(uint256.Int).Set(e.withdrawable)
}

// TotalCommitted returns the outstanding committed amount across schedules.
func (e *Engine) TotalCommitted() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(uint256.Int).Set(e.totalCommitted)
}

// Schedules returns copies of all schedules in creation order.
func (e *Engine) Schedules() []*vesting.Schedule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*vesting.Schedule, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.schedules[id].Clone())
	}
	return out
}
