package engine

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/vestflow-xyz/go-vestflow/vesting"
)

// Snapshot captures an engine's durable state for persistence.
type Snapshot struct {
	ID           string              `json:"id"`
	Account      string              `json:"account"`
	Owner        string              `json:"owner"`
	Schedules    []*vesting.Schedule `json:"schedules"`
	Withdrawable *uint256.Int        `json:"withdrawable"`
}

// Snapshot returns a copy of the engine's durable state.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	schedules := make([]*vesting.Schedule, 0, len(e.order))
	for _, id := range e.order {
		schedules = append(schedules, e.schedules[id].Clone())
	}

	return &Snapshot{
		ID:           e.id,
		Account:      e.account,
		Owner:        e.owner,
		Schedules:    schedules,
		Withdrawable: new(uint256.Int).Set(e.withdrawable),
	}
}

// Restore replaces the engine's state with a snapshot, rebuilding the holder
// indexes and recomputing the committed total from the schedules themselves.
// The restored state must satisfy the solvency invariant.
func (e *Engine) Restore(snap *Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	schedules := make(map[string]*vesting.Schedule, len(snap.Schedules))
	order := make([]string, 0, len(snap.Schedules))
	holderIDs := make(map[string][]string)
	committed := uint256.NewInt(0)

	for _, s := range snap.Schedules {
		s = s.Clone()
		if err := s.Validate(); err != nil {
			return fmt.Errorf("restoring schedule %s: %w", s.ID, err)
		}
		if _, ok := schedules[s.ID]; ok {
			return fmt.Errorf("restoring schedule %s: duplicate id", s.ID)
		}
		schedules[s.ID] = s
		order = append(order, s.ID)
		holderIDs[s.Beneficiary] = append(holderIDs[s.Beneficiary], s.ID)
		committed.Add(committed, outstandingCommitment(s))
	}

	withdrawable := uint256.NewInt(0)
	if snap.Withdrawable != nil {
		withdrawable.Set(snap.Withdrawable)
	}

	balance := e.ledger.BalanceOf(e.account)
	accounted := new(uint256.Int).Add(committed, withdrawable)
	if balance.Lt(accounted) {
		return fmt.Errorf("snapshot not solvent: balance %s < committed %s + withdrawable %s",
			balance, committed, withdrawable)
	}

	if snap.ID != "" {
		e.id = snap.ID
	}
	e.schedules = schedules
	e.order = order
	e.holderIDs = holderIDs
	e.totalCommitted = committed
	e.withdrawable = withdrawable
	e.metrics.SetPools(e.totalCommitted, e.withdrawable)

	return nil
}

// outstandingCommitment is what the engine still owes on a schedule: the
// unreleased principal for live schedules, the unclaimed frozen entitlement
// for revoked ones.
func outstandingCommitment(s *vesting.Schedule) *uint256.Int {
	if s.Revoked {
		if s.FrozenEntitlement == nil {
			return uint256.NewInt(0)
		}
		return new(uint256.Int).Set(s.FrozenEntitlement)
	}
	return s.Outstanding()
}
