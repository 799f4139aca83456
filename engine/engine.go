// Package engine implements a single vesting engine instance: the schedule
// store, the bucket-draining release state machine, and the dual-pool
// accountant that keeps committed and withdrawable balances covered by the
// underlying asset balance at all times.
//
// Every mutating call is serialized by an explicit mutex and is atomic
// end-to-end: validations and the external ledger transfer run before any
// state is touched, so a rejected call leaves the engine exactly as it was.
// Time is an input, sampled once per call by the caller.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/vestflow-xyz/go-vestflow/access"
	"github.com/vestflow-xyz/go-vestflow/journal"
	"github.com/vestflow-xyz/go-vestflow/metrics"
	"github.com/vestflow-xyz/go-vestflow/token"
	"github.com/vestflow-xyz/go-vestflow/vesting"
)

// LockDefaults are the timing parameters established by LockWithdrawable for
// later schedules created with FromLocked set.
type LockDefaults struct {
	Start       uint64
	Cliff       uint64
	Duration    uint64
	SlicePeriod uint64
}

// Engine is one isolated vesting instance bound to a ledger account it
// custodies and an owning administrator.
type Engine struct {
	mu sync.RWMutex

	id      string
	account string
	owner   string
	ledger  token.Ledger

	schedules map[string]*vesting.Schedule
	order     []string
	holderIDs map[string][]string

	totalCommitted *uint256.Int
	withdrawable   *uint256.Int
	lockDefaults   *LockDefaults

	recorder journal.Recorder
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// Option configures an engine at construction time.
type Option func(*Engine)

// WithJournal attaches an audit trail recorder.
func WithJournal(rec journal.Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger attaches a structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithID sets the instance identifier (assigned by the factory).
func WithID(id string) Option {
	return func(e *Engine) { e.id = id }
}

// New creates an engine bound to one ledger, custodying the given ledger
// account, owned by the given administrator address.
func New(ledger token.Ledger, account, owner string, opts ...Option) *Engine {
	e := &Engine{
		account:        vesting.NormalizeAddress(account),
		owner:          vesting.NormalizeAddress(owner),
		ledger:         ledger,
		schedules:      make(map[string]*vesting.Schedule),
		holderIDs:      make(map[string][]string),
		totalCommitted: uint256.NewInt(0),
		withdrawable:   uint256.NewInt(0),
		recorder:       journal.Nop{},
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the instance identifier.
func (e *Engine) ID() string { return e.id }

// Account returns the ledger account this engine custodies.
func (e *Engine) Account() string { return e.account }

// Owner returns the owning administrator address.
func (e *Engine) Owner() string { return e.owner }

// CreateParams carries the inputs for a new vesting schedule. Cliff is given
// as seconds after Start and stored absolute on the schedule.
type CreateParams struct {
	Beneficiary          string
	Start                uint64
	Cliff                uint64
	Duration             uint64
	SlicePeriod          uint64
	Revocable            bool
	Amount               *uint256.Int
	FirstReleasePercent  uint64
	SecondReleasePercent uint64
	SecondReleaseTime    uint64
	FromLocked           bool
}

// Create validates and records a new vesting schedule, reserving its
// principal against either free contract balance or the withdrawable pool.
func (e *Engine) Create(caller access.Caller, p CreateParams) (string, error) {
	if !caller.HasRole(access.RoleGranter) {
		return "", fmt.Errorf("%w: %s lacks granter capability", vesting.ErrUnauthorized, caller.Address)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if p.FromLocked && e.lockDefaults != nil && p.Duration == 0 {
		d := e.lockDefaults
		p.Start, p.Cliff, p.Duration, p.SlicePeriod = d.Start, d.Cliff, d.Duration, d.SlicePeriod
	}

	beneficiary := vesting.NormalizeAddress(p.Beneficiary)
	index := uint64(len(e.holderIDs[beneficiary]))

	s := &vesting.Schedule{
		ID:                   vesting.ScheduleID(beneficiary, index),
		Beneficiary:          beneficiary,
		Start:                p.Start,
		Cliff:                p.Start + p.Cliff,
		Duration:             p.Duration,
		SlicePeriod:          p.SlicePeriod,
		AmountTotal:          cloneAmount(p.Amount),
		Released:             uint256.NewInt(0),
		Revocable:            p.Revocable,
		FirstReleasePercent:  p.FirstReleasePercent,
		SecondReleasePercent: p.SecondReleasePercent,
		SecondReleaseTime:    p.SecondReleaseTime,
		FromLocked:           p.FromLocked,
	}
	if err := s.Validate(); err != nil {
		return "", err
	}

	// An empty tranche has nothing to drain; mark it released up front so
	// the automaton can advance past it.
	if s.Tier1Amount().IsZero() {
		s.Tier1Released = true
	}
	if s.Tier2Amount().IsZero() {
		s.Tier2Released = true
	}

	if p.FromLocked {
		if e.withdrawable.Lt(s.AmountTotal) {
			return "", fmt.Errorf("%w: pool holds %s, need %s",
				vesting.ErrInsufficientWithdrawable, e.withdrawable, s.AmountTotal)
		}
	} else {
		free := e.freeBalanceLocked()
		if free.Lt(s.AmountTotal) {
			return "", fmt.Errorf("%w: free balance %s, need %s",
				vesting.ErrInsufficientFunds, free, s.AmountTotal)
		}
	}

	e.schedules[s.ID] = s
	e.order = append(e.order, s.ID)
	e.holderIDs[beneficiary] = append(e.holderIDs[beneficiary], s.ID)
	e.totalCommitted.Add(e.totalCommitted, s.AmountTotal)
	if p.FromLocked {
		e.withdrawable.Sub(e.withdrawable, s.AmountTotal)
	}

	e.assertSolvencyLocked("create")
	e.committed(journal.Entry{
		Op:          journal.OpScheduleCreated,
		Caller:      caller.Address,
		ScheduleID:  s.ID,
		Beneficiary: beneficiary,
		Amount:      s.AmountTotal.Dec(),
		Details:     map[string]string{"from_locked": fmt.Sprintf("%t", p.FromLocked)},
	})
	e.metrics.ObserveCreate()
	e.metrics.SetPools(e.totalCommitted, e.withdrawable)
	e.log.Info().Str("schedule", s.ID).Str("beneficiary", beneficiary).
		Str("amount", s.AmountTotal.Dec()).Msg("vesting schedule created")

	return s.ID, nil
}

// Release pays out amount from the schedule's currently eligible stage to the
// beneficiary. The ledger transfer happens before any bookkeeping changes, so
// a rejected transfer leaves the engine untouched.
func (e *Engine) Release(caller access.Caller, id string, amount *uint256.Int, now uint64) error {
	amount = cloneAmount(amount)

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.schedules[id]
	if !ok {
		return fmt.Errorf("%w: %s", vesting.ErrNotFound, id)
	}
	if !caller.Is(s.Beneficiary) && !caller.HasRole(access.RoleAdmin) {
		return fmt.Errorf("%w: only the beneficiary or an admin may release", vesting.ErrUnauthorized)
	}

	releasable := vesting.Releasable(s, now)
	if amount.Gt(releasable) {
		return fmt.Errorf("%w: releasable %s, requested %s",
			vesting.ErrInsufficientVested, releasable, amount)
	}

	if err := e.ledger.Transfer(e.account, s.Beneficiary, amount); err != nil {
		return fmt.Errorf("release transfer: %w", err)
	}

	s.Released.Add(s.Released, amount)
	if s.Revoked {
		s.FrozenEntitlement.Sub(s.FrozenEntitlement, amount)
	} else if !s.Tier1Released {
		if !s.Released.Lt(s.Tier1Amount()) {
			s.Tier1Released = true
		}
	} else if !s.Tier2Released {
		boundary := new(uint256.Int).Add(s.Tier1Amount(), s.Tier2Amount())
		if !s.Released.Lt(boundary) {
			s.Tier2Released = true
		}
	}
	e.totalCommitted.Sub(e.totalCommitted, amount)

	e.assertSolvencyLocked("release")
	e.committed(journal.Entry{
		Op:          journal.OpTokensReleased,
		Caller:      caller.Address,
		ScheduleID:  s.ID,
		Beneficiary: s.Beneficiary,
		Amount:      amount.Dec(),
	})
	e.metrics.ObserveRelease(amount)
	e.metrics.SetPools(e.totalCommitted, e.withdrawable)
	e.log.Info().Str("schedule", s.ID).Str("amount", amount.Dec()).Msg("tokens released")

	return nil
}

// Revoke terminates a revocable schedule. The amount already vested but not
// yet claimed stays reserved for the beneficiary; the unvested remainder
// moves back to the withdrawable pool.
func (e *Engine) Revoke(caller access.Caller, id string, now uint64) error {
	if !caller.HasRole(access.RoleGranter) {
		return fmt.Errorf("%w: %s lacks granter capability", vesting.ErrUnauthorized, caller.Address)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.schedules[id]
	if !ok {
		return fmt.Errorf("%w: %s", vesting.ErrNotFound, id)
	}
	if !s.Revocable {
		return fmt.Errorf("%w: %s", vesting.ErrNotRevocable, id)
	}
	if s.Revoked {
		return fmt.Errorf("%w: %s", vesting.ErrAlreadyRevoked, id)
	}

	frozen := vesting.Releasable(s, now)
	unvested := s.Outstanding()
	unvested.Sub(unvested, frozen)

	s.Revoked = true
	s.FrozenEntitlement = frozen
	e.totalCommitted.Sub(e.totalCommitted, unvested)
	e.withdrawable.Add(e.withdrawable, unvested)

	e.assertSolvencyLocked("revoke")
	e.committed(journal.Entry{
		Op:          journal.OpScheduleRevoked,
		Caller:      caller.Address,
		ScheduleID:  s.ID,
		Beneficiary: s.Beneficiary,
		Amount:      unvested.Dec(),
		Details:     map[string]string{"frozen_entitlement": frozen.Dec()},
	})
	e.metrics.ObserveRevoke()
	e.metrics.SetPools(e.totalCommitted, e.withdrawable)
	e.log.Info().Str("schedule", s.ID).Str("returned", unvested.Dec()).Msg("schedule revoked")

	return nil
}

// LockWithdrawable establishes default timing parameters for schedules later
// created out of the withdrawable pool. It requires the pool to be non-empty.
func (e *Engine) LockWithdrawable(caller access.Caller, start, cliff, duration, slicePeriod uint64) error {
	if !caller.HasRole(access.RoleAdmin) {
		return fmt.Errorf("%w: %s lacks admin capability", vesting.ErrUnauthorized, caller.Address)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.withdrawable.IsZero() {
		return fmt.Errorf("%w: nothing to lock", vesting.ErrInsufficientWithdrawable)
	}

	e.lockDefaults = &LockDefaults{
		Start:       start,
		Cliff:       cliff,
		Duration:    duration,
		SlicePeriod: slicePeriod,
	}

	e.committed(journal.Entry{
		Op:     journal.OpPoolLocked,
		Caller: caller.Address,
		Details: map[string]string{
			"start":        fmt.Sprintf("%d", start),
			"cliff":        fmt.Sprintf("%d", cliff),
			"duration":     fmt.Sprintf("%d", duration),
			"slice_period": fmt.Sprintf("%d", slicePeriod),
		},
	})
	return nil
}

// ReleaseLocked acknowledges amount of unaccounted ledger balance into the
// withdrawable pool.
func (e *Engine) ReleaseLocked(caller access.Caller, amount *uint256.Int) error {
	amount = cloneAmount(amount)

	if !caller.HasRole(access.RoleAdmin) {
		return fmt.Errorf("%w: %s lacks admin capability", vesting.ErrUnauthorized, caller.Address)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	free := e.freeBalanceLocked()
	if free.Lt(amount) {
		return fmt.Errorf("%w: free balance %s, need %s", vesting.ErrInsufficientFunds, free, amount)
	}

	e.withdrawable.Add(e.withdrawable, amount)

	e.assertSolvencyLocked("release_locked")
	e.committed(journal.Entry{
		Op:     journal.OpLockedReleased,
		Caller: caller.Address,
		Amount: amount.Dec(),
	})
	e.metrics.SetPools(e.totalCommitted, e.withdrawable)
	return nil
}

// Withdraw pays amount from the withdrawable pool to an account.
func (e *Engine) Withdraw(caller access.Caller, amount *uint256.Int, to string) error {
	amount = cloneAmount(amount)

	if !caller.HasRole(access.RoleAdmin) {
		return fmt.Errorf("%w: %s lacks admin capability", vesting.ErrUnauthorized, caller.Address)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.withdrawable.Lt(amount) {
		return fmt.Errorf("%w: pool holds %s, requested %s",
			vesting.ErrInsufficientWithdrawable, e.withdrawable, amount)
	}

	if err := e.ledger.Transfer(e.account, to, amount); err != nil {
		return fmt.Errorf("withdraw transfer: %w", err)
	}
	e.withdrawable.Sub(e.withdrawable, amount)

	e.assertSolvencyLocked("withdraw")
	e.committed(journal.Entry{
		Op:          journal.OpWithdrawal,
		Caller:      caller.Address,
		Beneficiary: vesting.NormalizeAddress(to),
		Amount:      amount.Dec(),
	})
	e.metrics.ObserveWithdraw()
	e.metrics.SetPools(e.totalCommitted, e.withdrawable)
	return nil
}

// freeBalanceLocked returns measured ledger balance not yet claimed by
// commitments or the withdrawable pool. Callers must hold e.mu.
func (e *Engine) freeBalanceLocked() *uint256.Int {
	balance := e.ledger.BalanceOf(e.account)
	accounted := new(uint256.Int).Add(e.totalCommitted, e.withdrawable)
	if balance.Lt(accounted) {
		return uint256.NewInt(0)
	}
	return balance.Sub(balance, accounted)
}

// assertSolvencyLocked panics if the accounted balances exceed the measured
// ledger balance. Reaching this is a bookkeeping defect, not a caller error.
func (e *Engine) assertSolvencyLocked(op string) {
	balance := e.ledger.BalanceOf(e.account)
	accounted := new(uint256.Int).Add(e.totalCommitted, e.withdrawable)
	if balance.Lt(accounted) {
		panic(fmt.Sprintf(
			"vesting engine insolvent after %s: balance %s < committed %s + withdrawable %s",
			op, balance, e.totalCommitted, e.withdrawable))
	}
}

func (e *Engine) committed(entry journal.Entry) {
	entry.Time = time.Now().UTC()
	entry.Engine = e.id
	if err := e.recorder.Record(entry); err != nil {
		e.log.Warn().Err(err).Str("op", entry.Op).Msg("journal write failed")
	}
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(v)
}
