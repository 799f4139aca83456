// Package vesting defines the vesting schedule data model and the staged
// entitlement calculator. Everything in this package is pure: schedules are
// plain values, amounts are exact 256-bit integers, and time is an explicit
// unix-seconds input rather than a clock read.
package vesting

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Schedule is a single commitment to release AmountTotal tokens to one
// beneficiary under the three-stage release discipline.
type Schedule struct {
	// ID is the deterministic schedule identifier, derived from the
	// beneficiary address and the per-holder sequence index.
	ID string `json:"id"`

	// Beneficiary is the lowercase hex address receiving released tokens.
	Beneficiary string `json:"beneficiary"`

	// Start is the schedule origin (unix seconds).
	Start uint64 `json:"start"`

	// Cliff is the earliest release time, stored absolute (unix seconds).
	Cliff uint64 `json:"cliff"`

	// Duration is the total vesting span in seconds, measured from Start.
	Duration uint64 `json:"duration"`

	// SlicePeriod is the accrual granularity of the remainder stage, seconds.
	SlicePeriod uint64 `json:"slicePeriodSeconds"`

	// AmountTotal is the committed principal. Fixed at creation.
	AmountTotal *uint256.Int `json:"amountTotal"`

	// Released is the cumulative amount already paid out.
	Released *uint256.Int `json:"released"`

	Revocable bool `json:"revocable"`
	Revoked   bool `json:"revoked"`

	// FirstReleasePercent and SecondReleasePercent size the two tranche
	// stages as integer percentages of AmountTotal.
	FirstReleasePercent  uint64 `json:"firstReleasePercent"`
	SecondReleasePercent uint64 `json:"secondReleasePercent"`

	// SecondReleaseTime gates the second tranche (unix seconds, >= Cliff).
	SecondReleaseTime uint64 `json:"secondReleaseTime"`

	// Tier1Released and Tier2Released mark tranche stages as fully drained.
	Tier1Released bool `json:"tier1Released"`
	Tier2Released bool `json:"tier2Released"`

	// FromLocked records whether the principal was debited from the
	// withdrawable pool instead of free contract balance.
	FromLocked bool `json:"fromLocked"`

	// FrozenEntitlement is the vested-but-unreleased amount fixed at
	// revocation time. Nil until the schedule is revoked.
	FrozenEntitlement *uint256.Int `json:"frozenEntitlement,omitempty"`
}

// Validate checks the field invariants that must hold for every schedule.
// It reports the first violation wrapped in ErrInvalidSchedule.
func (s *Schedule) Validate() error {
	if strings.TrimSpace(s.Beneficiary) == "" {
		return fmt.Errorf("%w: empty beneficiary", ErrInvalidSchedule)
	}
	if s.Duration == 0 {
		return fmt.Errorf("%w: duration must be > 0", ErrInvalidSchedule)
	}
	if s.SlicePeriod < 1 {
		return fmt.Errorf("%w: slice period must be >= 1", ErrInvalidSchedule)
	}
	if s.SlicePeriod > s.Duration {
		return fmt.Errorf("%w: slice period exceeds duration", ErrInvalidSchedule)
	}
	if s.AmountTotal == nil || s.AmountTotal.IsZero() {
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidSchedule)
	}
	if s.Cliff < s.Start {
		return fmt.Errorf("%w: cliff before start", ErrInvalidSchedule)
	}
	if s.FirstReleasePercent > 100 || s.SecondReleasePercent > 100 ||
		s.FirstReleasePercent+s.SecondReleasePercent > 100 {
		return fmt.Errorf("%w: release percents exceed 100", ErrInvalidSchedule)
	}
	if s.SecondReleaseTime < s.Cliff {
		return fmt.Errorf("%w: second release time before cliff", ErrInvalidSchedule)
	}
	return nil
}

// End returns the time at which the full principal is vested.
func (s *Schedule) End() uint64 {
	return s.Start + s.Duration
}

// Tier1Amount returns the size of the first tranche:
// floor(AmountTotal * FirstReleasePercent / 100).
func (s *Schedule) Tier1Amount() *uint256.Int {
	return percentOf(s.AmountTotal, s.FirstReleasePercent)
}

// Tier2Amount returns the size of the second tranche:
// floor(AmountTotal * SecondReleasePercent / 100).
func (s *Schedule) Tier2Amount() *uint256.Int {
	return percentOf(s.AmountTotal, s.SecondReleasePercent)
}

// RemainderAmount returns the principal left for the linear stage after both
// tranches.
func (s *Schedule) RemainderAmount() *uint256.Int {
	out := new(uint256.Int).Sub(s.AmountTotal, s.Tier1Amount())
	return out.Sub(out, s.Tier2Amount())
}

// Outstanding returns AmountTotal - Released.
func (s *Schedule) Outstanding() *uint256.Int {
	return new(uint256.Int).Sub(s.AmountTotal, s.Released)
}

// Clone returns a deep copy of the schedule.
func (s *Schedule) Clone() *Schedule {
	out := *s
	out.AmountTotal = new(uint256.Int).Set(s.AmountTotal)
	out.Released = new(uint256.Int).Set(s.Released)
	if s.FrozenEntitlement != nil {
		out.FrozenEntitlement = new(uint256.Int).Set(s.FrozenEntitlement)
	}
	return &out
}

func percentOf(total *uint256.Int, percent uint64) *uint256.Int {
	out := new(uint256.Int).Mul(total, uint256.NewInt(percent))
	return out.Div(out, uint256.NewInt(100))
}
