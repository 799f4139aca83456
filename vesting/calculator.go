package vesting

import "github.com/holiman/uint256"

// Releasable computes the amount currently claimable from a schedule at the
// given time. Release proceeds through three ordered stages, each of which
// must be fully drained before the next one's amount becomes visible:
//
//  1. first tranche, eligible at the cliff
//  2. second tranche, eligible at SecondReleaseTime once stage 1 is drained
//  3. remainder, accruing linearly in whole slices once stage 2 is drained
//
// Exactly one stage's amount is returned; stages are never summed, even when
// elapsed time already satisfies a later stage's gate. A revoked schedule is
// frozen at the entitlement computed when it was revoked.
func Releasable(s *Schedule, now uint64) *uint256.Int {
	if s.Revoked {
		if s.FrozenEntitlement == nil {
			return uint256.NewInt(0)
		}
		return new(uint256.Int).Set(s.FrozenEntitlement)
	}

	tier1 := s.Tier1Amount()
	if !s.Tier1Released {
		if now < s.Cliff {
			return uint256.NewInt(0)
		}
		// All tokens released so far came out of this stage.
		return new(uint256.Int).Sub(tier1, s.Released)
	}

	drained := new(uint256.Int).Add(tier1, s.Tier2Amount())
	if !s.Tier2Released {
		if now < s.SecondReleaseTime {
			return uint256.NewInt(0)
		}
		return drained.Sub(drained, s.Released)
	}

	vested := vestedRemainder(s, now)
	vested.Add(vested, drained)
	return vested.Sub(vested, s.Released)
}

// vestedRemainder returns how much of the post-tranche principal has vested
// at the given time. The remainder accrues in whole SlicePeriod increments
// from SecondReleaseTime and is fully vested at Start+Duration.
func vestedRemainder(s *Schedule, now uint64) *uint256.Int {
	remaining := s.RemainderAmount()
	if now >= s.End() {
		return remaining
	}
	if now < s.SecondReleaseTime {
		return uint256.NewInt(0)
	}

	totalSlices := ceilDiv(s.End()-s.SecondReleaseTime, s.SlicePeriod)
	if totalSlices == 0 {
		return remaining
	}

	elapsedSlices := (now - s.SecondReleaseTime) / s.SlicePeriod
	if elapsedSlices > totalSlices {
		elapsedSlices = totalSlices
	}

	vested := new(uint256.Int).Mul(remaining, uint256.NewInt(elapsedSlices))
	return vested.Div(vested, uint256.NewInt(totalSlices))
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
