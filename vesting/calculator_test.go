package vesting

import (
	"testing"

	"github.com/holiman/uint256"
)

const (
	testStart       = uint64(1_700_000_000)
	testCliff       = testStart + 100
	testDuration    = uint64(1_000)
	testSlicePeriod = uint64(100)
	testSecondTime  = testStart + 300
)

// tieredSchedule builds a 1000-token schedule with a 5% first tranche and a
// 10% second tranche, matching the flagship product configuration.
func tieredSchedule() *Schedule {
	return &Schedule{
		ID:                   "vs:test",
		Beneficiary:          "0xholder",
		Start:                testStart,
		Cliff:                testCliff,
		Duration:             testDuration,
		SlicePeriod:          testSlicePeriod,
		AmountTotal:          uint256.NewInt(1_000),
		Released:             uint256.NewInt(0),
		Revocable:            true,
		FirstReleasePercent:  5,
		SecondReleasePercent: 10,
		SecondReleaseTime:    testSecondTime,
	}
}

func TestReleasableBeforeCliff(t *testing.T) {
	s := tieredSchedule()
	if got := Releasable(s, testCliff-1); !got.IsZero() {
		t.Fatalf("expected zero before cliff, got %s", got)
	}
	if got := Releasable(s, testStart); !got.IsZero() {
		t.Fatalf("expected zero at start, got %s", got)
	}
}

func TestReleasableFirstStage(t *testing.T) {
	s := tieredSchedule()

	if got := Releasable(s, testCliff); got.Uint64() != 50 {
		t.Fatalf("at cliff: got %s, want 50", got)
	}

	// Elapsed time past later gates does not widen the first stage.
	if got := Releasable(s, testStart+testDuration); got.Uint64() != 50 {
		t.Fatalf("at end with stage 1 open: got %s, want 50", got)
	}

	// Partial drain leaves the rest of the tranche visible.
	s.Released = uint256.NewInt(20)
	if got := Releasable(s, testCliff); got.Uint64() != 30 {
		t.Fatalf("after partial drain: got %s, want 30", got)
	}
}

func TestReleasableSecondStage(t *testing.T) {
	s := tieredSchedule()
	s.Released = uint256.NewInt(50)
	s.Tier1Released = true

	if got := Releasable(s, testSecondTime-1); !got.IsZero() {
		t.Fatalf("before second gate: got %s, want 0", got)
	}
	if got := Releasable(s, testSecondTime); got.Uint64() != 100 {
		t.Fatalf("at second gate: got %s, want 100", got)
	}
	if got := Releasable(s, testStart+testDuration); got.Uint64() != 100 {
		t.Fatalf("at end with stage 2 open: got %s, want 100", got)
	}
}

func TestReleasableRemainder(t *testing.T) {
	s := tieredSchedule()
	s.Released = uint256.NewInt(150)
	s.Tier1Released = true
	s.Tier2Released = true

	// 850 tokens accrue over 7 slices between SecondReleaseTime and End.
	cases := []struct {
		now  uint64
		want uint64
	}{
		{testSecondTime, 0},
		{testSecondTime + 99, 0},
		{testSecondTime + 100, 121},
		{testSecondTime + 350, 364},
		{testStart + testDuration - 1, 728},
		{testStart + testDuration, 850},
		{testStart + testDuration + 1_000, 850},
	}
	for _, c := range cases {
		if got := Releasable(s, c.now); got.Uint64() != c.want {
			t.Errorf("t=%d: got %s, want %d", c.now, got, c.want)
		}
	}
}

func TestReleasableStagesNeverSum(t *testing.T) {
	s := tieredSchedule()

	// Deep into the remainder window with nothing drained yet, only the
	// first tranche is visible.
	now := testStart + testDuration
	if got := Releasable(s, now); got.Uint64() != 50 {
		t.Fatalf("stage 1 open at end: got %s, want 50", got)
	}

	s.Released = uint256.NewInt(50)
	s.Tier1Released = true
	if got := Releasable(s, now); got.Uint64() != 100 {
		t.Fatalf("stage 2 open at end: got %s, want 100", got)
	}

	s.Released = uint256.NewInt(150)
	s.Tier2Released = true
	if got := Releasable(s, now); got.Uint64() != 850 {
		t.Fatalf("stage 3 open at end: got %s, want 850", got)
	}
}

func TestReleasableZeroTranches(t *testing.T) {
	s := tieredSchedule()
	s.FirstReleasePercent = 0
	s.SecondReleasePercent = 0
	s.Tier1Released = true
	s.Tier2Released = true

	// With both tranches empty everything vests linearly from the second
	// gate: 1000 tokens over 7 slices.
	if got := Releasable(s, testSecondTime+100); got.Uint64() != 142 {
		t.Fatalf("one slice elapsed: got %s, want 142", got)
	}
	if got := Releasable(s, testStart+testDuration); got.Uint64() != 1_000 {
		t.Fatalf("at end: got %s, want 1000", got)
	}
}

func TestReleasableRevokedFrozen(t *testing.T) {
	s := tieredSchedule()
	s.Revoked = true
	s.FrozenEntitlement = uint256.NewInt(33)

	// Time no longer moves the entitlement.
	for _, now := range []uint64{testStart, testCliff, testStart + testDuration} {
		if got := Releasable(s, now); got.Uint64() != 33 {
			t.Fatalf("t=%d: got %s, want frozen 33", now, got)
		}
	}

	s.FrozenEntitlement = nil
	if got := Releasable(s, testStart+testDuration); !got.IsZero() {
		t.Fatalf("revoked with no frozen entitlement: got %s, want 0", got)
	}
}

func TestReleasableFullDrainWalkthrough(t *testing.T) {
	s := tieredSchedule()
	total := uint256.NewInt(0)

	claim := func(now uint64, want uint64) {
		t.Helper()
		got := Releasable(s, now)
		if got.Uint64() != want {
			t.Fatalf("t=%d: releasable %s, want %d", now, got, want)
		}
		s.Released.Add(s.Released, got)
		total.Add(total, got)
	}

	claim(testCliff, 50)
	s.Tier1Released = true
	claim(testSecondTime, 100)
	s.Tier2Released = true
	claim(testStart+testDuration, 850)

	if total.Uint64() != 1_000 {
		t.Fatalf("drained %s, want full principal", total)
	}
	if got := Releasable(s, testStart+testDuration); !got.IsZero() {
		t.Fatalf("after full drain: got %s, want 0", got)
	}
}
