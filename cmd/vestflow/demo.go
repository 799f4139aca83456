package main

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/vestflow-xyz/go-vestflow/access"
	"github.com/vestflow-xyz/go-vestflow/engine"
	"github.com/vestflow-xyz/go-vestflow/factory"
	"github.com/vestflow-xyz/go-vestflow/token"
)

// demo walks a tiered vesting schedule from grant to full payout on an
// in-memory ledger, printing the account balances after every step.
func demo(args []string) error {
	_ = args

	const (
		treasury    = "0xtreasury"
		owner       = "0xowner"
		beneficiary = "0xbeneficiary"

		start       = uint64(1_700_000_000)
		cliffDelta  = uint64(100)
		duration    = uint64(1_000)
		slicePeriod = uint64(100)
		secondTime  = start + 300
	)

	ledger := token.NewMemoryLedger()
	if err := ledger.Mint(treasury, uint256.NewInt(1_000_000)); err != nil {
		return err
	}

	f := factory.New(ledger)
	eng, rec := f.CreateInstance(owner)
	admin := factory.OwnerCaller(rec)

	fmt.Printf("instance %s\n", rec.InstanceID)
	fmt.Printf("custody account %s\n\n", rec.Account)

	if err := ledger.Transfer(treasury, eng.Account(), uint256.NewInt(1_000)); err != nil {
		return err
	}

	id, err := eng.Create(admin, engine.CreateParams{
		Beneficiary:          beneficiary,
		Start:                start,
		Cliff:                cliffDelta,
		Duration:             duration,
		SlicePeriod:          slicePeriod,
		Revocable:            true,
		Amount:               uint256.NewInt(1_000),
		FirstReleasePercent:  5,
		SecondReleasePercent: 10,
		SecondReleaseTime:    secondTime,
	})
	if err != nil {
		return err
	}
	fmt.Printf("schedule %s granted: 1000 tokens, 5%% at cliff, 10%% at second stage\n\n", id)

	holder := access.NewCaller(beneficiary)

	steps := []struct {
		label  string
		now    uint64
		amount uint64
	}{
		{"first stage at cliff", start + cliffDelta, 50},
		{"second stage", secondTime, 100},
		{"remainder at full duration", start + duration, 850},
	}
	for _, step := range steps {
		releasable, err := eng.ComputeReleasable(id, step.now)
		if err != nil {
			return err
		}
		fmt.Printf("%s (t=%d): releasable %s\n", step.label, step.now, releasable.Dec())

		if err := eng.Release(holder, id, uint256.NewInt(step.amount), step.now); err != nil {
			return err
		}
		fmt.Printf("  released %d, beneficiary balance %s\n", step.amount, ledger.BalanceOf(beneficiary).Dec())
	}

	s, err := eng.Get(id)
	if err != nil {
		return err
	}
	fmt.Printf("\nschedule fully drained: released %s of %s\n", s.Released.Dec(), s.AmountTotal.Dec())

	// Pool round trip: acknowledge free balance into the pool, pin lock
	// defaults on it, then withdraw it back out.
	if err := ledger.Transfer(treasury, eng.Account(), uint256.NewInt(500)); err != nil {
		return err
	}
	if err := eng.ReleaseLocked(admin, uint256.NewInt(500)); err != nil {
		return err
	}
	if err := eng.LockWithdrawable(admin, start, 0, duration, slicePeriod); err != nil {
		return err
	}
	fmt.Printf("\npool funded: withdrawable %s\n", eng.WithdrawableAmount().Dec())

	if err := eng.Withdraw(admin, uint256.NewInt(500), treasury); err != nil {
		return err
	}
	fmt.Printf("pool withdrawn: withdrawable %s\n", eng.WithdrawableAmount().Dec())

	return nil
}
