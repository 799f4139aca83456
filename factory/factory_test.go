package factory

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/vestflow-xyz/go-vestflow/access"
	"github.com/vestflow-xyz/go-vestflow/engine"
	"github.com/vestflow-xyz/go-vestflow/token"
	"github.com/vestflow-xyz/go-vestflow/vesting"
)

func TestCreateInstanceStartsEmpty(t *testing.T) {
	ledger := token.NewMemoryLedger()
	f := New(ledger)

	eng, rec := f.CreateInstance("0xOwner")
	if eng.TotalCount() != 0 {
		t.Fatalf("fresh instance holds %d schedules", eng.TotalCount())
	}
	if !eng.WithdrawableAmount().IsZero() {
		t.Fatal("fresh instance has a non-empty pool")
	}
	if rec.Owner != "0xowner" {
		t.Fatalf("owner not normalized: %s", rec.Owner)
	}
	if eng.Account() != rec.Account {
		t.Fatalf("record account %s != engine account %s", rec.Account, eng.Account())
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	ledger := token.NewMemoryLedger()
	if err := ledger.Mint("0xtreasury", uint256.NewInt(2_000)); err != nil {
		t.Fatal(err)
	}

	f := New(ledger)
	a, recA := f.CreateInstance("0xowner")
	b, _ := f.CreateInstance("0xowner")

	if a.ID() == b.ID() || a.Account() == b.Account() {
		t.Fatal("instances share identity")
	}

	if err := ledger.Transfer("0xtreasury", a.Account(), uint256.NewInt(1_000)); err != nil {
		t.Fatal(err)
	}
	_, err := a.Create(OwnerCaller(recA), engine.CreateParams{
		Beneficiary:       "0xholder",
		Start:             1_700_000_000,
		Duration:          1_000,
		SlicePeriod:       100,
		Amount:            uint256.NewInt(1_000),
		SecondReleaseTime: 1_700_000_000,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Activity on one instance never shows up on its sibling.
	if b.TotalCount() != 0 {
		t.Fatalf("sibling sees %d schedules", b.TotalCount())
	}
}

func TestGet(t *testing.T) {
	f := New(token.NewMemoryLedger())
	eng, rec := f.CreateInstance("0xowner")

	got, err := f.Get(rec.InstanceID)
	if err != nil {
		t.Fatal(err)
	}
	if got != eng {
		t.Fatal("lookup returned a different engine")
	}

	if _, err := f.Get("missing"); !errors.Is(err, vesting.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestRecords(t *testing.T) {
	f := New(token.NewMemoryLedger())
	_, first := f.CreateInstance("0xowner")
	_, second := f.CreateInstance("0xowner")

	recs := f.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].InstanceID != first.InstanceID || recs[1].InstanceID != second.InstanceID {
		t.Fatal("records out of creation order")
	}

	ids := f.Instances()
	if len(ids) != 2 || ids[0] != first.InstanceID || ids[1] != second.InstanceID {
		t.Fatalf("instance ids out of order: %v", ids)
	}
}

func TestOwnerCaller(t *testing.T) {
	c := OwnerCaller(Record{Owner: "0xowner"})
	if !c.HasRole(access.RoleAdmin) || !c.HasRole(access.RoleGranter) {
		t.Fatal("owner caller missing capabilities")
	}
	if !c.Is("0xOwner") {
		t.Fatal("owner caller address mismatch")
	}
}
