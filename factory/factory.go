// Package factory stamps out independent vesting engine instances. Every
// instance is bound at creation to exactly one asset ledger and one owning
// administrator, custodies its own ledger account, and starts with zero
// schedules. Creation records let callers attach to instances they created.
package factory

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vestflow-xyz/go-vestflow/access"
	"github.com/vestflow-xyz/go-vestflow/engine"
	"github.com/vestflow-xyz/go-vestflow/token"
	"github.com/vestflow-xyz/go-vestflow/vesting"
)

// Record describes one created engine instance.
type Record struct {
	InstanceID string    `json:"instance_id"`
	Account    string    `json:"account"`
	Owner      string    `json:"owner"`
	CreatedAt  time.Time `json:"created_at"`
}

// Factory creates engine instances over a single asset ledger.
type Factory struct {
	mu      sync.RWMutex
	ledger  token.Ledger
	options []engine.Option

	instances map[string]*engine.Engine
	records   []Record
}

// New creates a factory bound to one ledger. The options are applied to
// every instance it creates (journal, metrics, logger).
func New(ledger token.Ledger, options ...engine.Option) *Factory {
	return &Factory{
		ledger:    ledger,
		options:   options,
		instances: make(map[string]*engine.Engine),
	}
}

// CreateInstance deploys a fresh engine owned by the given administrator and
// returns it together with its creation record.
func (f *Factory) CreateInstance(owner string) (*engine.Engine, Record) {
	id := uuid.NewString()
	account := "vesting:" + id

	opts := append([]engine.Option{engine.WithID(id)}, f.options...)
	e := engine.New(f.ledger, account, owner, opts...)

	rec := Record{
		InstanceID: id,
		Account:    account,
		Owner:      vesting.NormalizeAddress(owner),
		CreatedAt:  time.Now().UTC(),
	}

	f.mu.Lock()
	f.instances[id] = e
	f.records = append(f.records, rec)
	f.mu.Unlock()

	return e, rec
}

// Get returns a previously created instance.
func (f *Factory) Get(instanceID string) (*engine.Engine, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	e, ok := f.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w: instance %s", vesting.ErrNotFound, instanceID)
	}
	return e, nil
}

// Instances returns the instance ids in creation order.
func (f *Factory) Instances() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec.InstanceID)
	}
	return out
}

// Records returns the creation records in creation order.
func (f *Factory) Records() []Record {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out
}

// OwnerCaller builds the capability context the instance owner starts with:
// both the administrative and the granter capability.
func OwnerCaller(rec Record) access.Caller {
	return access.NewCaller(rec.Owner, access.RoleAdmin, access.RoleGranter)
}
