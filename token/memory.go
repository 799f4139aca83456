package token

import (
	"fmt"
	"strings"
	"sync"

	"github.com/holiman/uint256"
)

// MemoryLedger is an in-memory fungible token ledger with standard
// balance/allowance semantics.
type MemoryLedger struct {
	mu         sync.RWMutex
	balances   map[string]*uint256.Int
	allowances map[string]map[string]*uint256.Int
	supply     *uint256.Int
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:   make(map[string]*uint256.Int),
		allowances: make(map[string]map[string]*uint256.Int),
		supply:     uint256.NewInt(0),
	}
}

// Mint credits newly created tokens to an account.
func (l *MemoryLedger) Mint(to string, amount *uint256.Int) error {
	to, err := normalize(to)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(to, amount)
	l.supply.Add(l.supply, amount)
	return nil
}

// Transfer moves amount between accounts. The full amount moves or nothing
// does.
func (l *MemoryLedger) Transfer(from, to string, amount *uint256.Int) error {
	from, err := normalize(from)
	if err != nil {
		return err
	}
	to, err = normalize(to)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// TransferFrom moves amount out of from on behalf of spender, consuming
// allowance first so a shortfall leaves both balances untouched.
func (l *MemoryLedger) TransferFrom(spender, from, to string, amount *uint256.Int) error {
	spender, err := normalize(spender)
	if err != nil {
		return err
	}
	from, err = normalize(from)
	if err != nil {
		return err
	}
	to, err = normalize(to)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowance(from, spender)
	if allowed.Lt(amount) {
		return fmt.Errorf("%w: %s allowed %s, need %s", ErrInsufficientAllowance, spender, allowed, amount)
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	allowed.Sub(allowed, amount)
	return nil
}

// Approve sets spender's allowance over owner's balance.
func (l *MemoryLedger) Approve(owner, spender string, amount *uint256.Int) error {
	owner, err := normalize(owner)
	if err != nil {
		return err
	}
	spender, err = normalize(spender)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[string]*uint256.Int)
	}
	l.allowances[owner][spender] = new(uint256.Int).Set(amount)
	return nil
}

// BalanceOf returns a copy of the account balance.
func (l *MemoryLedger) BalanceOf(account string) *uint256.Int {
	account, err := normalize(account)
	if err != nil {
		return uint256.NewInt(0)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[account]; ok {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

// TotalSupply returns a copy of the minted supply.
func (l *MemoryLedger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(l.supply)
}

func (l *MemoryLedger) move(from, to string, amount *uint256.Int) error {
	b, ok := l.balances[from]
	if !ok || b.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, need %s", ErrInsufficientBalance, from, l.held(from), amount)
	}
	b.Sub(b, amount)
	l.credit(to, amount)
	return nil
}

func (l *MemoryLedger) credit(account string, amount *uint256.Int) {
	if b, ok := l.balances[account]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[account] = new(uint256.Int).Set(amount)
}

func (l *MemoryLedger) allowance(owner, spender string) *uint256.Int {
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return uint256.NewInt(0)
}

func (l *MemoryLedger) held(account string) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return uint256.NewInt(0)
}

func normalize(account string) (string, error) {
	account = strings.ToLower(strings.TrimSpace(account))
	if account == "" {
		return "", ErrInvalidAccount
	}
	return account, nil
}

var _ Ledger = (*MemoryLedger)(nil)
