// Package token defines the fungible asset ledger the vesting engine draws
// on, together with an in-memory implementation used by tests, the demo and
// the daemon. Transfers are atomic: an operation either moves the full amount
// or fails without any balance change.
package token

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInvalidAccount        = errors.New("token: invalid account")
)

// Ledger is the asset-transfer primitive the engine delegates to.
type Ledger interface {
	// Transfer moves amount from one account to another.
	Transfer(from, to string, amount *uint256.Int) error

	// TransferFrom moves amount out of from on behalf of spender,
	// consuming spender's allowance.
	TransferFrom(spender, from, to string, amount *uint256.Int) error

	// BalanceOf returns the current balance of an account.
	BalanceOf(account string) *uint256.Int
}
