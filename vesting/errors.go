package vesting

import "errors"

var (
	// Schedule validation errors
	ErrInvalidSchedule = errors.New("vesting: invalid schedule parameters")

	// Funding errors
	ErrInsufficientFunds        = errors.New("vesting: not sufficient tokens to cover the schedule")
	ErrInsufficientWithdrawable = errors.New("vesting: withdrawable pool too small")

	// Lookup and authorization errors
	ErrNotFound     = errors.New("vesting: schedule not found")
	ErrUnauthorized = errors.New("vesting: caller not permitted")

	// Release errors
	ErrInsufficientVested = errors.New("vesting: not enough vested tokens")

	// Revocation errors
	ErrAlreadyRevoked = errors.New("vesting: schedule already revoked")
	ErrNotRevocable   = errors.New("vesting: schedule is not revocable")
)
