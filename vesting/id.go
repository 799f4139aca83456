package vesting

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ScheduleID computes the deterministic identifier for the index-th schedule
// of a holder. The derivation is a keccak-256 over the normalized holder
// address and the big-endian sequence index, so identifiers are reproducible
// off-process from the same inputs.
func ScheduleID(beneficiary string, index uint64) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(NormalizeAddress(beneficiary)))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	h.Write(buf[:])

	return "vs:" + hex.EncodeToString(h.Sum(nil))
}

// NormalizeAddress lowercases and trims an account address so that two
// spellings of the same address derive the same schedule identifiers.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
