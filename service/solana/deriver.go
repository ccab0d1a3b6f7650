package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seed tags agreed with the on-chain program. Changing either side breaks the
// address contract silently, so these are never configurable.
const (
	lotterySeedTag = "lottery"
	entrySeedTag   = "entry"
)

// DeriveLotteryAddress derives the singleton lottery state account for a program.
func DeriveLotteryAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return findProgramAddress([][]byte{[]byte(lotterySeedTag)}, programID)
}

// DeriveLotteryAddressForBounty derives the per-bounty lottery state account.
// Bounty IDs are small tier identifiers (1=Expert .. 4=Easy) appended as a
// single seed byte.
func DeriveLotteryAddressForBounty(programID solana.PublicKey, bountyID uint8) (solana.PublicKey, uint8, error) {
	return findProgramAddress([][]byte{[]byte(lotterySeedTag), {bountyID}}, programID)
}

// DeriveEntryAddress derives the account that records a single paid entry.
// The nonce is part of the seed tuple: repeated entries from the same payer
// land on distinct addresses, and a reused nonce collides with an
// already-initialized account and is rejected on-chain. That collision is the
// primary defense against submitting the same logical entry twice.
func DeriveEntryAddress(programID, lottery, payer solana.PublicKey, nonce uint64) (solana.PublicKey, uint8, error) {
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)

	seeds := [][]byte{
		[]byte(entrySeedTag),
		lottery.Bytes(),
		payer.Bytes(),
		nonceBytes[:],
	}
	return findProgramAddress(seeds, programID)
}

// DeriveTokenAccountAddress derives the associated token account that holds a
// given mint's balance for an owner.
func DeriveTokenAccountAddress(owner, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: owner=%s mint=%s: %v", ErrAddressSpaceExhausted, owner, mint, err)
	}
	return addr, bump, nil
}

// findProgramAddress wraps the bump search so exhaustion surfaces as the
// taxonomy's fatal ErrAddressSpaceExhausted instead of a library error.
func findProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: %v", ErrAddressSpaceExhausted, err)
	}
	return addr, bump, nil
}
