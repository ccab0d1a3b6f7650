package solana

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// EntryPaymentMethod is the on-chain handler name for paid entries. The
// spelling must match the program's declared instruction exactly: the
// discriminator is a hash of this string, so a typo routes the call to a
// nonexistent handler instead of failing to decode.
const EntryPaymentMethod = "process_entry_payment"

// instructionNamespace is the Anchor global-instruction namespace.
const instructionNamespace = "global"

// InstructionDiscriminator computes the 8-byte dispatch prefix for a method:
// the first 8 bytes of SHA256("global:<method>"). The on-chain program
// computes the same mapping.
func InstructionDiscriminator(method string) [8]byte {
	hash := sha256.Sum256([]byte(instructionNamespace + ":" + method))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

// EntryPaymentParams carries everything needed to encode one entry-payment call.
type EntryPaymentParams struct {
	ProgramID solana.PublicKey

	// Accounts, in the program's declared order.
	Lottery             solana.PublicKey
	Entry               solana.PublicKey
	Payer               solana.PublicKey // transaction signer funding the entry
	UserWallet          solana.PublicKey // beneficiary recorded in the entry
	PayerTokenAccount   solana.PublicKey
	JackpotTokenAccount solana.PublicKey
	Mint                solana.PublicKey

	// Instruction fields.
	Amount uint64
	Nonce  uint64
}

// NewEntryPaymentInstruction encodes the entry-payment instruction.
//
// Data layout (positional, no length prefixes or type tags):
//
//	bytes[0..8]   discriminator
//	bytes[8..16]  entry amount   (u64 LE)
//	bytes[16..48] user wallet    (32 raw bytes)
//	bytes[48..56] entry nonce    (u64 LE)
//
// The account list order and signer/writable flags mirror the program's
// declared account struct; a reordering that looks equivalent is still
// misinterpreted by the program.
func NewEntryPaymentInstruction(p EntryPaymentParams) solana.Instruction {
	disc := InstructionDiscriminator(EntryPaymentMethod)

	data := make([]byte, 0, 56)
	data = append(data, disc[:]...)
	data = binary.LittleEndian.AppendUint64(data, p.Amount)
	data = append(data, p.UserWallet.Bytes()...)
	data = binary.LittleEndian.AppendUint64(data, p.Nonce)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Lottery, true, false),
		solana.NewAccountMeta(p.Entry, true, false),
		solana.NewAccountMeta(p.Payer, true, true),
		solana.NewAccountMeta(p.UserWallet, false, false),
		solana.NewAccountMeta(p.PayerTokenAccount, true, false),
		solana.NewAccountMeta(p.JackpotTokenAccount, true, false),
		solana.NewAccountMeta(p.Mint, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}

	return solana.NewInstruction(p.ProgramID, accounts, data)
}
