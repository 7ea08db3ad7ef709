package multisig

import (
	"encoding/binary"
	"fmt"
)

// transferTag is the first payload byte of a transfer instruction.
const transferTag = 2

// Transfer moves Amount from refs[0] to refs[1].
// refs[0] must be a signing, mutable account and refs[1] a mutable account.
type Transfer struct {
	Amount uint64
}

// Target returns TransferTarget.
func (Transfer) Target() Address {
	return TransferTarget
}

// Encode returns [2] || amount (u64 LE).
func (t Transfer) Encode() []byte {
	buf := make([]byte, 9)
	buf[0] = transferTag
	binary.LittleEndian.PutUint64(buf[1:], t.Amount)

	return buf
}

// Apply moves the balance.
func (t Transfer) Apply(inv *Invocation, refs []AccountRef) error {
	if len(refs) < 2 {
		return fmt.Errorf("%w: transfer needs 2 accounts, got %d", ErrInvalidInstruction, len(refs))
	}

	from, to := refs[0], refs[1]

	if !from.IsAuthority || !inv.IsSigner(from.Key) {
		return fmt.Errorf("%w: transfer source %s", ErrMissingSignature, from.Key.Short())
	}

	if !from.IsMutable || !to.IsMutable {
		return fmt.Errorf("%w: transfer accounts must be mutable", ErrInvalidInstruction)
	}

	if t.Amount == 0 {
		return ErrInvalidAmount
	}

	if err := inv.tx.debit(from.Key, t.Amount); err != nil {
		return err
	}

	return inv.tx.credit(to.Key, t.Amount)
}

// TransferAction builds a transfer of amount from one account to another.
func TransferAction(from, to Address, amount uint64) Action {
	return NewAction(Transfer{Amount: amount},
		AccountRef{Key: from, IsAuthority: true, IsMutable: true},
		AccountRef{Key: to, IsMutable: true},
	)
}

// decodeTransfer parses a transfer payload.
func decodeTransfer(payload []byte) (Transfer, error) {
	if len(payload) != 9 || payload[0] != transferTag {
		return Transfer{}, fmt.Errorf("%w: transfer payload of %d bytes", ErrInvalidInstruction, len(payload))
	}

	return Transfer{Amount: binary.LittleEndian.Uint64(payload[1:])}, nil
}

// handleTransfer is the TransferTarget handler.
func handleTransfer(inv *Invocation, refs []AccountRef, payload []byte) error {
	t, err := decodeTransfer(payload)
	if err != nil {
		return err
	}

	return t.Apply(inv, refs)
}
