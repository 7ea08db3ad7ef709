package multisig

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"VaultGate/internal/storage"
)

func TestProposalRecordExpiry(t *testing.T) {
	p := &Proposal{
		Address:   ProposalAddress(addr(1), 3),
		Registry:  addr(1),
		ID:        3,
		Proposer:  addr(2),
		Actions:   []Action{TransferAction(addr(3), addr(4), 9)},
		Approvals: []Address{addr(2), addr(5)},
	}

	got, err := decodeProposal(encodeProposal(p))
	if err != nil {
		t.Fatalf("decodeProposal: %v", err)
	}
	if !got.ExpiresAt.IsZero() {
		t.Errorf("proposal without expiry decoded with %v", got.ExpiresAt)
	}

	// expiry keeps second precision only
	p.ExpiresAt = time.Unix(1_700_000_123, 900_000_000)

	got, err = decodeProposal(encodeProposal(p))
	if err != nil {
		t.Fatalf("decodeProposal: %v", err)
	}
	if got.ExpiresAt.Unix() != 1_700_000_123 || got.ExpiresAt.Nanosecond() != 0 {
		t.Errorf("expires = %v", got.ExpiresAt)
	}
	if got.IsExpired(time.Unix(1_700_000_123, 999_000_000)) {
		t.Error("expired within its expiry second")
	}
}

func TestActionEncodingKeepsRefFlags(t *testing.T) {
	a := Action{
		Target: ProgramID("swap"),
		Refs: []AccountRef{
			{Key: addr(1), IsAuthority: true, IsMutable: true},
			{Key: addr(2), IsMutable: true},
			{Key: addr(3)},
		},
		Payload: []byte{0xde, 0xad},
	}

	got, err := DecodeAction(EncodeAction(a))
	if err != nil {
		t.Fatalf("DecodeAction: %v", err)
	}

	if got.Target != a.Target || !bytes.Equal(got.Payload, a.Payload) || len(got.Refs) != 3 {
		t.Fatalf("decoded %+v", got)
	}

	for i, ref := range got.Refs {
		if ref != a.Refs[i] {
			t.Errorf("ref %d = %+v, want %+v", i, ref, a.Refs[i])
		}
	}
}

func TestDecodedActionDoesNotAliasBuffer(t *testing.T) {
	buf := EncodeAction(Action{Target: ProgramID("x"), Payload: []byte{1, 2, 3}})

	got, err := DecodeAction(buf)
	if err != nil {
		t.Fatalf("DecodeAction: %v", err)
	}

	for i := range buf {
		buf[i] = 0
	}

	if !bytes.Equal(got.Payload, []byte{1, 2, 3}) {
		t.Errorf("payload changed with buffer: %x", got.Payload)
	}
}

func TestSplitAddressesRejectsPartial(t *testing.T) {
	if _, err := splitAddresses(make([]byte, 33)); err == nil {
		t.Error("expected error for 33-byte owner list")
	}
}

func TestKind(t *testing.T) {
	if Kind(nil) != "" {
		t.Errorf("Kind(nil) = %q", Kind(nil))
	}

	wrapped := &wrapErr{ErrPaused}
	if got := Kind(wrapped); got != "Paused" {
		t.Errorf("Kind(wrapped paused) = %q", got)
	}

	if got := Kind(bytes.ErrTooLarge); got != "Internal" {
		t.Errorf("Kind(foreign) = %q", got)
	}
}

// wrapErr wraps an error without formatting.
type wrapErr struct{ err error }

func (w *wrapErr) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapErr) Unwrap() error { return w.err }

func TestDecodeCorruptRecords(t *testing.T) {
	for _, data := range [][]byte{nil, {1}, {0xff, 0xff, 0xff, 0x7f}} {
		if _, err := decodeRegistry(data); !errors.Is(err, ErrCorruptRecord) {
			t.Errorf("decodeRegistry(%x) = %v, want ErrCorruptRecord", data, err)
		}
		if _, err := decodeWhitelist(data); !errors.Is(err, ErrCorruptRecord) {
			t.Errorf("decodeWhitelist(%x) = %v, want ErrCorruptRecord", data, err)
		}
		if _, err := decodeProposal(data); !errors.Is(err, ErrCorruptRecord) {
			t.Errorf("decodeProposal(%x) = %v, want ErrCorruptRecord", data, err)
		}
		if _, err := DecodeAction(data); !errors.Is(err, ErrCorruptRecord) {
			t.Errorf("DecodeAction(%x) = %v, want ErrCorruptRecord", data, err)
		}
	}
}

func TestCorruptRegistryIsAnError(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 2, 1)

	err := env.kv.Apply([]storage.Op{{Key: addressKey(prefixRegistry, reg.Address), Value: []byte{1}}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	_, err = env.engine.Registry(reg.Address)
	expectErr(t, err, ErrCorruptRecord)

	_, err = env.engine.Propose(reg.Address, addr(1), ProposalRequest{
		Actions: []Action{TransferAction(reg.Vault(), addr(9), 1)},
	})
	expectErr(t, err, ErrCorruptRecord)

	if got := Kind(err); got != "Internal" {
		t.Errorf("Kind = %q, want Internal", got)
	}
}

func TestValidateRecord(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 2, 1)
	env.fund(t, reg.Vault(), 5)
	env.propose(t, reg, addr(1), TransferAction(reg.Vault(), addr(9), 1))

	count := 0
	for _, prefix := range RecordPrefixes() {
		err := env.kv.IteratePrefix(prefix, func(key, value []byte) error {
			count++
			return ValidateRecord(key, value)
		})
		if err != nil {
			t.Errorf("stored record under %q rejected: %v", prefix, err)
		}
	}
	if count != 4 {
		t.Errorf("validated %d records, want 4", count)
	}

	wlKey := addressKey(prefixWhitelist, WhitelistAddress(reg.Address))
	wl, err := env.kv.Get(wlKey)
	if err != nil || wl == nil {
		t.Fatalf("whitelist not stored under its derived address: %v", err)
	}

	// a whitelist copied under the registry's own address is rejected
	err = ValidateRecord(addressKey(prefixWhitelist, reg.Address), wl)
	expectErr(t, err, ErrCorruptRecord)

	err = ValidateRecord(addressKey(prefixBalance, addr(1)), []byte{1})
	expectErr(t, err, ErrCorruptRecord)

	err = ValidateRecord([]byte("z:"), nil)
	expectErr(t, err, ErrCorruptRecord)
}
