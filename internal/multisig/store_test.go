package multisig

import (
	"errors"
	"testing"
	"time"

	"VaultGate/internal/storage"
)

func TestTxnReadsOwnWrites(t *testing.T) {
	kv := storage.NewMemory()
	tx := newTxn(kv, time.Unix(0, 0))

	tx.put([]byte("b:k"), []byte("v1"))

	got, err := tx.get([]byte("b:k"))
	if err != nil || string(got) != "v1" {
		t.Fatalf("get after put = %q, %v", got, err)
	}

	tx.del([]byte("b:k"))

	if got, _ := tx.get([]byte("b:k")); got != nil {
		t.Errorf("get after del = %q", got)
	}

	if kv.Len() != 0 {
		t.Errorf("uncommitted writes reached the store")
	}
}

func TestTxnCommitKeepsLastWrite(t *testing.T) {
	kv := storage.NewMemory()
	tx := newTxn(kv, time.Unix(0, 0))

	tx.put([]byte("r:a"), []byte("1"))
	tx.put([]byte("r:b"), []byte("2"))
	tx.put([]byte("r:a"), []byte("3"))

	if len(tx.order) != 2 {
		t.Errorf("order = %d keys, want 2", len(tx.order))
	}

	if err := tx.commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if got, _ := kv.Get([]byte("r:a")); string(got) != "3" {
		t.Errorf("r:a = %q, want 3", got)
	}
}

func TestTxnBalances(t *testing.T) {
	tx := newTxn(storage.NewMemory(), time.Unix(0, 0))

	if b, err := tx.balance(addr(1)); err != nil || b != 0 {
		t.Fatalf("missing balance = %d, %v", b, err)
	}

	if err := tx.credit(addr(1), 10); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := tx.debit(addr(1), 4); err != nil {
		t.Fatalf("debit: %v", err)
	}

	if b, _ := tx.balance(addr(1)); b != 6 {
		t.Errorf("balance = %d, want 6", b)
	}

	if err := tx.debit(addr(1), 7); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestTxnEmitStampsEvents(t *testing.T) {
	now := time.Unix(42, 0)
	tx := newTxn(storage.NewMemory(), now)

	tx.emit(Event{Kind: EventOwnerAdded})
	tx.emit(Event{Kind: EventOwnerRemoved})

	if tx.events[0].ID == tx.events[1].ID {
		t.Error("events share an id")
	}
	if !tx.events[0].Time.Equal(now) {
		t.Errorf("event time = %v, want %v", tx.events[0].Time, now)
	}
}

// failingKV rejects every batch.
type failingKV struct {
	storage.KV
}

func (failingKV) Apply([]storage.Op) error {
	return errors.New("disk full")
}

func TestCommitFailureSuppressesEvents(t *testing.T) {
	events := &Recorder{}
	e := New(failingKV{storage.NewMemory()}, Config{Events: events})

	_, err := e.CreateRegistry(addr(0xc0), owners(1), 1, 0)
	if err == nil {
		t.Fatal("expected commit error")
	}
	if Kind(err) != "Internal" {
		t.Errorf("Kind = %q, want Internal", Kind(err))
	}
	if len(events.Events()) != 0 {
		t.Error("events published for a failed commit")
	}
}

func TestProposalKeyOrder(t *testing.T) {
	reg := addr(1)

	a := string(proposalKey(reg, 1))
	b := string(proposalKey(reg, 256))

	if a >= b {
		t.Error("proposal keys do not sort by id")
	}
}
