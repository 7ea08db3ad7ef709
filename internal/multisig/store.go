package multisig

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"VaultGate/internal/storage"
)

// Record key prefixes. Registries, whitelists and balances are keyed by
// address, proposals by (registry, id) so that a registry's proposals form
// one contiguous range.
var (
	prefixRegistry  = []byte("r:")
	prefixWhitelist = []byte("w:")
	prefixProposal  = []byte("p:")
	prefixBalance   = []byte("b:")
)

// txn is the working set of one operation. Reads see the txn's own writes;
// nothing reaches the KV until commit, so a failed operation leaves no trace.
type txn struct {
	kv      storage.KV
	now     time.Time
	pending map[string]storage.Op // pending holds the latest write per key
	order   []string              // order is the first-write order of keys
	events  []Event               // events are published only after commit
}

// newTxn starts a working set over kv.
func newTxn(kv storage.KV, now time.Time) *txn {
	return &txn{
		kv:      kv,
		now:     now,
		pending: make(map[string]storage.Op),
	}
}

// get reads a key through the working set.
func (t *txn) get(key []byte) ([]byte, error) {
	if op, ok := t.pending[string(key)]; ok {
		if op.Delete {
			return nil, nil
		}
		return op.Value, nil
	}

	return t.kv.Get(key)
}

// put stages a write.
func (t *txn) put(key, value []byte) {
	t.stage(storage.Op{Key: key, Value: value})
}

// del stages a delete.
func (t *txn) del(key []byte) {
	t.stage(storage.Op{Key: key, Delete: true})
}

// stage records op, keeping the first-write order of its key.
func (t *txn) stage(op storage.Op) {
	k := string(op.Key)
	if _, ok := t.pending[k]; !ok {
		t.order = append(t.order, k)
	}

	t.pending[k] = op
}

// emit queues an event stamped with the operation time.
func (t *txn) emit(ev Event) {
	ev.ID = uuid.New()
	ev.Time = t.now
	t.events = append(t.events, ev)
}

// commit applies every staged write atomically.
func (t *txn) commit() error {
	if len(t.order) == 0 {
		return nil
	}

	ops := make([]storage.Op, len(t.order))
	for i, k := range t.order {
		ops[i] = t.pending[k]
	}

	return t.kv.Apply(ops)
}

// registry loads a registry by address.
func (t *txn) registry(addr Address) (*Registry, error) {
	data, err := t.get(addressKey(prefixRegistry, addr))
	if err != nil {
		return nil, fmt.Errorf("load registry %s:\n%w", addr.Short(), err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrRegistryNotFound, addr.Short())
	}

	return decodeRegistry(data)
}

// putRegistry stages a registry write.
func (t *txn) putRegistry(r *Registry) {
	t.put(addressKey(prefixRegistry, r.Address), encodeRegistry(r))
}

// registryExists reports whether addr holds a registry.
func (t *txn) registryExists(addr Address) (bool, error) {
	data, err := t.get(addressKey(prefixRegistry, addr))
	return data != nil, err
}

// whitelist loads the whitelist of a registry.
func (t *txn) whitelist(registry Address) (*Whitelist, error) {
	data, err := t.get(whitelistKey(registry))
	if err != nil {
		return nil, fmt.Errorf("load whitelist of %s:\n%w", registry.Short(), err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: whitelist of %s", ErrRegistryNotFound, registry.Short())
	}

	return decodeWhitelist(data)
}

// putWhitelist stages a whitelist write.
func (t *txn) putWhitelist(w *Whitelist) {
	t.put(whitelistKey(w.Registry), encodeWhitelist(w))
}

// proposal loads proposal id of a registry.
func (t *txn) proposal(registry Address, id uint64) (*Proposal, error) {
	data, err := t.get(proposalKey(registry, id))
	if err != nil {
		return nil, fmt.Errorf("load proposal %d of %s:\n%w", id, registry.Short(), err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %d of %s", ErrProposalNotFound, id, registry.Short())
	}

	return decodeProposal(data)
}

// putProposal stages a proposal write.
func (t *txn) putProposal(p *Proposal) {
	t.put(proposalKey(p.Registry, p.ID), encodeProposal(p))
}

// deleteProposal stages the removal of a proposal record.
func (t *txn) deleteProposal(p *Proposal) {
	t.del(proposalKey(p.Registry, p.ID))
}

// balance reads an account balance; missing accounts hold 0.
func (t *txn) balance(account Address) (uint64, error) {
	data, err := t.get(addressKey(prefixBalance, account))
	if err != nil {
		return 0, fmt.Errorf("load balance of %s:\n%w", account.Short(), err)
	}
	if len(data) < 8 {
		return 0, nil
	}

	return binary.LittleEndian.Uint64(data[:8]), nil
}

// setBalance stages a balance write. Zero balances are deleted.
func (t *txn) setBalance(account Address, amount uint64) {
	key := addressKey(prefixBalance, account)
	if amount == 0 {
		t.del(key)
		return
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, amount)
	t.put(key, buf)
}

// credit adds amount to an account.
func (t *txn) credit(account Address, amount uint64) error {
	balance, err := t.balance(account)
	if err != nil {
		return err
	}

	// balance + amount must not wrap
	newBalance := balance + amount
	if newBalance < balance {
		return fmt.Errorf("%w: credit %d to %s holding %d", ErrOverflow, amount, account.Short(), balance)
	}

	t.setBalance(account, newBalance)

	return nil
}

// debit removes amount from an account.
func (t *txn) debit(account Address, amount uint64) error {
	balance, err := t.balance(account)
	if err != nil {
		return err
	}

	if balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, account.Short(), balance, amount)
	}

	t.setBalance(account, balance-amount)

	return nil
}

// addressKey builds prefix || address.
func addressKey(prefix []byte, addr Address) []byte {
	key := make([]byte, len(prefix)+len(addr))
	copy(key, prefix)
	copy(key[len(prefix):], addr[:])

	return key
}

// whitelistKey builds "w:" || WhitelistAddress(registry).
func whitelistKey(registry Address) []byte {
	return addressKey(prefixWhitelist, WhitelistAddress(registry))
}

// proposalKey builds "p:" || registry || id (big-endian, so ids sort numerically).
func proposalKey(registry Address, id uint64) []byte {
	key := make([]byte, len(prefixProposal)+32+8)
	copy(key, prefixProposal)
	copy(key[len(prefixProposal):], registry[:])
	binary.BigEndian.PutUint64(key[len(prefixProposal)+32:], id)

	return key
}
