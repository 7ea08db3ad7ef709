package multisig

import (
	"context"
	"errors"
	"testing"
	"time"

	"VaultGate/internal/storage"
)

// testClock is a settable engine clock.
type testClock struct {
	now time.Time
}

// Now returns the current test time.
func (c *testClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d.
func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// testEnv bundles an engine with its collaborators.
type testEnv struct {
	engine *Engine
	kv     *storage.Memory
	clock  *testClock
	events *Recorder
}

// newTestEnv creates an engine over an in-memory ledger.
// Options adjust the config before the engine is built.
func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()

	env := &testEnv{
		kv:     storage.NewMemory(),
		clock:  &testClock{now: time.Unix(1_700_000_000, 0)},
		events: &Recorder{},
	}

	cfg := Config{Clock: env.clock.Now, Events: env.events}
	for _, opt := range opts {
		opt(&cfg)
	}

	env.engine = New(env.kv, cfg)

	return env
}

// addr builds a distinct test address from a byte.
func addr(b byte) Address {
	var a Address
	a[0] = b
	a[31] = b

	return a
}

// owners returns n distinct owner addresses starting at 1.
func owners(n int) []Address {
	out := make([]Address, n)
	for i := range out {
		out[i] = addr(byte(i + 1))
	}

	return out
}

// createRegistry creates a registry owned by owners(n) with the given threshold.
func (env *testEnv) createRegistry(t *testing.T, n int, threshold uint8) *Registry {
	t.Helper()

	reg, err := env.engine.CreateRegistry(addr(0xc0), owners(n), threshold, 0)
	if err != nil {
		t.Fatalf("create registry: %v", err)
	}

	return reg
}

// propose creates a proposal carrying actions, without expiry or auto-approval.
func (env *testEnv) propose(t *testing.T, reg *Registry, proposer Address, actions ...Action) *Proposal {
	t.Helper()

	p, err := env.engine.Propose(reg.Address, proposer, ProposalRequest{Actions: actions})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	return p
}

// approve records approvals from each owner.
func (env *testEnv) approve(t *testing.T, reg *Registry, id uint64, by ...Address) {
	t.Helper()

	for _, o := range by {
		if err := env.engine.Approve(reg.Address, id, o); err != nil {
			t.Fatalf("approve by %s: %v", o.Short(), err)
		}
	}
}

// fund credits an account.
func (env *testEnv) fund(t *testing.T, account Address, amount uint64) {
	t.Helper()

	if err := env.engine.Credit(account, amount); err != nil {
		t.Fatalf("credit: %v", err)
	}
}

// balance reads an account balance.
func (env *testEnv) balance(t *testing.T, account Address) uint64 {
	t.Helper()

	b, err := env.engine.Balance(account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}

	return b
}

// registry reloads a registry.
func (env *testEnv) registry(t *testing.T, reg *Registry) *Registry {
	t.Helper()

	r, err := env.engine.Registry(reg.Address)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}

	return r
}

// proposal reloads a proposal.
func (env *testEnv) proposal(t *testing.T, reg *Registry, id uint64) *Proposal {
	t.Helper()

	p, err := env.engine.Proposal(reg.Address, id)
	if err != nil {
		t.Fatalf("load proposal %d: %v", id, err)
	}

	return p
}

// expectErr fails unless err matches target.
func expectErr(t *testing.T, err, target error) {
	t.Helper()

	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

// govern proposes d, approves it with the first threshold owners and executes it.
func (env *testEnv) govern(t *testing.T, reg *Registry, d Dispatchable) {
	t.Helper()

	if err := env.tryGovern(t, reg, d); err != nil {
		t.Fatalf("govern %T: %v", d, err)
	}
}

// tryGovern is govern returning the execution error.
func (env *testEnv) tryGovern(t *testing.T, reg *Registry, d Dispatchable) error {
	t.Helper()

	current := env.registry(t, reg)
	proposer := current.Owners[0]

	p := env.propose(t, reg, proposer, GovernanceAction(reg.Address, d))
	env.approve(t, reg, p.ID, current.Owners[:current.Threshold]...)

	return env.engine.Execute(context.Background(), reg.Address, p.ID)
}
