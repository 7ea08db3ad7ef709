package multisig

import (
	"context"
	"slices"
	"testing"
)

func TestGovernanceRequiresVaultSignature(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 2, 1)

	// an owner acting alone cannot sign as the vault
	err := env.engine.Invoke(context.Background(), addr(1), GovernanceAction(reg.Address, ChangeThreshold{Threshold: 2}))
	expectErr(t, err, ErrMissingSignature)

	// dropping the authority flag does not help
	action := GovernanceAction(reg.Address, ChangeThreshold{Threshold: 2})
	action.Refs[1].IsAuthority = false

	err = env.engine.Invoke(context.Background(), addr(1), action)
	expectErr(t, err, ErrInvalidVault)

	if got := env.registry(t, reg).Threshold; got != 1 {
		t.Errorf("threshold changed to %d", got)
	}
}

func TestGovernanceCrossRegistry(t *testing.T) {
	env := newTestEnv(t)
	a := env.createRegistry(t, 1, 1)
	b, err := env.engine.CreateRegistry(addr(0xc0), owners(1), 1, 1)
	if err != nil {
		t.Fatalf("CreateRegistry: %v", err)
	}

	// b's vault cannot be claimed from a's proposal
	_, err = env.engine.Propose(a.Address, addr(1), ProposalRequest{Actions: []Action{
		GovernanceAction(b.Address, SetPause{Paused: true}),
	}})
	expectErr(t, err, ErrSignerNotAllowed)

	// a's vault does not govern b
	action := NewAction(SetPause{Paused: true},
		AccountRef{Key: b.Address, IsMutable: true},
		AccountRef{Key: a.Vault(), IsAuthority: true},
	)
	p := env.propose(t, a, addr(1), action)
	env.approve(t, a, p.ID, addr(1))

	expectErr(t, env.engine.Execute(context.Background(), a.Address, p.ID), ErrInvalidVault)

	if env.registry(t, b).Paused {
		t.Error("foreign registry paused")
	}
}

func TestChangeThreshold(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 3, 1)

	env.govern(t, reg, ChangeThreshold{Threshold: 3})

	if got := env.registry(t, reg).Threshold; got != 3 {
		t.Fatalf("threshold = %d, want 3", got)
	}

	ev := env.events.Events()
	if ev[len(ev)-2].Kind != EventThresholdChanged || ev[len(ev)-2].Threshold != 3 {
		t.Errorf("unexpected threshold event: %+v", ev[len(ev)-2])
	}

	expectErr(t, env.tryGovern(t, reg, ChangeThreshold{Threshold: 0}), ErrInvalidThreshold)
	expectErr(t, env.tryGovern(t, reg, ChangeThreshold{Threshold: 4}), ErrInvalidThreshold)
}

func TestAddOwner(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, MaxOwners-1, 1)

	env.govern(t, reg, AddOwner{Owner: addr(0x50)})

	current := env.registry(t, reg)
	if len(current.Owners) != MaxOwners || current.Owners[MaxOwners-1] != addr(0x50) {
		t.Fatalf("owner not appended: %v", current.Owners)
	}

	expectErr(t, env.tryGovern(t, reg, AddOwner{Owner: addr(1)}), ErrOwnerExists)
	expectErr(t, env.tryGovern(t, reg, AddOwner{Owner: addr(0x51)}), ErrTooManyOwners)

	// the new owner can take part right away
	p := env.propose(t, reg, addr(0x50), TransferAction(reg.Vault(), addr(9), 1))
	env.approve(t, reg, p.ID, addr(0x50))
}

func TestRemoveOwner(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 3, 2)

	env.govern(t, reg, RemoveOwner{Owner: addr(2)})

	current := env.registry(t, reg)
	if !slices.Equal(current.Owners, []Address{addr(1), addr(3)}) {
		t.Fatalf("owners = %v, want order kept", current.Owners)
	}

	expectErr(t, env.tryGovern(t, reg, RemoveOwner{Owner: addr(2)}), ErrNotAnOwner)
	expectErr(t, env.tryGovern(t, reg, RemoveOwner{Owner: addr(3)}), ErrInvalidThresholdAfterRemoval)

	// the removed owner lost its vote
	p := env.propose(t, reg, addr(1), TransferAction(reg.Vault(), addr(9), 1))
	expectErr(t, env.engine.Approve(reg.Address, p.ID, addr(2)), ErrNotAnOwner)
}

func TestRemoveOwnerThenLowerThreshold(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 2, 2)

	// lowering the threshold first makes the removal valid in one bundle
	p := env.propose(t, reg, addr(1),
		GovernanceAction(reg.Address, ChangeThreshold{Threshold: 1}),
		GovernanceAction(reg.Address, RemoveOwner{Owner: addr(2)}),
	)
	env.approve(t, reg, p.ID, addr(1), addr(2))

	if err := env.engine.Execute(context.Background(), reg.Address, p.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	current := env.registry(t, reg)
	if current.Threshold != 1 || len(current.Owners) != 1 {
		t.Errorf("unexpected registry: %+v", current)
	}
}

func TestWhitelistGovernance(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 1, 1)
	prog := ProgramID("swap")

	env.govern(t, reg, WhitelistAdd{Program: prog})

	wl, err := env.engine.Whitelist(reg.Address)
	if err != nil {
		t.Fatalf("Whitelist: %v", err)
	}
	if !wl.Contains(prog) || len(wl.Targets) != 3 {
		t.Fatalf("program not whitelisted: %v", wl.Targets)
	}

	expectErr(t, env.tryGovern(t, reg, WhitelistAdd{Program: prog}), ErrProgramAlreadyWhitelisted)
	expectErr(t, env.tryGovern(t, reg, WhitelistRemove{Program: TransferTarget}), ErrCannotRemoveCoreProgram)
	expectErr(t, env.tryGovern(t, reg, WhitelistRemove{Program: GovernanceTarget}), ErrCannotRemoveCoreProgram)
	expectErr(t, env.tryGovern(t, reg, WhitelistRemove{Program: ProgramID("other")}), ErrProgramNotFoundInWhitelist)

	env.govern(t, reg, WhitelistRemove{Program: prog})

	_, err = env.engine.Propose(reg.Address, addr(1), ProposalRequest{Actions: []Action{{Target: prog}}})
	expectErr(t, err, ErrProgramNotAllowed)
}

func TestWhitelistFull(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 1, 1)

	for i := 2; i < MaxWhitelist; i++ {
		env.govern(t, reg, WhitelistAdd{Program: ProgramID(string(rune('a' + i)))})
	}

	expectErr(t, env.tryGovern(t, reg, WhitelistAdd{Program: ProgramID("overflow")}), ErrWhitelistFull)
}

func TestWhitelistCheckedAtProposeOnly(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 1, 1)
	prog := ProgramID("memo")

	calls := 0
	if err := env.engine.Register(prog, HandlerFunc(func(*Invocation, []AccountRef, []byte) error {
		calls++
		return nil
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	env.govern(t, reg, WhitelistAdd{Program: prog})
	queued := env.propose(t, reg, addr(1), Action{Target: prog})
	env.govern(t, reg, WhitelistRemove{Program: prog})

	env.approve(t, reg, queued.ID, addr(1))
	if err := env.engine.Execute(context.Background(), reg.Address, queued.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestInvokeTransfer(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, addr(1), 10)

	if err := env.engine.Invoke(context.Background(), addr(1), TransferAction(addr(1), addr(2), 4)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if env.balance(t, addr(1)) != 6 || env.balance(t, addr(2)) != 4 {
		t.Errorf("balances = %d/%d, want 6/4", env.balance(t, addr(1)), env.balance(t, addr(2)))
	}

	expectErr(t, env.engine.Invoke(context.Background(), addr(2), TransferAction(addr(1), addr(2), 1)), ErrMissingSignature)
	expectErr(t, env.engine.Invoke(context.Background(), addr(1), TransferAction(addr(1), addr(2), 0)), ErrInvalidAmount)
	expectErr(t, env.engine.Invoke(context.Background(), addr(1), TransferAction(addr(1), addr(2), 7)), ErrInsufficientFunds)

	// emptied accounts are removed from the ledger
	if err := env.engine.Invoke(context.Background(), addr(1), TransferAction(addr(1), addr(2), 6)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if data, _ := env.kv.Get(addressKey(prefixBalance, addr(1))); data != nil {
		t.Errorf("zero balance still stored: %x", data)
	}
}

func TestCreditOverflow(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, addr(1), ^uint64(0))

	expectErr(t, env.engine.Credit(addr(1), 1), ErrOverflow)
	expectErr(t, env.engine.Credit(addr(1), 0), ErrInvalidAmount)
}

func TestDecodeGovernance(t *testing.T) {
	valid := []Dispatchable{
		AddOwner{Owner: addr(1)},
		RemoveOwner{Owner: addr(2)},
		ChangeThreshold{Threshold: 3},
		SetPause{Paused: true},
		SetPause{Paused: false},
		WhitelistAdd{Program: addr(4)},
		WhitelistRemove{Program: addr(5)},
	}

	for _, d := range valid {
		got, err := DecodeGovernance(d.Encode())
		if err != nil {
			t.Errorf("decode %T: %v", d, err)
			continue
		}
		if got != d {
			t.Errorf("decode %T = %+v, want %+v", d, got, d)
		}
	}

	invalid := [][]byte{
		nil,
		{tagAddOwner, 1, 2},
		{tagChangeThreshold},
		{tagSetPause, 2},
		{tagWhitelistRemove},
		{0x7f},
	}

	for _, payload := range invalid {
		_, err := DecodeGovernance(payload)
		expectErr(t, err, ErrInvalidInstruction)
	}
}

func TestMalformedGovernanceRefs(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 1, 1)

	short := Action{
		Target:  GovernanceTarget,
		Refs:    []AccountRef{{Key: reg.Address, IsMutable: true}},
		Payload: SetPause{Paused: true}.Encode(),
	}
	p := env.propose(t, reg, addr(1), short)
	env.approve(t, reg, p.ID, addr(1))

	expectErr(t, env.engine.Execute(context.Background(), reg.Address, p.ID), ErrInvalidInstruction)
}
