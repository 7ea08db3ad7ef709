package multisig

import (
	"slices"
	"testing"
)

func TestCreateRegistry(t *testing.T) {
	env := newTestEnv(t)
	creator := addr(0xc0)

	reg, err := env.engine.CreateRegistry(creator, owners(3), 2, 7)
	if err != nil {
		t.Fatalf("CreateRegistry: %v", err)
	}

	if reg.Address != RegistryAddress(creator, 7) {
		t.Errorf("address not derived from creator and nonce")
	}

	stored := env.registry(t, reg)
	if !slices.Equal(stored.Owners, owners(3)) {
		t.Errorf("owners = %v, want %v", stored.Owners, owners(3))
	}
	if stored.Threshold != 2 || stored.NextProposalID != 0 || stored.Paused {
		t.Errorf("unexpected initial state: %+v", stored)
	}

	wl, err := env.engine.Whitelist(reg.Address)
	if err != nil {
		t.Fatalf("Whitelist: %v", err)
	}
	if !slices.Equal(wl.Targets, []Address{TransferTarget, GovernanceTarget}) {
		t.Errorf("whitelist = %v, want core programs", wl.Targets)
	}

	ev, ok := env.events.Last()
	if !ok || ev.Kind != EventRegistryCreated {
		t.Fatalf("expected registry-created event, got %v", env.events.Kinds())
	}
	if ev.Threshold != 2 || ev.Nonce != 7 || len(ev.Owners) != 3 || ev.Subject != creator {
		t.Errorf("unexpected event payload: %+v", ev)
	}
}

func TestCreateRegistryValidation(t *testing.T) {
	dup := []Address{addr(1), addr(2), addr(1)}

	tests := []struct {
		name      string
		owners    []Address
		threshold uint8
		want      error
	}{
		{"no owners", nil, 1, ErrInvalidOwners},
		{"too many owners", owners(MaxOwners + 1), 1, ErrTooManyOwners},
		{"zero threshold", owners(3), 0, ErrInvalidThreshold},
		{"threshold above owners", owners(3), 4, ErrInvalidThreshold},
		{"duplicate owners", dup, 2, ErrDuplicateOwners},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			_, err := env.engine.CreateRegistry(addr(0xc0), tt.owners, tt.threshold, 0)
			expectErr(t, err, tt.want)

			if env.kv.Len() != 0 {
				t.Errorf("rejected create left %d records", env.kv.Len())
			}
			if len(env.events.Events()) != 0 {
				t.Errorf("rejected create emitted events")
			}
		})
	}
}

func TestCreateRegistryMaxOwners(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.CreateRegistry(addr(0xc0), owners(MaxOwners), MaxOwners, 0); err != nil {
		t.Fatalf("CreateRegistry with %d owners: %v", MaxOwners, err)
	}
}

func TestCreateRegistryExists(t *testing.T) {
	env := newTestEnv(t)
	env.createRegistry(t, 2, 1)

	_, err := env.engine.CreateRegistry(addr(0xc0), owners(2), 1, 0)
	expectErr(t, err, ErrRegistryExists)

	// a different nonce derives a different registry
	if _, err := env.engine.CreateRegistry(addr(0xc0), owners(2), 1, 1); err != nil {
		t.Fatalf("CreateRegistry with nonce 1: %v", err)
	}
}

func TestCreateRegistryCopiesOwners(t *testing.T) {
	env := newTestEnv(t)
	in := owners(2)

	reg, err := env.engine.CreateRegistry(addr(0xc0), in, 1, 0)
	if err != nil {
		t.Fatalf("CreateRegistry: %v", err)
	}

	in[0] = addr(0xee)

	if env.registry(t, reg).Owners[0] != addr(1) {
		t.Error("registry aliases the caller's owner slice")
	}
}

func TestVault(t *testing.T) {
	env := newTestEnv(t)
	reg := env.createRegistry(t, 2, 1)

	vault, err := env.engine.Vault(reg.Address)
	if err != nil {
		t.Fatalf("Vault: %v", err)
	}

	if vault != VaultAddress(reg.Address) || vault == reg.Address {
		t.Errorf("vault %s not derived from registry", vault.Short())
	}

	_, err = env.engine.Vault(addr(0x99))
	expectErr(t, err, ErrRegistryNotFound)
}

func TestDerivedAddressesDistinct(t *testing.T) {
	reg := RegistryAddress(addr(1), 0)

	seen := map[Address]string{
		reg:                         "registry",
		VaultAddress(reg):           "vault",
		WhitelistAddress(reg):       "whitelist",
		ProposalAddress(reg, 0):     "proposal 0",
		ProposalAddress(reg, 1):     "proposal 1",
		RegistryAddress(addr(1), 1): "registry nonce 1",
		RegistryAddress(addr(2), 0): "registry other creator",
		TransferTarget:              "transfer",
		GovernanceTarget:            "governance",
	}

	if len(seen) != 9 {
		t.Errorf("derived addresses collide: %v", seen)
	}
}

func TestParseAddress(t *testing.T) {
	a := addr(0xab)

	got, err := ParseAddress(a.String())
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if got != a {
		t.Errorf("ParseAddress = %s, want %s", got, a)
	}

	if _, err := ParseAddress("abcd"); err == nil {
		t.Error("expected error for short address")
	}
	if _, err := ParseAddress("zz"); err == nil {
		t.Error("expected error for non-hex address")
	}
}
