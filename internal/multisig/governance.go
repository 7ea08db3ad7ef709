package multisig

import (
	"fmt"
	"slices"
)

// Governance instruction tags (first payload byte).
const (
	tagAddOwner byte = iota
	tagRemoveOwner
	tagChangeThreshold
	tagSetPause
	tagWhitelistAdd
	tagWhitelistRemove
)

// AddOwner appends an owner to the registry.
type AddOwner struct{ Owner Address }

// RemoveOwner removes an owner from the registry. Approvals the owner already
// gave on open proposals are left in place.
type RemoveOwner struct{ Owner Address }

// ChangeThreshold sets the approval threshold.
type ChangeThreshold struct{ Threshold uint8 }

// SetPause sets or clears the registry pause flag.
type SetPause struct{ Paused bool }

// WhitelistAdd allows proposals to target Program.
type WhitelistAdd struct{ Program Address }

// WhitelistRemove stops new proposals from targeting Program.
type WhitelistRemove struct{ Program Address }

func (AddOwner) Target() Address        { return GovernanceTarget }
func (RemoveOwner) Target() Address     { return GovernanceTarget }
func (ChangeThreshold) Target() Address { return GovernanceTarget }
func (SetPause) Target() Address        { return GovernanceTarget }
func (WhitelistAdd) Target() Address    { return GovernanceTarget }
func (WhitelistRemove) Target() Address { return GovernanceTarget }

func (g AddOwner) Encode() []byte        { return encodeAddressArg(tagAddOwner, g.Owner) }
func (g RemoveOwner) Encode() []byte     { return encodeAddressArg(tagRemoveOwner, g.Owner) }
func (g ChangeThreshold) Encode() []byte { return []byte{tagChangeThreshold, g.Threshold} }
func (g WhitelistAdd) Encode() []byte    { return encodeAddressArg(tagWhitelistAdd, g.Program) }
func (g WhitelistRemove) Encode() []byte { return encodeAddressArg(tagWhitelistRemove, g.Program) }

func (g SetPause) Encode() []byte {
	if g.Paused {
		return []byte{tagSetPause, 1}
	}
	return []byte{tagSetPause, 0}
}

// Apply adds the owner.
func (g AddOwner) Apply(inv *Invocation, refs []AccountRef) error {
	reg, err := governedRegistry(inv, refs)
	if err != nil {
		return err
	}

	if reg.IsOwner(g.Owner) {
		return fmt.Errorf("%w: %s", ErrOwnerExists, g.Owner.Short())
	}

	if len(reg.Owners) >= MaxOwners {
		return ErrTooManyOwners
	}

	reg.Owners = append(reg.Owners, g.Owner)
	inv.tx.putRegistry(reg)
	inv.tx.emit(Event{Kind: EventOwnerAdded, Registry: reg.Address, Subject: g.Owner})

	return nil
}

// Apply removes the owner.
func (g RemoveOwner) Apply(inv *Invocation, refs []AccountRef) error {
	reg, err := governedRegistry(inv, refs)
	if err != nil {
		return err
	}

	idx := slices.Index(reg.Owners, g.Owner)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotAnOwner, g.Owner.Short())
	}

	if int(reg.Threshold) > len(reg.Owners)-1 {
		return fmt.Errorf("%w: threshold %d, %d owners left", ErrInvalidThresholdAfterRemoval, reg.Threshold, len(reg.Owners)-1)
	}

	reg.Owners = slices.Delete(reg.Owners, idx, idx+1)
	inv.tx.putRegistry(reg)
	inv.tx.emit(Event{Kind: EventOwnerRemoved, Registry: reg.Address, Subject: g.Owner})

	return nil
}

// Apply sets the threshold.
func (g ChangeThreshold) Apply(inv *Invocation, refs []AccountRef) error {
	reg, err := governedRegistry(inv, refs)
	if err != nil {
		return err
	}

	if g.Threshold == 0 || int(g.Threshold) > len(reg.Owners) {
		return fmt.Errorf("%w: %d with %d owners", ErrInvalidThreshold, g.Threshold, len(reg.Owners))
	}

	reg.Threshold = g.Threshold
	inv.tx.putRegistry(reg)
	inv.tx.emit(Event{Kind: EventThresholdChanged, Registry: reg.Address, Threshold: g.Threshold})

	return nil
}

// Apply sets the pause flag.
func (g SetPause) Apply(inv *Invocation, refs []AccountRef) error {
	reg, err := governedRegistry(inv, refs)
	if err != nil {
		return err
	}

	reg.Paused = g.Paused
	inv.tx.putRegistry(reg)
	inv.tx.emit(Event{Kind: EventPauseToggled, Registry: reg.Address, Paused: g.Paused})

	return nil
}

// Apply whitelists the program.
func (g WhitelistAdd) Apply(inv *Invocation, refs []AccountRef) error {
	reg, err := governedRegistry(inv, refs)
	if err != nil {
		return err
	}

	wl, err := inv.tx.whitelist(reg.Address)
	if err != nil {
		return err
	}

	if wl.Contains(g.Program) {
		return fmt.Errorf("%w: %s", ErrProgramAlreadyWhitelisted, g.Program.Short())
	}

	if len(wl.Targets) >= MaxWhitelist {
		return ErrWhitelistFull
	}

	wl.Targets = append(wl.Targets, g.Program)
	inv.tx.putWhitelist(wl)
	inv.tx.emit(Event{Kind: EventWhitelistProgramAdded, Registry: reg.Address, Subject: g.Program})

	return nil
}

// Apply removes the program from the whitelist.
func (g WhitelistRemove) Apply(inv *Invocation, refs []AccountRef) error {
	reg, err := governedRegistry(inv, refs)
	if err != nil {
		return err
	}

	if IsCoreProgram(g.Program) {
		return fmt.Errorf("%w: %s", ErrCannotRemoveCoreProgram, g.Program.Short())
	}

	wl, err := inv.tx.whitelist(reg.Address)
	if err != nil {
		return err
	}

	idx := slices.Index(wl.Targets, g.Program)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrProgramNotFoundInWhitelist, g.Program.Short())
	}

	wl.Targets = slices.Delete(wl.Targets, idx, idx+1)
	inv.tx.putWhitelist(wl)
	inv.tx.emit(Event{Kind: EventWhitelistProgramRemoved, Registry: reg.Address, Subject: g.Program})

	return nil
}

// GovernanceAction builds a governance action against registry.
// The refs are the registry record (mutable) and its vault (authority).
func GovernanceAction(registry Address, d Dispatchable) Action {
	return NewAction(d,
		AccountRef{Key: registry, IsMutable: true},
		AccountRef{Key: VaultAddress(registry), IsAuthority: true},
	)
}

// governedRegistry loads the registry named by refs[0] and checks that
// refs[1] is its vault and that the vault signs the invocation.
func governedRegistry(inv *Invocation, refs []AccountRef) (*Registry, error) {
	if len(refs) < 2 {
		return nil, fmt.Errorf("%w: governance needs 2 accounts, got %d", ErrInvalidInstruction, len(refs))
	}

	if !refs[0].IsMutable {
		return nil, fmt.Errorf("%w: registry account must be mutable", ErrInvalidInstruction)
	}

	reg, err := inv.tx.registry(refs[0].Key)
	if err != nil {
		return nil, err
	}

	vault := reg.Vault()
	if refs[1].Key != vault || !inv.IsSigner(vault) {
		return nil, fmt.Errorf("%w: for registry %s", ErrInvalidVault, reg.Address.Short())
	}

	return reg, nil
}

// DecodeGovernance parses a governance payload.
func DecodeGovernance(payload []byte) (Dispatchable, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty governance payload", ErrInvalidInstruction)
	}

	args := payload[1:]

	switch payload[0] {
	case tagAddOwner, tagRemoveOwner, tagWhitelistAdd, tagWhitelistRemove:
		if len(args) != 32 {
			return nil, fmt.Errorf("%w: governance tag %d needs 32 bytes, got %d", ErrInvalidInstruction, payload[0], len(args))
		}

		var a Address
		copy(a[:], args)

		switch payload[0] {
		case tagAddOwner:
			return AddOwner{Owner: a}, nil
		case tagRemoveOwner:
			return RemoveOwner{Owner: a}, nil
		case tagWhitelistAdd:
			return WhitelistAdd{Program: a}, nil
		default:
			return WhitelistRemove{Program: a}, nil
		}

	case tagChangeThreshold:
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: threshold payload of %d bytes", ErrInvalidInstruction, len(args))
		}
		return ChangeThreshold{Threshold: args[0]}, nil

	case tagSetPause:
		if len(args) != 1 || args[0] > 1 {
			return nil, fmt.Errorf("%w: pause payload %x", ErrInvalidInstruction, args)
		}
		return SetPause{Paused: args[0] == 1}, nil
	}

	return nil, fmt.Errorf("%w: unknown governance tag %d", ErrInvalidInstruction, payload[0])
}

// handleGovernance is the GovernanceTarget handler.
func handleGovernance(inv *Invocation, refs []AccountRef, payload []byte) error {
	d, err := DecodeGovernance(payload)
	if err != nil {
		return err
	}

	return d.Apply(inv, refs)
}

// encodeAddressArg returns tag || addr.
func encodeAddressArg(tag byte, addr Address) []byte {
	buf := make([]byte, 1+len(addr))
	buf[0] = tag
	copy(buf[1:], addr[:])

	return buf
}
