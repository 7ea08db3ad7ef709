package multisig

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"VaultGate/internal/types"
)

// ErrCorruptRecord is returned when a stored record cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt record")

// encodeRegistry serializes a registry record.
func encodeRegistry(r *Registry) []byte {
	builder := flatbuffers.NewBuilder(512)

	addrVec := builder.CreateByteVector(r.Address[:])
	creatorVec := builder.CreateByteVector(r.Creator[:])
	ownersVec := builder.CreateByteVector(joinAddresses(r.Owners))

	types.RegistryStart(builder)
	types.RegistryAddAddress(builder, addrVec)
	types.RegistryAddCreator(builder, creatorVec)
	types.RegistryAddOwners(builder, ownersVec)
	types.RegistryAddThreshold(builder, r.Threshold)
	types.RegistryAddNextProposalId(builder, r.NextProposalID)
	types.RegistryAddPaused(builder, r.Paused)
	types.RegistryAddNonce(builder, r.Nonce)
	builder.Finish(types.RegistryEnd(builder))

	return builder.FinishedBytes()
}

// decodeRegistry parses a registry record.
func decodeRegistry(data []byte) (out *Registry, err error) {
	// the generated accessors trust the offsets they read
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: registry: %v", ErrCorruptRecord, r)
		}
	}()

	rec := types.GetRootAsRegistry(data, 0)

	r := &Registry{
		Threshold:      rec.Threshold(),
		NextProposalID: rec.NextProposalId(),
		Paused:         rec.Paused(),
		Nonce:          rec.Nonce(),
	}

	if r.Address, err = toAddress(rec.AddressBytes()); err != nil {
		return nil, fmt.Errorf("registry address:\n%w", err)
	}
	if r.Creator, err = toAddress(rec.CreatorBytes()); err != nil {
		return nil, fmt.Errorf("registry creator:\n%w", err)
	}
	if r.Owners, err = splitAddresses(rec.OwnersBytes()); err != nil {
		return nil, fmt.Errorf("registry owners:\n%w", err)
	}

	return r, nil
}

// encodeWhitelist serializes a whitelist record.
func encodeWhitelist(w *Whitelist) []byte {
	builder := flatbuffers.NewBuilder(64 + 32*len(w.Targets))

	regVec := builder.CreateByteVector(w.Registry[:])
	targetsVec := builder.CreateByteVector(joinAddresses(w.Targets))

	types.WhitelistStart(builder)
	types.WhitelistAddRegistry(builder, regVec)
	types.WhitelistAddTargets(builder, targetsVec)
	builder.Finish(types.WhitelistEnd(builder))

	return builder.FinishedBytes()
}

// decodeWhitelist parses a whitelist record.
func decodeWhitelist(data []byte) (out *Whitelist, err error) {
	// the generated accessors trust the offsets they read
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: whitelist: %v", ErrCorruptRecord, r)
		}
	}()

	rec := types.GetRootAsWhitelist(data, 0)

	registry, err := toAddress(rec.RegistryBytes())
	if err != nil {
		return nil, fmt.Errorf("whitelist registry:\n%w", err)
	}

	targets, err := splitAddresses(rec.TargetsBytes())
	if err != nil {
		return nil, fmt.Errorf("whitelist targets:\n%w", err)
	}

	return &Whitelist{Registry: registry, Targets: targets}, nil
}

// encodeProposal serializes a proposal record.
func encodeProposal(p *Proposal) []byte {
	builder := flatbuffers.NewBuilder(1024)

	actionOffsets := make([]flatbuffers.UOffsetT, len(p.Actions))
	for i, a := range p.Actions {
		actionOffsets[i] = buildAction(builder, a)
	}

	types.ProposalStartActionsVector(builder, len(actionOffsets))
	for i := len(actionOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(actionOffsets[i])
	}
	actionsVec := builder.EndVector(len(actionOffsets))

	addrVec := builder.CreateByteVector(p.Address[:])
	regVec := builder.CreateByteVector(p.Registry[:])
	proposerVec := builder.CreateByteVector(p.Proposer[:])
	approvalsVec := builder.CreateByteVector(joinAddresses(p.Approvals))

	types.ProposalStart(builder)
	types.ProposalAddAddress(builder, addrVec)
	types.ProposalAddRegistry(builder, regVec)
	types.ProposalAddId(builder, p.ID)
	types.ProposalAddProposer(builder, proposerVec)
	types.ProposalAddActions(builder, actionsVec)
	types.ProposalAddApprovals(builder, approvalsVec)
	types.ProposalAddExecuted(builder, p.Executed)
	if !p.ExpiresAt.IsZero() {
		types.ProposalAddExpiresAt(builder, p.ExpiresAt.Unix())
		types.ProposalAddHasExpiry(builder, true)
	}
	types.ProposalAddDeposit(builder, p.Deposit)
	builder.Finish(types.ProposalEnd(builder))

	return builder.FinishedBytes()
}

// decodeProposal parses a proposal record.
func decodeProposal(data []byte) (out *Proposal, err error) {
	// the generated accessors trust the offsets they read
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: proposal: %v", ErrCorruptRecord, r)
		}
	}()

	rec := types.GetRootAsProposal(data, 0)

	p := &Proposal{
		ID:       rec.Id(),
		Executed: rec.Executed(),
		Deposit:  rec.Deposit(),
	}

	if p.Address, err = toAddress(rec.AddressBytes()); err != nil {
		return nil, fmt.Errorf("proposal address:\n%w", err)
	}
	if p.Registry, err = toAddress(rec.RegistryBytes()); err != nil {
		return nil, fmt.Errorf("proposal registry:\n%w", err)
	}
	if p.Proposer, err = toAddress(rec.ProposerBytes()); err != nil {
		return nil, fmt.Errorf("proposal proposer:\n%w", err)
	}
	if p.Approvals, err = splitAddresses(rec.ApprovalsBytes()); err != nil {
		return nil, fmt.Errorf("proposal approvals:\n%w", err)
	}

	if rec.HasExpiry() {
		p.ExpiresAt = time.Unix(rec.ExpiresAt(), 0)
	}

	p.Actions = make([]Action, rec.ActionsLength())

	var a types.Action
	for i := range p.Actions {
		if !rec.Actions(&a, i) {
			return nil, fmt.Errorf("read action %d", i)
		}

		if p.Actions[i], err = readAction(&a); err != nil {
			return nil, fmt.Errorf("action %d:\n%w", i, err)
		}
	}

	return p, nil
}

// EncodeAction serializes a single action. Program targets receive their
// invocation in this form.
func EncodeAction(a Action) []byte {
	builder := flatbuffers.NewBuilder(256)
	builder.Finish(buildAction(builder, a))

	return builder.FinishedBytes()
}

// DecodeAction parses an action produced by EncodeAction.
func DecodeAction(data []byte) (out Action, err error) {
	// the generated accessors trust the offsets they read
	defer func() {
		if r := recover(); r != nil {
			out, err = Action{}, fmt.Errorf("%w: action: %v", ErrCorruptRecord, r)
		}
	}()

	return readAction(types.GetRootAsAction(data, 0))
}

// RecordPrefixes returns the key prefixes of every record the engine stores:
// registries, whitelists, proposals and balances.
func RecordPrefixes() [][]byte {
	return [][]byte{
		bytes.Clone(prefixRegistry),
		bytes.Clone(prefixWhitelist),
		bytes.Clone(prefixProposal),
		bytes.Clone(prefixBalance),
	}
}

// ValidateRecord checks that value is a well-formed record stored under key:
// it decodes, and its key is the one the engine would store it under.
func ValidateRecord(key, value []byte) error {
	var want []byte

	switch {
	case bytes.HasPrefix(key, prefixRegistry):
		r, err := decodeRegistry(value)
		if err != nil {
			return corrupt(err)
		}
		if err := r.checkInvariants(); err != nil {
			return corrupt(err)
		}
		want = addressKey(prefixRegistry, r.Address)

	case bytes.HasPrefix(key, prefixWhitelist):
		w, err := decodeWhitelist(value)
		if err != nil {
			return corrupt(err)
		}
		want = whitelistKey(w.Registry)

	case bytes.HasPrefix(key, prefixProposal):
		p, err := decodeProposal(value)
		if err != nil {
			return corrupt(err)
		}
		want = proposalKey(p.Registry, p.ID)

	case bytes.HasPrefix(key, prefixBalance):
		if len(value) != 8 {
			return fmt.Errorf("%w: balance of %d bytes", ErrCorruptRecord, len(value))
		}
		if len(key) != len(prefixBalance)+len(Address{}) {
			return fmt.Errorf("%w: balance key %x", ErrCorruptRecord, key)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown key %x", ErrCorruptRecord, key)
	}

	if !bytes.Equal(key, want) {
		return fmt.Errorf("%w: record stored under %x, expected %x", ErrCorruptRecord, key, want)
	}

	return nil
}

// buildAction writes an Action table and returns its offset.
// Must run before the parent table is started.
func buildAction(builder *flatbuffers.Builder, a Action) flatbuffers.UOffsetT {
	refOffsets := make([]flatbuffers.UOffsetT, len(a.Refs))
	for i, ref := range a.Refs {
		keyVec := builder.CreateByteVector(ref.Key[:])

		types.AccountRefStart(builder)
		types.AccountRefAddKey(builder, keyVec)
		types.AccountRefAddIsAuthority(builder, ref.IsAuthority)
		types.AccountRefAddIsMutable(builder, ref.IsMutable)
		refOffsets[i] = types.AccountRefEnd(builder)
	}

	types.ActionStartRefsVector(builder, len(refOffsets))
	for i := len(refOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(refOffsets[i])
	}
	refsVec := builder.EndVector(len(refOffsets))

	targetVec := builder.CreateByteVector(a.Target[:])
	payloadVec := builder.CreateByteVector(a.Payload)

	types.ActionStart(builder)
	types.ActionAddTarget(builder, targetVec)
	types.ActionAddRefs(builder, refsVec)
	types.ActionAddPayload(builder, payloadVec)

	return types.ActionEnd(builder)
}

// readAction copies an Action table out of its buffer.
func readAction(rec *types.Action) (Action, error) {
	target, err := toAddress(rec.TargetBytes())
	if err != nil {
		return Action{}, fmt.Errorf("target:\n%w", err)
	}

	a := Action{
		Target: target,
		Refs:   make([]AccountRef, rec.RefsLength()),
	}

	// Copy the payload: the record buffer may be reused by the caller
	if payload := rec.PayloadBytes(); len(payload) > 0 {
		a.Payload = make([]byte, len(payload))
		copy(a.Payload, payload)
	}

	var ref types.AccountRef
	for i := range a.Refs {
		if !rec.Refs(&ref, i) {
			return Action{}, fmt.Errorf("read ref %d", i)
		}

		key, err := toAddress(ref.KeyBytes())
		if err != nil {
			return Action{}, fmt.Errorf("ref %d:\n%w", i, err)
		}

		a.Refs[i] = AccountRef{
			Key:         key,
			IsAuthority: ref.IsAuthority(),
			IsMutable:   ref.IsMutable(),
		}
	}

	return a, nil
}

// corrupt marks err as a corrupt record.
func corrupt(err error) error {
	if errors.Is(err, ErrCorruptRecord) {
		return err
	}

	return fmt.Errorf("%w:\n%w", ErrCorruptRecord, err)
}

// joinAddresses concatenates addresses into one byte slice.
func joinAddresses(addrs []Address) []byte {
	buf := make([]byte, 0, 32*len(addrs))
	for _, a := range addrs {
		buf = append(buf, a[:]...)
	}

	return buf
}

// splitAddresses is the inverse of joinAddresses.
func splitAddresses(data []byte) ([]Address, error) {
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("address list length %d is not a multiple of 32", len(data))
	}

	addrs := make([]Address, len(data)/32)
	for i := range addrs {
		copy(addrs[i][:], data[i*32:(i+1)*32])
	}

	return addrs, nil
}

// toAddress copies a 32-byte vector into an Address.
func toAddress(b []byte) (Address, error) {
	var a Address
	if len(b) != len(a) {
		return a, fmt.Errorf("invalid address length: %d", len(b))
	}

	copy(a[:], b)

	return a, nil
}
