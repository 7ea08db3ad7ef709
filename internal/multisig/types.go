package multisig

import (
	"bytes"
	"slices"
	"time"
)

const (
	// MaxOwners is the maximum number of owners of a registry.
	MaxOwners = 10

	// MaxActions is the maximum number of actions in one proposal.
	MaxActions = 8

	// MaxRefs is the maximum number of account refs in one action.
	MaxRefs = 12

	// MaxPayload is the maximum payload length of one action, in bytes.
	MaxPayload = 256

	// MaxWhitelist is the maximum number of whitelisted programs.
	MaxWhitelist = 20
)

// AccountRef is an account an action touches.
type AccountRef struct {
	Key         Address // Key is the account identity
	IsAuthority bool    // IsAuthority asserts the account signs the action
	IsMutable   bool    // IsMutable marks the account as written by the action
}

// Action is one unit of work in a proposal: a program target, its accounts and an opaque payload.
type Action struct {
	Target  Address      // Target is the program that handles the action
	Refs    []AccountRef // Refs are passed to the program unchanged
	Payload []byte       // Payload is passed to the program unchanged
}

// clone returns a deep copy of the action.
func (a Action) clone() Action {
	return Action{
		Target:  a.Target,
		Refs:    slices.Clone(a.Refs),
		Payload: bytes.Clone(a.Payload),
	}
}

// Registry is the shared governance record of one multisig.
type Registry struct {
	Address        Address   // Address is derived from Creator and Nonce
	Creator        Address   // Creator paid for the registry
	Owners         []Address // Owners vote on proposals, insertion order
	Threshold      uint8     // Threshold is the number of approvals needed to execute
	NextProposalID uint64    // NextProposalID is assigned to the next proposal
	Paused         bool      // Paused blocks the proposal lifecycle
	Nonce          uint64    // Nonce fixes the registry address
}

// Vault returns the registry's vault authority.
func (r *Registry) Vault() Address {
	return VaultAddress(r.Address)
}

// IsOwner reports whether a is a current owner.
func (r *Registry) IsOwner(a Address) bool {
	return slices.Contains(r.Owners, a)
}

// clone returns a deep copy of the registry.
func (r *Registry) clone() *Registry {
	c := *r
	c.Owners = slices.Clone(r.Owners)

	return &c
}

// Whitelist is the allow-list of programs a registry's proposals may target.
type Whitelist struct {
	Registry Address   // Registry owns this whitelist
	Targets  []Address // Targets in insertion order; the first two are core
}

// Contains reports whether target is whitelisted.
func (w *Whitelist) Contains(target Address) bool {
	return slices.Contains(w.Targets, target)
}

// IsCoreProgram reports whether target can never leave a whitelist.
func IsCoreProgram(target Address) bool {
	return target == TransferTarget || target == GovernanceTarget
}

// Status is the lifecycle state of a stored proposal.
type Status uint8

const (
	// StatusPending is a proposal waiting for approvals or execution.
	StatusPending Status = iota
	// StatusExecuted is a proposal whose actions were dispatched.
	StatusExecuted
	// StatusExpired is a pending proposal past its expiry.
	StatusExpired
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExecuted:
		return "executed"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Proposal is a queued action bundle and its approvals.
type Proposal struct {
	Address   Address   // Address is derived from Registry and ID
	Registry  Address   // Registry the proposal belongs to
	ID        uint64    // ID is unique within the registry
	Proposer  Address   // Proposer created the proposal
	Actions   []Action  // Actions are dispatched in order on execution
	Approvals []Address // Approvals in approval order, no duplicates
	Executed  bool      // Executed is set once, on successful execution
	ExpiresAt time.Time // ExpiresAt is optional; zero means no expiry
	Deposit   uint64    // Deposit is returned when the proposal storage is reclaimed
}

// HasApproved reports whether owner approved the proposal.
func (p *Proposal) HasApproved(owner Address) bool {
	return slices.Contains(p.Approvals, owner)
}

// IsExpired reports whether the proposal expired at now.
// Expiry has second granularity: a proposal is still live during its expiry second.
func (p *Proposal) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.Unix() > p.ExpiresAt.Unix()
}

// Status returns the lifecycle state at now.
func (p *Proposal) Status(now time.Time) Status {
	switch {
	case p.Executed:
		return StatusExecuted
	case p.IsExpired(now):
		return StatusExpired
	default:
		return StatusPending
	}
}

// approvalsFrom counts the approvals given by current owners of r.
func (p *Proposal) approvalsFrom(r *Registry) int {
	n := 0
	for _, a := range p.Approvals {
		if r.IsOwner(a) {
			n++
		}
	}

	return n
}

// isResume reports whether the proposal only un-pauses its registry.
// Such proposals stay usable while the registry is paused.
func (p *Proposal) isResume() bool {
	return isResumeBundle(p.Actions)
}

// isResumeBundle reports whether actions is exactly one governance un-pause.
func isResumeBundle(actions []Action) bool {
	if len(actions) != 1 || actions[0].Target != GovernanceTarget {
		return false
	}

	return bytes.Equal(actions[0].Payload, SetPause{Paused: false}.Encode())
}
