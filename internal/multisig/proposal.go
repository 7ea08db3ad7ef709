package multisig

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// ProposalRequest describes a proposal to create.
type ProposalRequest struct {
	Actions     []Action  // Actions to dispatch on execution, in order
	ExpiresAt   time.Time // ExpiresAt is optional; zero means the proposal never expires
	AutoApprove bool      // AutoApprove records the proposer's approval at creation
}

// Propose queues an action bundle on a registry. The proposer must be an
// owner, and every action must target a whitelisted program and claim no
// authority other than the registry's vault.
func (e *Engine) Propose(registry, proposer Address, req ProposalRequest) (*Proposal, error) {
	var created *Proposal

	err := e.run("propose", func(tx *txn) error {
		reg, err := tx.registry(registry)
		if err != nil {
			return err
		}

		if !reg.IsOwner(proposer) {
			return fmt.Errorf("%w: %s", ErrNotAnOwner, proposer.Short())
		}

		if reg.Paused && !isResumeBundle(req.Actions) {
			return ErrPaused
		}

		if len(req.Actions) == 0 || len(req.Actions) > MaxActions {
			return fmt.Errorf("%w: %d, max %d", ErrTooManyInstructions, len(req.Actions), MaxActions)
		}

		if !req.ExpiresAt.IsZero() && req.ExpiresAt.Unix() <= tx.now.Unix() {
			return fmt.Errorf("%w: %s", ErrInvalidExpiration, req.ExpiresAt.Format(time.RFC3339))
		}

		wl, err := tx.whitelist(registry)
		if err != nil {
			return err
		}

		vault := reg.Vault()
		for i, a := range req.Actions {
			if err := validateAction(a, wl, vault); err != nil {
				return fmt.Errorf("action %d:\n%w", i, err)
			}
		}

		if reg.NextProposalID == math.MaxUint64 {
			return fmt.Errorf("%w: proposal id counter", ErrOverflow)
		}

		p := &Proposal{
			Address:   ProposalAddress(registry, reg.NextProposalID),
			Registry:  registry,
			ID:        reg.NextProposalID,
			Proposer:  proposer,
			Actions:   make([]Action, len(req.Actions)),
			Approvals: []Address{},
			ExpiresAt: req.ExpiresAt,
			Deposit:   e.cfg.ProposalDeposit,
		}

		for i, a := range req.Actions {
			p.Actions[i] = a.clone()
		}

		if req.AutoApprove {
			p.Approvals = append(p.Approvals, proposer)
		}

		if p.Deposit > 0 {
			if err := tx.debit(proposer, p.Deposit); err != nil {
				return fmt.Errorf("proposal deposit:\n%w", err)
			}
		}

		reg.NextProposalID++
		tx.putRegistry(reg)
		tx.putProposal(p)

		tx.emit(Event{
			Kind:        EventProposalCreated,
			Registry:    registry,
			Proposal:    p.Address,
			ProposalID:  p.ID,
			Subject:     proposer,
			ActionCount: len(p.Actions),
		})

		created = p

		return nil
	})

	return created, err
}

// Approve records owner's approval of a pending proposal.
func (e *Engine) Approve(registry Address, id uint64, owner Address) error {
	return e.run("approve", func(tx *txn) error {
		reg, p, err := loadPending(tx, registry, id, owner)
		if err != nil {
			return err
		}

		if reg.Paused && !p.isResume() {
			return ErrPaused
		}

		if err := checkLive(tx, p); err != nil {
			return err
		}

		if p.HasApproved(owner) {
			return fmt.Errorf("%w: %s", ErrAlreadyApproved, owner.Short())
		}

		p.Approvals = append(p.Approvals, owner)
		tx.putProposal(p)
		tx.emit(proposalEvent(EventApprovalAdded, p, owner))

		return nil
	})
}

// Revoke withdraws owner's approval of a pending proposal.
// Unlike approval, revocation is blocked by pause even for resume proposals.
func (e *Engine) Revoke(registry Address, id uint64, owner Address) error {
	return e.run("revoke", func(tx *txn) error {
		reg, p, err := loadPending(tx, registry, id, owner)
		if err != nil {
			return err
		}

		if reg.Paused {
			return ErrPaused
		}

		if err := checkLive(tx, p); err != nil {
			return err
		}

		idx := slices.Index(p.Approvals, owner)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNotApproved, owner.Short())
		}

		p.Approvals = slices.Delete(p.Approvals, idx, idx+1)
		tx.putProposal(p)
		tx.emit(proposalEvent(EventApprovalRevoked, p, owner))

		return nil
	})
}

// CancelProposal deletes a proposal nobody has approved yet.
// Only the proposer may cancel; the deposit goes back to the proposer.
func (e *Engine) CancelProposal(registry Address, id uint64, caller Address) error {
	return e.run("cancel", func(tx *txn) error {
		p, err := tx.proposal(registry, id)
		if err != nil {
			return err
		}

		if caller != p.Proposer {
			return fmt.Errorf("%w: %s", ErrNotProposer, caller.Short())
		}

		if p.Executed {
			return ErrAlreadyExecuted
		}

		if len(p.Approvals) > 0 {
			return fmt.Errorf("%w: %d approvals", ErrCannotCancelApprovedProposal, len(p.Approvals))
		}

		if err := reclaim(tx, p, p.Proposer); err != nil {
			return err
		}

		tx.emit(proposalEvent(EventProposalCancelled, p, caller))

		return nil
	})
}

// CloseTransaction deletes an executed or expired proposal and sends its
// deposit to recipient. The caller must be an owner or the proposer.
func (e *Engine) CloseTransaction(registry Address, id uint64, caller, recipient Address) error {
	return e.run("close", func(tx *txn) error {
		reg, err := tx.registry(registry)
		if err != nil {
			return err
		}

		p, err := tx.proposal(registry, id)
		if err != nil {
			return err
		}

		if !reg.IsOwner(caller) && caller != p.Proposer {
			return fmt.Errorf("%w: %s", ErrClosePermissionDenied, caller.Short())
		}

		if !p.Executed && !p.IsExpired(tx.now) {
			return ErrTransactionNotClosable
		}

		if err := reclaim(tx, p, recipient); err != nil {
			return err
		}

		tx.emit(proposalEvent(EventTransactionClosed, p, recipient))

		return nil
	})
}

// validateAction checks one proposed action against the whitelist and bounds.
func validateAction(a Action, wl *Whitelist, vault Address) error {
	if !wl.Contains(a.Target) {
		return fmt.Errorf("%w: %s", ErrProgramNotAllowed, a.Target.Short())
	}

	for _, ref := range a.Refs {
		if ref.IsAuthority && ref.Key != vault {
			return fmt.Errorf("%w: %s", ErrSignerNotAllowed, ref.Key.Short())
		}
	}

	if len(a.Refs) > MaxRefs {
		return fmt.Errorf("%w: %d, max %d", ErrTooManyAccounts, len(a.Refs), MaxRefs)
	}

	if len(a.Payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes, max %d", ErrInstructionDataTooLarge, len(a.Payload), MaxPayload)
	}

	return nil
}

// loadPending loads the registry and proposal for an owner vote.
func loadPending(tx *txn, registry Address, id uint64, owner Address) (*Registry, *Proposal, error) {
	reg, err := tx.registry(registry)
	if err != nil {
		return nil, nil, err
	}

	if !reg.IsOwner(owner) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotAnOwner, owner.Short())
	}

	p, err := tx.proposal(registry, id)
	if err != nil {
		return nil, nil, err
	}

	return reg, p, nil
}

// checkLive rejects executed and expired proposals.
func checkLive(tx *txn, p *Proposal) error {
	if p.Executed {
		return ErrAlreadyExecuted
	}

	if p.IsExpired(tx.now) {
		return fmt.Errorf("%w: at %s", ErrExpired, p.ExpiresAt.Format(time.RFC3339))
	}

	return nil
}

// reclaim deletes the proposal record and pays its deposit to recipient.
func reclaim(tx *txn, p *Proposal, recipient Address) error {
	tx.deleteProposal(p)

	if p.Deposit == 0 {
		return nil
	}

	return tx.credit(recipient, p.Deposit)
}

// proposalEvent builds an event about p.
func proposalEvent(kind EventKind, p *Proposal, subject Address) Event {
	return Event{
		Kind:       kind,
		Registry:   p.Registry,
		Proposal:   p.Address,
		ProposalID: p.ID,
		Subject:    subject,
	}
}
