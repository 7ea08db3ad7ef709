package multisig

import (
	"context"
	"fmt"
)

// Execute dispatches every action of an approved proposal in order, with the
// registry's vault as the only signer. Either every action succeeds and the
// proposal is marked executed, or nothing changes.
func (e *Engine) Execute(ctx context.Context, registry Address, id uint64) error {
	dispatched := 0

	err := e.run("execute", func(tx *txn) error {
		reg, err := tx.registry(registry)
		if err != nil {
			return err
		}

		p, err := tx.proposal(registry, id)
		if err != nil {
			return err
		}

		if reg.Paused && !p.isResume() {
			return ErrPaused
		}

		if err := checkLive(tx, p); err != nil {
			return err
		}

		approvals := len(p.Approvals)
		if e.cfg.StrictQuorum {
			approvals = p.approvalsFrom(reg)
		}

		if approvals < int(reg.Threshold) {
			return fmt.Errorf("%w: %d of %d", ErrNotEnoughApprovals, approvals, reg.Threshold)
		}

		inv := &Invocation{ctx: ctx, tx: tx, signers: []Address{reg.Vault()}}

		for i, a := range p.Actions {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("action %d:\n%w", i, err)
			}

			if err := e.dispatch(inv, a); err != nil {
				return fmt.Errorf("action %d:\n%w", i, err)
			}
		}

		// governance actions may have rewritten the registry
		after, err := tx.registry(registry)
		if err != nil {
			return err
		}
		if err := after.checkInvariants(); err != nil {
			return err
		}

		p.Executed = true
		tx.putProposal(p)
		tx.emit(proposalEvent(EventTransactionExecuted, p, reg.Vault()))

		dispatched = len(p.Actions)

		return nil
	})
	if err != nil {
		return err
	}

	e.cfg.Metrics.AddDispatchedActions(dispatched)

	return nil
}
