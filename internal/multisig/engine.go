package multisig

import (
	"context"
	"fmt"
	"sync"
	"time"

	"VaultGate/internal/logger"
	"VaultGate/internal/metrics"
	"VaultGate/internal/storage"
)

const (
	// defaultProgramGasLimit bounds one WASM program invocation.
	defaultProgramGasLimit = 1_000_000
)

// Config holds the engine's collaborators and policy knobs.
// The zero value is usable.
type Config struct {
	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time

	// Events receives every event after its operation commits.
	Events EventSink

	// Metrics records operation outcomes. Nil disables metrics.
	Metrics *metrics.Metrics

	// Programs runs whitelisted WASM targets. Nil means only built-in
	// and registered Go handlers can be dispatched.
	Programs ProgramRunner

	// ProgramGasLimit bounds one program invocation.
	ProgramGasLimit uint64

	// ProposalDeposit is debited from the proposer at creation and returned
	// when the proposal storage is reclaimed.
	ProposalDeposit uint64

	// StrictQuorum counts only approvals of current owners at execution.
	// When false, approvals of owners removed after approving still count.
	StrictQuorum bool
}

// Engine runs the multisig operations against a KV ledger.
// Operations are serialized: each one observes a single consistent state
// and either fully commits or leaves the ledger untouched.
type Engine struct {
	mu       sync.Mutex
	kv       storage.KV
	cfg      Config
	handlers map[Address]Handler
}

// New creates an engine over kv.
func New(kv storage.KV, cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.ProgramGasLimit == 0 {
		cfg.ProgramGasLimit = defaultProgramGasLimit
	}

	return &Engine{
		kv:       kv,
		cfg:      cfg,
		handlers: make(map[Address]Handler),
	}
}

// Register installs a Go handler for a non-core program target.
func (e *Engine) Register(target Address, h Handler) error {
	if IsCoreProgram(target) {
		return fmt.Errorf("cannot replace core program %s", target.Short())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.handlers[target] = h

	return nil
}

// run executes fn in a fresh working set, commits it and publishes its events.
func (e *Engine) run(op string, fn func(tx *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	tx := newTxn(e.kv, e.cfg.Clock())

	err := fn(tx)
	if err == nil {
		if cerr := tx.commit(); cerr != nil {
			err = fmt.Errorf("commit %s:\n%w", op, cerr)
		}
	}

	kind := Kind(err)
	e.cfg.Metrics.ObserveOperation(op, kind, time.Since(start))

	if err != nil {
		logger.Debug("operation rejected", "op", op, "kind", kind, "err", err, logger.Timed(start))
		return err
	}

	logger.Debug("operation committed", "op", op, "writes", len(tx.order), "events", len(tx.events), logger.Timed(start))

	if e.cfg.Events != nil {
		for _, ev := range tx.events {
			e.cfg.Events.Publish(ev)
		}
	}

	return nil
}

// view runs a read-only fn against the current ledger.
func (e *Engine) view(fn func(tx *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return fn(newTxn(e.kv, e.cfg.Clock()))
}

// Invoke dispatches a single action signed only by caller, outside of any
// proposal. This is how account holders move their own balance; governance
// actions never pass, because only an executing proposal signs as a vault.
func (e *Engine) Invoke(ctx context.Context, caller Address, action Action) error {
	return e.run("invoke", func(tx *txn) error {
		inv := &Invocation{ctx: ctx, tx: tx, signers: []Address{caller}}
		return e.dispatch(inv, action)
	})
}

// Credit mints amount into an account. It models the hosting ledger's
// funding primitive and is not reachable from proposals.
func (e *Engine) Credit(account Address, amount uint64) error {
	return e.run("credit", func(tx *txn) error {
		if amount == 0 {
			return ErrInvalidAmount
		}
		return tx.credit(account, amount)
	})
}

// Balance returns the balance of an account.
func (e *Engine) Balance(account Address) (uint64, error) {
	var balance uint64

	err := e.view(func(tx *txn) error {
		var err error
		balance, err = tx.balance(account)
		return err
	})

	return balance, err
}

// Registry returns a registry by address.
func (e *Engine) Registry(addr Address) (*Registry, error) {
	var reg *Registry

	err := e.view(func(tx *txn) error {
		var err error
		reg, err = tx.registry(addr)
		return err
	})

	return reg, err
}

// Whitelist returns the whitelist of a registry.
func (e *Engine) Whitelist(registry Address) (*Whitelist, error) {
	var wl *Whitelist

	err := e.view(func(tx *txn) error {
		var err error
		wl, err = tx.whitelist(registry)
		return err
	})

	return wl, err
}

// Proposal returns proposal id of a registry.
func (e *Engine) Proposal(registry Address, id uint64) (*Proposal, error) {
	var p *Proposal

	err := e.view(func(tx *txn) error {
		var err error
		p, err = tx.proposal(registry, id)
		return err
	})

	return p, err
}

// Proposals returns the stored proposals of a registry in id order.
// Cancelled and closed proposals are gone and are not returned.
func (e *Engine) Proposals(registry Address) ([]*Proposal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prefix := addressKey(prefixProposal, registry)

	var out []*Proposal
	err := e.kv.IteratePrefix(prefix, func(key, value []byte) error {
		p, err := decodeProposal(value)
		if err != nil {
			return fmt.Errorf("decode proposal %x:\n%w", key, err)
		}

		out = append(out, p)

		return nil
	})

	return out, err
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.cfg.Clock()
}
