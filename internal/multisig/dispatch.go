package multisig

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Handler runs the actions sent to one program target.
type Handler interface {
	Handle(inv *Invocation, refs []AccountRef, payload []byte) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(inv *Invocation, refs []AccountRef, payload []byte) error

// Handle calls f.
func (f HandlerFunc) Handle(inv *Invocation, refs []AccountRef, payload []byte) error {
	return f(inv, refs, payload)
}

// Dispatchable is a decoded instruction of a built-in program.
// Transfer and every governance instruction implement it.
type Dispatchable interface {
	// Target is the program the instruction is sent to.
	Target() Address
	// Encode returns the instruction payload.
	Encode() []byte
	// Apply runs the instruction against the invocation's working set.
	Apply(inv *Invocation, refs []AccountRef) error
}

// ProgramRunner executes WASM program targets.
type ProgramRunner interface {
	Has(id [32]byte) bool
	Execute(ctx context.Context, id [32]byte, input []byte, gasLimit uint64) ([]byte, uint64, error)
}

// Invocation is the context a handler runs in: the signers granted to the
// dispatch and the operation's working set.
type Invocation struct {
	ctx     context.Context
	tx      *txn
	signers []Address
}

// Context returns the context of the operation.
func (inv *Invocation) Context() context.Context {
	return inv.ctx
}

// Now returns the operation time.
func (inv *Invocation) Now() time.Time {
	return inv.tx.now
}

// IsSigner reports whether a signs this invocation.
func (inv *Invocation) IsSigner(a Address) bool {
	return slices.Contains(inv.signers, a)
}

// Balance reads an account balance through the working set.
func (inv *Invocation) Balance(account Address) (uint64, error) {
	return inv.tx.balance(account)
}

// dispatch routes one action to its program. Every ref that claims authority
// must be a signer of the invocation; this is the only place authority is granted.
func (e *Engine) dispatch(inv *Invocation, a Action) error {
	for _, ref := range a.Refs {
		if ref.IsAuthority && !inv.IsSigner(ref.Key) {
			return fmt.Errorf("%w: %s", ErrMissingSignature, ref.Key.Short())
		}
	}

	h := e.handler(a.Target)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, a.Target.Short())
	}

	return h.Handle(inv, a.Refs, a.Payload)
}

// handler resolves the handler of a target: built-ins first, then registered
// Go handlers, then loaded WASM programs.
func (e *Engine) handler(target Address) Handler {
	switch target {
	case TransferTarget:
		return HandlerFunc(handleTransfer)
	case GovernanceTarget:
		return HandlerFunc(handleGovernance)
	}

	if h, ok := e.handlers[target]; ok {
		return h
	}

	if e.cfg.Programs != nil && e.cfg.Programs.Has(target) {
		return &programHandler{id: target, runner: e.cfg.Programs, gasLimit: e.cfg.ProgramGasLimit}
	}

	return nil
}

// programHandler forwards an action to a WASM program.
// The program receives the EncodeAction form of the action and reports
// failure by writing a non-zero first output byte or by trapping.
type programHandler struct {
	id       Address
	runner   ProgramRunner
	gasLimit uint64
}

// Handle runs the program.
func (h *programHandler) Handle(inv *Invocation, refs []AccountRef, payload []byte) error {
	input := EncodeAction(Action{Target: h.id, Refs: refs, Payload: payload})

	output, _, err := h.runner.Execute(inv.Context(), h.id, input, h.gasLimit)
	if err != nil {
		return fmt.Errorf("%w: %s:\n%w", ErrProgramFailed, h.id.Short(), err)
	}

	if len(output) > 0 && output[0] != 0 {
		return fmt.Errorf("%w: %s exited with code %d", ErrProgramFailed, h.id.Short(), output[0])
	}

	return nil
}

// NewAction builds an action carrying d, with the given refs.
func NewAction(d Dispatchable, refs ...AccountRef) Action {
	return Action{
		Target:  d.Target(),
		Refs:    refs,
		Payload: d.Encode(),
	}
}
