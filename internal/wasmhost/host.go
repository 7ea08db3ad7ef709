package wasmhost

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// execContext holds the state of a single program invocation.
type execContext struct {
	input    []byte     // input is the encoded action handed to the program
	output   []byte     // output is the last buffer passed to write_output
	memory   api.Memory // memory is the program's linear memory
	gasLimit uint64     // gasLimit is the maximum gas allowed
	gasUsed  uint64     // gasUsed tracks consumed gas
	abort    error      // abort is why a host call stopped the program, if one did
}

// buildHostModule creates the "env" module the programs import.
// Every host function aborts the program through fail instead of
// returning a status, so a program cannot ignore a host error.
func (p *Pool) buildHostModule(ctx context.Context, execCtx *execContext) (api.Module, error) {
	return p.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(execCtx.chargeGas).
		Export("gas").
		NewFunctionBuilder().
		WithFunc(execCtx.inputLen).
		Export("input_len").
		NewFunctionBuilder().
		WithFunc(execCtx.readInput).
		Export("read_input").
		NewFunctionBuilder().
		WithFunc(execCtx.writeOutput).
		Export("write_output").
		Instantiate(ctx)
}

// fail records err and unwinds the program; callExecute reports err.
func (c *execContext) fail(err error) {
	c.abort = err
	panic(err)
}

// chargeGas adds cost to the gas used and aborts once the limit is passed.
func (c *execContext) chargeGas(_ context.Context, cost uint32) {
	c.gasUsed += uint64(cost)

	if c.gasUsed > c.gasLimit {
		c.fail(ErrGasExhausted)
	}
}

// inputLen returns the size of the encoded action.
func (c *execContext) inputLen(context.Context) uint32 {
	return uint32(len(c.input))
}

// readInput copies the encoded action into program memory at ptr.
func (c *execContext) readInput(_ context.Context, ptr uint32) {
	if len(c.input) == 0 {
		return
	}

	if c.memory == nil || !c.memory.Write(ptr, c.input) {
		c.fail(fmt.Errorf("%w: read_input of %d bytes at %d", ErrMemoryAccess, len(c.input), ptr))
	}
}

// writeOutput copies length bytes at ptr out of program memory.
func (c *execContext) writeOutput(_ context.Context, ptr, length uint32) {
	if length == 0 {
		c.output = nil
		return
	}

	var data []byte
	ok := false
	if c.memory != nil {
		data, ok = c.memory.Read(ptr, length)
	}
	if !ok {
		c.fail(fmt.Errorf("%w: write_output of %d bytes at %d", ErrMemoryAccess, length, ptr))
	}

	c.output = make([]byte, length)
	copy(c.output, data)
}
