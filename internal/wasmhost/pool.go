package wasmhost

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/zeebo/blake3"
)

var (
	// ErrModuleNotFound is returned when a program ID is not loaded.
	ErrModuleNotFound = errors.New("module not found")

	// ErrGasExhausted is returned when execution runs out of gas.
	ErrGasExhausted = errors.New("gas exhausted")

	// ErrNoEntrypoint is returned when a module does not export execute.
	ErrNoEntrypoint = errors.New("execute function not exported")

	// ErrMemoryAccess is returned when a host call points outside program memory.
	ErrMemoryAccess = errors.New("host call out of memory bounds")
)

// Pool keeps compiled WASM programs keyed by program ID.
// Programs are compiled once and instantiated per execution.
type Pool struct {
	runtime wazero.Runtime                     // runtime is the wazero runtime instance
	modules map[[32]byte]wazero.CompiledModule // modules maps program ID to compiled module
	mu      sync.RWMutex                       // mu protects modules
	execMu  sync.Mutex                         // execMu serializes executions sharing the "env" host module name
}

// New creates a pool. Executions abort when their context is done.
func New() *Pool {
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)

	return &Pool{
		runtime: wazero.NewRuntimeWithConfig(context.Background(), cfg),
		modules: make(map[[32]byte]wazero.CompiledModule),
	}
}

// Load compiles and stores a WASM module.
// If customID is nil, the blake3 hash of wasmBytes is the program ID.
// Returns the program ID used.
func (p *Pool) Load(wasmBytes []byte, customID *[32]byte) ([32]byte, error) {
	var id [32]byte
	if customID != nil {
		id = *customID
	} else {
		id = blake3.Sum256(wasmBytes)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.modules[id]; exists {
		return id, nil
	}

	compiled, err := p.runtime.CompileModule(context.Background(), wasmBytes)
	if err != nil {
		return [32]byte{}, fmt.Errorf("compile module:\n%w", err)
	}

	p.modules[id] = compiled

	return id, nil
}

// Has reports whether a program is loaded.
func (p *Pool) Has(id [32]byte) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, exists := p.modules[id]

	return exists
}

// Execute runs a program with the given input and gas limit.
// Returns the output bytes and the amount of gas consumed.
func (p *Pool) Execute(ctx context.Context, id [32]byte, input []byte, gasLimit uint64) ([]byte, uint64, error) {
	p.mu.RLock()
	compiled, exists := p.modules[id]
	p.mu.RUnlock()

	if !exists {
		return nil, 0, ErrModuleNotFound
	}

	p.execMu.Lock()
	defer p.execMu.Unlock()

	return p.executeModule(ctx, compiled, input, gasLimit)
}

// executeModule instantiates and runs a compiled module.
func (p *Pool) executeModule(ctx context.Context, compiled wazero.CompiledModule, input []byte, gasLimit uint64) ([]byte, uint64, error) {
	execCtx := &execContext{
		input:    input,
		gasLimit: gasLimit,
	}

	hostModule, err := p.buildHostModule(ctx, execCtx)
	if err != nil {
		return nil, 0, fmt.Errorf("build host module:\n%w", err)
	}
	defer hostModule.Close(ctx)

	instance, err := p.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithStartFunctions())
	if err != nil {
		return nil, execCtx.gasUsed, fmt.Errorf("instantiate module:\n%w", err)
	}
	defer instance.Close(ctx)

	execCtx.memory = instance.Memory()

	return callExecute(ctx, instance, execCtx)
}

// callExecute calls the execute export of the instance.
func callExecute(ctx context.Context, instance api.Module, execCtx *execContext) ([]byte, uint64, error) {
	executeFn := instance.ExportedFunction("execute")
	if executeFn == nil {
		return nil, execCtx.gasUsed, ErrNoEntrypoint
	}

	if _, err := executeFn.Call(ctx); err != nil {
		if execCtx.abort != nil {
			return nil, execCtx.gasUsed, execCtx.abort
		}

		return nil, execCtx.gasUsed, fmt.Errorf("execute:\n%w", err)
	}

	return execCtx.output, execCtx.gasUsed, nil
}

// Unload removes a program from the pool.
func (p *Pool) Unload(id [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if compiled, exists := p.modules[id]; exists {
		compiled.Close(context.Background())
		delete(p.modules, id)
	}
}

// Close releases all resources held by the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, compiled := range p.modules {
		compiled.Close(context.Background())
		delete(p.modules, id)
	}

	return p.runtime.Close(context.Background())
}
