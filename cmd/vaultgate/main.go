package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"

	"VaultGate/internal/logger"
	"VaultGate/internal/metrics"
	"VaultGate/internal/multisig"
	"VaultGate/internal/storage"
	"VaultGate/internal/wasmhost"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}

		if kind := multisig.Kind(err); kind != "Internal" {
			fmt.Fprintf(os.Stderr, "error [%s]: %v\n", kind, err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Init(level)

	if len(cfg.Args) == 0 {
		return fmt.Errorf("missing command, run with -h for usage")
	}

	cfg.PrivateKey, err = loadOrGenerateKey(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load key:\n%w", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return app.dispatch(ctx, cfg.Args)
}

// app wires the engine to its storage, program pool and metrics.
type app struct {
	cfg      *Config
	db       *storage.Storage
	pool     *wasmhost.Pool
	registry *prometheus.Registry
	engine   *multisig.Engine
	caller   multisig.Address
	out      io.Writer
}

// newApp opens the ledger and builds the engine.
func newApp(cfg *Config) (*app, error) {
	db, err := storage.New(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("open storage:\n%w", err)
	}

	pool := wasmhost.New()

	for name, path := range cfg.Programs {
		code, err := os.ReadFile(path)
		if err != nil {
			pool.Close()
			db.Close()
			return nil, fmt.Errorf("read program %s:\n%w", name, err)
		}

		id := [32]byte(multisig.ProgramID(name))
		if _, err := pool.Load(code, &id); err != nil {
			pool.Close()
			db.Close()
			return nil, fmt.Errorf("load program %s:\n%w", name, err)
		}

		logger.Debug("program loaded", "name", name, "id", multisig.Address(id).Short())
	}

	reg := prometheus.NewRegistry()

	engine := multisig.New(db, multisig.Config{
		Events:          logSink{},
		Metrics:         metrics.New(reg),
		Programs:        pool,
		ProgramGasLimit: cfg.ProgramGasLimit,
		ProposalDeposit: cfg.ProposalDeposit,
		StrictQuorum:    cfg.StrictQuorum,
	})

	var caller multisig.Address
	copy(caller[:], cfg.PrivateKey.Public().(ed25519.PublicKey))

	return &app{
		cfg:      cfg,
		db:       db,
		pool:     pool,
		registry: reg,
		engine:   engine,
		caller:   caller,
		out:      os.Stdout,
	}, nil
}

// Close flushes metrics and releases the pool and storage.
func (a *app) Close() {
	if a.cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, a.registry); err != nil {
			logger.Warn("write metrics", "file", a.cfg.MetricsFile, "err", err)
		}
	}

	if err := a.pool.Close(); err != nil {
		logger.Warn("close program pool", "err", err)
	}

	if err := a.db.Close(); err != nil {
		logger.Error("close storage", "err", err)
	}
}

// logSink logs committed events.
type logSink struct{}

// Publish logs ev at info level, scoped to its registry.
func (logSink) Publish(ev multisig.Event) {
	attrs := []any{"id", ev.ID}

	switch ev.Kind {
	case multisig.EventRegistryCreated:
		attrs = append(attrs, "owners", len(ev.Owners), "threshold", ev.Threshold, "nonce", ev.Nonce)
	case multisig.EventProposalCreated:
		attrs = append(attrs, "proposal", ev.ProposalID, "proposer", ev.Subject.Short(), "actions", ev.ActionCount)
	case multisig.EventThresholdChanged:
		attrs = append(attrs, "threshold", ev.Threshold)
	case multisig.EventPauseToggled:
		attrs = append(attrs, "paused", ev.Paused)
	case multisig.EventOwnerAdded, multisig.EventOwnerRemoved,
		multisig.EventWhitelistProgramAdded, multisig.EventWhitelistProgramRemoved:
		attrs = append(attrs, "subject", ev.Subject.Short())
	default:
		attrs = append(attrs, "proposal", ev.ProposalID, "by", ev.Subject.Short())
	}

	logger.With("registry", ev.Registry.Short()).Info(ev.Kind.String(), attrs...)
}
