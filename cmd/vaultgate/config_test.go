package main

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags([]string{"whoami"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	if cfg.DataPath != "./data" || cfg.LogLevel != "info" || cfg.ProgramGasLimit != 1_000_000 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Args) != 1 || cfg.Args[0] != "whoami" {
		t.Errorf("args = %v", cfg.Args)
	}
}

func TestParseFlagsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vaultgate.toml")

	content := `
data = "/var/lib/vaultgate"
log_level = "debug"
proposal_deposit = 25
strict_quorum = true

[programs]
swap = "swap.wasm"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := parseFlags([]string{"-config", path, "-log-level", "warn", "show", "x"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	if cfg.DataPath != "/var/lib/vaultgate" {
		t.Errorf("data = %q", cfg.DataPath)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("explicit flag overridden by file: log level %q", cfg.LogLevel)
	}
	if cfg.ProposalDeposit != 25 || !cfg.StrictQuorum {
		t.Errorf("policy not loaded: %+v", cfg)
	}
	if cfg.Programs["swap"] != "swap.wasm" {
		t.Errorf("programs = %v", cfg.Programs)
	}
	if len(cfg.Args) != 2 {
		t.Errorf("args = %v", cfg.Args)
	}
}

func TestParseFlagsUnknownConfigKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("colour = \"blue\"\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := parseFlags([]string{"-config", path, "whoami"}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestLoadOrGenerateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.key")

	first, err := loadOrGenerateKey(path)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	second, err := loadOrGenerateKey(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !first.Equal(second) {
		t.Error("reloaded key differs")
	}

	if err := os.WriteFile(path, []byte("short"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadOrGenerateKey(path); err == nil {
		t.Error("expected error for truncated key")
	}

	ephemeral, err := loadOrGenerateKey("")
	if err != nil || len(ephemeral) != ed25519.PrivateKeySize {
		t.Errorf("ephemeral key: %v", err)
	}
}

func TestParseExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	got, err := parseExpiry("", now)
	if err != nil || !got.IsZero() {
		t.Errorf("empty expiry = %v, %v", got, err)
	}

	got, err = parseExpiry("90m", now)
	if err != nil || !got.Equal(now.Add(90*time.Minute)) {
		t.Errorf("duration expiry = %v, %v", got, err)
	}

	got, err = parseExpiry("2030-01-02T03:04:05Z", now)
	if err != nil || got.Year() != 2030 {
		t.Errorf("absolute expiry = %v, %v", got, err)
	}

	if _, err := parseExpiry("soon", now); err == nil {
		t.Error("expected error for bad expiry")
	}
}
