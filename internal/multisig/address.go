package multisig

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Address is a 32-byte identity: an owner key, a derived record address or a program id.
type Address [32]byte

// Derivation domains. Each derived identity hashes its domain tag first,
// so identities of different kinds can never collide.
const (
	domainRegistry  = "vaultgate/registry"
	domainVault     = "vaultgate/vault"
	domainWhitelist = "vaultgate/whitelist"
	domainProposal  = "vaultgate/proposal"
	domainProgram   = "vaultgate/program/"
)

var (
	// TransferTarget is the core program that moves balance between accounts.
	TransferTarget = ProgramID("transfer")

	// GovernanceTarget is the core program that mutates a registry and its whitelist.
	GovernanceTarget = ProgramID("governance")
)

// String returns the hex encoding of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns the first 8 hex characters, for logs.
func (a Address) Short() string {
	return hex.EncodeToString(a[:4])
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// ParseAddress decodes a 64-character hex string.
func ParseAddress(s string) (Address, error) {
	var a Address

	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("decode address %q:\n%w", s, err)
	}

	if len(raw) != len(a) {
		return a, fmt.Errorf("invalid address length: got %d, want %d", len(raw), len(a))
	}

	copy(a[:], raw)

	return a, nil
}

// ProgramID derives the id of a named program.
func ProgramID(name string) Address {
	return derive(domainProgram + name)
}

// RegistryAddress derives the registry address from its creator and nonce.
func RegistryAddress(creator Address, nonce uint64) Address {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], nonce)

	return derive(domainRegistry, creator[:], buf[:])
}

// VaultAddress derives the vault authority of a registry.
func VaultAddress(registry Address) Address {
	return derive(domainVault, registry[:])
}

// WhitelistAddress derives the whitelist address of a registry.
func WhitelistAddress(registry Address) Address {
	return derive(domainWhitelist, registry[:])
}

// ProposalAddress derives the address of proposal id within a registry.
func ProposalAddress(registry Address, id uint64) Address {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], id)

	return derive(domainProposal, registry[:], buf[:])
}

// derive computes blake3(tag || parts...).
func derive(tag string, parts ...[]byte) Address {
	hasher := blake3.New()
	hasher.Write([]byte(tag))

	for _, p := range parts {
		hasher.Write(p)
	}

	var out Address
	hasher.Sum(out[:0])

	return out
}
