package multisig

import (
	"fmt"
	"slices"
)

// CreateRegistry creates a registry owned by owners, its vault and its
// whitelist seeded with the two core programs. The registry address is
// derived from creator and nonce.
func (e *Engine) CreateRegistry(creator Address, owners []Address, threshold uint8, nonce uint64) (*Registry, error) {
	reg := &Registry{
		Address:   RegistryAddress(creator, nonce),
		Creator:   creator,
		Owners:    slices.Clone(owners),
		Threshold: threshold,
		Nonce:     nonce,
	}

	err := e.run("create_registry", func(tx *txn) error {
		if err := validateOwners(owners, threshold); err != nil {
			return err
		}

		exists, err := tx.registryExists(reg.Address)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrRegistryExists, reg.Address.Short())
		}

		tx.putRegistry(reg)
		tx.putWhitelist(&Whitelist{
			Registry: reg.Address,
			Targets:  []Address{TransferTarget, GovernanceTarget},
		})

		tx.emit(Event{
			Kind:      EventRegistryCreated,
			Registry:  reg.Address,
			Subject:   creator,
			Owners:    slices.Clone(reg.Owners),
			Threshold: threshold,
			Nonce:     nonce,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return reg.clone(), nil
}

// Vault returns the vault authority of a registry, checking that it exists.
func (e *Engine) Vault(registry Address) (Address, error) {
	reg, err := e.Registry(registry)
	if err != nil {
		return Address{}, err
	}

	return reg.Vault(), nil
}

// validateOwners checks an initial owner set and threshold.
func validateOwners(owners []Address, threshold uint8) error {
	if len(owners) == 0 {
		return ErrInvalidOwners
	}

	if len(owners) > MaxOwners {
		return fmt.Errorf("%w: %d, max %d", ErrTooManyOwners, len(owners), MaxOwners)
	}

	if threshold == 0 || int(threshold) > len(owners) {
		return fmt.Errorf("%w: %d with %d owners", ErrInvalidThreshold, threshold, len(owners))
	}

	seen := make(map[Address]struct{}, len(owners))
	for _, o := range owners {
		if _, dup := seen[o]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateOwners, o.Short())
		}
		seen[o] = struct{}{}
	}

	return nil
}

// checkInvariants reports the first broken registry invariant.
func (r *Registry) checkInvariants() error {
	if err := validateOwners(r.Owners, r.Threshold); err != nil {
		return fmt.Errorf("registry %s:\n%w", r.Address.Short(), err)
	}

	return nil
}
