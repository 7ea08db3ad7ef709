package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"VaultGate/internal/multisig"
)

// parseAction builds a proposal action from a command-line arg.
// Transfers move funds out of the registry's vault.
//
//	transfer:<to>:<amount>
//	add-owner:<address>      remove-owner:<address>
//	threshold:<n>            pause    resume
//	whitelist-add:<program>  whitelist-remove:<program>
//	call:<program>:<hex payload>[:<address>...]
//
// Programs are named ("swap") or given as a raw id with a 0x prefix.
func parseAction(arg string, registry multisig.Address) (multisig.Action, error) {
	parts := strings.Split(arg, ":")
	kind, args := parts[0], parts[1:]

	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("action %q: want %d arguments, got %d", kind, n, len(args))
		}
		return nil
	}

	switch kind {
	case "transfer":
		if err := need(2); err != nil {
			return multisig.Action{}, err
		}
		to, err := multisig.ParseAddress(args[0])
		if err != nil {
			return multisig.Action{}, err
		}
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return multisig.Action{}, fmt.Errorf("transfer amount:\n%w", err)
		}
		return multisig.TransferAction(multisig.VaultAddress(registry), to, amount), nil

	case "add-owner", "remove-owner":
		if err := need(1); err != nil {
			return multisig.Action{}, err
		}
		owner, err := multisig.ParseAddress(args[0])
		if err != nil {
			return multisig.Action{}, err
		}
		if kind == "add-owner" {
			return multisig.GovernanceAction(registry, multisig.AddOwner{Owner: owner}), nil
		}
		return multisig.GovernanceAction(registry, multisig.RemoveOwner{Owner: owner}), nil

	case "threshold":
		if err := need(1); err != nil {
			return multisig.Action{}, err
		}
		n, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return multisig.Action{}, fmt.Errorf("threshold:\n%w", err)
		}
		return multisig.GovernanceAction(registry, multisig.ChangeThreshold{Threshold: uint8(n)}), nil

	case "pause", "resume":
		if err := need(0); err != nil {
			return multisig.Action{}, err
		}
		return multisig.GovernanceAction(registry, multisig.SetPause{Paused: kind == "pause"}), nil

	case "whitelist-add", "whitelist-remove":
		if err := need(1); err != nil {
			return multisig.Action{}, err
		}
		program, err := parseProgram(args[0])
		if err != nil {
			return multisig.Action{}, err
		}
		if kind == "whitelist-add" {
			return multisig.GovernanceAction(registry, multisig.WhitelistAdd{Program: program}), nil
		}
		return multisig.GovernanceAction(registry, multisig.WhitelistRemove{Program: program}), nil

	case "call":
		if len(args) < 2 {
			return multisig.Action{}, fmt.Errorf("action call: want program and payload")
		}
		payload, err := hex.DecodeString(args[1])
		if err != nil {
			return multisig.Action{}, fmt.Errorf("call payload:\n%w", err)
		}
		program, err := parseProgram(args[0])
		if err != nil {
			return multisig.Action{}, err
		}
		action := multisig.Action{Target: program, Payload: payload}
		for _, s := range args[2:] {
			ref, err := multisig.ParseAddress(s)
			if err != nil {
				return multisig.Action{}, err
			}
			action.Refs = append(action.Refs, multisig.AccountRef{Key: ref, IsMutable: true})
		}
		return action, nil
	}

	return multisig.Action{}, fmt.Errorf("unknown action %q", kind)
}

// parseProgram reads a 0x-prefixed program id, or derives the id of a
// named program.
func parseProgram(s string) (multisig.Address, error) {
	if raw, ok := strings.CutPrefix(s, "0x"); ok {
		id, err := multisig.ParseAddress(raw)
		if err != nil {
			return multisig.Address{}, fmt.Errorf("program id:\n%w", err)
		}
		return id, nil
	}

	if s == "" {
		return multisig.Address{}, fmt.Errorf("empty program name")
	}

	return multisig.ProgramID(s), nil
}

// parseAddresses parses a comma-separated address list.
// The word "self" stands for the caller.
func parseAddresses(s string, self multisig.Address) ([]multisig.Address, error) {
	var out []multisig.Address

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if part == "self" {
			out = append(out, self)
			continue
		}

		a, err := multisig.ParseAddress(part)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	return out, nil
}
