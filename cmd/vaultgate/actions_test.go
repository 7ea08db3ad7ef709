package main

import (
	"bytes"
	"testing"

	"VaultGate/internal/multisig"
)

func TestParseAction(t *testing.T) {
	registry := multisig.Address{7}
	vault := multisig.VaultAddress(registry)
	to := multisig.Address{9}

	transfer, err := parseAction("transfer:"+to.String()+":15", registry)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	want := multisig.TransferAction(vault, to, 15)
	if transfer.Target != want.Target || !bytes.Equal(transfer.Payload, want.Payload) || transfer.Refs[0] != want.Refs[0] {
		t.Errorf("transfer = %+v, want %+v", transfer, want)
	}

	governance := map[string]multisig.Dispatchable{
		"threshold:2":                       multisig.ChangeThreshold{Threshold: 2},
		"pause":                             multisig.SetPause{Paused: true},
		"resume":                            multisig.SetPause{Paused: false},
		"add-owner:" + to.String():          multisig.AddOwner{Owner: to},
		"remove-owner:" + to.String():       multisig.RemoveOwner{Owner: to},
		"whitelist-add:swap":                multisig.WhitelistAdd{Program: multisig.ProgramID("swap")},
		"whitelist-remove:0x" + to.String(): multisig.WhitelistRemove{Program: to},
		"whitelist-add:" + to.String():      multisig.WhitelistAdd{Program: multisig.ProgramID(to.String())},
	}

	for arg, d := range governance {
		a, err := parseAction(arg, registry)
		if err != nil {
			t.Errorf("%s: %v", arg, err)
			continue
		}

		got, err := multisig.DecodeGovernance(a.Payload)
		if err != nil || got != d {
			t.Errorf("%s decoded to %+v, %v", arg, got, err)
		}
		if a.Refs[1].Key != vault || !a.Refs[1].IsAuthority {
			t.Errorf("%s: vault ref missing", arg)
		}
	}
}

func TestParseActionCall(t *testing.T) {
	ref := multisig.Address{3}

	a, err := parseAction("call:swap:0a0b:"+ref.String(), multisig.Address{})
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	if a.Target != multisig.ProgramID("swap") || !bytes.Equal(a.Payload, []byte{0x0a, 0x0b}) {
		t.Errorf("call = %+v", a)
	}
	if len(a.Refs) != 1 || a.Refs[0].Key != ref || a.Refs[0].IsAuthority {
		t.Errorf("call refs = %+v", a.Refs)
	}
}

func TestParseActionErrors(t *testing.T) {
	args := []string{
		"",
		"transfer:abc:1",
		"transfer:" + multisig.Address{}.String(),
		"threshold:300",
		"pause:now",
		"call:swap:zz",
		"call:0x1234:00",
		"whitelist-add:0xnothex",
		"whitelist-add:",
		"launch",
	}

	for _, arg := range args {
		if _, err := parseAction(arg, multisig.Address{}); err == nil {
			t.Errorf("%q: expected error", arg)
		}
	}
}

func TestParseAddresses(t *testing.T) {
	self := multisig.Address{1}
	other := multisig.Address{2}

	got, err := parseAddresses("self, "+other.String()+",", self)
	if err != nil {
		t.Fatalf("parseAddresses: %v", err)
	}
	if len(got) != 2 || got[0] != self || got[1] != other {
		t.Errorf("addresses = %v", got)
	}

	if _, err := parseAddresses("nope", self); err == nil {
		t.Error("expected parse error")
	}
}
