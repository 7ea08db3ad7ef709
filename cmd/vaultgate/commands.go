package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"VaultGate/internal/multisig"
	"VaultGate/internal/snapshot"
)

// command is one CLI subcommand.
type command struct {
	name  string
	usage string
	run   func(a *app, ctx context.Context, args []string) error
}

// commands lists the subcommands in usage order.
var commands = []command{
	{"whoami", "print the caller address", (*app).whoami},
	{"create", "[-nonce n] <threshold> <owner,owner,...>  create a registry", (*app).create},
	{"show", "<registry>  print a registry, its vault and whitelist", (*app).show},
	{"propose", "[-expires d] [-approve] <registry> <action>...  queue actions", (*app).propose},
	{"approve", "<registry> <id>  approve a proposal", (*app).approve},
	{"revoke", "<registry> <id>  withdraw an approval", (*app).revoke},
	{"cancel", "<registry> <id>  delete an unapproved proposal", (*app).cancel},
	{"execute", "<registry> <id>  run an approved proposal", (*app).execute},
	{"close", "<registry> <id> [recipient]  delete an executed or expired proposal", (*app).close},
	{"proposals", "<registry>  list stored proposals", (*app).proposals},
	{"credit", "<account> <amount>  mint balance into an account", (*app).credit},
	{"balance", "[account]  print a balance, the caller's by default", (*app).balance},
	{"transfer", "<to> <amount>  move the caller's own balance", (*app).transfer},
	{"snapshot", "<file>  export the ledger", (*app).snapshot},
	{"restore", "<file>  replace the ledger with a snapshot", (*app).restore},
}

// dispatch runs the command named by args[0].
func (a *app) dispatch(ctx context.Context, args []string) error {
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(a, ctx, args[1:])
		}
	}

	return fmt.Errorf("unknown command %q", args[0])
}

// whoami prints the caller address.
func (a *app) whoami(_ context.Context, _ []string) error {
	fmt.Fprintln(a.out, a.caller)
	return nil
}

// create creates a registry with the caller as creator.
func (a *app) create(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	nonce := fs.Uint64("nonce", 0, "nonce distinguishing registries of one creator")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("create: want <threshold> <owners>")
	}

	threshold, err := strconv.ParseUint(fs.Arg(0), 10, 8)
	if err != nil {
		return fmt.Errorf("threshold:\n%w", err)
	}

	owners, err := parseAddresses(fs.Arg(1), a.caller)
	if err != nil {
		return err
	}

	reg, err := a.engine.CreateRegistry(a.caller, owners, uint8(threshold), *nonce)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "registry %s\nvault    %s\n", reg.Address, reg.Vault())

	return nil
}

// show prints a registry.
func (a *app) show(_ context.Context, args []string) error {
	registry, err := a.registryArg(args)
	if err != nil {
		return err
	}

	reg, err := a.engine.Registry(registry)
	if err != nil {
		return err
	}

	wl, err := a.engine.Whitelist(registry)
	if err != nil {
		return err
	}

	vaultBalance, err := a.engine.Balance(reg.Vault())
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "registry   %s\n", reg.Address)
	fmt.Fprintf(a.out, "vault      %s (balance %d)\n", reg.Vault(), vaultBalance)
	fmt.Fprintf(a.out, "threshold  %d of %d\n", reg.Threshold, len(reg.Owners))
	fmt.Fprintf(a.out, "paused     %t\n", reg.Paused)
	fmt.Fprintf(a.out, "next id    %d\n", reg.NextProposalID)
	for _, o := range reg.Owners {
		fmt.Fprintf(a.out, "owner      %s\n", o)
	}
	for _, p := range wl.Targets {
		fmt.Fprintf(a.out, "program    %s\n", p)
	}

	return nil
}

// propose queues a proposal from action args.
func (a *app) propose(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("propose", flag.ContinueOnError)
	expires := fs.String("expires", "", "expiry as a duration from now or an RFC 3339 time")
	autoApprove := fs.Bool("approve", false, "approve as proposer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("propose: want <registry> <action>...")
	}

	registry, err := multisig.ParseAddress(fs.Arg(0))
	if err != nil {
		return err
	}

	expiresAt, err := parseExpiry(*expires, a.engine.Now())
	if err != nil {
		return err
	}

	actions := make([]multisig.Action, 0, fs.NArg()-1)
	for _, arg := range fs.Args()[1:] {
		action, err := parseAction(arg, registry)
		if err != nil {
			return err
		}
		actions = append(actions, action)
	}

	p, err := a.engine.Propose(registry, a.caller, multisig.ProposalRequest{
		Actions:     actions,
		ExpiresAt:   expiresAt,
		AutoApprove: *autoApprove,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "proposal %d %s\n", p.ID, p.Address)

	return nil
}

// approve approves a proposal as the caller.
func (a *app) approve(_ context.Context, args []string) error {
	registry, id, err := a.proposalArgs(args)
	if err != nil {
		return err
	}

	return a.engine.Approve(registry, id, a.caller)
}

// revoke revokes the caller's approval.
func (a *app) revoke(_ context.Context, args []string) error {
	registry, id, err := a.proposalArgs(args)
	if err != nil {
		return err
	}

	return a.engine.Revoke(registry, id, a.caller)
}

// cancel cancels a proposal the caller created.
func (a *app) cancel(_ context.Context, args []string) error {
	registry, id, err := a.proposalArgs(args)
	if err != nil {
		return err
	}

	return a.engine.CancelProposal(registry, id, a.caller)
}

// execute executes an approved proposal.
func (a *app) execute(ctx context.Context, args []string) error {
	registry, id, err := a.proposalArgs(args)
	if err != nil {
		return err
	}

	return a.engine.Execute(ctx, registry, id)
}

// close reclaims a finished proposal. The deposit goes to the caller
// unless a recipient is given.
func (a *app) close(_ context.Context, args []string) error {
	recipient := a.caller

	if len(args) == 3 {
		r, err := multisig.ParseAddress(args[2])
		if err != nil {
			return err
		}
		recipient = r
		args = args[:2]
	}

	registry, id, err := a.proposalArgs(args)
	if err != nil {
		return err
	}

	return a.engine.CloseTransaction(registry, id, a.caller, recipient)
}

// proposals lists the stored proposals of a registry.
func (a *app) proposals(_ context.Context, args []string) error {
	registry, err := a.registryArg(args)
	if err != nil {
		return err
	}

	reg, err := a.engine.Registry(registry)
	if err != nil {
		return err
	}

	list, err := a.engine.Proposals(registry)
	if err != nil {
		return err
	}

	now := a.engine.Now()
	for _, p := range list {
		expiry := "never"
		if !p.ExpiresAt.IsZero() {
			expiry = p.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
		}

		fmt.Fprintf(a.out, "%d\t%s\t%d/%d approvals\t%d actions\texpires %s\tby %s\n",
			p.ID, p.Status(now), len(p.Approvals), reg.Threshold, len(p.Actions), expiry, p.Proposer.Short())
	}

	return nil
}

// credit mints balance.
func (a *app) credit(_ context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("credit: want <account> <amount>")
	}

	account, err := parseAccount(args[0], a.caller)
	if err != nil {
		return err
	}

	amount, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("amount:\n%w", err)
	}

	return a.engine.Credit(account, amount)
}

// balance prints an account balance.
func (a *app) balance(_ context.Context, args []string) error {
	account := a.caller

	if len(args) == 1 {
		var err error
		if account, err = parseAccount(args[0], a.caller); err != nil {
			return err
		}
	}

	b, err := a.engine.Balance(account)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, b)

	return nil
}

// transfer moves the caller's own balance.
func (a *app) transfer(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("transfer: want <to> <amount>")
	}

	to, err := parseAccount(args[0], a.caller)
	if err != nil {
		return err
	}

	amount, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("amount:\n%w", err)
	}

	return a.engine.Invoke(ctx, a.caller, multisig.TransferAction(a.caller, to, amount))
}

// snapshot writes the ledger to a file.
func (a *app) snapshot(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("snapshot: want <file>")
	}

	data, err := snapshot.Create(a.db)
	if err != nil {
		return err
	}

	if err := os.WriteFile(args[0], data, 0600); err != nil {
		return fmt.Errorf("write snapshot:\n%w", err)
	}

	fmt.Fprintf(a.out, "wrote %d bytes to %s\n", len(data), args[0])

	return nil
}

// restore replaces the ledger with a snapshot file.
func (a *app) restore(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("restore: want <file>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read snapshot:\n%w", err)
	}

	n, err := snapshot.Restore(a.db, data)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "restored %d records\n", n)

	return nil
}

// registryArg parses the single registry argument of a command.
func (a *app) registryArg(args []string) (multisig.Address, error) {
	if len(args) != 1 {
		return multisig.Address{}, fmt.Errorf("want <registry>")
	}

	return multisig.ParseAddress(args[0])
}

// proposalArgs parses <registry> <id>.
func (a *app) proposalArgs(args []string) (multisig.Address, uint64, error) {
	if len(args) != 2 {
		return multisig.Address{}, 0, fmt.Errorf("want <registry> <id>")
	}

	registry, err := multisig.ParseAddress(args[0])
	if err != nil {
		return multisig.Address{}, 0, err
	}

	id, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return multisig.Address{}, 0, fmt.Errorf("proposal id:\n%w", err)
	}

	return registry, id, nil
}

// parseAccount parses an address, accepting "self" for the caller.
func parseAccount(s string, self multisig.Address) (multisig.Address, error) {
	if s == "self" {
		return self, nil
	}

	return multisig.ParseAddress(s)
}
