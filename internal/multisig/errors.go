package multisig

import "errors"

// Failure kinds. Every rejected operation returns an error wrapping exactly one of these,
// and leaves the ledger untouched.
var (
	ErrInvalidOwners                = errors.New("owner list is empty")
	ErrTooManyOwners                = errors.New("too many owners")
	ErrDuplicateOwners              = errors.New("duplicate owners")
	ErrInvalidThreshold             = errors.New("invalid threshold")
	ErrInvalidThresholdAfterRemoval = errors.New("threshold exceeds owner count after removal")
	ErrRegistryExists               = errors.New("registry already exists")
	ErrRegistryNotFound             = errors.New("registry not found")
	ErrPaused                       = errors.New("registry is paused")
	ErrNotAnOwner                   = errors.New("not an owner")
	ErrOwnerExists                  = errors.New("owner already exists")
	ErrTooManyInstructions          = errors.New("too many or no instructions")
	ErrTooManyAccounts              = errors.New("too many accounts in instruction")
	ErrInstructionDataTooLarge      = errors.New("instruction data too large")
	ErrProgramNotAllowed            = errors.New("program not whitelisted")
	ErrSignerNotAllowed             = errors.New("signer other than the vault")
	ErrInvalidExpiration            = errors.New("expiration is not in the future")
	ErrOverflow                     = errors.New("arithmetic overflow")
	ErrProposalNotFound             = errors.New("proposal not found")
	ErrExpired                      = errors.New("proposal expired")
	ErrAlreadyApproved              = errors.New("already approved")
	ErrNotApproved                  = errors.New("not approved")
	ErrAlreadyExecuted              = errors.New("already executed")
	ErrNotEnoughApprovals           = errors.New("not enough approvals")
	ErrNotProposer                  = errors.New("caller is not the proposer")
	ErrCannotCancelApprovedProposal = errors.New("cannot cancel a proposal that has already been approved")
	ErrClosePermissionDenied        = errors.New("only an owner or the original proposer can close this transaction")
	ErrTransactionNotClosable       = errors.New("transaction is neither executed nor expired")
	ErrInvalidVault                 = errors.New("invalid vault authority")
	ErrMissingSignature             = errors.New("authority account did not sign")
	ErrInvalidInstruction           = errors.New("malformed instruction")
	ErrUnknownProgram               = errors.New("no handler for program")
	ErrProgramFailed                = errors.New("program failed")
	ErrInvalidAmount                = errors.New("invalid amount")
	ErrInsufficientFunds            = errors.New("insufficient funds")
	ErrWhitelistFull                = errors.New("whitelist is full")
	ErrProgramAlreadyWhitelisted    = errors.New("program already whitelisted")
	ErrProgramNotFoundInWhitelist   = errors.New("program not found in whitelist")
	ErrCannotRemoveCoreProgram      = errors.New("cannot remove a core program")
)

// kinds maps each failure to its stable name, used in events, metrics and CLI output.
var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidOwners, "InvalidOwners"},
	{ErrTooManyOwners, "TooManyOwners"},
	{ErrDuplicateOwners, "DuplicateOwners"},
	{ErrInvalidThreshold, "InvalidThreshold"},
	{ErrInvalidThresholdAfterRemoval, "InvalidThresholdAfterRemoval"},
	{ErrRegistryExists, "RegistryExists"},
	{ErrRegistryNotFound, "RegistryNotFound"},
	{ErrPaused, "Paused"},
	{ErrNotAnOwner, "NotAnOwner"},
	{ErrOwnerExists, "OwnerExists"},
	{ErrTooManyInstructions, "TooManyInstructions"},
	{ErrTooManyAccounts, "TooManyAccounts"},
	{ErrInstructionDataTooLarge, "InstructionDataTooLarge"},
	{ErrProgramNotAllowed, "ProgramNotAllowed"},
	{ErrSignerNotAllowed, "SignerNotAllowed"},
	{ErrInvalidExpiration, "InvalidExpiration"},
	{ErrOverflow, "Overflow"},
	{ErrProposalNotFound, "ProposalNotFound"},
	{ErrExpired, "Expired"},
	{ErrAlreadyApproved, "AlreadyApproved"},
	{ErrNotApproved, "NotApproved"},
	{ErrAlreadyExecuted, "AlreadyExecuted"},
	{ErrNotEnoughApprovals, "NotEnoughApprovals"},
	{ErrNotProposer, "NotProposer"},
	{ErrCannotCancelApprovedProposal, "CannotCancelApprovedProposal"},
	{ErrClosePermissionDenied, "ClosePermissionDenied"},
	{ErrTransactionNotClosable, "TransactionNotClosable"},
	{ErrInvalidVault, "InvalidVault"},
	{ErrMissingSignature, "MissingSignature"},
	{ErrInvalidInstruction, "InvalidInstruction"},
	{ErrUnknownProgram, "UnknownProgram"},
	{ErrProgramFailed, "ProgramFailed"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrWhitelistFull, "WhitelistFull"},
	{ErrProgramAlreadyWhitelisted, "ProgramAlreadyWhitelisted"},
	{ErrProgramNotFoundInWhitelist, "ProgramNotFoundInWhitelist"},
	{ErrCannotRemoveCoreProgram, "CannotRemoveCoreProgram"},
}

// Kind returns the failure kind name of err, "" for nil and "Internal" for
// errors that are not failure kinds (storage faults and the like).
func Kind(err error) string {
	if err == nil {
		return ""
	}

	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}

	return "Internal"
}
