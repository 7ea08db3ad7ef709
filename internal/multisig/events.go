package multisig

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies what a committed operation did.
type EventKind uint8

const (
	EventRegistryCreated EventKind = iota + 1
	EventProposalCreated
	EventApprovalAdded
	EventApprovalRevoked
	EventProposalCancelled
	EventTransactionExecuted
	EventTransactionClosed
	EventThresholdChanged
	EventOwnerAdded
	EventOwnerRemoved
	EventPauseToggled
	EventWhitelistProgramAdded
	EventWhitelistProgramRemoved
)

var eventNames = map[EventKind]string{
	EventRegistryCreated:         "registry-created",
	EventProposalCreated:         "proposal-created",
	EventApprovalAdded:           "approval-added",
	EventApprovalRevoked:         "approval-revoked",
	EventProposalCancelled:       "proposal-cancelled",
	EventTransactionExecuted:     "transaction-executed",
	EventTransactionClosed:       "transaction-closed",
	EventThresholdChanged:        "threshold-changed",
	EventOwnerAdded:              "owner-added",
	EventOwnerRemoved:            "owner-removed",
	EventPauseToggled:            "pause-toggled",
	EventWhitelistProgramAdded:   "whitelist-program-added",
	EventWhitelistProgramRemoved: "whitelist-program-removed",
}

// String returns the event name.
func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is emitted once per committed state change. Fields that do not
// apply to a kind are left zero.
type Event struct {
	ID          uuid.UUID // ID is unique per event, for indexer dedup
	Kind        EventKind
	Time        time.Time
	Registry    Address   // Registry is set on every event
	Proposal    Address   // Proposal is the proposal address, for proposal events
	ProposalID  uint64    // ProposalID is the proposal id, for proposal events
	Subject     Address   // Subject is the owner, proposer, canceller, recipient or program involved
	Owners      []Address // Owners is set on registry creation
	Threshold   uint8     // Threshold is set on creation and threshold changes
	Nonce       uint64    // Nonce is set on creation
	Paused      bool      // Paused is set on pause toggles
	ActionCount int       // ActionCount is set on proposal creation
}

// EventSink receives events after the operation that produced them commits.
type EventSink interface {
	Publish(ev Event)
}

// Recorder is an EventSink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends ev.
func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)

	return out
}

// Kinds returns the kinds of the recorded events, in order.
func (r *Recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}

	return out
}

// Last returns the most recent event and false when none was recorded.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		return Event{}, false
	}

	return r.events[len(r.events)-1], true
}
