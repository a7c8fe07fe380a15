package custody

import (
	"fmt"

	"custody-backend/internal/domain"

	"github.com/google/uuid"
)

type Event string

const (
	EventAccept          Event = "accept"
	EventReject          Event = "reject"
	EventCancel          Event = "cancel"
	EventReceive         Event = "receive"
	EventServiceComplete Event = "service_complete"
	EventDeliver         Event = "deliver"
	EventConfirm         Event = "confirm"
)

// Machine is a custody handoff state machine. Transfer and cleaning orders
// share it; they differ only in their edges and in how line items are
// settled when the machine reaches its settling state.
type Machine struct {
	Name        string
	Initial     string
	Transitions map[string]map[Event]string
	// Settles is the state whose entry moves line items to their new
	// status and custodian.
	Settles string
}

// Next returns the state reached from state on event.
func (m Machine) Next(state string, event Event) (string, error) {
	to, ok := m.Transitions[state][event]
	if !ok {
		return "", fmt.Errorf("%s: cannot %s from %s: %w", m.Name, event, state, domain.ErrInvalidState)
	}
	return to, nil
}

// Terminal reports whether state has no outgoing edges.
func (m Machine) Terminal(state string) bool {
	return len(m.Transitions[state]) == 0
}

// MovesAssets reports whether entering to settles the line items.
func (m Machine) MovesAssets(to string) bool {
	return to == m.Settles
}

var TransferMachine = Machine{
	Name:    "transfer",
	Initial: string(domain.TransferStatusPending),
	Transitions: map[string]map[Event]string{
		string(domain.TransferStatusPending): {
			EventAccept: string(domain.TransferStatusAccepted),
			EventReject: string(domain.TransferStatusRejected),
			EventCancel: string(domain.TransferStatusCancelled),
		},
	},
	Settles: string(domain.TransferStatusAccepted),
}

var CleaningMachine = Machine{
	Name:    "cleaning order",
	Initial: string(domain.CleaningStatusSent),
	Transitions: map[string]map[Event]string{
		string(domain.CleaningStatusSent): {
			EventReceive: string(domain.CleaningStatusReceived),
			EventCancel:  string(domain.CleaningStatusCancelled),
		},
		string(domain.CleaningStatusReceived): {
			EventServiceComplete: string(domain.CleaningStatusServiceComplete),
		},
		string(domain.CleaningStatusServiceComplete): {
			EventDeliver: string(domain.CleaningStatusDelivered),
		},
		string(domain.CleaningStatusDelivered): {
			EventConfirm: string(domain.CleaningStatusConfirmed),
		},
	},
	Settles: string(domain.CleaningStatusConfirmed),
}

// Placement is where a line item ends up after settlement.
type Placement struct {
	Status    domain.AssetStatus
	Custodian string
}

// Mapping decides the placement of each settled line item.
type Mapping func(assetID uuid.UUID) (Placement, error)

// TransferMapping hands every asset to the destination. Cleaning transfers
// land in IN_CLEANING instead of AVAILABLE.
func TransferMapping(t *domain.Transfer) Mapping {
	status := domain.AssetStatusAvailable
	if t.IsCleaningTransfer {
		status = domain.AssetStatusInCleaning
	}
	return func(uuid.UUID) (Placement, error) {
		return Placement{Status: status, Custodian: t.ToCustodian}, nil
	}
}

// CleaningMapping returns assets to the sender, AVAILABLE when cleaned and
// damagedStatus when damaged.
func CleaningMapping(o *domain.CleaningOrder, damagedStatus domain.AssetStatus) Mapping {
	outcomes := make(map[uuid.UUID]domain.CleaningOutcome, len(o.Items))
	for _, it := range o.Items {
		outcomes[it.AssetID] = it.Outcome
	}
	return func(id uuid.UUID) (Placement, error) {
		switch outcomes[id] {
		case domain.CleaningOutcomeCleaned:
			return Placement{Status: domain.AssetStatusAvailable, Custodian: o.SenderID}, nil
		case domain.CleaningOutcomeDamaged:
			return Placement{Status: damagedStatus, Custodian: o.SenderID}, nil
		}
		return Placement{}, fmt.Errorf("asset %s has no recorded outcome: %w", id, domain.ErrInvalidState)
	}
}
