// Package custody holds the pure rules of the custody engine: soft holds,
// lot grouping, allocation and the handoff state machines. Nothing in this
// package performs I/O; callers pass in a snapshot of store state.
package custody

import (
	"custody-backend/internal/domain"

	"github.com/google/uuid"
)

// Holds is the set of a custodian's assets earmarked by in-flight operations.
type Holds struct {
	forTransfer map[uuid.UUID]uuid.UUID
	forCleaning map[uuid.UUID]uuid.UUID
}

// ResolveHolds collects the line items of non-terminal transfers initiated by
// custodian and of non-terminal cleaning orders sent by custodian. Operations
// belonging to other custodians are ignored.
func ResolveHolds(custodian string, transfers []domain.Transfer, orders []domain.CleaningOrder) Holds {
	h := Holds{
		forTransfer: make(map[uuid.UUID]uuid.UUID),
		forCleaning: make(map[uuid.UUID]uuid.UUID),
	}
	for _, t := range transfers {
		if t.FromCustodian != custodian || t.Status.Terminal() {
			continue
		}
		for _, id := range t.AssetIDs {
			h.forTransfer[id] = t.ID
		}
	}
	for _, o := range orders {
		if o.SenderID != custodian || o.Status.Terminal() {
			continue
		}
		for _, it := range o.Items {
			h.forCleaning[it.AssetID] = o.ID
		}
	}
	return h
}

// Contains reports whether id is held by any operation.
func (h Holds) Contains(id uuid.UUID) bool {
	_, t := h.forTransfer[id]
	_, c := h.forCleaning[id]
	return t || c
}

// HeldBy returns the operation holding id.
func (h Holds) HeldBy(id uuid.UUID) (domain.OperationRef, bool) {
	if op, ok := h.forTransfer[id]; ok {
		return domain.OperationRef{Kind: domain.OperationTransfer, ID: op}, true
	}
	if op, ok := h.forCleaning[id]; ok {
		return domain.OperationRef{Kind: domain.OperationCleaning, ID: op}, true
	}
	return domain.OperationRef{}, false
}

func (h Holds) ForTransfer() int { return len(h.forTransfer) }

func (h Holds) ForCleaning() int { return len(h.forCleaning) }

// Count is the size of the union of both hold sets.
func (h Holds) Count() int {
	n := len(h.forTransfer)
	for id := range h.forCleaning {
		if _, dup := h.forTransfer[id]; !dup {
			n++
		}
	}
	return n
}

// ExcludeHeld drops held assets from candidates and reports how many were dropped.
func ExcludeHeld(candidates []domain.Asset, h Holds) ([]domain.Asset, int) {
	kept := make([]domain.Asset, 0, len(candidates))
	held := 0
	for _, a := range candidates {
		if h.Contains(a.ID) {
			held++
			continue
		}
		kept = append(kept, a)
	}
	return kept, held
}
