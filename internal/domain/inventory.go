package domain

import "github.com/google/uuid"

// Availability is the result of resolving a custodian's assets against soft holds.
type Availability struct {
	CustodianID     string      `json:"custodian_id"`
	Status          AssetStatus `json:"status"`
	Assets          []Asset     `json:"assets"`
	HeldForTransfer int         `json:"held_for_transfer"`
	HeldForCleaning int         `json:"held_for_cleaning"`
	// HeldCount is how many assets matching the status filter were excluded.
	HeldCount int `json:"held_count"`
}

// Unspecified is the lot value used for blank attributes.
const Unspecified = "UNSPECIFIED"

type LotMember struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

type Lot struct {
	Key        string            `json:"key"`
	Attributes map[string]string `json:"attributes"`
	Members    []LotMember       `json:"members"`
}

func (l Lot) Count() int {
	return len(l.Members)
}

func (l Lot) AssetIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(l.Members))
	for i, m := range l.Members {
		ids[i] = m.ID
	}
	return ids
}

type LotRequest struct {
	LotKey   string `json:"lot_key" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// Allocation is the outcome of carving quantities out of lots.
// An allocation with no assets is a normal result, not an error.
type Allocation struct {
	AssetIDs  []uuid.UUID    `json:"asset_ids"`
	Requested int            `json:"requested"`
	PerLot    map[string]int `json:"per_lot,omitempty"`
}

func (a Allocation) Empty() bool {
	return len(a.AssetIDs) == 0
}

// Clamped reports whether fewer assets were returned than requested.
func (a Allocation) Clamped() bool {
	return len(a.AssetIDs) < a.Requested
}
