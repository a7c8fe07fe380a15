package domain

import (
	"time"

	"github.com/google/uuid"
)

type AssetStatus string

const (
	AssetStatusAvailable      AssetStatus = "AVAILABLE"
	AssetStatusInternalUse    AssetStatus = "ON_LOAN_INTERNAL_USE"
	AssetStatusOnRental       AssetStatus = "ON_RENTAL"
	AssetStatusInCleaning     AssetStatus = "IN_CLEANING"
	AssetStatusAwaitingPickup AssetStatus = "AWAITING_PICKUP"
	AssetStatusInRepair       AssetStatus = "IN_REPAIR"
	AssetStatusOutOfService   AssetStatus = "OUT_OF_SERVICE"
	AssetStatusLost           AssetStatus = "LOST"
)

// Valid reports whether s is one of the known asset statuses.
func (s AssetStatus) Valid() bool {
	switch s {
	case AssetStatusAvailable, AssetStatusInternalUse, AssetStatusOnRental,
		AssetStatusInCleaning, AssetStatusAwaitingPickup, AssetStatusInRepair,
		AssetStatusOutOfService, AssetStatusLost:
		return true
	}
	return false
}

type OwnershipKind string

const (
	OwnershipOwned  OwnershipKind = "OWNED"
	OwnershipLeased OwnershipKind = "LEASED_FROM_SUPPLIER"
)

// Attribute kinds. Each kind has its own vocabulary that grows as new values are used.
const (
	AttrSize          = "size"
	AttrColor         = "color"
	AttrShape         = "shape"
	AttrCondition     = "condition"
	AttrLocation      = "location"
	AttrArea          = "area"
	AttrOwnershipKind = "ownership_kind"
)

// AttributeKinds lists the descriptive attribute kinds in a stable order.
var AttributeKinds = []string{AttrSize, AttrColor, AttrShape, AttrCondition, AttrLocation, AttrArea, AttrOwnershipKind}

type AssetAttributes struct {
	Size          string        `json:"size,omitempty"`
	Color         string        `json:"color,omitempty"`
	Shape         string        `json:"shape,omitempty"`
	Condition     string        `json:"condition,omitempty"`
	Location      string        `json:"location,omitempty"`
	Area          string        `json:"area,omitempty"`
	OwnershipKind OwnershipKind `json:"ownership_kind,omitempty"`
}

// Value returns the attribute value for the given kind, or "" for unknown kinds.
func (a AssetAttributes) Value(kind string) string {
	switch kind {
	case AttrSize:
		return a.Size
	case AttrColor:
		return a.Color
	case AttrShape:
		return a.Shape
	case AttrCondition:
		return a.Condition
	case AttrLocation:
		return a.Location
	case AttrArea:
		return a.Area
	case AttrOwnershipKind:
		return string(a.OwnershipKind)
	}
	return ""
}

type Asset struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Barcode     string    `json:"barcode,omitempty"`
	AssetAttributes
	Status      AssetStatus `json:"status"`
	CustodianID string      `json:"custodian_id"`
	CreatedOn   time.Time   `json:"created_on"`
	UpdatedOn   time.Time   `json:"updated_on"`
}

// WriteOff is the audit record left behind when an asset is retired.
type WriteOff struct {
	ID          uuid.UUID   `json:"id"`
	AssetID     uuid.UUID   `json:"asset_id"`
	Code        string      `json:"code"`
	LastStatus  AssetStatus `json:"last_status"`
	CustodianID string      `json:"custodian_id"`
	Reason      string      `json:"reason"`
	RetiredBy   string      `json:"retired_by"`
	RetiredOn   time.Time   `json:"retired_on"`
}

type OperationKind string

const (
	OperationTransfer OperationKind = "TRANSFER"
	OperationRental   OperationKind = "RENTAL"
	OperationCleaning OperationKind = "CLEANING"
)

// OperationRef points at a non-terminal operation that references an asset.
type OperationRef struct {
	Kind OperationKind `json:"kind"`
	ID   uuid.UUID     `json:"id"`
}
