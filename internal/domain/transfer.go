package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusAccepted  TransferStatus = "ACCEPTED"
	TransferStatusRejected  TransferStatus = "REJECTED"
	TransferStatusCancelled TransferStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible from s.
func (s TransferStatus) Terminal() bool {
	return s != TransferStatusPending
}

type Transfer struct {
	ID             uuid.UUID      `json:"id"`
	DocumentNumber int64          `json:"document_number"`
	FromCustodian  string         `json:"from_custodian"`
	ToCustodian    string         `json:"to_custodian"`
	Status         TransferStatus `json:"status"`
	// IsCleaningTransfer is fixed at open time from the destination's role.
	IsCleaningTransfer bool        `json:"is_cleaning_transfer"`
	Reason             string      `json:"reason"`
	Notes              string      `json:"notes,omitempty"`
	AssetIDs           []uuid.UUID `json:"asset_ids"`
	RequestedOn        time.Time   `json:"requested_on"`
	RespondedOn        *time.Time  `json:"responded_on,omitempty"`
}
