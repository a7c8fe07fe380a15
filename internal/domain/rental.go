package domain

import (
	"time"

	"github.com/google/uuid"
)

type RentalStatus string

const (
	RentalStatusActive   RentalStatus = "ACTIVE"
	RentalStatusReturned RentalStatus = "RETURNED"
	// RentalStatusOverdue is never stored. It is derived when a rental is read.
	RentalStatusOverdue RentalStatus = "OVERDUE"
)

type RentalKind string

const (
	RentalKindInternal RentalKind = "INTERNAL"
	RentalKindExternal RentalKind = "EXTERNAL"
)

func (k RentalKind) Valid() bool {
	return k == RentalKindInternal || k == RentalKindExternal
}

type RentalItem struct {
	AssetID    uuid.UUID  `json:"asset_id"`
	ReturnID   *uuid.UUID `json:"return_id,omitempty"`
	ReturnedOn *time.Time `json:"returned_on,omitempty"`
}

// Pending reports whether the item is still out on the rental.
func (i RentalItem) Pending() bool {
	return i.ReturnID == nil
}

type Rental struct {
	ID             uuid.UUID    `json:"id"`
	RemisionNumber int64        `json:"remision_number"`
	CustodianID    string       `json:"custodian_id"`
	Counterparty   string       `json:"counterparty"`
	Kind           RentalKind   `json:"kind"`
	Status         RentalStatus `json:"status"`
	StartDate      time.Time    `json:"start_date"`

	EstimatedReturnDate *time.Time `json:"estimated_return_date,omitempty"`
	EstimatedDays       int        `json:"estimated_days,omitempty"`
	ActualReturnDate    *time.Time `json:"actual_return_date,omitempty"`
	ActualDays          int        `json:"actual_days,omitempty"`

	// Rate snapshot taken from configuration when the rental is opened.
	DailyRateCents int64 `json:"daily_rate_cents"`

	// Running counters. They are a cache of Items and Returns; see Recount.
	PendingCount       int   `json:"pending_count"`
	ReturnedCount      int   `json:"returned_count"`
	TotalInvoicedCents int64 `json:"total_invoiced_cents"`
	TotalAmountCents   int64 `json:"total_amount_cents"`

	Notes     string       `json:"notes,omitempty"`
	Items     []RentalItem `json:"items"`
	CreatedOn time.Time    `json:"created_on"`
	UpdatedOn time.Time    `json:"updated_on"`
}

// PendingAssetIDs returns the line items not yet returned, in line-item order.
func (r *Rental) PendingAssetIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, it := range r.Items {
		if it.Pending() {
			ids = append(ids, it.AssetID)
		}
	}
	return ids
}

// Recount rebuilds the running counters from line items and settlement records.
// It returns true when the stored counters had drifted.
func (r *Rental) Recount(returns []RentalReturn) bool {
	pending, returned := 0, 0
	for _, it := range r.Items {
		if it.Pending() {
			pending++
		} else {
			returned++
		}
	}
	var invoiced int64
	for _, ret := range returns {
		invoiced += ret.AmountCents
	}
	drifted := pending != r.PendingCount || returned != r.ReturnedCount || invoiced != r.TotalInvoicedCents
	r.PendingCount = pending
	r.ReturnedCount = returned
	r.TotalInvoicedCents = invoiced
	return drifted
}

// RentalReturn is an immutable settlement event.
type RentalReturn struct {
	ID            uuid.UUID   `json:"id"`
	RentalID      uuid.UUID   `json:"rental_id"`
	InvoiceNumber int64       `json:"invoice_number"`
	AssetIDs      []uuid.UUID `json:"asset_ids"`
	DaysCharged   int         `json:"days_charged"`
	AmountCents   int64       `json:"amount_cents"`
	Notes         string      `json:"notes,omitempty"`
	CreatedOn     time.Time   `json:"created_on"`
}
