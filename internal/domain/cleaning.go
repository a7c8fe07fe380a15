package domain

import (
	"time"

	"github.com/google/uuid"
)

type CleaningStatus string

const (
	CleaningStatusSent            CleaningStatus = "SENT"
	CleaningStatusReceived        CleaningStatus = "RECEIVED"
	CleaningStatusServiceComplete CleaningStatus = "SERVICE_COMPLETE"
	CleaningStatusDelivered       CleaningStatus = "DELIVERED"
	CleaningStatusConfirmed       CleaningStatus = "CONFIRMED"
	CleaningStatusCancelled       CleaningStatus = "CANCELLED"
)

func (s CleaningStatus) Terminal() bool {
	return s == CleaningStatusConfirmed || s == CleaningStatusCancelled
}

type CleaningOutcome string

const (
	CleaningOutcomeCleaned CleaningOutcome = "CLEANED"
	CleaningOutcomeDamaged CleaningOutcome = "DAMAGED"
)

func (o CleaningOutcome) Valid() bool {
	return o == CleaningOutcomeCleaned || o == CleaningOutcomeDamaged
}

type CleaningItem struct {
	AssetID uuid.UUID       `json:"asset_id"`
	Outcome CleaningOutcome `json:"outcome,omitempty"`
}

type CleaningOrder struct {
	ID             uuid.UUID      `json:"id"`
	DeliveryNumber int64          `json:"delivery_number"`
	ReturnNumber   *int64         `json:"return_number,omitempty"`
	SenderID       string         `json:"sender_id"`
	ServiceParty   string         `json:"service_party"`
	Status         CleaningStatus `json:"status"`
	Notes          string         `json:"notes,omitempty"`
	Items          []CleaningItem `json:"items"`

	SentOn             time.Time  `json:"sent_on"`
	ReceivedOn         *time.Time `json:"received_on,omitempty"`
	ServiceCompletedOn *time.Time `json:"service_completed_on,omitempty"`
	DeliveredOn        *time.Time `json:"delivered_on,omitempty"`
	ConfirmedOn        *time.Time `json:"confirmed_on,omitempty"`
	CancelledOn        *time.Time `json:"cancelled_on,omitempty"`
}

func (o *CleaningOrder) AssetIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.AssetID)
	}
	return ids
}
