package repository

import (
	"context"

	"custody-backend/internal/domain"

	"github.com/google/uuid"
)

// AssetFilter selects active (non-retired) assets. Zero fields are ignored.
type AssetFilter struct {
	CustodianID string
	Statuses    []domain.AssetStatus
	Codes       []string
	CodePrefix  string
	Limit       int
}

type AssetRepository interface {
	Create(ctx context.Context, asset *domain.Asset) error
	// CreateBatch inserts assets as one multi-row write. Callers chunk.
	CreateBatch(ctx context.Context, assets []domain.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	// GetByIDs returns the active assets among ids; with forUpdate the rows
	// stay locked until the surrounding transaction ends.
	GetByIDs(ctx context.Context, ids []uuid.UUID, forUpdate bool) ([]domain.Asset, error)
	List(ctx context.Context, filter AssetFilter) ([]domain.Asset, error)
	// ExistingCodes returns which of codes belong to active assets.
	ExistingCodes(ctx context.Context, codes []string) ([]string, error)
	UpdateCustody(ctx context.Context, id uuid.UUID, status domain.AssetStatus, custodianID string) error
	Retire(ctx context.Context, writeOff *domain.WriteOff) error
	ListWriteOffs(ctx context.Context, assetID uuid.UUID) ([]domain.WriteOff, error)
	// OpenReferences lists non-terminal operations that carry the asset as a line item.
	OpenReferences(ctx context.Context, id uuid.UUID) ([]domain.OperationRef, error)
}

type AttributeRepository interface {
	EnsureValues(ctx context.Context, kind string, values ...string) error
	ListValues(ctx context.Context, kind string) ([]string, error)
}

type TransferRepository interface {
	Create(ctx context.Context, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Transfer, error)
	Update(ctx context.Context, transfer *domain.Transfer) error
	// ListOpenFrom returns PENDING transfers initiated by custodianID, with line items.
	ListOpenFrom(ctx context.Context, custodianID string) ([]domain.Transfer, error)
	List(ctx context.Context, custodianID string, status domain.TransferStatus) ([]domain.Transfer, error)
}

type RentalFilter struct {
	CustodianID  string
	Counterparty string
	Status       domain.RentalStatus
}

type RentalRepository interface {
	Create(ctx context.Context, rental *domain.Rental) error
	GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Rental, error)
	// UpdateSettlement persists counters, status and return stamps.
	UpdateSettlement(ctx context.Context, rental *domain.Rental) error
	// MarkItemsReturned flags pending line items as returned and reports how
	// many rows actually changed. Items already returned are left untouched.
	MarkItemsReturned(ctx context.Context, rentalID, returnID uuid.UUID, assetIDs []uuid.UUID) (int, error)
	CreateReturn(ctx context.Context, ret *domain.RentalReturn) error
	ListReturns(ctx context.Context, rentalID uuid.UUID) ([]domain.RentalReturn, error)
	List(ctx context.Context, filter RentalFilter) ([]domain.Rental, error)
}

type CleaningRepository interface {
	Create(ctx context.Context, order *domain.CleaningOrder) error
	GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.CleaningOrder, error)
	// Update persists status, stamps, return number and per-item outcomes.
	Update(ctx context.Context, order *domain.CleaningOrder) error
	// ListOpenFrom returns non-terminal orders sent by custodianID, with line items.
	ListOpenFrom(ctx context.Context, custodianID string) ([]domain.CleaningOrder, error)
	List(ctx context.Context, custodianID string, status domain.CleaningStatus) ([]domain.CleaningOrder, error)
}

// Document numbering series.
const (
	SeriesTransfer         = "TRANSFER"
	SeriesRentalRemision   = "RENTAL_REMISION"
	SeriesRentalInvoice    = "RENTAL_INVOICE"
	SeriesCleaningDelivery = "CLEANING_DELIVERY"
	SeriesCleaningReturn   = "CLEANING_RETURN"
)

// SequenceRepository hands out gap-tolerant, strictly increasing numbers per series.
type SequenceRepository interface {
	Next(ctx context.Context, series string) (int64, error)
}

// Store groups the repositories over one consistent data store.
type Store interface {
	Assets() AssetRepository
	Attributes() AttributeRepository
	Transfers() TransferRepository
	Rentals() RentalRepository
	Cleanings() CleaningRepository
	// WithTx runs fn against a Store bound to a single transaction. fn's
	// writes are committed when it returns nil and discarded otherwise.
	// Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
