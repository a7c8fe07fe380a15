package service

import (
	"context"
	"time"

	"custody-backend/internal/custody"
	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	"github.com/google/uuid"
)

type AssetService interface {
	CreateAsset(ctx context.Context, asset *domain.Asset) error
	// CreateBatch creates req.Count assets with sequential codes. It is all or
	// nothing unless atomic batches are disabled, in which case a failure
	// after some chunks committed is reported as *domain.PartialBatchError.
	CreateBatch(ctx context.Context, req BatchRequest) ([]domain.Asset, error)
	SuggestNextCode(ctx context.Context, seed string) (string, error)
	GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	ListAssets(ctx context.Context, filter repository.AssetFilter) ([]domain.Asset, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AssetStatus) (*domain.Asset, error)
	UpdateOwner(ctx context.Context, id uuid.UUID, custodianID string) (*domain.Asset, error)
	RetireAsset(ctx context.Context, id uuid.UUID, reason, retiredBy string) (*domain.WriteOff, error)
	ListWriteOffs(ctx context.Context, assetID uuid.UUID) ([]domain.WriteOff, error)
	ListAttributeValues(ctx context.Context, kind string) ([]string, error)
}

type AvailabilityService interface {
	ListAvailable(ctx context.Context, custodianID string, status domain.AssetStatus) (*domain.Availability, error)
	ListLots(ctx context.Context, custodianID string, filter custody.LotFilter, keys []string) (*LotView, error)
	Allocate(ctx context.Context, custodianID string, filter custody.LotFilter, keys []string, requests []domain.LotRequest) (*domain.Allocation, error)
}

type TransferService interface {
	OpenTransfer(ctx context.Context, from, to string, assetIDs []uuid.UUID, reason string) (*domain.Transfer, error)
	AcceptTransfer(ctx context.Context, id uuid.UUID, notes string) (*domain.Transfer, error)
	RejectTransfer(ctx context.Context, id uuid.UUID, notes string) (*domain.Transfer, error)
	CancelTransfer(ctx context.Context, id uuid.UUID, notes string) (*domain.Transfer, error)
	GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	ListTransfers(ctx context.Context, custodianID string, status domain.TransferStatus) ([]domain.Transfer, error)
}

type RentalService interface {
	OpenRental(ctx context.Context, req OpenRentalRequest) (*domain.Rental, error)
	ProcessReturn(ctx context.Context, rentalID uuid.UUID, assetIDs []uuid.UUID, notes string) (*domain.Rental, *domain.RentalReturn, error)
	// ProcessReturnByLot groups the rental's pending items into lots and returns
	// the requested quantity from each.
	ProcessReturnByLot(ctx context.Context, rentalID uuid.UUID, keys []string, requests []domain.LotRequest, notes string) (*domain.Rental, *domain.RentalReturn, error)
	GetRental(ctx context.Context, id uuid.UUID) (*domain.Rental, error)
	ListRentals(ctx context.Context, filter repository.RentalFilter) ([]domain.Rental, error)
	ListReturns(ctx context.Context, rentalID uuid.UUID) ([]domain.RentalReturn, error)
	ListOverdue(ctx context.Context) ([]domain.Rental, error)
	ReconcileCounters(ctx context.Context, id uuid.UUID) (*domain.Rental, bool, error)
	ReconcileAll(ctx context.Context) (int, error)
}

type CleaningService interface {
	SendToCleaning(ctx context.Context, senderID, serviceParty string, assetIDs []uuid.UUID, notes string) (*domain.CleaningOrder, error)
	Receive(ctx context.Context, id uuid.UUID) (*domain.CleaningOrder, error)
	MarkServiceComplete(ctx context.Context, id uuid.UUID, outcomes map[uuid.UUID]domain.CleaningOutcome) (*domain.CleaningOrder, error)
	Deliver(ctx context.Context, id uuid.UUID) (*domain.CleaningOrder, error)
	ConfirmReceipt(ctx context.Context, id uuid.UUID) (*domain.CleaningOrder, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.CleaningOrder, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.CleaningOrder, error)
	ListOrders(ctx context.Context, senderID string, status domain.CleaningStatus) ([]domain.CleaningOrder, error)
}

// CustodianDirectory answers role questions about custodians.
type CustodianDirectory interface {
	IsCleaningService(custodianID string) bool
}

// BatchRequest describes a run of new assets. When StartCode is empty the
// next code after Seed's highest existing sibling is used.
type BatchRequest struct {
	StartCode   string
	Seed        string
	Count       int
	Attributes  domain.AssetAttributes
	CustodianID string
}

type OpenRentalRequest struct {
	CustodianID         string
	Counterparty        string
	Kind                domain.RentalKind
	AssetIDs            []uuid.UUID
	EstimatedReturnDate *time.Time
	Notes               string
}

// LotView is a custodian's availability grouped into lots.
type LotView struct {
	Availability domain.Availability `json:"availability"`
	Lots         []domain.Lot        `json:"lots"`
}
