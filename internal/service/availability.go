package service

import (
	"context"
	"fmt"

	"custody-backend/internal/custody"
	"custody-backend/internal/domain"
	"custody-backend/internal/repository"
)

type availabilityService struct {
	store       repository.Store
	defaultKeys []string
}

func NewAvailabilityService(store repository.Store, defaultKeys []string) AvailabilityService {
	if len(defaultKeys) == 0 {
		defaultKeys = custody.DefaultLotKeys
	}
	return &availabilityService{store: store, defaultKeys: defaultKeys}
}

// ListAvailable returns the custodian's assets in status, minus those held by
// the custodian's own in-flight transfers and cleaning orders. It is
// recomputed from the store on every call.
func (s *availabilityService) ListAvailable(ctx context.Context, custodianID string, status domain.AssetStatus) (*domain.Availability, error) {
	if custodianID == "" {
		return nil, fmt.Errorf("custodian is required: %w", domain.ErrInvalidInput)
	}
	if status == "" {
		status = domain.AssetStatusAvailable
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrInvalidInput)
	}

	holds, err := resolveHolds(ctx, s.store, custodianID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.store.Assets().List(ctx, repository.AssetFilter{
		CustodianID: custodianID,
		Statuses:    []domain.AssetStatus{status},
	})
	if err != nil {
		return nil, err
	}
	kept, held := custody.ExcludeHeld(candidates, holds)

	return &domain.Availability{
		CustodianID:     custodianID,
		Status:          status,
		Assets:          kept,
		HeldForTransfer: holds.ForTransfer(),
		HeldForCleaning: holds.ForCleaning(),
		HeldCount:       held,
	}, nil
}

func (s *availabilityService) keys(keys []string) ([]string, error) {
	if len(keys) == 0 {
		return s.defaultKeys, nil
	}
	if err := custody.ValidateLotKeys(keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *availabilityService) ListLots(ctx context.Context, custodianID string, filter custody.LotFilter, keys []string) (*LotView, error) {
	keys, err := s.keys(keys)
	if err != nil {
		return nil, err
	}
	av, err := s.ListAvailable(ctx, custodianID, domain.AssetStatusAvailable)
	if err != nil {
		return nil, err
	}
	av.Assets = custody.FilterAssets(av.Assets, filter)
	lots, err := custody.GroupLots(av.Assets, keys)
	if err != nil {
		return nil, err
	}
	return &LotView{Availability: *av, Lots: lots}, nil
}

// Allocate picks assets for a basket of lot requests. The same inputs against
// the same store state always produce the same assets.
func (s *availabilityService) Allocate(ctx context.Context, custodianID string, filter custody.LotFilter, keys []string, requests []domain.LotRequest) (*domain.Allocation, error) {
	for _, r := range requests {
		if r.Quantity < 0 {
			return nil, fmt.Errorf("negative quantity for lot %s: %w", r.LotKey, domain.ErrInvalidInput)
		}
	}
	view, err := s.ListLots(ctx, custodianID, filter, keys)
	if err != nil {
		return nil, err
	}
	alloc, err := custody.AllocateBasket(view.Lots, requests)
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}
