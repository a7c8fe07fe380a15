package service

import (
	"context"
	"fmt"

	"custody-backend/internal/custody"
	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	"github.com/google/uuid"
)

// StaticDirectory is a CustodianDirectory backed by a fixed list of
// cleaning-service custodians.
type StaticDirectory struct {
	cleaning map[string]bool
}

func NewStaticDirectory(cleaningServices []string) *StaticDirectory {
	d := &StaticDirectory{cleaning: make(map[string]bool, len(cleaningServices))}
	for _, c := range cleaningServices {
		d.cleaning[c] = true
	}
	return d
}

func (d *StaticDirectory) IsCleaningService(custodianID string) bool {
	return d.cleaning[custodianID]
}

func dedupeIDs(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return fmt.Errorf("at least one asset is required: %w", domain.ErrInvalidInput)
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return fmt.Errorf("empty asset id: %w", domain.ErrInvalidInput)
		}
		if seen[id] {
			return fmt.Errorf("asset %s listed twice: %w", id, domain.ErrInvalidInput)
		}
		seen[id] = true
	}
	return nil
}

// lockAssets loads and row-locks ids, failing with ErrNotFound if any is
// missing or retired.
func lockAssets(ctx context.Context, tx repository.Store, ids []uuid.UUID) (map[uuid.UUID]domain.Asset, error) {
	assets, err := tx.Assets().GetByIDs(ctx, ids, true)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
		}
	}
	return byID, nil
}

// resolveHolds snapshots the custodian's in-flight transfers and cleaning orders.
func resolveHolds(ctx context.Context, s repository.Store, custodianID string) (custody.Holds, error) {
	transfers, err := s.Transfers().ListOpenFrom(ctx, custodianID)
	if err != nil {
		return custody.Holds{}, err
	}
	orders, err := s.Cleanings().ListOpenFrom(ctx, custodianID)
	if err != nil {
		return custody.Holds{}, err
	}
	return custody.ResolveHolds(custodianID, transfers, orders), nil
}

// checkoutAssets validates that ids can start a new operation for custodianID:
// every asset exists, is AVAILABLE, belongs to custodianID and is not held by
// another in-flight transfer or cleaning order. The rows stay locked for the
// rest of tx.
func checkoutAssets(ctx context.Context, tx repository.Store, custodianID string, ids []uuid.UUID) ([]domain.Asset, error) {
	if err := dedupeIDs(ids); err != nil {
		return nil, err
	}
	byID, err := lockAssets(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	holds, err := resolveHolds(ctx, tx, custodianID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Asset, 0, len(ids))
	for _, id := range ids {
		a := byID[id]
		if a.CustodianID != custodianID {
			return nil, fmt.Errorf("asset %s belongs to %s, not %s: %w", a.Code, a.CustodianID, custodianID, domain.ErrOwnershipMismatch)
		}
		if a.Status != domain.AssetStatusAvailable {
			return nil, fmt.Errorf("asset %s is %s: %w", a.Code, a.Status, domain.ErrInvalidState)
		}
		if ref, held := holds.HeldBy(id); held {
			return nil, fmt.Errorf("asset %s is held by %s %s: %w", a.Code, ref.Kind, ref.ID, domain.ErrInvalidState)
		}
		out = append(out, a)
	}
	return out, nil
}

// moveAssets sets every line item to status, asserting it is still owned by
// custodianID.
func moveAssets(ctx context.Context, tx repository.Store, ids []uuid.UUID, custodianID string, status domain.AssetStatus) error {
	return settle(ctx, tx, ids, custodianID, func(uuid.UUID) (custody.Placement, error) {
		return custody.Placement{Status: status, Custodian: custodianID}, nil
	})
}

// settle re-validates ownership of every line item under lock and applies
// mapping. Any failure aborts the surrounding transaction.
func settle(ctx context.Context, tx repository.Store, ids []uuid.UUID, expectCustodian string, mapping custody.Mapping) error {
	byID, err := lockAssets(ctx, tx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		a := byID[id]
		if a.CustodianID != expectCustodian {
			return fmt.Errorf("asset %s now belongs to %s, expected %s: %w", a.Code, a.CustodianID, expectCustodian, domain.ErrOwnershipMismatch)
		}
		p, err := mapping(id)
		if err != nil {
			return err
		}
		if err := tx.Assets().UpdateCustody(ctx, id, p.Status, p.Custodian); err != nil {
			return err
		}
	}
	return nil
}
