package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/logger"
	"custody-backend/internal/repository"
	"custody-backend/internal/utils"

	"github.com/google/uuid"
)

type assetService struct {
	store         repository.Store
	batchSize     int
	atomicBatches bool
}

func NewAssetService(store repository.Store, batchSize int, atomicBatches bool) AssetService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &assetService{store: store, batchSize: batchSize, atomicBatches: atomicBatches}
}

func ensureAttributes(ctx context.Context, s repository.Store, attrs domain.AssetAttributes) error {
	for _, kind := range domain.AttributeKinds {
		if v := attrs.Value(kind); strings.TrimSpace(v) != "" {
			if err := s.Attributes().EnsureValues(ctx, kind, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateNewAsset(a *domain.Asset) error {
	a.Code = strings.TrimSpace(a.Code)
	if a.Code == "" {
		return fmt.Errorf("asset code is required: %w", domain.ErrInvalidInput)
	}
	if a.CustodianID == "" {
		return fmt.Errorf("custodian is required: %w", domain.ErrInvalidInput)
	}
	if a.Status == "" {
		a.Status = domain.AssetStatusAvailable
	}
	if !a.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", a.Status, domain.ErrInvalidInput)
	}
	return nil
}

func (s *assetService) CreateAsset(ctx context.Context, a *domain.Asset) error {
	if err := validateNewAsset(a); err != nil {
		return err
	}
	a.ID = uuid.New()
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := ensureAttributes(ctx, tx, a.AssetAttributes); err != nil {
			return err
		}
		return tx.Assets().Create(ctx, a)
	})
	if err != nil {
		return err
	}
	logger.Info("Asset created", "asset_id", a.ID, "code", a.Code, "custodian", a.CustodianID)
	return nil
}

func (s *assetService) SuggestNextCode(ctx context.Context, seed string) (string, error) {
	c, ok := utils.SplitCode(strings.TrimSpace(seed))
	if !ok {
		return "", fmt.Errorf("seed code %q has no numeric suffix: %w", seed, domain.ErrInvalidInput)
	}
	siblings, err := s.store.Assets().List(ctx, repository.AssetFilter{CodePrefix: c.Prefix})
	if err != nil {
		return "", err
	}
	codes := make([]string, len(siblings))
	for i, a := range siblings {
		codes[i] = a.Code
	}
	return utils.NextCode(seed, codes)
}

func (s *assetService) CreateBatch(ctx context.Context, req BatchRequest) ([]domain.Asset, error) {
	logger.EnterMethod("assetService.CreateBatch", "start", req.StartCode, "seed", req.Seed, "count", req.Count)

	start := req.StartCode
	if start == "" {
		if req.Seed == "" {
			return nil, fmt.Errorf("start code or seed is required: %w", domain.ErrInvalidInput)
		}
		next, err := s.SuggestNextCode(ctx, req.Seed)
		if err != nil {
			return nil, err
		}
		start = next
	}
	codes, err := utils.SequentialCodes(start, req.Count)
	if err != nil {
		return nil, err
	}

	assets := make([]domain.Asset, len(codes))
	for i, code := range codes {
		assets[i] = domain.Asset{
			ID:              uuid.New(),
			Code:            code,
			AssetAttributes: req.Attributes,
			Status:          domain.AssetStatusAvailable,
			CustodianID:     req.CustodianID,
		}
		if err := validateNewAsset(&assets[i]); err != nil {
			return nil, err
		}
	}

	if s.atomicBatches {
		err = s.store.WithTx(ctx, func(tx repository.Store) error {
			if err := codesFree(ctx, tx, codes); err != nil {
				return err
			}
			if err := ensureAttributes(ctx, tx, req.Attributes); err != nil {
				return err
			}
			for lo := 0; lo < len(assets); lo += s.batchSize {
				if err := tx.Assets().CreateBatch(ctx, assets[lo:min(lo+s.batchSize, len(assets))]); err != nil {
					return err
				}
			}
			return nil
		})
	} else if err = codesFree(ctx, s.store, codes); err == nil {
		err = s.createChunked(ctx, req.Attributes, assets)
	}
	if err != nil {
		logger.ExitMethodWithError("assetService.CreateBatch", err, "start", start)
		return nil, err
	}

	logger.Info("Asset batch created", "first", codes[0], "last", codes[len(codes)-1], "count", len(codes), "custodian", req.CustodianID)
	logger.ExitMethod("assetService.CreateBatch", "count", len(assets))
	return assets, nil
}

// codesFree fails with every requested code that an active asset already uses.
func codesFree(ctx context.Context, st repository.Store, codes []string) error {
	taken, err := st.Assets().ExistingCodes(ctx, codes)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return fmt.Errorf("codes already in use: %s: %w", strings.Join(taken, ", "), domain.ErrDuplicateCode)
	}
	return nil
}

// createChunked commits each chunk on its own. A failing chunk leaves the
// earlier ones in place and is reported with the committed count.
func (s *assetService) createChunked(ctx context.Context, attrs domain.AssetAttributes, assets []domain.Asset) error {
	if err := ensureAttributes(ctx, s.store, attrs); err != nil {
		return err
	}
	committed := 0
	for lo := 0; lo < len(assets); lo += s.batchSize {
		chunk := assets[lo:min(lo+s.batchSize, len(assets))]
		err := s.store.WithTx(ctx, func(tx repository.Store) error {
			return tx.Assets().CreateBatch(ctx, chunk)
		})
		if err != nil {
			if committed == 0 {
				return err
			}
			logger.Warn("Asset batch stopped part way", "committed", committed, "total", len(assets), "error", err)
			return &domain.PartialBatchError{Committed: committed, Total: len(assets), Err: err}
		}
		committed += len(chunk)
	}
	return nil
}

func (s *assetService) GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	return s.store.Assets().GetByID(ctx, id)
}

func (s *assetService) ListAssets(ctx context.Context, filter repository.AssetFilter) ([]domain.Asset, error) {
	return s.store.Assets().List(ctx, filter)
}

// guardEdit locks the asset and refuses direct edits while an in-flight
// operation references it.
func guardEdit(ctx context.Context, tx repository.Store, id uuid.UUID) (*domain.Asset, error) {
	byID, err := lockAssets(ctx, tx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	a := byID[id]
	refs, err := tx.Assets().OpenReferences(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		return nil, fmt.Errorf("asset %s is part of %s %s: %w", a.Code, refs[0].Kind, refs[0].ID, domain.ErrInvalidState)
	}
	return &a, nil
}

func (s *assetService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AssetStatus) (*domain.Asset, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrInvalidInput)
	}
	var out *domain.Asset
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		a, err := guardEdit(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.Assets().UpdateCustody(ctx, id, status, a.CustodianID); err != nil {
			return err
		}
		a.Status = status
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Asset status updated", "asset_id", id, "status", status)
	return out, nil
}

func (s *assetService) UpdateOwner(ctx context.Context, id uuid.UUID, custodianID string) (*domain.Asset, error) {
	if custodianID == "" {
		return nil, fmt.Errorf("custodian is required: %w", domain.ErrInvalidInput)
	}
	var out *domain.Asset
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		a, err := guardEdit(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.Assets().UpdateCustody(ctx, id, a.Status, custodianID); err != nil {
			return err
		}
		a.CustodianID = custodianID
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Asset owner updated", "asset_id", id, "custodian", custodianID)
	return out, nil
}

func (s *assetService) RetireAsset(ctx context.Context, id uuid.UUID, reason, retiredBy string) (*domain.WriteOff, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("retire reason is required: %w", domain.ErrInvalidInput)
	}
	var wo *domain.WriteOff
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		a, err := guardEdit(ctx, tx, id)
		if err != nil {
			return err
		}
		wo = &domain.WriteOff{
			ID:          uuid.New(),
			AssetID:     a.ID,
			Code:        a.Code,
			LastStatus:  a.Status,
			CustodianID: a.CustodianID,
			Reason:      reason,
			RetiredBy:   retiredBy,
			RetiredOn:   time.Now(),
		}
		return tx.Assets().Retire(ctx, wo)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			logger.Warn("Asset retire refused", "asset_id", id, "error", err)
		}
		return nil, err
	}
	logger.Info("Asset retired", "asset_id", id, "code", wo.Code, "reason", reason)
	return wo, nil
}

func (s *assetService) ListWriteOffs(ctx context.Context, assetID uuid.UUID) ([]domain.WriteOff, error) {
	return s.store.Assets().ListWriteOffs(ctx, assetID)
}

func (s *assetService) ListAttributeValues(ctx context.Context, kind string) ([]string, error) {
	for _, k := range domain.AttributeKinds {
		if k == kind {
			return s.store.Attributes().ListValues(ctx, kind)
		}
	}
	return nil, fmt.Errorf("unknown attribute kind %q: %w", kind, domain.ErrInvalidInput)
}
