package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"custody-backend/internal/custody"
	"custody-backend/internal/domain"
	"custody-backend/internal/logger"
	"custody-backend/internal/repository"

	"github.com/google/uuid"
)

type transferService struct {
	store     repository.Store
	seq       repository.SequenceRepository
	directory CustodianDirectory
	now       func() time.Time
}

func NewTransferService(store repository.Store, seq repository.SequenceRepository, directory CustodianDirectory) TransferService {
	return &transferService{store: store, seq: seq, directory: directory, now: time.Now}
}

func (s *transferService) OpenTransfer(ctx context.Context, from, to string, assetIDs []uuid.UUID, reason string) (*domain.Transfer, error) {
	logger.EnterMethod("transferService.OpenTransfer", "from", from, "to", to, "assets", len(assetIDs))

	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return nil, fmt.Errorf("both custodians are required: %w", domain.ErrInvalidInput)
	}
	if from == to {
		return nil, fmt.Errorf("cannot transfer to the same custodian: %w", domain.ErrInvalidInput)
	}

	t := &domain.Transfer{
		ID:                 uuid.New(),
		FromCustodian:      from,
		ToCustodian:        to,
		Status:             domain.TransferStatusPending,
		IsCleaningTransfer: s.directory != nil && s.directory.IsCleaningService(to),
		Reason:             reason,
		AssetIDs:           assetIDs,
		RequestedOn:        s.now(),
	}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := checkoutAssets(ctx, tx, from, assetIDs); err != nil {
			return err
		}
		n, err := s.seq.Next(ctx, repository.SeriesTransfer)
		if err != nil {
			return err
		}
		t.DocumentNumber = n
		return tx.Transfers().Create(ctx, t)
	})
	if err != nil {
		logger.ExitMethodWithError("transferService.OpenTransfer", err, "from", from, "to", to)
		return nil, err
	}

	logger.Info("Transfer opened", "transfer_id", t.ID, "document_number", t.DocumentNumber, "assets", len(t.AssetIDs), "cleaning", t.IsCleaningTransfer)
	return t, nil
}

// respond moves a pending transfer along event. Only acceptance touches assets.
func (s *transferService) respond(ctx context.Context, id uuid.UUID, event custody.Event, notes string) (*domain.Transfer, error) {
	var t *domain.Transfer
	var from string
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		t, err = tx.Transfers().GetByID(ctx, id, true)
		if err != nil {
			return err
		}
		next, err := custody.TransferMachine.Next(string(t.Status), event)
		if err != nil {
			return fmt.Errorf("transfer %d: %w", t.DocumentNumber, err)
		}
		if custody.TransferMachine.MovesAssets(next) {
			if err := settle(ctx, tx, t.AssetIDs, t.FromCustodian, custody.TransferMapping(t)); err != nil {
				return err
			}
		}
		now := s.now()
		from = string(t.Status)
		t.Status = domain.TransferStatus(next)
		t.RespondedOn = &now
		if notes != "" {
			t.Notes = notes
		}
		return tx.Transfers().Update(ctx, t)
	})
	if err != nil {
		logger.Warn("Transfer transition failed", "transfer_id", id, "event", event, "error", err)
		return nil, err
	}
	logger.Transition("transfer", t.ID, from, string(t.Status), "document_number", t.DocumentNumber, "assets", len(t.AssetIDs))
	return t, nil
}

func (s *transferService) AcceptTransfer(ctx context.Context, id uuid.UUID, notes string) (*domain.Transfer, error) {
	return s.respond(ctx, id, custody.EventAccept, notes)
}

func (s *transferService) RejectTransfer(ctx context.Context, id uuid.UUID, notes string) (*domain.Transfer, error) {
	return s.respond(ctx, id, custody.EventReject, notes)
}

func (s *transferService) CancelTransfer(ctx context.Context, id uuid.UUID, notes string) (*domain.Transfer, error) {
	return s.respond(ctx, id, custody.EventCancel, notes)
}

func (s *transferService) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	return s.store.Transfers().GetByID(ctx, id, false)
}

func (s *transferService) ListTransfers(ctx context.Context, custodianID string, status domain.TransferStatus) ([]domain.Transfer, error) {
	return s.store.Transfers().List(ctx, custodianID, status)
}
