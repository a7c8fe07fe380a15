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

type cleaningService struct {
	store         repository.Store
	seq           repository.SequenceRepository
	damagedStatus domain.AssetStatus
	now           func() time.Time
}

func NewCleaningService(store repository.Store, seq repository.SequenceRepository, damagedStatus domain.AssetStatus) CleaningService {
	if damagedStatus == "" {
		damagedStatus = domain.AssetStatusOutOfService
	}
	return &cleaningService{store: store, seq: seq, damagedStatus: damagedStatus, now: time.Now}
}

func (s *cleaningService) SendToCleaning(ctx context.Context, senderID, serviceParty string, assetIDs []uuid.UUID, notes string) (*domain.CleaningOrder, error) {
	logger.EnterMethod("cleaningService.SendToCleaning", "sender", senderID, "service_party", serviceParty, "assets", len(assetIDs))

	senderID, serviceParty = strings.TrimSpace(senderID), strings.TrimSpace(serviceParty)
	if senderID == "" || serviceParty == "" {
		return nil, fmt.Errorf("sender and service party are required: %w", domain.ErrInvalidInput)
	}
	if senderID == serviceParty {
		return nil, fmt.Errorf("cannot send assets to the sender for cleaning: %w", domain.ErrInvalidInput)
	}

	o := &domain.CleaningOrder{
		ID:           uuid.New(),
		SenderID:     senderID,
		ServiceParty: serviceParty,
		Status:       domain.CleaningStatusSent,
		Notes:        notes,
		SentOn:       s.now(),
	}
	for _, id := range assetIDs {
		o.Items = append(o.Items, domain.CleaningItem{AssetID: id})
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := checkoutAssets(ctx, tx, senderID, assetIDs); err != nil {
			return err
		}
		if err := moveAssets(ctx, tx, assetIDs, senderID, domain.AssetStatusAwaitingPickup); err != nil {
			return err
		}
		n, err := s.seq.Next(ctx, repository.SeriesCleaningDelivery)
		if err != nil {
			return err
		}
		o.DeliveryNumber = n
		return tx.Cleanings().Create(ctx, o)
	})
	if err != nil {
		logger.ExitMethodWithError("cleaningService.SendToCleaning", err, "sender", senderID)
		return nil, err
	}

	logger.Info("Cleaning order sent", "order_id", o.ID, "delivery_number", o.DeliveryNumber, "assets", len(o.Items))
	return o, nil
}

// advance applies event to the order under lock. apply runs after the state
// check and may touch assets or fields of the order before it is saved.
func (s *cleaningService) advance(ctx context.Context, id uuid.UUID, event custody.Event, apply func(tx repository.Store, o *domain.CleaningOrder, now time.Time) error) (*domain.CleaningOrder, error) {
	var o *domain.CleaningOrder
	var from string
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		o, err = tx.Cleanings().GetByID(ctx, id, true)
		if err != nil {
			return err
		}
		next, err := custody.CleaningMachine.Next(string(o.Status), event)
		if err != nil {
			return fmt.Errorf("order %d: %w", o.DeliveryNumber, err)
		}
		now := s.now()
		if err := apply(tx, o, now); err != nil {
			return err
		}
		if custody.CleaningMachine.MovesAssets(next) {
			if err := settle(ctx, tx, o.AssetIDs(), o.SenderID, custody.CleaningMapping(o, s.damagedStatus)); err != nil {
				return err
			}
		}
		from = string(o.Status)
		o.Status = domain.CleaningStatus(next)
		return tx.Cleanings().Update(ctx, o)
	})
	if err != nil {
		logger.Warn("Cleaning order transition failed", "order_id", id, "event", event, "error", err)
		return nil, err
	}
	logger.Transition("cleaning_order", o.ID, from, string(o.Status), "delivery_number", o.DeliveryNumber, "assets", len(o.Items))
	return o, nil
}

func (s *cleaningService) Receive(ctx context.Context, id uuid.UUID) (*domain.CleaningOrder, error) {
	return s.advance(ctx, id, custody.EventReceive, func(tx repository.Store, o *domain.CleaningOrder, now time.Time) error {
		o.ReceivedOn = &now
		return moveAssets(ctx, tx, o.AssetIDs(), o.SenderID, domain.AssetStatusInCleaning)
	})
}

// MarkServiceComplete records one outcome per line item. Outcomes must cover
// the order exactly; asset status is left alone until receipt is confirmed.
func (s *cleaningService) MarkServiceComplete(ctx context.Context, id uuid.UUID, outcomes map[uuid.UUID]domain.CleaningOutcome) (*domain.CleaningOrder, error) {
	for assetID, outcome := range outcomes {
		if !outcome.Valid() {
			return nil, fmt.Errorf("asset %s: unknown outcome %q: %w", assetID, outcome, domain.ErrInvalidInput)
		}
	}
	return s.advance(ctx, id, custody.EventServiceComplete, func(_ repository.Store, o *domain.CleaningOrder, now time.Time) error {
		if len(outcomes) != len(o.Items) {
			return fmt.Errorf("order %d has %d items, got %d outcomes: %w", o.DeliveryNumber, len(o.Items), len(outcomes), domain.ErrInvalidInput)
		}
		for i := range o.Items {
			outcome, ok := outcomes[o.Items[i].AssetID]
			if !ok {
				return fmt.Errorf("no outcome for asset %s: %w", o.Items[i].AssetID, domain.ErrInvalidInput)
			}
			o.Items[i].Outcome = outcome
		}
		o.ServiceCompletedOn = &now
		return nil
	})
}

func (s *cleaningService) Deliver(ctx context.Context, id uuid.UUID) (*domain.CleaningOrder, error) {
	return s.advance(ctx, id, custody.EventDeliver, func(_ repository.Store, o *domain.CleaningOrder, now time.Time) error {
		n, err := s.seq.Next(ctx, repository.SeriesCleaningReturn)
		if err != nil {
			return err
		}
		o.ReturnNumber = &n
		o.DeliveredOn = &now
		return nil
	})
}

func (s *cleaningService) ConfirmReceipt(ctx context.Context, id uuid.UUID) (*domain.CleaningOrder, error) {
	return s.advance(ctx, id, custody.EventConfirm, func(_ repository.Store, o *domain.CleaningOrder, now time.Time) error {
		o.ConfirmedOn = &now
		return nil
	})
}

// Cancel releases an order that was never picked up. Ownership never left
// the sender, so the items only drop their awaiting-pickup marker.
func (s *cleaningService) Cancel(ctx context.Context, id uuid.UUID) (*domain.CleaningOrder, error) {
	return s.advance(ctx, id, custody.EventCancel, func(tx repository.Store, o *domain.CleaningOrder, now time.Time) error {
		o.CancelledOn = &now
		return moveAssets(ctx, tx, o.AssetIDs(), o.SenderID, domain.AssetStatusAvailable)
	})
}

func (s *cleaningService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.CleaningOrder, error) {
	return s.store.Cleanings().GetByID(ctx, id, false)
}

func (s *cleaningService) ListOrders(ctx context.Context, senderID string, status domain.CleaningStatus) ([]domain.CleaningOrder, error) {
	return s.store.Cleanings().List(ctx, senderID, status)
}
