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
	"custody-backend/internal/utils"

	"github.com/google/uuid"
)

type rentalService struct {
	store   repository.Store
	seq     repository.SequenceRepository
	tariff  utils.Tariff
	loc     *time.Location
	lotKeys []string
	now     func() time.Time
}

func NewRentalService(store repository.Store, seq repository.SequenceRepository, tariff utils.Tariff, loc *time.Location, lotKeys []string) RentalService {
	if loc == nil {
		loc = time.UTC
	}
	if len(lotKeys) == 0 {
		lotKeys = custody.DefaultLotKeys
	}
	return &rentalService{store: store, seq: seq, tariff: tariff, loc: loc, lotKeys: lotKeys, now: time.Now}
}

func (s *rentalService) OpenRental(ctx context.Context, req OpenRentalRequest) (*domain.Rental, error) {
	logger.EnterMethod("rentalService.OpenRental", "custodian", req.CustodianID, "counterparty", req.Counterparty, "kind", req.Kind, "assets", len(req.AssetIDs))

	if req.CustodianID == "" || strings.TrimSpace(req.Counterparty) == "" {
		return nil, fmt.Errorf("custodian and counterparty are required: %w", domain.ErrInvalidInput)
	}
	rate, err := s.tariff.RateFor(req.Kind)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rt := &domain.Rental{
		ID:                  uuid.New(),
		CustodianID:         req.CustodianID,
		Counterparty:        strings.TrimSpace(req.Counterparty),
		Kind:                req.Kind,
		Status:              domain.RentalStatusActive,
		StartDate:           now,
		EstimatedReturnDate: req.EstimatedReturnDate,
		DailyRateCents:      rate,
		PendingCount:        len(req.AssetIDs),
		Notes:               req.Notes,
	}
	if req.EstimatedReturnDate != nil {
		rt.EstimatedDays = utils.EstimatedDays(now, *req.EstimatedReturnDate, s.loc)
	}
	for _, id := range req.AssetIDs {
		rt.Items = append(rt.Items, domain.RentalItem{AssetID: id})
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := checkoutAssets(ctx, tx, req.CustodianID, req.AssetIDs); err != nil {
			return err
		}
		if err := moveAssets(ctx, tx, req.AssetIDs, req.CustodianID, domain.AssetStatusOnRental); err != nil {
			return err
		}
		n, err := s.seq.Next(ctx, repository.SeriesRentalRemision)
		if err != nil {
			return err
		}
		rt.RemisionNumber = n
		return tx.Rentals().Create(ctx, rt)
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.OpenRental", err, "custodian", req.CustodianID)
		return nil, err
	}

	logger.Info("Rental opened", "rental_id", rt.ID, "remision_number", rt.RemisionNumber, "kind", rt.Kind, "assets", len(rt.Items))
	return rt, nil
}

// repairCounters rebuilds the cached counters from line items and returns
// when they disagree with the items. It reports whether anything changed.
func repairCounters(ctx context.Context, tx repository.Store, rt *domain.Rental) (bool, error) {
	pending := len(rt.PendingAssetIDs())
	if rt.PendingCount == pending && rt.PendingCount+rt.ReturnedCount == len(rt.Items) {
		return false, nil
	}
	returns, err := tx.Rentals().ListReturns(ctx, rt.ID)
	if err != nil {
		return false, err
	}
	before := [3]int64{int64(rt.PendingCount), int64(rt.ReturnedCount), rt.TotalInvoicedCents}
	rt.Recount(returns)
	logger.Warn("Rental counters drifted, recomputed from line items",
		"rental_id", rt.ID,
		"pending_before", before[0], "returned_before", before[1], "invoiced_before", before[2],
		"pending", rt.PendingCount, "returned", rt.ReturnedCount, "invoiced", rt.TotalInvoicedCents)
	return true, nil
}

func (s *rentalService) ProcessReturn(ctx context.Context, rentalID uuid.UUID, assetIDs []uuid.UUID, notes string) (*domain.Rental, *domain.RentalReturn, error) {
	logger.EnterMethod("rentalService.ProcessReturn", "rental_id", rentalID, "assets", len(assetIDs))

	if err := dedupeIDs(assetIDs); err != nil {
		return nil, nil, err
	}

	var rt *domain.Rental
	var ret *domain.RentalReturn
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		rt, err = tx.Rentals().GetByID(ctx, rentalID, true)
		if err != nil {
			return err
		}
		if rt.Status != domain.RentalStatusActive {
			return fmt.Errorf("rental %d is %s: %w", rt.RemisionNumber, rt.Status, domain.ErrInvalidState)
		}
		if _, err := repairCounters(ctx, tx, rt); err != nil {
			return err
		}

		pending := make(map[uuid.UUID]bool, rt.PendingCount)
		for _, id := range rt.PendingAssetIDs() {
			pending[id] = true
		}
		for _, id := range assetIDs {
			if !pending[id] {
				return fmt.Errorf("asset %s is not pending on rental %d: %w", id, rt.RemisionNumber, domain.ErrQuantityExceeded)
			}
		}

		now := s.now()
		days := utils.ChargeableDays(rt.StartDate, now, s.loc)
		charge, err := utils.CalculateCharge(rt.Kind, rt.DailyRateCents, len(assetIDs), days)
		if err != nil {
			return err
		}
		invoice, err := s.seq.Next(ctx, repository.SeriesRentalInvoice)
		if err != nil {
			return err
		}
		ret = &domain.RentalReturn{
			ID:            uuid.New(),
			RentalID:      rt.ID,
			InvoiceNumber: invoice,
			AssetIDs:      assetIDs,
			DaysCharged:   charge.Days,
			AmountCents:   charge.AmountCents,
			Notes:         notes,
			CreatedOn:     now,
		}
		if err := tx.Rentals().CreateReturn(ctx, ret); err != nil {
			return err
		}

		// Pending membership is checked again by the write itself; a
		// concurrent return that got there first shows up as a short count.
		marked, err := tx.Rentals().MarkItemsReturned(ctx, rt.ID, ret.ID, assetIDs)
		if err != nil {
			return err
		}
		if marked != len(assetIDs) {
			return fmt.Errorf("only %d of %d assets were still pending on rental %d: %w", marked, len(assetIDs), rt.RemisionNumber, domain.ErrQuantityExceeded)
		}
		if err := moveAssets(ctx, tx, assetIDs, rt.CustodianID, domain.AssetStatusAvailable); err != nil {
			return err
		}

		returned := make(map[uuid.UUID]bool, len(assetIDs))
		for _, id := range assetIDs {
			returned[id] = true
		}
		for i := range rt.Items {
			if returned[rt.Items[i].AssetID] {
				rt.Items[i].ReturnID = &ret.ID
				rt.Items[i].ReturnedOn = &now
			}
		}
		rt.ReturnedCount += marked
		rt.PendingCount -= marked
		rt.TotalInvoicedCents += charge.AmountCents
		if rt.PendingCount == 0 {
			rt.Status = domain.RentalStatusReturned
			rt.ActualReturnDate = &now
			rt.ActualDays = days
			rt.TotalAmountCents = rt.TotalInvoicedCents
		}
		return tx.Rentals().UpdateSettlement(ctx, rt)
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.ProcessReturn", err, "rental_id", rentalID)
		return nil, nil, err
	}

	logger.Info("Rental return processed",
		"rental_id", rt.ID, "invoice_number", ret.InvoiceNumber, "assets", len(ret.AssetIDs),
		"amount_cents", ret.AmountCents, "pending", rt.PendingCount, "status", rt.Status)
	return rt, ret, nil
}

func (s *rentalService) ProcessReturnByLot(ctx context.Context, rentalID uuid.UUID, keys []string, requests []domain.LotRequest, notes string) (*domain.Rental, *domain.RentalReturn, error) {
	if len(keys) == 0 {
		keys = s.lotKeys
	}
	rt, err := s.store.Rentals().GetByID(ctx, rentalID, false)
	if err != nil {
		return nil, nil, err
	}
	pendingAssets, err := s.store.Assets().GetByIDs(ctx, rt.PendingAssetIDs(), false)
	if err != nil {
		return nil, nil, err
	}
	lots, err := custody.GroupLots(pendingAssets, keys)
	if err != nil {
		return nil, nil, err
	}
	alloc, err := custody.AllocateBasket(lots, requests)
	if err != nil {
		return nil, nil, err
	}
	if alloc.Clamped() {
		return nil, nil, fmt.Errorf("requested %d assets but only %d are pending in those lots: %w", alloc.Requested, len(alloc.AssetIDs), domain.ErrQuantityExceeded)
	}
	return s.ProcessReturn(ctx, rentalID, alloc.AssetIDs, notes)
}

// display derives OVERDUE for active rentals once the calendar day of the
// estimated return date has passed. The due day itself is still on time.
func (s *rentalService) display(rt *domain.Rental, now time.Time) {
	if rt.Status != domain.RentalStatusActive || rt.EstimatedReturnDate == nil {
		return
	}
	if utils.CalendarDays(*rt.EstimatedReturnDate, now, s.loc) > 0 {
		rt.Status = domain.RentalStatusOverdue
	}
}

func (s *rentalService) GetRental(ctx context.Context, id uuid.UUID) (*domain.Rental, error) {
	rt, err := s.store.Rentals().GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	s.display(rt, s.now())
	return rt, nil
}

// ListRentals accepts OVERDUE as a filter even though it is never stored.
// Filtering on ACTIVE still includes overdue rentals.
func (s *rentalService) ListRentals(ctx context.Context, filter repository.RentalFilter) ([]domain.Rental, error) {
	wantOverdue := filter.Status == domain.RentalStatusOverdue
	if wantOverdue {
		filter.Status = domain.RentalStatusActive
	}
	rentals, err := s.store.Rentals().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := rentals[:0]
	for i := range rentals {
		s.display(&rentals[i], now)
		if wantOverdue && rentals[i].Status != domain.RentalStatusOverdue {
			continue
		}
		out = append(out, rentals[i])
	}
	return out, nil
}

func (s *rentalService) ListOverdue(ctx context.Context) ([]domain.Rental, error) {
	return s.ListRentals(ctx, repository.RentalFilter{Status: domain.RentalStatusOverdue})
}

func (s *rentalService) ListReturns(ctx context.Context, rentalID uuid.UUID) ([]domain.RentalReturn, error) {
	if _, err := s.store.Rentals().GetByID(ctx, rentalID, false); err != nil {
		return nil, err
	}
	return s.store.Rentals().ListReturns(ctx, rentalID)
}

// ReconcileCounters recomputes the cached counters from line items and
// return records, closing the rental if nothing is left pending.
func (s *rentalService) ReconcileCounters(ctx context.Context, id uuid.UUID) (*domain.Rental, bool, error) {
	var rt *domain.Rental
	changed := false
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		rt, err = tx.Rentals().GetByID(ctx, id, true)
		if err != nil {
			return err
		}
		returns, err := tx.Rentals().ListReturns(ctx, id)
		if err != nil {
			return err
		}
		changed = rt.Recount(returns)
		if rt.Status == domain.RentalStatusActive && rt.PendingCount == 0 && len(rt.Items) > 0 {
			last := rt.StartDate
			for _, ret := range returns {
				if ret.CreatedOn.After(last) {
					last = ret.CreatedOn
				}
			}
			rt.Status = domain.RentalStatusReturned
			rt.ActualReturnDate = &last
			rt.ActualDays = utils.ChargeableDays(rt.StartDate, last, s.loc)
			rt.TotalAmountCents = rt.TotalInvoicedCents
			changed = true
		}
		if !changed {
			return nil
		}
		return tx.Rentals().UpdateSettlement(ctx, rt)
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		logger.Warn("Rental counters reconciled", "rental_id", rt.ID, "pending", rt.PendingCount, "returned", rt.ReturnedCount, "status", rt.Status)
	}
	return rt, changed, nil
}

// ReconcileAll reconciles every active rental and returns how many changed.
func (s *rentalService) ReconcileAll(ctx context.Context) (int, error) {
	active, err := s.store.Rentals().List(ctx, repository.RentalFilter{Status: domain.RentalStatusActive})
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, rt := range active {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		_, changed, err := s.ReconcileCounters(ctx, rt.ID)
		if err != nil {
			return repaired, fmt.Errorf("reconcile rental %d: %w", rt.RemisionNumber, err)
		}
		if changed {
			repaired++
		}
	}
	return repaired, nil
}
