package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	"github.com/google/uuid"
)

type transferRepository struct {
	s *Store
}

func (r *transferRepository) Create(ctx context.Context, t *domain.Transfer) error {
	defer r.s.lock()()
	if t.RequestedOn.IsZero() {
		t.RequestedOn = time.Now()
	}
	r.s.db.st.transfers[t.ID] = cloneTransfer(*t)
	return nil
}

func (r *transferRepository) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Transfer, error) {
	defer r.s.lock()()
	t, ok := r.s.db.st.transfers[id]
	if !ok {
		return nil, fmt.Errorf("transfer %s: %w", id, domain.ErrNotFound)
	}
	t = cloneTransfer(t)
	return &t, nil
}

func (r *transferRepository) Update(ctx context.Context, t *domain.Transfer) error {
	defer r.s.lock()()
	cur, ok := r.s.db.st.transfers[t.ID]
	if !ok {
		return fmt.Errorf("transfer %s: %w", t.ID, domain.ErrNotFound)
	}
	cur.Status = t.Status
	cur.Notes = t.Notes
	cur.RespondedOn = t.RespondedOn
	r.s.db.st.transfers[t.ID] = cur
	return nil
}

func (r *transferRepository) ListOpenFrom(ctx context.Context, custodianID string) ([]domain.Transfer, error) {
	return r.list(custodianID, domain.TransferStatusPending, true), nil
}

// List returns transfers where custodianID is either party.
func (r *transferRepository) List(ctx context.Context, custodianID string, status domain.TransferStatus) ([]domain.Transfer, error) {
	return r.list(custodianID, status, false), nil
}

func (r *transferRepository) list(custodianID string, status domain.TransferStatus, outgoing bool) []domain.Transfer {
	defer r.s.lock()()
	var out []domain.Transfer
	for _, t := range r.s.db.st.transfers {
		if custodianID != "" {
			from := t.FromCustodian == custodianID
			if !from && (outgoing || t.ToCustodian != custodianID) {
				continue
			}
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, cloneTransfer(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentNumber > out[j].DocumentNumber })
	return out
}

type rentalRepository struct {
	s *Store
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	defer r.s.lock()()
	now := time.Now()
	if rt.CreatedOn.IsZero() {
		rt.CreatedOn = now
	}
	rt.UpdatedOn = now
	r.s.db.st.rentals[rt.ID] = cloneRental(*rt)
	return nil
}

func (r *rentalRepository) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Rental, error) {
	defer r.s.lock()()
	rt, ok := r.s.db.st.rentals[id]
	if !ok {
		return nil, fmt.Errorf("rental %s: %w", id, domain.ErrNotFound)
	}
	rt = cloneRental(rt)
	return &rt, nil
}

func (r *rentalRepository) UpdateSettlement(ctx context.Context, rt *domain.Rental) error {
	defer r.s.lock()()
	cur, ok := r.s.db.st.rentals[rt.ID]
	if !ok {
		return fmt.Errorf("rental %s: %w", rt.ID, domain.ErrNotFound)
	}
	cur.Status = rt.Status
	cur.PendingCount = rt.PendingCount
	cur.ReturnedCount = rt.ReturnedCount
	cur.TotalInvoicedCents = rt.TotalInvoicedCents
	cur.TotalAmountCents = rt.TotalAmountCents
	cur.ActualReturnDate = rt.ActualReturnDate
	cur.ActualDays = rt.ActualDays
	cur.UpdatedOn = time.Now()
	r.s.db.st.rentals[rt.ID] = cur
	return nil
}

func (r *rentalRepository) MarkItemsReturned(ctx context.Context, rentalID, returnID uuid.UUID, assetIDs []uuid.UUID) (int, error) {
	defer r.s.lock()()
	cur, ok := r.s.db.st.rentals[rentalID]
	if !ok {
		return 0, fmt.Errorf("rental %s: %w", rentalID, domain.ErrNotFound)
	}
	wanted := make(map[uuid.UUID]bool, len(assetIDs))
	for _, id := range assetIDs {
		wanted[id] = true
	}
	cur = cloneRental(cur)
	now := time.Now()
	changed := 0
	for i, it := range cur.Items {
		if !wanted[it.AssetID] || !it.Pending() {
			continue
		}
		rid := returnID
		cur.Items[i].ReturnID = &rid
		cur.Items[i].ReturnedOn = &now
		changed++
	}
	r.s.db.st.rentals[rentalID] = cur
	return changed, nil
}

func (r *rentalRepository) CreateReturn(ctx context.Context, ret *domain.RentalReturn) error {
	defer r.s.lock()()
	if _, ok := r.s.db.st.rentals[ret.RentalID]; !ok {
		return fmt.Errorf("rental %s: %w", ret.RentalID, domain.ErrNotFound)
	}
	if ret.CreatedOn.IsZero() {
		ret.CreatedOn = time.Now()
	}
	r.s.db.st.returns[ret.RentalID] = append(r.s.db.st.returns[ret.RentalID], cloneReturn(*ret))
	return nil
}

func (r *rentalRepository) ListReturns(ctx context.Context, rentalID uuid.UUID) ([]domain.RentalReturn, error) {
	defer r.s.lock()()
	rets := r.s.db.st.returns[rentalID]
	out := make([]domain.RentalReturn, len(rets))
	for i, ret := range rets {
		out[i] = cloneReturn(ret)
	}
	return out, nil
}

func (r *rentalRepository) List(ctx context.Context, f repository.RentalFilter) ([]domain.Rental, error) {
	defer r.s.lock()()
	var out []domain.Rental
	for _, rt := range r.s.db.st.rentals {
		if f.CustodianID != "" && rt.CustodianID != f.CustodianID {
			continue
		}
		if f.Counterparty != "" && rt.Counterparty != f.Counterparty {
			continue
		}
		if f.Status != "" && rt.Status != f.Status {
			continue
		}
		out = append(out, cloneRental(rt))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemisionNumber > out[j].RemisionNumber })
	return out, nil
}

type cleaningRepository struct {
	s *Store
}

func (r *cleaningRepository) Create(ctx context.Context, o *domain.CleaningOrder) error {
	defer r.s.lock()()
	if o.SentOn.IsZero() {
		o.SentOn = time.Now()
	}
	r.s.db.st.cleanings[o.ID] = cloneCleaning(*o)
	return nil
}

func (r *cleaningRepository) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.CleaningOrder, error) {
	defer r.s.lock()()
	o, ok := r.s.db.st.cleanings[id]
	if !ok {
		return nil, fmt.Errorf("cleaning order %s: %w", id, domain.ErrNotFound)
	}
	o = cloneCleaning(o)
	return &o, nil
}

func (r *cleaningRepository) Update(ctx context.Context, o *domain.CleaningOrder) error {
	defer r.s.lock()()
	if _, ok := r.s.db.st.cleanings[o.ID]; !ok {
		return fmt.Errorf("cleaning order %s: %w", o.ID, domain.ErrNotFound)
	}
	r.s.db.st.cleanings[o.ID] = cloneCleaning(*o)
	return nil
}

func (r *cleaningRepository) ListOpenFrom(ctx context.Context, custodianID string) ([]domain.CleaningOrder, error) {
	defer r.s.lock()()
	var out []domain.CleaningOrder
	for _, o := range r.s.db.st.cleanings {
		if o.SenderID == custodianID && !o.Status.Terminal() {
			out = append(out, cloneCleaning(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveryNumber > out[j].DeliveryNumber })
	return out, nil
}

func (r *cleaningRepository) List(ctx context.Context, custodianID string, status domain.CleaningStatus) ([]domain.CleaningOrder, error) {
	defer r.s.lock()()
	var out []domain.CleaningOrder
	for _, o := range r.s.db.st.cleanings {
		if custodianID != "" && o.SenderID != custodianID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, cloneCleaning(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveryNumber > out[j].DeliveryNumber })
	return out, nil
}
