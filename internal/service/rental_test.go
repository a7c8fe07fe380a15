package service

import (
	"testing"
	"time"

	"custody-backend/internal/custody"
	"custody-backend/internal/domain"
	"custody-backend/internal/repository"
	"custody-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRentalService_ExternalPartialReturns(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 10, domain.AssetAttributes{Size: "20L"})
	estimated := f.clock.AddDate(0, 0, 7)

	rt, err := f.rentals.OpenRental(f.ctx, OpenRentalRequest{
		CustodianID:         alice,
		Counterparty:        "Acme Foods",
		Kind:                domain.RentalKindExternal,
		AssetIDs:            ids(seeded),
		EstimatedReturnDate: &estimated,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rt.DailyRateCents)
	assert.Equal(t, 10, rt.PendingCount)
	assert.Equal(t, 7, rt.EstimatedDays)
	assert.Equal(t, int64(1), rt.RemisionNumber)
	for _, a := range seeded {
		assert.Equal(t, domain.AssetStatusOnRental, f.asset(t, a.ID).Status)
	}
	assert.Empty(t, availableIDs(t, f, alice))

	f.advanceDays(3)
	rt, ret, err := f.rentals.ProcessReturn(f.ctx, rt.ID, ids(seeded[:4]), "first pickup")
	require.NoError(t, err)
	assert.Equal(t, int64(24), ret.AmountCents)
	assert.Equal(t, 3, ret.DaysCharged)
	assert.Equal(t, int64(1), ret.InvoiceNumber)
	assert.Equal(t, 6, rt.PendingCount)
	assert.Equal(t, 4, rt.ReturnedCount)
	assert.Equal(t, int64(24), rt.TotalInvoicedCents)
	assert.Equal(t, domain.RentalStatusActive, rt.Status)
	assert.Len(t, availableIDs(t, f, alice), 4)

	f.advanceDays(2)
	rt, ret, err = f.rentals.ProcessReturn(f.ctx, rt.ID, ids(seeded[4:]), "")
	require.NoError(t, err)
	assert.Equal(t, int64(60), ret.AmountCents)
	assert.Equal(t, 0, rt.PendingCount)
	assert.Equal(t, 10, rt.ReturnedCount)
	assert.Equal(t, domain.RentalStatusReturned, rt.Status)
	assert.Equal(t, int64(84), rt.TotalAmountCents)
	assert.Equal(t, 5, rt.ActualDays)
	require.NotNil(t, rt.ActualReturnDate)
	assert.Equal(t, f.clock, *rt.ActualReturnDate)

	for _, a := range seeded {
		got := f.asset(t, a.ID)
		assert.Equal(t, domain.AssetStatusAvailable, got.Status)
		assert.Equal(t, alice, got.CustodianID)
	}

	returns, err := f.rentals.ListReturns(f.ctx, rt.ID)
	require.NoError(t, err)
	require.Len(t, returns, 2)
	assert.Equal(t, int64(1), returns[0].InvoiceNumber)
	assert.Equal(t, int64(2), returns[1].InvoiceNumber)
}

func TestRentalService_InternalFlatCharge(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 5, domain.AssetAttributes{})

	rt, err := f.rentals.OpenRental(f.ctx, OpenRentalRequest{
		CustodianID:  alice,
		Counterparty: "kitchen",
		Kind:         domain.RentalKindInternal,
		AssetIDs:     ids(seeded),
	})
	require.NoError(t, err)

	f.advanceDays(40)
	rt, ret, err := f.rentals.ProcessReturn(f.ctx, rt.ID, ids(seeded), "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), ret.AmountCents)
	assert.Equal(t, 0, ret.DaysCharged)
	assert.Equal(t, domain.RentalStatusReturned, rt.Status)
}

func TestRentalService_ReturnTwice(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 4, domain.AssetAttributes{})

	rt, err := f.rentals.OpenRental(f.ctx, OpenRentalRequest{
		CustodianID:  alice,
		Counterparty: "Acme Foods",
		Kind:         domain.RentalKindExternal,
		AssetIDs:     ids(seeded),
	})
	require.NoError(t, err)

	_, _, err = f.rentals.ProcessReturn(f.ctx, rt.ID, ids(seeded[:2]), "")
	require.NoError(t, err)

	_, _, err = f.rentals.ProcessReturn(f.ctx, rt.ID, ids(seeded[:2]), "")
	assert.ErrorIs(t, err, domain.ErrQuantityExceeded)

	stored, err := f.rentals.GetRental(f.ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.PendingCount)
	assert.Equal(t, int64(4), stored.TotalInvoicedCents)

	_, _, err = f.rentals.ProcessReturn(f.ctx, rt.ID, ids(seeded[2:]), "")
	require.NoError(t, err)
	_, _, err = f.rentals.ProcessReturn(f.ctx, rt.ID, ids(seeded[2:]), "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, _, err = f.rentals.ProcessReturn(f.ctx, rt.ID, nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRentalService_OpenValidation(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 2, domain.AssetAttributes{})

	_, err := f.rentals.OpenRental(f.ctx, OpenRentalRequest{CustodianID: alice, Counterparty: "x", Kind: "LEASE", AssetIDs: ids(seeded)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.rentals.OpenRental(f.ctx, OpenRentalRequest{CustodianID: alice, Kind: domain.RentalKindExternal, AssetIDs: ids(seeded)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.rentals.OpenRental(f.ctx, OpenRentalRequest{CustodianID: bob, Counterparty: "x", Kind: domain.RentalKindExternal, AssetIDs: ids(seeded)})
	assert.ErrorIs(t, err, domain.ErrOwnershipMismatch)

	// Assets held by a pending transfer cannot go out on rental.
	_, err = f.transfers.OpenTransfer(f.ctx, alice, bob, ids(seeded[:1]), "")
	require.NoError(t, err)
	_, err = f.rentals.OpenRental(f.ctx, OpenRentalRequest{CustodianID: alice, Counterparty: "x", Kind: domain.RentalKindExternal, AssetIDs: ids(seeded)})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	for _, a := range seeded {
		assert.Equal(t, domain.AssetStatusAvailable, f.asset(t, a.ID).Status)
	}
}

func TestRentalService_ProcessReturnByLot(t *testing.T) {
	f := newFixture(t)
	small := f.seed(t, alice, "CAN", 3, domain.AssetAttributes{Size: "10L", Color: "blue", Location: "north"})
	large, err := f.assets.CreateBatch(f.ctx, BatchRequest{
		StartCode:   "DRUM-01",
		Count:       2,
		Attributes:  domain.AssetAttributes{Size: "200L", Color: "blue", Location: "north"},
		CustodianID: alice,
	})
	require.NoError(t, err)

	rt, err := f.rentals.OpenRental(f.ctx, OpenRentalRequest{
		CustodianID:  alice,
		Counterparty: "Acme Foods",
		Kind:         domain.RentalKindExternal,
		AssetIDs:     append(ids(small), ids(large)...),
	})
	require.NoError(t, err)

	view, err := f.avail.ListLots(f.ctx, alice, custody.LotFilter{}, nil)
	require.NoError(t, err)
	assert.Empty(t, view.Lots)

	smallKey := "size=10L|color=BLUE|location=NORTH"
	_, _, err = f.rentals.ProcessReturnByLot(f.ctx, rt.ID, nil, []domain.LotRequest{{LotKey: smallKey, Quantity: 5}}, "")
	assert.ErrorIs(t, err, domain.ErrQuantityExceeded)

	_, _, err = f.rentals.ProcessReturnByLot(f.ctx, rt.ID, nil, []domain.LotRequest{{LotKey: "size=1L|color=RED|location=SOUTH", Quantity: 1}}, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rt, ret, err := f.rentals.ProcessReturnByLot(f.ctx, rt.ID, nil, []domain.LotRequest{{LotKey: smallKey, Quantity: 2}}, "")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{small[0].ID, small[1].ID}, ret.AssetIDs)
	assert.Equal(t, 3, rt.PendingCount)
}

func TestRentalService_OverdueStartsAfterDueDay(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 2, domain.AssetAttributes{})
	due, err := utils.ParseDate(f.clock.Format("2006-01-02"), time.UTC)
	require.NoError(t, err)

	rt, err := f.rentals.OpenRental(f.ctx, OpenRentalRequest{
		CustodianID:         alice,
		Counterparty:        "Acme Foods",
		Kind:                domain.RentalKindExternal,
		AssetIDs:            ids(seeded),
		EstimatedReturnDate: &due,
	})
	require.NoError(t, err)

	got, err := f.rentals.GetRental(f.ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusActive, got.Status, "due today")
	overdue, err := f.rentals.ListOverdue(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	f.clock = time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)
	got, err = f.rentals.GetRental(f.ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusActive, got.Status, "late on the due day")

	f.clock = time.Date(2026, 3, 3, 0, 1, 0, 0, time.UTC)
	got, err = f.rentals.GetRental(f.ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusOverdue, got.Status, "due yesterday")
	overdue, err = f.rentals.ListOverdue(f.ctx)
	require.NoError(t, err)
	assert.Len(t, overdue, 1)
}

func TestRentalService_OverdueAndReconcile(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 3, domain.AssetAttributes{})
	due := f.clock.AddDate(0, 0, 1)

	rt, err := f.rentals.OpenRental(f.ctx, OpenRentalRequest{
		CustodianID:         alice,
		Counterparty:        "Acme Foods",
		Kind:                domain.RentalKindExternal,
		AssetIDs:            ids(seeded),
		EstimatedReturnDate: &due,
	})
	require.NoError(t, err)

	overdue, err := f.rentals.ListOverdue(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	f.advanceDays(2)
	overdue, err = f.rentals.ListOverdue(f.ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, domain.RentalStatusOverdue, overdue[0].Status)

	active, err := f.rentals.ListRentals(f.ctx, repository.RentalFilter{Status: domain.RentalStatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// Corrupt the cached counters; the line items still say 3 pending.
	broken := *rt
	broken.PendingCount = 0
	broken.ReturnedCount = 3
	require.NoError(t, f.store.Rentals().UpdateSettlement(f.ctx, &broken))

	repaired, err := f.rentals.ReconcileAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	fixed, err := f.store.Rentals().GetByID(f.ctx, rt.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, fixed.PendingCount)
	assert.Equal(t, 0, fixed.ReturnedCount)
	assert.Equal(t, domain.RentalStatusActive, fixed.Status)

	_, changed, err := f.rentals.ReconcileCounters(f.ctx, rt.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRentalService_ReturnRepairsDriftedCounters(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 2, domain.AssetAttributes{})

	rt, err := f.rentals.OpenRental(f.ctx, OpenRentalRequest{
		CustodianID:  alice,
		Counterparty: "Acme Foods",
		Kind:         domain.RentalKindInternal,
		AssetIDs:     ids(seeded),
	})
	require.NoError(t, err)

	broken := *rt
	broken.PendingCount = 0
	require.NoError(t, f.store.Rentals().UpdateSettlement(f.ctx, &broken))

	rt, _, err = f.rentals.ProcessReturn(f.ctx, rt.ID, ids(seeded[:1]), "")
	require.NoError(t, err)
	assert.Equal(t, 1, rt.PendingCount)
	assert.Equal(t, 1, rt.ReturnedCount)
	assert.Equal(t, domain.RentalStatusActive, rt.Status)
}
