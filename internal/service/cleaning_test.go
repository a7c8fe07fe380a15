package service

import (
	"testing"

	"custody-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleaningService_FullCycle(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 3, domain.AssetAttributes{})
	damaged := seeded[1].ID

	o, err := f.cleanings.SendToCleaning(f.ctx, alice, washers, ids(seeded), "weekly wash")
	require.NoError(t, err)
	assert.Equal(t, domain.CleaningStatusSent, o.Status)
	assert.Equal(t, int64(1), o.DeliveryNumber)
	for _, a := range seeded {
		got := f.asset(t, a.ID)
		assert.Equal(t, domain.AssetStatusAwaitingPickup, got.Status)
		assert.Equal(t, alice, got.CustodianID)
	}

	o, err = f.cleanings.Receive(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CleaningStatusReceived, o.Status)
	assert.NotNil(t, o.ReceivedOn)
	assert.Equal(t, domain.AssetStatusInCleaning, f.asset(t, damaged).Status)

	outcomes := map[uuid.UUID]domain.CleaningOutcome{}
	for _, a := range seeded {
		outcomes[a.ID] = domain.CleaningOutcomeCleaned
	}
	outcomes[damaged] = domain.CleaningOutcomeDamaged
	o, err = f.cleanings.MarkServiceComplete(f.ctx, o.ID, outcomes)
	require.NoError(t, err)
	assert.Equal(t, domain.CleaningStatusServiceComplete, o.Status)
	assert.Equal(t, domain.AssetStatusInCleaning, f.asset(t, damaged).Status)

	o, err = f.cleanings.Deliver(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CleaningStatusDelivered, o.Status)
	require.NotNil(t, o.ReturnNumber)
	assert.Equal(t, int64(1), *o.ReturnNumber)

	o, err = f.cleanings.ConfirmReceipt(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CleaningStatusConfirmed, o.Status)
	assert.NotNil(t, o.ConfirmedOn)

	for _, a := range seeded {
		got := f.asset(t, a.ID)
		assert.Equal(t, alice, got.CustodianID)
		if a.ID == damaged {
			assert.Equal(t, domain.AssetStatusOutOfService, got.Status)
		} else {
			assert.Equal(t, domain.AssetStatusAvailable, got.Status)
		}
	}

	stored, err := f.cleanings.GetOrder(f.ctx, o.ID)
	require.NoError(t, err)
	for _, it := range stored.Items {
		assert.Equal(t, outcomes[it.AssetID], it.Outcome)
	}
}

func TestCleaningService_HoldsAndCancel(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 2, domain.AssetAttributes{})

	o, err := f.cleanings.SendToCleaning(f.ctx, alice, washers, ids(seeded[:1]), "")
	require.NoError(t, err)

	_, err = f.transfers.OpenTransfer(f.ctx, alice, bob, ids(seeded[:1]), "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.assets.RetireAsset(f.ctx, seeded[0].ID, "cracked", alice)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	o, err = f.cleanings.Cancel(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CleaningStatusCancelled, o.Status)
	assert.Equal(t, domain.AssetStatusAvailable, f.asset(t, seeded[0].ID).Status)
	assert.True(t, availableIDs(t, f, alice)[seeded[0].ID])

	_, err = f.cleanings.Receive(f.ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCleaningService_InvalidTransitions(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 2, domain.AssetAttributes{})

	o, err := f.cleanings.SendToCleaning(f.ctx, alice, washers, ids(seeded), "")
	require.NoError(t, err)

	_, err = f.cleanings.Deliver(f.ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.cleanings.ConfirmReceipt(f.ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.cleanings.Receive(f.ctx, o.ID)
	require.NoError(t, err)
	_, err = f.cleanings.Cancel(f.ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	t.Run("outcomes must cover every item", func(t *testing.T) {
		_, err := f.cleanings.MarkServiceComplete(f.ctx, o.ID, map[uuid.UUID]domain.CleaningOutcome{
			seeded[0].ID: domain.CleaningOutcomeCleaned,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = f.cleanings.MarkServiceComplete(f.ctx, o.ID, map[uuid.UUID]domain.CleaningOutcome{
			seeded[0].ID: domain.CleaningOutcomeCleaned,
			uuid.New():   domain.CleaningOutcomeCleaned,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = f.cleanings.MarkServiceComplete(f.ctx, o.ID, map[uuid.UUID]domain.CleaningOutcome{
			seeded[0].ID: domain.CleaningOutcomeCleaned,
			seeded[1].ID: "SCRUBBED",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		stored, err := f.cleanings.GetOrder(f.ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CleaningStatusReceived, stored.Status)
	})

	orders, err := f.cleanings.ListOrders(f.ctx, alice, domain.CleaningStatusReceived)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCleaningService_SendValidation(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, alice, "CAN", 1, domain.AssetAttributes{})

	_, err := f.cleanings.SendToCleaning(f.ctx, alice, "", ids(seeded), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.cleanings.SendToCleaning(f.ctx, bob, washers, ids(seeded), "")
	assert.ErrorIs(t, err, domain.ErrOwnershipMismatch)
	_, err = f.cleanings.SendToCleaning(f.ctx, alice, washers, []uuid.UUID{uuid.New()}, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
