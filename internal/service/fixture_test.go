package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository/memory"
	"custody-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	alice   = "alice"
	bob     = "bob"
	washers = "washers"
)

type fixture struct {
	ctx       context.Context
	store     *memory.Store
	seq       *memory.Sequence
	assets    *assetService
	avail     AvailabilityService
	transfers *transferService
	rentals   *rentalService
	cleanings *cleaningService
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memory.NewStore(),
		seq:   memory.NewSequence(),
		clock: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }

	f.assets = NewAssetService(f.store, 500, true).(*assetService)
	f.avail = NewAvailabilityService(f.store, nil)

	f.transfers = NewTransferService(f.store, f.seq, NewStaticDirectory([]string{washers})).(*transferService)
	f.transfers.now = now

	tariff := utils.Tariff{InternalRateCents: 1, ExternalDailyRateCents: 2}
	f.rentals = NewRentalService(f.store, f.seq, tariff, time.UTC, nil).(*rentalService)
	f.rentals.now = now

	f.cleanings = NewCleaningService(f.store, f.seq, domain.AssetStatusOutOfService).(*cleaningService)
	f.cleanings.now = now
	return f
}

func (f *fixture) advanceDays(days int) {
	f.clock = f.clock.AddDate(0, 0, days)
}

// seed creates n AVAILABLE assets for custodian with codes prefix-0001.. .
func (f *fixture) seed(t *testing.T, custodian, prefix string, n int, attrs domain.AssetAttributes) []domain.Asset {
	t.Helper()
	created, err := f.assets.CreateBatch(f.ctx, BatchRequest{
		StartCode:   fmt.Sprintf("%s-%04d", prefix, 1),
		Count:       n,
		Attributes:  attrs,
		CustodianID: custodian,
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) asset(t *testing.T, id uuid.UUID) *domain.Asset {
	t.Helper()
	a, err := f.store.Assets().GetByID(f.ctx, id)
	require.NoError(t, err)
	return a
}

func ids(assets []domain.Asset) []uuid.UUID {
	out := make([]uuid.UUID, len(assets))
	for i, a := range assets {
		out[i] = a.ID
	}
	return out
}

func availableIDs(t *testing.T, f *fixture, custodian string) map[uuid.UUID]bool {
	t.Helper()
	av, err := f.avail.ListAvailable(f.ctx, custodian, "")
	require.NoError(t, err)
	out := make(map[uuid.UUID]bool, len(av.Assets))
	for _, a := range av.Assets {
		out[a.ID] = true
	}
	return out
}
