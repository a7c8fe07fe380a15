package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func assetRow(id uuid.UUID, code, status, custodian string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(assetColumns).
		AddRow(id.String(), code, "", "L", "RED", "", "", "NORTH", "", "OWNED", status, custodian, now, now)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("Commit", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE assets SET status").
			WithArgs(domain.AssetStatusOnRental, "alice", sqlmock.AnyArg(), id).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTx(ctx, func(tx repository.Store) error {
			return tx.Assets().UpdateCustody(ctx, id, domain.AssetStatusOnRental, "alice")
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback on error", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE assets SET status").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.WithTx(ctx, func(tx repository.Store) error {
			return tx.Assets().UpdateCustody(ctx, id, domain.AssetStatusOnRental, "alice")
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nested joins outer transaction", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := store.WithTx(ctx, func(tx repository.Store) error {
			return tx.WithTx(ctx, func(repository.Store) error { return nil })
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAssetRepository_CreateBatch(t *testing.T) {
	ctx := context.Background()
	assets := []domain.Asset{
		{ID: uuid.New(), Code: "CAN-0043", Status: domain.AssetStatusAvailable, CustodianID: "alice"},
		{ID: uuid.New(), Code: "CAN-0044", Status: domain.AssetStatusAvailable, CustodianID: "alice"},
	}

	t.Run("Success", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectExec("INSERT INTO assets \\(id,code,(.+)\\) VALUES \\((.+)\\),\\((.+)\\)").
			WillReturnResult(sqlmock.NewResult(0, 2))
		assert.NoError(t, store.Assets().CreateBatch(ctx, assets))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate code", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectExec("INSERT INTO assets").WillReturnError(&pq.Error{Code: "23505"})
		err := store.Assets().CreateBatch(ctx, assets)
		assert.ErrorIs(t, err, domain.ErrDuplicateCode)
	})

	t.Run("Other failure", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectExec("INSERT INTO assets").WillReturnError(errors.New("connection reset"))
		err := store.Assets().CreateBatch(ctx, assets)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrDuplicateCode)
	})
}

func TestAssetRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM assets WHERE retired_on IS NULL AND id = \\$1").
			WithArgs(id).
			WillReturnRows(assetRow(id, "CAN-0001", "AVAILABLE", "alice"))

		a, err := store.Assets().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, a.ID)
		assert.Equal(t, "CAN-0001", a.Code)
		assert.Equal(t, domain.AssetStatusAvailable, a.Status)
		assert.Equal(t, "RED", a.Color)
	})

	t.Run("Not found", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM assets").WillReturnRows(sqlmock.NewRows(assetColumns))

		_, err := store.Assets().GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestAssetRepository_GetByIDsForUpdate(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM assets WHERE retired_on IS NULL AND id IN \\(\\$1\\) ORDER BY code FOR UPDATE").
		WithArgs(id.String()).
		WillReturnRows(assetRow(id, "CAN-0001", "AVAILABLE", "alice"))

	assets, err := store.Assets().GetByIDs(ctx, []uuid.UUID{id}, true)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, id, assets[0].ID)
}

func TestAssetRepository_List(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM assets WHERE retired_on IS NULL AND custodian_id = \\$1 AND status IN \\(\\$2\\) AND code LIKE \\$3 ORDER BY code LIMIT 10").
		WithArgs("alice", "AVAILABLE", "CAN\\_%").
		WillReturnRows(assetRow(uuid.New(), "CAN_0001", "AVAILABLE", "alice"))

	assets, err := store.Assets().List(ctx, repository.AssetFilter{
		CustodianID: "alice",
		Statuses:    []domain.AssetStatus{domain.AssetStatusAvailable},
		CodePrefix:  "CAN_",
		Limit:       10,
	})
	require.NoError(t, err)
	assert.Len(t, assets, 1)
}

func TestAssetRepository_Retire(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)
	wo := &domain.WriteOff{ID: uuid.New(), AssetID: uuid.New(), Code: "CAN-0001", LastStatus: domain.AssetStatusLost, CustodianID: "alice", Reason: "lost in transit"}

	mock.ExpectExec("UPDATE assets SET retired_on").WithArgs(sqlmock.AnyArg(), wo.AssetID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO asset_write_offs").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Assets().Retire(ctx, wo))
	assert.False(t, wo.RetiredOn.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_OpenReferences(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)
	id, tid := uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT 'TRANSFER', t.id FROM transfers").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "id"}).AddRow("TRANSFER", tid.String()))

	refs, err := store.Assets().OpenReferences(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []domain.OperationRef{{Kind: domain.OperationTransfer, ID: tid}}, refs)
}

func TestAttributeRepository_EnsureValues(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)
	mock.ExpectExec("INSERT INTO attribute_values \\(kind,value\\) VALUES \\(\\$1,\\$2\\),\\(\\$3,\\$4\\) ON CONFLICT").
		WithArgs("color", "RED", "color", "BLUE").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, store.Attributes().EnsureValues(ctx, "color", "RED", "  ", "BLUE"))
	require.NoError(t, store.Attributes().EnsureValues(ctx, "color", ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)
	id, a1, a2 := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM transfers WHERE id = \\$1 FOR UPDATE").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(transferColumns).
			AddRow(id.String(), 12, "alice", "bob", "PENDING", false, "restock", "", time.Now(), nil))
	mock.ExpectQuery("SELECT transfer_id, asset_id FROM transfer_items").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"transfer_id", "asset_id"}).
			AddRow(id.String(), a1.String()).
			AddRow(id.String(), a2.String()))

	tr, err := store.Transfers().GetByID(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, int64(12), tr.DocumentNumber)
	assert.Equal(t, domain.TransferStatusPending, tr.Status)
	assert.Nil(t, tr.RespondedOn)
	assert.Equal(t, []uuid.UUID{a1, a2}, tr.AssetIDs)
}

func TestRentalRepository_MarkItemsReturned(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)
	rentalID, returnID := uuid.New(), uuid.New()
	a1, a2 := uuid.New(), uuid.New()

	mock.ExpectExec("UPDATE rental_items SET return_id = \\$1, returned_on = \\$2 WHERE rental_id = \\$3 AND asset_id IN \\(\\$4,\\$5\\) AND return_id IS NULL").
		WithArgs(returnID, sqlmock.AnyArg(), rentalID, a1.String(), a2.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := store.Rentals().MarkItemsReturned(ctx, rentalID, returnID, []uuid.UUID{a1, a2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRentalRepository_CreateChunksItems(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := NewStore(db).WithBatchSize(2)

	rt := &domain.Rental{ID: uuid.New(), Kind: domain.RentalKindExternal, Status: domain.RentalStatusActive}
	var assetIDs []uuid.UUID
	for i := 0; i < 5; i++ {
		id := uuid.New()
		assetIDs = append(assetIDs, id)
		rt.Items = append(rt.Items, domain.RentalItem{AssetID: id})
	}

	mock.ExpectExec("INSERT INTO rentals ").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO rental_items \\(rental_id,asset_id\\) VALUES \\(\\$1,\\$2\\),\\(\\$3,\\$4\\)$").
		WithArgs(rt.ID, assetIDs[0], rt.ID, assetIDs[1]).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO rental_items \\(rental_id,asset_id\\) VALUES \\(\\$1,\\$2\\),\\(\\$3,\\$4\\)$").
		WithArgs(rt.ID, assetIDs[2], rt.ID, assetIDs[3]).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO rental_items \\(rental_id,asset_id\\) VALUES \\(\\$1,\\$2\\)$").
		WithArgs(rt.ID, assetIDs[4]).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Rentals().Create(ctx, rt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalRepository_MarkItemsReturnedChunked(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := NewStore(db).WithBatchSize(2)
	rentalID, returnID := uuid.New(), uuid.New()
	a1, a2, a3 := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectExec("UPDATE rental_items (.+) asset_id IN \\(\\$4,\\$5\\)").
		WithArgs(returnID, sqlmock.AnyArg(), rentalID, a1.String(), a2.String()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE rental_items (.+) asset_id IN \\(\\$4\\)").
		WithArgs(returnID, sqlmock.AnyArg(), rentalID, a3.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := store.Rentals().MarkItemsReturned(ctx, rentalID, returnID, []uuid.UUID{a1, a2, a3})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_GetByIDsChunked(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := NewStore(db).WithBatchSize(2)
	a1, a2, a3 := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM assets WHERE retired_on IS NULL AND id IN \\(\\$1,\\$2\\) ORDER BY code").
		WithArgs(a1.String(), a2.String()).
		WillReturnRows(assetRow(a2, "CAN-0003", "AVAILABLE", "alice").
			AddRow(a1.String(), "CAN-0002", "", "L", "RED", "", "", "NORTH", "", "OWNED", "AVAILABLE", "alice", time.Now(), time.Now()))
	mock.ExpectQuery("SELECT (.+) FROM assets WHERE retired_on IS NULL AND id IN \\(\\$1\\) ORDER BY code").
		WithArgs(a3.String()).
		WillReturnRows(assetRow(a3, "CAN-0001", "AVAILABLE", "alice"))

	assets, err := store.Assets().GetByIDs(ctx, []uuid.UUID{a1, a2, a3}, false)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	assert.Equal(t, []string{"CAN-0001", "CAN-0002", "CAN-0003"}, []string{assets[0].Code, assets[1].Code, assets[2].Code})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunks(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks([]int{1, 2, 3, 4, 5}, 2))
	assert.Nil(t, chunks([]int{}, 2))
	assert.Len(t, chunks(make([]int, 1200), 0), 3)
}

func TestRentalRepository_UpdateSettlementMissing(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)
	mock.ExpectExec("UPDATE rentals SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Rentals().UpdateSettlement(ctx, &domain.Rental{ID: uuid.New(), Status: domain.RentalStatusReturned})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCleaningRepository_UpdateWritesOutcomes(t *testing.T) {
	ctx := context.Background()
	store, mock := newMock(t)
	clean, pending := uuid.New(), uuid.New()
	o := &domain.CleaningOrder{
		ID:     uuid.New(),
		Status: domain.CleaningStatusServiceComplete,
		Items: []domain.CleaningItem{
			{AssetID: clean, Outcome: domain.CleaningOutcomeCleaned},
			{AssetID: pending},
		},
	}

	mock.ExpectExec("UPDATE cleaning_orders SET status = \\$1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE cleaning_items SET outcome").
		WithArgs(domain.CleaningOutcomeCleaned, o.ID, clean).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Cleanings().Update(ctx, o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequence_Next(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO document_sequences").
		WithArgs(repository.SeriesTransfer).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(7))

	n, err := NewSequence(db).Next(context.Background(), repository.SeriesTransfer)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
