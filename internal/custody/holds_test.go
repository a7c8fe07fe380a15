package custody

import (
	"testing"

	"custody-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func asset(code string, attrs domain.AssetAttributes) domain.Asset {
	return domain.Asset{ID: uuid.New(), Code: code, AssetAttributes: attrs, Status: domain.AssetStatusAvailable, CustodianID: "alice"}
}

func TestResolveHolds(t *testing.T) {
	a1, a2, a3, a4 := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	transfers := []domain.Transfer{
		{ID: uuid.New(), FromCustodian: "alice", Status: domain.TransferStatusPending, AssetIDs: []uuid.UUID{a1}},
		{ID: uuid.New(), FromCustodian: "alice", Status: domain.TransferStatusCancelled, AssetIDs: []uuid.UUID{a2}},
		{ID: uuid.New(), FromCustodian: "bob", Status: domain.TransferStatusPending, AssetIDs: []uuid.UUID{a3}},
	}
	orders := []domain.CleaningOrder{
		{ID: uuid.New(), SenderID: "alice", Status: domain.CleaningStatusReceived, Items: []domain.CleaningItem{{AssetID: a4}, {AssetID: a1}}},
		{ID: uuid.New(), SenderID: "alice", Status: domain.CleaningStatusConfirmed, Items: []domain.CleaningItem{{AssetID: a2}}},
	}

	h := ResolveHolds("alice", transfers, orders)

	assert.True(t, h.Contains(a1))
	assert.False(t, h.Contains(a2), "terminal operations do not hold")
	assert.False(t, h.Contains(a3), "another custodian's transfer does not hold")
	assert.True(t, h.Contains(a4))
	assert.Equal(t, 1, h.ForTransfer())
	assert.Equal(t, 2, h.ForCleaning())
	assert.Equal(t, 2, h.Count(), "union counts a1 once")

	ref, ok := h.HeldBy(a1)
	assert.True(t, ok)
	assert.Equal(t, domain.OperationTransfer, ref.Kind)
	assert.Equal(t, transfers[0].ID, ref.ID)

	ref, ok = h.HeldBy(a4)
	assert.True(t, ok)
	assert.Equal(t, domain.OperationCleaning, ref.Kind)
}

func TestExcludeHeld(t *testing.T) {
	x := asset("CAN-0001", domain.AssetAttributes{})
	y := asset("CAN-0002", domain.AssetAttributes{})
	h := ResolveHolds("alice", []domain.Transfer{
		{ID: uuid.New(), FromCustodian: "alice", Status: domain.TransferStatusPending, AssetIDs: []uuid.UUID{x.ID}},
	}, nil)

	kept, held := ExcludeHeld([]domain.Asset{x, y}, h)
	assert.Equal(t, 1, held)
	assert.Len(t, kept, 1)
	assert.Equal(t, y.ID, kept[0].ID)
}
