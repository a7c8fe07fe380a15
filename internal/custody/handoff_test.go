package custody

import (
	"testing"

	"custody-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferMachine(t *testing.T) {
	m := TransferMachine
	pending := string(domain.TransferStatusPending)

	for _, ev := range []Event{EventAccept, EventReject, EventCancel} {
		to, err := m.Next(pending, ev)
		require.NoError(t, err)
		assert.True(t, m.Terminal(to))
	}

	_, err := m.Next(string(domain.TransferStatusAccepted), EventAccept)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = m.Next(pending, EventDeliver)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	assert.True(t, m.MovesAssets(string(domain.TransferStatusAccepted)))
	assert.False(t, m.MovesAssets(string(domain.TransferStatusCancelled)))
}

func TestCleaningMachineHappyPath(t *testing.T) {
	m := CleaningMachine
	state := m.Initial
	path := []Event{EventReceive, EventServiceComplete, EventDeliver, EventConfirm}
	for _, ev := range path {
		next, err := m.Next(state, ev)
		require.NoError(t, err, "event %s from %s", ev, state)
		state = next
	}
	assert.Equal(t, string(domain.CleaningStatusConfirmed), state)
	assert.True(t, m.Terminal(state))
}

func TestCleaningMachineCancelOnlyFromSent(t *testing.T) {
	m := CleaningMachine
	to, err := m.Next(string(domain.CleaningStatusSent), EventCancel)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CleaningStatusCancelled), to)

	for _, s := range []domain.CleaningStatus{domain.CleaningStatusReceived, domain.CleaningStatusServiceComplete, domain.CleaningStatusDelivered} {
		_, err := m.Next(string(s), EventCancel)
		assert.ErrorIs(t, err, domain.ErrInvalidState, "cancel from %s", s)
	}

	_, err = m.Next(string(domain.CleaningStatusSent), EventDeliver)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestTransferMapping(t *testing.T) {
	tr := &domain.Transfer{ToCustodian: "bob"}
	p, err := TransferMapping(tr)(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, Placement{Status: domain.AssetStatusAvailable, Custodian: "bob"}, p)

	tr.IsCleaningTransfer = true
	p, err = TransferMapping(tr)(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStatusInCleaning, p.Status)
}

func TestCleaningMapping(t *testing.T) {
	clean, damaged, unknown := uuid.New(), uuid.New(), uuid.New()
	o := &domain.CleaningOrder{SenderID: "alice", Items: []domain.CleaningItem{
		{AssetID: clean, Outcome: domain.CleaningOutcomeCleaned},
		{AssetID: damaged, Outcome: domain.CleaningOutcomeDamaged},
		{AssetID: unknown},
	}}
	mapping := CleaningMapping(o, domain.AssetStatusOutOfService)

	p, err := mapping(clean)
	require.NoError(t, err)
	assert.Equal(t, Placement{Status: domain.AssetStatusAvailable, Custodian: "alice"}, p)

	p, err = mapping(damaged)
	require.NoError(t, err)
	assert.Equal(t, Placement{Status: domain.AssetStatusOutOfService, Custodian: "alice"}, p)

	_, err = mapping(unknown)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
