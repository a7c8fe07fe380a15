package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"custody-backend/internal/config"
	"custody-backend/internal/domain"
	"custody-backend/internal/repository"
	"custody-backend/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRentalService struct {
	mock.Mock
}

var _ service.RentalService = (*MockRentalService)(nil)

func (m *MockRentalService) OpenRental(ctx context.Context, req service.OpenRentalRequest) (*domain.Rental, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}
func (m *MockRentalService) ProcessReturn(ctx context.Context, rentalID uuid.UUID, assetIDs []uuid.UUID, notes string) (*domain.Rental, *domain.RentalReturn, error) {
	args := m.Called(ctx, rentalID, assetIDs, notes)
	return nil, nil, args.Error(2)
}
func (m *MockRentalService) ProcessReturnByLot(ctx context.Context, rentalID uuid.UUID, keys []string, requests []domain.LotRequest, notes string) (*domain.Rental, *domain.RentalReturn, error) {
	args := m.Called(ctx, rentalID, keys, requests, notes)
	return nil, nil, args.Error(2)
}
func (m *MockRentalService) GetRental(ctx context.Context, id uuid.UUID) (*domain.Rental, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}
func (m *MockRentalService) ListRentals(ctx context.Context, filter repository.RentalFilter) ([]domain.Rental, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Rental), args.Error(1)
}
func (m *MockRentalService) ListReturns(ctx context.Context, rentalID uuid.UUID) ([]domain.RentalReturn, error) {
	args := m.Called(ctx, rentalID)
	return args.Get(0).([]domain.RentalReturn), args.Error(1)
}
func (m *MockRentalService) ListOverdue(ctx context.Context) ([]domain.Rental, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Rental), args.Error(1)
}
func (m *MockRentalService) ReconcileCounters(ctx context.Context, id uuid.UUID) (*domain.Rental, bool, error) {
	args := m.Called(ctx, id)
	return nil, args.Bool(1), args.Error(2)
}
func (m *MockRentalService) ReconcileAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestJobRunner_ReconcileRentalCounters(t *testing.T) {
	rentals := new(MockRentalService)
	rentals.On("ReconcileAll", mock.Anything).Return(2, nil).Once()
	rentals.On("ReconcileAll", mock.Anything).Return(0, errors.New("connection refused")).Once()

	jr := NewJobRunner(&Services{Rental: rentals}, &config.Config{})
	jr.ReconcileRentalCounters()
	// Errors are logged, not propagated.
	jr.ReconcileRentalCounters()

	rentals.AssertExpectations(t)
}

func TestJobRunner_ReportOverdueRentals(t *testing.T) {
	due := time.Now().AddDate(0, 0, -3)
	rentals := new(MockRentalService)
	rentals.On("ListOverdue", mock.Anything).Return([]domain.Rental{
		{ID: uuid.New(), RemisionNumber: 7, Counterparty: "Acme Foods", EstimatedReturnDate: &due, PendingCount: 4},
	}, nil)

	jr := NewJobRunner(&Services{Rental: rentals}, &config.Config{})
	jr.ReportOverdueRentals()

	rentals.AssertNumberOfCalls(t, "ListOverdue", 1)
}

func TestJobRunner_RecoversFromPanic(t *testing.T) {
	rentals := new(MockRentalService)
	rentals.On("ReconcileAll", mock.Anything).Run(func(mock.Arguments) { panic("boom") })
	rentals.On("ListOverdue", mock.Anything).Return([]domain.Rental{}, nil)

	jr := NewJobRunner(&Services{Rental: rentals}, &config.Config{})
	assert.NotPanics(t, jr.RunAllNightlyJobs)
	rentals.AssertCalled(t, "ListOverdue", mock.Anything)
}
