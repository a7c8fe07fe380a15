// Package memory is an in-process implementation of the repository
// interfaces. It backs local development and the service tests.
package memory

import (
	"context"
	"sync"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	"github.com/google/uuid"
)

type state struct {
	assets    map[uuid.UUID]domain.Asset
	retired   map[uuid.UUID]bool
	writeOffs []domain.WriteOff
	attrs     map[string]map[string]bool
	transfers map[uuid.UUID]domain.Transfer
	rentals   map[uuid.UUID]domain.Rental
	returns   map[uuid.UUID][]domain.RentalReturn
	cleanings map[uuid.UUID]domain.CleaningOrder
}

func newState() *state {
	return &state{
		assets:    map[uuid.UUID]domain.Asset{},
		retired:   map[uuid.UUID]bool{},
		attrs:     map[string]map[string]bool{},
		transfers: map[uuid.UUID]domain.Transfer{},
		rentals:   map[uuid.UUID]domain.Rental{},
		returns:   map[uuid.UUID][]domain.RentalReturn{},
		cleanings: map[uuid.UUID]domain.CleaningOrder{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.assets {
		c.assets[k] = v
	}
	for k, v := range s.retired {
		c.retired[k] = v
	}
	c.writeOffs = append([]domain.WriteOff(nil), s.writeOffs...)
	for kind, values := range s.attrs {
		c.attrs[kind] = map[string]bool{}
		for v := range values {
			c.attrs[kind][v] = true
		}
	}
	for k, v := range s.transfers {
		c.transfers[k] = cloneTransfer(v)
	}
	for k, v := range s.rentals {
		c.rentals[k] = cloneRental(v)
	}
	for k, v := range s.returns {
		rets := make([]domain.RentalReturn, len(v))
		for i, r := range v {
			rets[i] = cloneReturn(r)
		}
		c.returns[k] = rets
	}
	for k, v := range s.cleanings {
		c.cleanings[k] = cloneCleaning(v)
	}
	return c
}

func cloneTransfer(t domain.Transfer) domain.Transfer {
	t.AssetIDs = append([]uuid.UUID(nil), t.AssetIDs...)
	return t
}

func cloneRental(r domain.Rental) domain.Rental {
	r.Items = append([]domain.RentalItem(nil), r.Items...)
	return r
}

func cloneReturn(r domain.RentalReturn) domain.RentalReturn {
	r.AssetIDs = append([]uuid.UUID(nil), r.AssetIDs...)
	return r
}

func cloneCleaning(o domain.CleaningOrder) domain.CleaningOrder {
	o.Items = append([]domain.CleaningItem(nil), o.Items...)
	return o
}

type database struct {
	mu sync.Mutex
	st *state
}

// Store serialises every call behind one mutex. A transaction holds the
// mutex for its whole duration and restores a snapshot when it fails.
type Store struct {
	db   *database
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{db: &database{st: newState()}}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

func (s *Store) Assets() repository.AssetRepository         { return &assetRepository{s} }
func (s *Store) Attributes() repository.AttributeRepository { return &attributeRepository{s} }
func (s *Store) Transfers() repository.TransferRepository   { return &transferRepository{s} }
func (s *Store) Rentals() repository.RentalRepository       { return &rentalRepository{s} }
func (s *Store) Cleanings() repository.CleaningRepository   { return &cleaningRepository{s} }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	snapshot := s.db.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.db.st = snapshot
			panic(p)
		}
		if err != nil {
			s.db.st = snapshot
		}
	}()

	return fn(&Store{db: s.db, inTx: true})
}

// Sequence is an in-process numbering source. It is independent of Store
// transactions: numbers taken by a rolled back transaction are not reused.
type Sequence struct {
	mu     sync.Mutex
	values map[string]int64
}

var _ repository.SequenceRepository = (*Sequence)(nil)

func NewSequence() *Sequence {
	return &Sequence{values: map[string]int64{}}
}

func (q *Sequence) Next(ctx context.Context, series string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.values[series]++
	return q.values[series], nil
}
