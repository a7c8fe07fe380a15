package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"custody-backend/internal/domain"
	"custody-backend/internal/logger"
	"custody-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	assetTable         = "assets"
	attributeTable     = "attribute_values"
	writeOffTable      = "asset_write_offs"
	transferTable      = "transfers"
	transferItemTable  = "transfer_items"
	rentalTable        = "rentals"
	rentalItemTable    = "rental_items"
	rentalReturnTable  = "rental_returns"
	cleaningTable      = "cleaning_orders"
	cleaningItemTable  = "cleaning_items"
	uniqueViolationErr = "23505"

	// defaultRowChunk keeps multi-row statements well under the 65535 bind
	// parameter limit.
	defaultRowChunk = 500
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Store struct {
	db    *sql.DB
	q     querier
	tx    bool
	chunk int
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db, chunk: defaultRowChunk}
}

// WithBatchSize caps how many rows one statement inserts or matches by id.
// Larger writes are split into several statements on the same connection.
func (s *Store) WithBatchSize(n int) *Store {
	if n > 0 {
		s.chunk = n
	}
	return s
}

func (s *Store) Assets() repository.AssetRepository {
	return &assetRepository{q: s.q, chunk: s.chunk}
}
func (s *Store) Attributes() repository.AttributeRepository { return &attributeRepository{q: s.q} }
func (s *Store) Transfers() repository.TransferRepository {
	return &transferRepository{q: s.q, chunk: s.chunk}
}
func (s *Store) Rentals() repository.RentalRepository { return &rentalRepository{q: s.q, chunk: s.chunk} }
func (s *Store) Cleanings() repository.CleaningRepository {
	return &cleaningRepository{q: s.q, chunk: s.chunk}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if s.tx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("rollback: %v (original error: %w)", rbErr, err)
			}
		} else if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
		}
	}()

	return fn(&Store{db: s.db, q: tx, tx: true, chunk: s.chunk})
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationErr
}

func notFound(err error, what string, id uuid.UUID) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// chunks splits items into consecutive slices of at most size elements.
func chunks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = defaultRowChunk
	}
	var out [][]T
	for lo := 0; lo < len(items); lo += size {
		out = append(out, items[lo:min(lo+size, len(items))])
	}
	return out
}

func runExec(ctx context.Context, q querier, b sq.Sqlizer) (sql.Result, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	logger.DatabaseCall("exec", stmt, "args", len(args))
	res, err := q.ExecContext(ctx, stmt, args...)
	var n int64
	if err == nil {
		n, _ = res.RowsAffected()
	}
	logger.DatabaseResult("exec", n, err)
	return res, err
}

func runQuery(ctx context.Context, q querier, b sq.Sqlizer) (*sql.Rows, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	logger.DatabaseCall("query", stmt, "args", len(args))
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		logger.DatabaseResult("query", 0, err)
	}
	return rows, err
}
