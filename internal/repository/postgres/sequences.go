package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"custody-backend/internal/repository"
)

// Sequence numbers documents from the document_sequences table. It runs on
// its own connection so a number is consumed even if the caller's
// transaction later rolls back.
type Sequence struct {
	db *sql.DB
}

var _ repository.SequenceRepository = (*Sequence)(nil)

func NewSequence(db *sql.DB) *Sequence {
	return &Sequence{db: db}
}

func (s *Sequence) Next(ctx context.Context, series string) (int64, error) {
	query := `INSERT INTO document_sequences (series, value) VALUES ($1, 1)
	          ON CONFLICT (series) DO UPDATE SET value = document_sequences.value + 1
	          RETURNING value`
	var n int64
	if err := s.db.QueryRowContext(ctx, query, series).Scan(&n); err != nil {
		return 0, fmt.Errorf("next %s number: %w", series, err)
	}
	return n, nil
}
