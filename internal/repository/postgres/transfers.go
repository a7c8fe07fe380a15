package postgres

import (
	"context"
	"fmt"
	"time"

	"custody-backend/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var transferColumns = []string{
	"id", "document_number", "from_custodian", "to_custodian", "status", "is_cleaning_transfer",
	"reason", "notes", "requested_on", "responded_on",
}

type transferRepository struct {
	q     querier
	chunk int
}

func (r *transferRepository) Create(ctx context.Context, t *domain.Transfer) error {
	if t.RequestedOn.IsZero() {
		t.RequestedOn = time.Now()
	}
	b := psql.Insert(transferTable).Columns(transferColumns...).
		Values(t.ID, t.DocumentNumber, t.FromCustodian, t.ToCustodian, t.Status, t.IsCleaningTransfer,
			t.Reason, t.Notes, t.RequestedOn, t.RespondedOn)
	if _, err := runExec(ctx, r.q, b); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	for _, part := range chunks(t.AssetIDs, r.chunk) {
		items := psql.Insert(transferItemTable).Columns("transfer_id", "asset_id")
		for _, id := range part {
			items = items.Values(t.ID, id)
		}
		if _, err := runExec(ctx, r.q, items); err != nil {
			return fmt.Errorf("insert transfer items: %w", err)
		}
	}
	return nil
}

func scanTransfer(row rowScanner) (domain.Transfer, error) {
	var t domain.Transfer
	err := row.Scan(&t.ID, &t.DocumentNumber, &t.FromCustodian, &t.ToCustodian, &t.Status, &t.IsCleaningTransfer,
		&t.Reason, &t.Notes, &t.RequestedOn, &t.RespondedOn)
	return t, err
}

func (r *transferRepository) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Transfer, error) {
	b := psql.Select(transferColumns...).From(transferTable).Where("id = ?", id)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	t, err := scanTransfer(r.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, notFound(err, "transfer", id)
	}

	items, err := r.items(ctx, []uuid.UUID{t.ID})
	if err != nil {
		return nil, err
	}
	t.AssetIDs = items[t.ID]
	return &t, nil
}

func (r *transferRepository) items(ctx context.Context, transferIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := make(map[uuid.UUID][]uuid.UUID, len(transferIDs))
	if len(transferIDs) == 0 {
		return out, nil
	}
	for _, part := range chunks(transferIDs, r.chunk) {
		if err := r.scanItems(ctx, part, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *transferRepository) scanItems(ctx context.Context, transferIDs []uuid.UUID, out map[uuid.UUID][]uuid.UUID) error {
	b := psql.Select("transfer_id", "asset_id").From(transferItemTable).
		Where(sq.Eq{"transfer_id": idStrings(transferIDs)}).
		OrderBy("transfer_id", "position")
	rows, err := runQuery(ctx, r.q, b)
	if err != nil {
		return fmt.Errorf("list transfer items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tid, aid uuid.UUID
		if err := rows.Scan(&tid, &aid); err != nil {
			return err
		}
		out[tid] = append(out[tid], aid)
	}
	return rows.Err()
}

func (r *transferRepository) Update(ctx context.Context, t *domain.Transfer) error {
	query := `UPDATE transfers SET status = $1, notes = $2, responded_on = $3 WHERE id = $4`
	res, err := r.q.ExecContext(ctx, query, t.Status, t.Notes, t.RespondedOn, t.ID)
	if err != nil {
		return fmt.Errorf("update transfer %s: %w", t.ID, err)
	}
	return expectOne(res, "transfer", t.ID)
}

func (r *transferRepository) ListOpenFrom(ctx context.Context, custodianID string) ([]domain.Transfer, error) {
	return r.list(ctx, sq.Eq{"from_custodian": custodianID, "status": string(domain.TransferStatusPending)})
}

// List returns transfers where custodianID is either party.
func (r *transferRepository) List(ctx context.Context, custodianID string, status domain.TransferStatus) ([]domain.Transfer, error) {
	where := sq.And{}
	if custodianID != "" {
		where = append(where, sq.Or{sq.Eq{"from_custodian": custodianID}, sq.Eq{"to_custodian": custodianID}})
	}
	if status != "" {
		where = append(where, sq.Eq{"status": string(status)})
	}
	return r.list(ctx, where)
}

func (r *transferRepository) list(ctx context.Context, where sq.Sqlizer) ([]domain.Transfer, error) {
	b := psql.Select(transferColumns...).From(transferTable).Where(where).OrderBy("document_number DESC")
	rows, err := runQuery(ctx, r.q, b)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	var ids []uuid.UUID
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range transfers {
		transfers[i].AssetIDs = items[transfers[i].ID]
	}
	return transfers, nil
}
