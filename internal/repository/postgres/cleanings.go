package postgres

import (
	"context"
	"fmt"
	"time"

	"custody-backend/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var cleaningColumns = []string{
	"id", "delivery_number", "return_number", "sender_id", "service_party", "status", "notes",
	"sent_on", "received_on", "service_completed_on", "delivered_on", "confirmed_on", "cancelled_on",
}

type cleaningRepository struct {
	q     querier
	chunk int
}

func (r *cleaningRepository) Create(ctx context.Context, o *domain.CleaningOrder) error {
	if o.SentOn.IsZero() {
		o.SentOn = time.Now()
	}
	b := psql.Insert(cleaningTable).Columns(cleaningColumns...).
		Values(o.ID, o.DeliveryNumber, o.ReturnNumber, o.SenderID, o.ServiceParty, o.Status, o.Notes,
			o.SentOn, o.ReceivedOn, o.ServiceCompletedOn, o.DeliveredOn, o.ConfirmedOn, o.CancelledOn)
	if _, err := runExec(ctx, r.q, b); err != nil {
		return fmt.Errorf("insert cleaning order: %w", err)
	}

	for _, part := range chunks(o.Items, r.chunk) {
		items := psql.Insert(cleaningItemTable).Columns("order_id", "asset_id", "outcome")
		for _, it := range part {
			items = items.Values(o.ID, it.AssetID, it.Outcome)
		}
		if _, err := runExec(ctx, r.q, items); err != nil {
			return fmt.Errorf("insert cleaning items: %w", err)
		}
	}
	return nil
}

func scanCleaning(row rowScanner) (domain.CleaningOrder, error) {
	var o domain.CleaningOrder
	err := row.Scan(&o.ID, &o.DeliveryNumber, &o.ReturnNumber, &o.SenderID, &o.ServiceParty, &o.Status, &o.Notes,
		&o.SentOn, &o.ReceivedOn, &o.ServiceCompletedOn, &o.DeliveredOn, &o.ConfirmedOn, &o.CancelledOn)
	return o, err
}

func (r *cleaningRepository) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.CleaningOrder, error) {
	b := psql.Select(cleaningColumns...).From(cleaningTable).Where("id = ?", id)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	o, err := scanCleaning(r.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, notFound(err, "cleaning order", id)
	}

	items, err := r.items(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (r *cleaningRepository) items(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.CleaningItem, error) {
	out := make(map[uuid.UUID][]domain.CleaningItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	for _, part := range chunks(orderIDs, r.chunk) {
		if err := r.scanItems(ctx, part, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *cleaningRepository) scanItems(ctx context.Context, orderIDs []uuid.UUID, out map[uuid.UUID][]domain.CleaningItem) error {
	b := psql.Select("order_id", "asset_id", "outcome").From(cleaningItemTable).
		Where(sq.Eq{"order_id": idStrings(orderIDs)}).
		OrderBy("order_id", "position")
	rows, err := runQuery(ctx, r.q, b)
	if err != nil {
		return fmt.Errorf("list cleaning items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var oid uuid.UUID
		var it domain.CleaningItem
		if err := rows.Scan(&oid, &it.AssetID, &it.Outcome); err != nil {
			return err
		}
		out[oid] = append(out[oid], it)
	}
	return rows.Err()
}

func (r *cleaningRepository) Update(ctx context.Context, o *domain.CleaningOrder) error {
	b := psql.Update(cleaningTable).
		Set("status", o.Status).
		Set("return_number", o.ReturnNumber).
		Set("notes", o.Notes).
		Set("received_on", o.ReceivedOn).
		Set("service_completed_on", o.ServiceCompletedOn).
		Set("delivered_on", o.DeliveredOn).
		Set("confirmed_on", o.ConfirmedOn).
		Set("cancelled_on", o.CancelledOn).
		Where("id = ?", o.ID)
	res, err := runExec(ctx, r.q, b)
	if err != nil {
		return fmt.Errorf("update cleaning order %s: %w", o.ID, err)
	}
	if err := expectOne(res, "cleaning order", o.ID); err != nil {
		return err
	}

	for _, it := range o.Items {
		if it.Outcome == "" {
			continue
		}
		_, err := r.q.ExecContext(ctx,
			`UPDATE cleaning_items SET outcome = $1 WHERE order_id = $2 AND asset_id = $3`,
			it.Outcome, o.ID, it.AssetID)
		if err != nil {
			return fmt.Errorf("update cleaning outcome for %s: %w", it.AssetID, err)
		}
	}
	return nil
}

func (r *cleaningRepository) ListOpenFrom(ctx context.Context, custodianID string) ([]domain.CleaningOrder, error) {
	return r.list(ctx, sq.And{
		sq.Eq{"sender_id": custodianID},
		sq.NotEq{"status": []string{string(domain.CleaningStatusConfirmed), string(domain.CleaningStatusCancelled)}},
	})
}

func (r *cleaningRepository) List(ctx context.Context, custodianID string, status domain.CleaningStatus) ([]domain.CleaningOrder, error) {
	where := sq.And{}
	if custodianID != "" {
		where = append(where, sq.Eq{"sender_id": custodianID})
	}
	if status != "" {
		where = append(where, sq.Eq{"status": string(status)})
	}
	return r.list(ctx, where)
}

func (r *cleaningRepository) list(ctx context.Context, where sq.Sqlizer) ([]domain.CleaningOrder, error) {
	b := psql.Select(cleaningColumns...).From(cleaningTable).Where(where).OrderBy("delivery_number DESC")
	rows, err := runQuery(ctx, r.q, b)
	if err != nil {
		return nil, fmt.Errorf("list cleaning orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.CleaningOrder
	var ids []uuid.UUID
	for rows.Next() {
		o, err := scanCleaning(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cleaning order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}
