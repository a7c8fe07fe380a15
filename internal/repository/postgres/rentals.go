package postgres

import (
	"context"
	"fmt"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var rentalColumns = []string{
	"id", "remision_number", "custodian_id", "counterparty", "kind", "status", "start_date",
	"estimated_return_date", "estimated_days", "actual_return_date", "actual_days", "daily_rate_cents",
	"pending_count", "returned_count", "total_invoiced_cents", "total_amount_cents", "notes",
	"created_on", "updated_on",
}

type rentalRepository struct {
	q     querier
	chunk int
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	now := time.Now()
	if rt.CreatedOn.IsZero() {
		rt.CreatedOn = now
	}
	rt.UpdatedOn = now
	b := psql.Insert(rentalTable).Columns(rentalColumns...).
		Values(rt.ID, rt.RemisionNumber, rt.CustodianID, rt.Counterparty, rt.Kind, rt.Status, rt.StartDate,
			rt.EstimatedReturnDate, rt.EstimatedDays, rt.ActualReturnDate, rt.ActualDays, rt.DailyRateCents,
			rt.PendingCount, rt.ReturnedCount, rt.TotalInvoicedCents, rt.TotalAmountCents, rt.Notes,
			rt.CreatedOn, rt.UpdatedOn)
	if _, err := runExec(ctx, r.q, b); err != nil {
		return fmt.Errorf("insert rental: %w", err)
	}

	for _, part := range chunks(rt.Items, r.chunk) {
		items := psql.Insert(rentalItemTable).Columns("rental_id", "asset_id")
		for _, it := range part {
			items = items.Values(rt.ID, it.AssetID)
		}
		if _, err := runExec(ctx, r.q, items); err != nil {
			return fmt.Errorf("insert rental items: %w", err)
		}
	}
	return nil
}

func scanRental(row rowScanner) (domain.Rental, error) {
	var rt domain.Rental
	err := row.Scan(&rt.ID, &rt.RemisionNumber, &rt.CustodianID, &rt.Counterparty, &rt.Kind, &rt.Status, &rt.StartDate,
		&rt.EstimatedReturnDate, &rt.EstimatedDays, &rt.ActualReturnDate, &rt.ActualDays, &rt.DailyRateCents,
		&rt.PendingCount, &rt.ReturnedCount, &rt.TotalInvoicedCents, &rt.TotalAmountCents, &rt.Notes,
		&rt.CreatedOn, &rt.UpdatedOn)
	return rt, err
}

func (r *rentalRepository) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Rental, error) {
	b := psql.Select(rentalColumns...).From(rentalTable).Where("id = ?", id)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rt, err := scanRental(r.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, notFound(err, "rental", id)
	}

	items, err := r.items(ctx, sq.Eq{"rental_id": rt.ID.String()})
	if err != nil {
		return nil, err
	}
	rt.Items = items[rt.ID]
	return &rt, nil
}

func (r *rentalRepository) items(ctx context.Context, where sq.Sqlizer) (map[uuid.UUID][]domain.RentalItem, error) {
	b := psql.Select("rental_id", "asset_id", "return_id", "returned_on").From(rentalItemTable).
		Where(where).
		OrderBy("rental_id", "position")
	rows, err := runQuery(ctx, r.q, b)
	if err != nil {
		return nil, fmt.Errorf("list rental items: %w", err)
	}
	defer rows.Close()

	out := map[uuid.UUID][]domain.RentalItem{}
	for rows.Next() {
		var rid uuid.UUID
		var it domain.RentalItem
		if err := rows.Scan(&rid, &it.AssetID, &it.ReturnID, &it.ReturnedOn); err != nil {
			return nil, err
		}
		out[rid] = append(out[rid], it)
	}
	return out, rows.Err()
}

func (r *rentalRepository) UpdateSettlement(ctx context.Context, rt *domain.Rental) error {
	query := `UPDATE rentals SET status = $1, pending_count = $2, returned_count = $3, total_invoiced_cents = $4,
	          total_amount_cents = $5, actual_return_date = $6, actual_days = $7, updated_on = $8 WHERE id = $9`
	res, err := r.q.ExecContext(ctx, query, rt.Status, rt.PendingCount, rt.ReturnedCount, rt.TotalInvoicedCents,
		rt.TotalAmountCents, rt.ActualReturnDate, rt.ActualDays, time.Now(), rt.ID)
	if err != nil {
		return fmt.Errorf("update rental %s: %w", rt.ID, err)
	}
	return expectOne(res, "rental", rt.ID)
}

func (r *rentalRepository) MarkItemsReturned(ctx context.Context, rentalID, returnID uuid.UUID, assetIDs []uuid.UUID) (int, error) {
	if len(assetIDs) == 0 {
		return 0, nil
	}
	returnedOn := time.Now()
	marked := 0
	for _, part := range chunks(assetIDs, r.chunk) {
		b := psql.Update(rentalItemTable).
			Set("return_id", returnID).
			Set("returned_on", returnedOn).
			Where("rental_id = ?", rentalID).
			Where(sq.Eq{"return_id": nil, "asset_id": idStrings(part)})
		res, err := runExec(ctx, r.q, b)
		if err != nil {
			return marked, fmt.Errorf("mark rental items returned: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return marked, err
		}
		marked += int(n)
	}
	return marked, nil
}

func (r *rentalRepository) CreateReturn(ctx context.Context, ret *domain.RentalReturn) error {
	if ret.CreatedOn.IsZero() {
		ret.CreatedOn = time.Now()
	}
	b := psql.Insert(rentalReturnTable).
		Columns("id", "rental_id", "invoice_number", "days_charged", "amount_cents", "notes", "created_on").
		Values(ret.ID, ret.RentalID, ret.InvoiceNumber, ret.DaysCharged, ret.AmountCents, ret.Notes, ret.CreatedOn)
	if _, err := runExec(ctx, r.q, b); err != nil {
		return fmt.Errorf("insert rental return: %w", err)
	}
	return nil
}

func (r *rentalRepository) ListReturns(ctx context.Context, rentalID uuid.UUID) ([]domain.RentalReturn, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, rental_id, invoice_number, days_charged, amount_cents, notes, created_on
		   FROM rental_returns WHERE rental_id = $1 ORDER BY invoice_number`, rentalID)
	if err != nil {
		return nil, fmt.Errorf("list rental returns: %w", err)
	}
	defer rows.Close()

	var returns []domain.RentalReturn
	for rows.Next() {
		var ret domain.RentalReturn
		if err := rows.Scan(&ret.ID, &ret.RentalID, &ret.InvoiceNumber, &ret.DaysCharged, &ret.AmountCents, &ret.Notes, &ret.CreatedOn); err != nil {
			return nil, err
		}
		returns = append(returns, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	items, err := r.items(ctx, sq.Eq{"rental_id": rentalID.String()})
	if err != nil {
		return nil, err
	}
	byReturn := map[uuid.UUID][]uuid.UUID{}
	for _, it := range items[rentalID] {
		if it.ReturnID != nil {
			byReturn[*it.ReturnID] = append(byReturn[*it.ReturnID], it.AssetID)
		}
	}
	for i := range returns {
		returns[i].AssetIDs = byReturn[returns[i].ID]
	}
	return returns, nil
}

func (r *rentalRepository) List(ctx context.Context, f repository.RentalFilter) ([]domain.Rental, error) {
	b := psql.Select(rentalColumns...).From(rentalTable).OrderBy("remision_number DESC")
	if f.CustodianID != "" {
		b = b.Where(sq.Eq{"custodian_id": f.CustodianID})
	}
	if f.Counterparty != "" {
		b = b.Where(sq.Eq{"counterparty": f.Counterparty})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	rows, err := runQuery(ctx, r.q, b)
	if err != nil {
		return nil, fmt.Errorf("list rentals: %w", err)
	}
	defer rows.Close()

	var rentals []domain.Rental
	var ids []string
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rental: %w", err)
		}
		rentals = append(rentals, rt)
		ids = append(ids, rt.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(rentals) == 0 {
		return nil, nil
	}

	items, err := r.items(ctx, sq.Eq{"rental_id": ids})
	if err != nil {
		return nil, err
	}
	for i := range rentals {
		rentals[i].Items = items[rentals[i].ID]
	}
	return rentals, nil
}
