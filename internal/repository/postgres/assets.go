package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var assetColumns = []string{
	"id", "code", "barcode", "size", "color", "shape", "condition", "location", "area",
	"ownership_kind", "status", "custodian_id", "created_on", "updated_on",
}

type assetRepository struct {
	q     querier
	chunk int
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (domain.Asset, error) {
	var a domain.Asset
	err := row.Scan(&a.ID, &a.Code, &a.Barcode, &a.Size, &a.Color, &a.Shape, &a.Condition,
		&a.Location, &a.Area, &a.OwnershipKind, &a.Status, &a.CustodianID, &a.CreatedOn, &a.UpdatedOn)
	return a, err
}

func (r *assetRepository) Create(ctx context.Context, a *domain.Asset) error {
	return r.CreateBatch(ctx, []domain.Asset{*a})
}

func (r *assetRepository) CreateBatch(ctx context.Context, assets []domain.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	now := time.Now()
	b := psql.Insert(assetTable).Columns(assetColumns...)
	for _, a := range assets {
		b = b.Values(a.ID, a.Code, a.Barcode, a.Size, a.Color, a.Shape, a.Condition, a.Location, a.Area,
			a.OwnershipKind, a.Status, a.CustodianID, now, now)
	}
	if _, err := runExec(ctx, r.q, b); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert assets: %w", domain.ErrDuplicateCode)
		}
		return fmt.Errorf("insert assets: %w", err)
	}
	return nil
}

func (r *assetRepository) active() sq.SelectBuilder {
	return psql.Select(assetColumns...).From(assetTable).Where(sq.Eq{"retired_on": nil})
}

func (r *assetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	stmt, args, err := r.active().Where("id = ?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	a, err := scanAsset(r.q.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, notFound(err, "asset", id)
	}
	return &a, nil
}

func (r *assetRepository) GetByIDs(ctx context.Context, ids []uuid.UUID, forUpdate bool) ([]domain.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var assets []domain.Asset
	for _, part := range chunks(ids, r.chunk) {
		b := r.active().Where(sq.Eq{"id": idStrings(part)}).OrderBy("code")
		if forUpdate {
			b = b.Suffix("FOR UPDATE")
		}
		found, err := r.list(ctx, b)
		if err != nil {
			return nil, err
		}
		assets = append(assets, found...)
	}
	sort.SliceStable(assets, func(i, j int) bool { return assets[i].Code < assets[j].Code })
	return assets, nil
}

func (r *assetRepository) List(ctx context.Context, f repository.AssetFilter) ([]domain.Asset, error) {
	b := r.active()
	if f.CustodianID != "" {
		b = b.Where(sq.Eq{"custodian_id": f.CustodianID})
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		b = b.Where(sq.Eq{"status": statuses})
	}
	if len(f.Codes) > 0 {
		b = b.Where(sq.Eq{"code": f.Codes})
	}
	if f.CodePrefix != "" {
		b = b.Where(sq.Like{"code": escapeLike(f.CodePrefix) + "%"})
	}
	b = b.OrderBy("code")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	return r.list(ctx, b)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func (r *assetRepository) list(ctx context.Context, b sq.SelectBuilder) ([]domain.Asset, error) {
	rows, err := runQuery(ctx, r.q, b)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *assetRepository) ExistingCodes(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var existing []string
	for _, part := range chunks(codes, r.chunk) {
		found, err := r.existingCodes(ctx, part)
		if err != nil {
			return nil, err
		}
		existing = append(existing, found...)
	}
	sort.Strings(existing)
	return existing, nil
}

func (r *assetRepository) existingCodes(ctx context.Context, codes []string) ([]string, error) {
	b := psql.Select("code").From(assetTable).
		Where(sq.Eq{"code": codes, "retired_on": nil}).
		OrderBy("code")
	rows, err := runQuery(ctx, r.q, b)
	if err != nil {
		return nil, fmt.Errorf("existing codes: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		existing = append(existing, c)
	}
	return existing, rows.Err()
}

func (r *assetRepository) UpdateCustody(ctx context.Context, id uuid.UUID, status domain.AssetStatus, custodianID string) error {
	query := `UPDATE assets SET status = $1, custodian_id = $2, updated_on = $3 WHERE id = $4 AND retired_on IS NULL`
	res, err := r.q.ExecContext(ctx, query, status, custodianID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update asset %s: %w", id, err)
	}
	return expectOne(res, "asset", id)
}

func expectOne(res interface{ RowsAffected() (int64, error) }, what string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return nil
}

func (r *assetRepository) Retire(ctx context.Context, wo *domain.WriteOff) error {
	if wo.RetiredOn.IsZero() {
		wo.RetiredOn = time.Now()
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE assets SET retired_on = $1, updated_on = $1 WHERE id = $2 AND retired_on IS NULL`,
		wo.RetiredOn, wo.AssetID)
	if err != nil {
		return fmt.Errorf("retire asset %s: %w", wo.AssetID, err)
	}
	if err := expectOne(res, "asset", wo.AssetID); err != nil {
		return err
	}

	b := psql.Insert(writeOffTable).
		Columns("id", "asset_id", "code", "last_status", "custodian_id", "reason", "retired_by", "retired_on").
		Values(wo.ID, wo.AssetID, wo.Code, wo.LastStatus, wo.CustodianID, wo.Reason, wo.RetiredBy, wo.RetiredOn)
	if _, err := runExec(ctx, r.q, b); err != nil {
		return fmt.Errorf("insert write-off: %w", err)
	}
	return nil
}

func (r *assetRepository) ListWriteOffs(ctx context.Context, assetID uuid.UUID) ([]domain.WriteOff, error) {
	b := psql.Select("id", "asset_id", "code", "last_status", "custodian_id", "reason", "retired_by", "retired_on").
		From(writeOffTable).OrderBy("retired_on DESC")
	if assetID != uuid.Nil {
		b = b.Where("asset_id = ?", assetID)
	}
	rows, err := runQuery(ctx, r.q, b)
	if err != nil {
		return nil, fmt.Errorf("list write-offs: %w", err)
	}
	defer rows.Close()

	var out []domain.WriteOff
	for rows.Next() {
		var wo domain.WriteOff
		if err := rows.Scan(&wo.ID, &wo.AssetID, &wo.Code, &wo.LastStatus, &wo.CustodianID, &wo.Reason, &wo.RetiredBy, &wo.RetiredOn); err != nil {
			return nil, err
		}
		out = append(out, wo)
	}
	return out, rows.Err()
}

const openReferencesQuery = `
SELECT 'TRANSFER', t.id FROM transfers t
  JOIN transfer_items i ON i.transfer_id = t.id
 WHERE i.asset_id = $1 AND t.status = 'PENDING'
UNION ALL
SELECT 'RENTAL', r.id FROM rentals r
  JOIN rental_items i ON i.rental_id = r.id
 WHERE i.asset_id = $1 AND r.status = 'ACTIVE' AND i.return_id IS NULL
UNION ALL
SELECT 'CLEANING', c.id FROM cleaning_orders c
  JOIN cleaning_items i ON i.order_id = c.id
 WHERE i.asset_id = $1 AND c.status NOT IN ('CONFIRMED', 'CANCELLED')`

func (r *assetRepository) OpenReferences(ctx context.Context, id uuid.UUID) ([]domain.OperationRef, error) {
	rows, err := r.q.QueryContext(ctx, openReferencesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("open references for %s: %w", id, err)
	}
	defer rows.Close()

	var refs []domain.OperationRef
	for rows.Next() {
		var ref domain.OperationRef
		if err := rows.Scan(&ref.Kind, &ref.ID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

type attributeRepository struct {
	q querier
}

func (r *attributeRepository) EnsureValues(ctx context.Context, kind string, values ...string) error {
	b := psql.Insert(attributeTable).Columns("kind", "value").Suffix("ON CONFLICT (kind, value) DO NOTHING")
	n := 0
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			b = b.Values(kind, v)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	if _, err := runExec(ctx, r.q, b); err != nil {
		return fmt.Errorf("ensure %s values: %w", kind, err)
	}
	return nil
}

func (r *attributeRepository) ListValues(ctx context.Context, kind string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT value FROM attribute_values WHERE kind = $1 ORDER BY value`, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s values: %w", kind, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
