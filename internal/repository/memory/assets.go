package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	"github.com/google/uuid"
)

type assetRepository struct {
	s *Store
}

func (r *assetRepository) activeCodes() map[string]uuid.UUID {
	codes := make(map[string]uuid.UUID, len(r.s.db.st.assets))
	for id, a := range r.s.db.st.assets {
		if !r.s.db.st.retired[id] {
			codes[a.Code] = id
		}
	}
	return codes
}

func (r *assetRepository) insert(assets []domain.Asset) error {
	codes := r.activeCodes()
	batch := make(map[string]bool, len(assets))
	for _, a := range assets {
		if _, dup := codes[a.Code]; dup || batch[a.Code] {
			return fmt.Errorf("asset code %s: %w", a.Code, domain.ErrDuplicateCode)
		}
		batch[a.Code] = true
	}
	now := time.Now()
	for _, a := range assets {
		if a.CreatedOn.IsZero() {
			a.CreatedOn = now
		}
		a.UpdatedOn = now
		r.s.db.st.assets[a.ID] = a
	}
	return nil
}

func (r *assetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	defer r.s.lock()()
	return r.insert([]domain.Asset{*asset})
}

func (r *assetRepository) CreateBatch(ctx context.Context, assets []domain.Asset) error {
	defer r.s.lock()()
	return r.insert(assets)
}

func (r *assetRepository) get(id uuid.UUID) (domain.Asset, bool) {
	a, ok := r.s.db.st.assets[id]
	if !ok || r.s.db.st.retired[id] {
		return domain.Asset{}, false
	}
	return a, true
}

func (r *assetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	defer r.s.lock()()
	a, ok := r.get(id)
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (r *assetRepository) GetByIDs(ctx context.Context, ids []uuid.UUID, forUpdate bool) ([]domain.Asset, error) {
	defer r.s.lock()()
	out := make([]domain.Asset, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.get(id); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *assetRepository) List(ctx context.Context, f repository.AssetFilter) ([]domain.Asset, error) {
	defer r.s.lock()()
	statuses := map[domain.AssetStatus]bool{}
	for _, st := range f.Statuses {
		statuses[st] = true
	}
	codes := map[string]bool{}
	for _, c := range f.Codes {
		codes[c] = true
	}

	var out []domain.Asset
	for id, a := range r.s.db.st.assets {
		if r.s.db.st.retired[id] {
			continue
		}
		if f.CustodianID != "" && a.CustodianID != f.CustodianID {
			continue
		}
		if len(statuses) > 0 && !statuses[a.Status] {
			continue
		}
		if len(codes) > 0 && !codes[a.Code] {
			continue
		}
		if f.CodePrefix != "" && !strings.HasPrefix(a.Code, f.CodePrefix) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *assetRepository) ExistingCodes(ctx context.Context, codes []string) ([]string, error) {
	defer r.s.lock()()
	active := r.activeCodes()
	var out []string
	for _, c := range codes {
		if _, ok := active[c]; ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *assetRepository) UpdateCustody(ctx context.Context, id uuid.UUID, status domain.AssetStatus, custodianID string) error {
	defer r.s.lock()()
	a, ok := r.get(id)
	if !ok {
		return fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	a.Status = status
	a.CustodianID = custodianID
	a.UpdatedOn = time.Now()
	r.s.db.st.assets[id] = a
	return nil
}

func (r *assetRepository) Retire(ctx context.Context, wo *domain.WriteOff) error {
	defer r.s.lock()()
	if _, ok := r.get(wo.AssetID); !ok {
		return fmt.Errorf("asset %s: %w", wo.AssetID, domain.ErrNotFound)
	}
	if wo.RetiredOn.IsZero() {
		wo.RetiredOn = time.Now()
	}
	r.s.db.st.retired[wo.AssetID] = true
	r.s.db.st.writeOffs = append(r.s.db.st.writeOffs, *wo)
	return nil
}

func (r *assetRepository) ListWriteOffs(ctx context.Context, assetID uuid.UUID) ([]domain.WriteOff, error) {
	defer r.s.lock()()
	var out []domain.WriteOff
	for _, wo := range r.s.db.st.writeOffs {
		if assetID == uuid.Nil || wo.AssetID == assetID {
			out = append(out, wo)
		}
	}
	return out, nil
}

func (r *assetRepository) OpenReferences(ctx context.Context, id uuid.UUID) ([]domain.OperationRef, error) {
	defer r.s.lock()()
	var refs []domain.OperationRef
	for _, t := range r.s.db.st.transfers {
		if t.Status.Terminal() {
			continue
		}
		for _, a := range t.AssetIDs {
			if a == id {
				refs = append(refs, domain.OperationRef{Kind: domain.OperationTransfer, ID: t.ID})
				break
			}
		}
	}
	for _, rt := range r.s.db.st.rentals {
		if rt.Status != domain.RentalStatusActive {
			continue
		}
		for _, it := range rt.Items {
			if it.AssetID == id && it.Pending() {
				refs = append(refs, domain.OperationRef{Kind: domain.OperationRental, ID: rt.ID})
				break
			}
		}
	}
	for _, o := range r.s.db.st.cleanings {
		if o.Status.Terminal() {
			continue
		}
		for _, it := range o.Items {
			if it.AssetID == id {
				refs = append(refs, domain.OperationRef{Kind: domain.OperationCleaning, ID: o.ID})
				break
			}
		}
	}
	return refs, nil
}

type attributeRepository struct {
	s *Store
}

func (r *attributeRepository) EnsureValues(ctx context.Context, kind string, values ...string) error {
	defer r.s.lock()()
	set, ok := r.s.db.st.attrs[kind]
	if !ok {
		set = map[string]bool{}
		r.s.db.st.attrs[kind] = set
	}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = true
		}
	}
	return nil
}

func (r *attributeRepository) ListValues(ctx context.Context, kind string) ([]string, error) {
	defer r.s.lock()()
	var out []string
	for v := range r.s.db.st.attrs[kind] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
