package custody

import (
	"fmt"
	"sort"
	"strings"

	"custody-backend/internal/domain"

	"github.com/google/uuid"
)

// DefaultLotKeys groups by size, color and location.
var DefaultLotKeys = []string{domain.AttrSize, domain.AttrColor, domain.AttrLocation}

// LotFilter narrows candidates before grouping. Empty fields match anything.
type LotFilter struct {
	Size          string `json:"size,omitempty"`
	Color         string `json:"color,omitempty"`
	Shape         string `json:"shape,omitempty"`
	Condition     string `json:"condition,omitempty"`
	Location      string `json:"location,omitempty"`
	Area          string `json:"area,omitempty"`
	OwnershipKind string `json:"ownership_kind,omitempty"`
}

func (f LotFilter) wants() map[string]string {
	w := map[string]string{}
	add := func(kind, v string) {
		if strings.TrimSpace(v) != "" {
			w[kind] = normalize(v)
		}
	}
	add(domain.AttrSize, f.Size)
	add(domain.AttrColor, f.Color)
	add(domain.AttrShape, f.Shape)
	add(domain.AttrCondition, f.Condition)
	add(domain.AttrLocation, f.Location)
	add(domain.AttrArea, f.Area)
	add(domain.AttrOwnershipKind, f.OwnershipKind)
	return w
}

// normalize maps blank and "unspecified"-like values onto one bucket so
// assets with missing attributes never land in two different lots.
func normalize(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	switch v {
	case "", "-", "N/A", domain.Unspecified:
		return domain.Unspecified
	}
	return v
}

// FilterAssets keeps the assets whose attributes match every set field of f.
func FilterAssets(assets []domain.Asset, f LotFilter) []domain.Asset {
	wants := f.wants()
	if len(wants) == 0 {
		return assets
	}
	out := make([]domain.Asset, 0, len(assets))
	for _, a := range assets {
		match := true
		for kind, want := range wants {
			if normalize(a.Value(kind)) != want {
				match = false
				break
			}
		}
		if match {
			out = append(out, a)
		}
	}
	return out
}

// ValidateLotKeys rejects attribute kinds that cannot be grouped on.
func ValidateLotKeys(keys []string) error {
	for _, k := range keys {
		known := false
		for _, kind := range domain.AttributeKinds {
			if k == kind {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown lot key %q: %w", k, domain.ErrInvalidInput)
		}
	}
	return nil
}

// LotKey builds the grouping key of a for the given attribute kinds.
func LotKey(a domain.Asset, keys []string) (string, map[string]string) {
	parts := make([]string, len(keys))
	attrs := make(map[string]string, len(keys))
	for i, k := range keys {
		v := normalize(a.Value(k))
		parts[i] = k + "=" + v
		attrs[k] = v
	}
	return strings.Join(parts, "|"), attrs
}

// GroupLots partitions assets into attribute-equal lots. Lots are ordered by
// key and members by code, then id. Each asset lands in exactly one lot.
func GroupLots(assets []domain.Asset, keys []string) ([]domain.Lot, error) {
	if len(keys) == 0 {
		keys = DefaultLotKeys
	}
	if err := ValidateLotKeys(keys); err != nil {
		return nil, err
	}

	byKey := make(map[string]*domain.Lot)
	seen := make(map[uuid.UUID]bool, len(assets))
	for _, a := range assets {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		key, attrs := LotKey(a, keys)
		lot, ok := byKey[key]
		if !ok {
			lot = &domain.Lot{Key: key, Attributes: attrs}
			byKey[key] = lot
		}
		lot.Members = append(lot.Members, domain.LotMember{ID: a.ID, Code: a.Code})
	}

	lots := make([]domain.Lot, 0, len(byKey))
	for _, lot := range byKey {
		sortMembers(lot.Members)
		lots = append(lots, *lot)
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].Key < lots[j].Key })
	return lots, nil
}

func sortMembers(m []domain.LotMember) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Code != m[j].Code {
			return m[i].Code < m[j].Code
		}
		return m[i].ID.String() < m[j].ID.String()
	})
}

// Allocate takes the first min(n, lot size) members of lot.
func Allocate(lot domain.Lot, n int) domain.Allocation {
	alloc, _ := AllocateBasket([]domain.Lot{lot}, []domain.LotRequest{{LotKey: lot.Key, Quantity: n}})
	return alloc
}

// AllocateBasket carves each requested quantity out of its lot, in request
// order. Quantities are clamped to what is left in the lot; an asset is never
// returned twice even when two requests name the same lot.
func AllocateBasket(lots []domain.Lot, requests []domain.LotRequest) (domain.Allocation, error) {
	index := make(map[string]domain.Lot, len(lots))
	for _, l := range lots {
		index[l.Key] = l
	}

	alloc := domain.Allocation{AssetIDs: []uuid.UUID{}, PerLot: map[string]int{}}
	taken := make(map[uuid.UUID]bool)
	for _, req := range requests {
		lot, ok := index[req.LotKey]
		if !ok {
			return domain.Allocation{}, fmt.Errorf("lot %q: %w", req.LotKey, domain.ErrNotFound)
		}
		if req.Quantity <= 0 {
			continue
		}
		alloc.Requested += req.Quantity

		members := make([]domain.LotMember, len(lot.Members))
		copy(members, lot.Members)
		sortMembers(members)

		got := 0
		for _, m := range members {
			if got == req.Quantity {
				break
			}
			if taken[m.ID] {
				continue
			}
			taken[m.ID] = true
			alloc.AssetIDs = append(alloc.AssetIDs, m.ID)
			got++
		}
		if got > 0 {
			alloc.PerLot[lot.Key] += got
		}
	}
	return alloc, nil
}
