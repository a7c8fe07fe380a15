package http

import (
	"context"
	"net/http"

	"custody-backend/internal/custody"
	"custody-backend/internal/domain"
	"custody-backend/internal/repository"
	"custody-backend/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req createAssetRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	a := &domain.Asset{
		Code:            req.Code,
		Barcode:         req.Barcode,
		AssetAttributes: req.Attributes.toDomain(),
		Status:          domain.AssetStatus(req.Status),
		CustodianID:     req.CustodianID,
	}
	if err := h.svc.Assets.CreateAsset(ctx, a); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, a, http.StatusCreated)
}

func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req createBatchRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	assets, err := h.svc.Assets.CreateBatch(ctx, service.BatchRequest{
		StartCode:   req.StartCode,
		Seed:        req.Seed,
		Count:       req.Count,
		Attributes:  req.Attributes.toDomain(),
		CustodianID: req.CustodianID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, assets, http.StatusCreated)
}

func (h *Handler) SuggestNextCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.svc.Assets.SuggestNextCode(r.Context(), r.URL.Query().Get("seed"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, nextCodeResponse{Code: code}, http.StatusOK)
}

func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := repository.AssetFilter{
		CustodianID: q.Get("custodian"),
		CodePrefix:  q.Get("prefix"),
		Codes:       queryList(r, "codes"),
		Limit:       limit,
	}
	for _, s := range queryList(r, "status") {
		filter.Statuses = append(filter.Statuses, domain.AssetStatus(s))
	}
	assets, err := h.svc.Assets.ListAssets(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if assets == nil {
		assets = []domain.Asset{}
	}
	h.respond(w, assets, http.StatusOK)
}

func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	a, err := h.svc.Assets.GetAsset(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, a, http.StatusOK)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req updateStatusRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	a, err := h.svc.Assets.UpdateStatus(r.Context(), id, domain.AssetStatus(req.Status))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, a, http.StatusOK)
}

func (h *Handler) UpdateOwner(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req updateOwnerRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	a, err := h.svc.Assets.UpdateOwner(r.Context(), id, req.CustodianID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, a, http.StatusOK)
}

func (h *Handler) RetireAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req retireRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	wo, err := h.svc.Assets.RetireAsset(r.Context(), id, req.Reason, req.RetiredBy)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, wo, http.StatusOK)
}

// ListWriteOffs serves both the per-asset and the global write-off log.
func (h *Handler) ListWriteOffs(w http.ResponseWriter, r *http.Request) {
	id := uuid.Nil
	if _, ok := mux.Vars(r)["id"]; ok {
		var err error
		if id, err = pathID(r); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	offs, err := h.svc.Assets.ListWriteOffs(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if offs == nil {
		offs = []domain.WriteOff{}
	}
	h.respond(w, offs, http.StatusOK)
}

func (h *Handler) ListAttributeValues(w http.ResponseWriter, r *http.Request) {
	values, err := h.svc.Assets.ListAttributeValues(r.Context(), mux.Vars(r)["kind"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if values == nil {
		values = []string{}
	}
	h.respond(w, values, http.StatusOK)
}

func lotFilterFromQuery(r *http.Request) custody.LotFilter {
	q := r.URL.Query()
	return custody.LotFilter{
		Size:          q.Get("size"),
		Color:         q.Get("color"),
		Shape:         q.Get("shape"),
		Condition:     q.Get("condition"),
		Location:      q.Get("location"),
		Area:          q.Get("area"),
		OwnershipKind: q.Get("ownership_kind"),
	}
}

func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	av, err := h.svc.Availability.ListAvailable(r.Context(), mux.Vars(r)["custodian"], domain.AssetStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, av, http.StatusOK)
}

func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Availability.ListLots(r.Context(), mux.Vars(r)["custodian"], lotFilterFromQuery(r), queryList(r, "keys"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, view, http.StatusOK)
}

func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	alloc, err := h.svc.Availability.Allocate(r.Context(), mux.Vars(r)["custodian"], req.Filter, req.Keys, req.Requests)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, alloc, http.StatusOK)
}
