package http

import (
	"context"
	"fmt"
	"net/http"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"
	"custody-backend/internal/service"
	"custody-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (h *Handler) OpenTransfer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req openTransferRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	t, err := h.svc.Transfers.OpenTransfer(ctx, req.From, req.To, req.AssetIDs, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, t, http.StatusCreated)
}

func (h *Handler) RespondTransfer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req notesRequest
	if err := h.decodeOptional(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	var t *domain.Transfer
	switch mux.Vars(r)["action"] {
	case "accept":
		t, err = h.svc.Transfers.AcceptTransfer(ctx, id, req.Notes)
	case "reject":
		t, err = h.svc.Transfers.RejectTransfer(ctx, id, req.Notes)
	default:
		t, err = h.svc.Transfers.CancelTransfer(ctx, id, req.Notes)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, t, http.StatusOK)
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	t, err := h.svc.Transfers.GetTransfer(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, t, http.StatusOK)
}

func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.Transfers.ListTransfers(r.Context(), q.Get("custodian"), domain.TransferStatus(q.Get("status")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Transfer{}
	}
	h.respond(w, list, http.StatusOK)
}

func (h *Handler) OpenRental(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req openRentalRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	open := service.OpenRentalRequest{
		CustodianID:  req.CustodianID,
		Counterparty: req.Counterparty,
		Kind:         domain.RentalKind(req.Kind),
		AssetIDs:     req.AssetIDs,
		Notes:        req.Notes,
	}
	if req.EstimatedReturnDate != "" {
		due, err := utils.ParseDate(req.EstimatedReturnDate, h.loc)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		open.EstimatedReturnDate = &due
	}
	rt, err := h.svc.Rentals.OpenRental(ctx, open)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, rt, http.StatusCreated)
}

func (h *Handler) ProcessReturn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req processReturnRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if len(req.AssetIDs) > 0 && len(req.Lots) > 0 {
		h.respondError(w, r, fmt.Errorf("give either asset_ids or lots, not both: %w", domain.ErrInvalidInput))
		return
	}

	var rt *domain.Rental
	var ret *domain.RentalReturn
	if len(req.Lots) > 0 {
		rt, ret, err = h.svc.Rentals.ProcessReturnByLot(ctx, id, req.Keys, req.Lots, req.Notes)
	} else {
		rt, ret, err = h.svc.Rentals.ProcessReturn(ctx, id, req.AssetIDs, req.Notes)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, returnResponse{Rental: rt, Return: ret}, http.StatusCreated)
}

func (h *Handler) GetRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	rt, err := h.svc.Rentals.GetRental(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, rt, http.StatusOK)
}

func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.Rentals.ListRentals(r.Context(), repository.RentalFilter{
		CustodianID:  q.Get("custodian"),
		Counterparty: q.Get("counterparty"),
		Status:       domain.RentalStatus(q.Get("status")),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Rental{}
	}
	h.respond(w, list, http.StatusOK)
}

func (h *Handler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Rentals.ListOverdue(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Rental{}
	}
	h.respond(w, list, http.StatusOK)
}

func (h *Handler) ListReturns(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	list, err := h.svc.Rentals.ListReturns(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.RentalReturn{}
	}
	h.respond(w, list, http.StatusOK)
}

func (h *Handler) ReconcileRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	rt, changed, err := h.svc.Rentals.ReconcileCounters(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, reconcileResponse{Rental: rt, Changed: changed}, http.StatusOK)
}

func (h *Handler) SendToCleaning(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req sendToCleaningRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	o, err := h.svc.Cleanings.SendToCleaning(ctx, req.SenderID, req.ServiceParty, req.AssetIDs, req.Notes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, o, http.StatusCreated)
}

func (h *Handler) MarkServiceComplete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req serviceCompleteRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	outcomes := make(map[uuid.UUID]domain.CleaningOutcome, len(req.Outcomes))
	for _, o := range req.Outcomes {
		if _, dup := outcomes[o.AssetID]; dup {
			h.respondError(w, r, fmt.Errorf("asset %s listed twice: %w", o.AssetID, domain.ErrInvalidInput))
			return
		}
		outcomes[o.AssetID] = domain.CleaningOutcome(o.Outcome)
	}
	order, err := h.svc.Cleanings.MarkServiceComplete(r.Context(), id, outcomes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, order, http.StatusOK)
}

func (h *Handler) AdvanceCleaningOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var o *domain.CleaningOrder
	switch mux.Vars(r)["action"] {
	case "receive":
		o, err = h.svc.Cleanings.Receive(r.Context(), id)
	case "deliver":
		o, err = h.svc.Cleanings.Deliver(r.Context(), id)
	case "confirm":
		o, err = h.svc.Cleanings.ConfirmReceipt(r.Context(), id)
	default:
		o, err = h.svc.Cleanings.Cancel(r.Context(), id)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, o, http.StatusOK)
}

func (h *Handler) GetCleaningOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	o, err := h.svc.Cleanings.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, o, http.StatusOK)
}

func (h *Handler) ListCleaningOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.Cleanings.ListOrders(r.Context(), q.Get("sender"), domain.CleaningStatus(q.Get("status")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.CleaningOrder{}
	}
	h.respond(w, list, http.StatusOK)
}
