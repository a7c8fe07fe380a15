package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/logger"
	"custody-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// requestTimeout bounds the service call of every handler.
const requestTimeout = 30 * time.Second

// Services bundles the engine services exposed over HTTP.
type Services struct {
	Assets       service.AssetService
	Availability service.AvailabilityService
	Transfers    service.TransferService
	Rentals      service.RentalService
	Cleanings    service.CleaningService
}

// Handler serves the custody API.
type Handler struct {
	svc      Services
	validate *validator.Validate
	loc      *time.Location
}

// NewRouter builds the mux router with every route registered. loc is the
// billing timezone used to read yyyy-mm-dd dates.
func NewRouter(svc Services, loc *time.Location) *mux.Router {
	if loc == nil {
		loc = time.UTC
	}
	h := &Handler{svc: svc, validate: newValidator(), loc: loc}

	r := mux.NewRouter()
	r.Use(logRequests, recoverPanics)
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/assets", h.CreateAsset).Methods(http.MethodPost)
	api.HandleFunc("/assets", h.ListAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets/batch", h.CreateBatch).Methods(http.MethodPost)
	api.HandleFunc("/assets/next-code", h.SuggestNextCode).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}", h.GetAsset).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/status", h.UpdateStatus).Methods(http.MethodPut)
	api.HandleFunc("/assets/{id}/owner", h.UpdateOwner).Methods(http.MethodPut)
	api.HandleFunc("/assets/{id}/retire", h.RetireAsset).Methods(http.MethodPost)
	api.HandleFunc("/assets/{id}/write-offs", h.ListWriteOffs).Methods(http.MethodGet)
	api.HandleFunc("/write-offs", h.ListWriteOffs).Methods(http.MethodGet)
	api.HandleFunc("/attributes/{kind}", h.ListAttributeValues).Methods(http.MethodGet)

	api.HandleFunc("/custodians/{custodian}/availability", h.ListAvailable).Methods(http.MethodGet)
	api.HandleFunc("/custodians/{custodian}/lots", h.ListLots).Methods(http.MethodGet)
	api.HandleFunc("/custodians/{custodian}/allocations", h.Allocate).Methods(http.MethodPost)

	api.HandleFunc("/transfers", h.OpenTransfer).Methods(http.MethodPost)
	api.HandleFunc("/transfers", h.ListTransfers).Methods(http.MethodGet)
	api.HandleFunc("/transfers/{id}", h.GetTransfer).Methods(http.MethodGet)
	api.HandleFunc("/transfers/{id}/{action:accept|reject|cancel}", h.RespondTransfer).Methods(http.MethodPost)

	api.HandleFunc("/rentals", h.OpenRental).Methods(http.MethodPost)
	api.HandleFunc("/rentals", h.ListRentals).Methods(http.MethodGet)
	api.HandleFunc("/rentals/overdue", h.ListOverdue).Methods(http.MethodGet)
	api.HandleFunc("/rentals/{id}", h.GetRental).Methods(http.MethodGet)
	api.HandleFunc("/rentals/{id}/returns", h.ProcessReturn).Methods(http.MethodPost)
	api.HandleFunc("/rentals/{id}/returns", h.ListReturns).Methods(http.MethodGet)
	api.HandleFunc("/rentals/{id}/reconcile", h.ReconcileRental).Methods(http.MethodPost)

	api.HandleFunc("/cleaning-orders", h.SendToCleaning).Methods(http.MethodPost)
	api.HandleFunc("/cleaning-orders", h.ListCleaningOrders).Methods(http.MethodGet)
	api.HandleFunc("/cleaning-orders/{id}", h.GetCleaningOrder).Methods(http.MethodGet)
	api.HandleFunc("/cleaning-orders/{id}/service-complete", h.MarkServiceComplete).Methods(http.MethodPost)
	api.HandleFunc("/cleaning-orders/{id}/{action:receive|deliver|confirm|cancel}", h.AdvanceCleaningOrder).Methods(http.MethodPost)

	return r
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respond(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *Handler) respond(w http.ResponseWriter, data interface{}, status int) {
	res, err := json.Marshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(res)
}

// decode reads a JSON body into dst and runs struct validation on it.
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %v: %w", err, domain.ErrInvalidInput)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%s: %w", describeValidation(err), domain.ErrInvalidInput)
	}
	return nil
}

// decodeOptional is decode for bodies the caller may leave empty.
func (h *Handler) decodeOptional(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("malformed request body: %v: %w", err, domain.ErrInvalidInput)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%s: %w", describeValidation(err), domain.ErrInvalidInput)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", raw, domain.ErrInvalidInput)
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, domain.ErrInvalidInput)
	}
	return n, nil
}

func queryList(r *http.Request, key string) []string {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Handler panicked", "method", r.Method, "path", r.URL.Path, "panic", p)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Internal", Message: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
