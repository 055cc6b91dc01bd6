package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"studiobook/internal/bookings/lifecycle"
	"studiobook/internal/bookings/service"
	apperrors "studiobook/pkg/errors"
	httputil "studiobook/pkg/http"
	"studiobook/pkg/logger"
	"studiobook/pkg/model"
	"studiobook/pkg/sanitizer"

	"github.com/julienschmidt/httprouter"
)

// Lifecycle is the part of the payment engine the HTTP surface drives.
type Lifecycle interface {
	StartCheckout(ctx context.Context, id string, amount int64) (*model.Reservation, error)
	RecordPayment(ctx context.Context, p lifecycle.Payment) (*model.Reservation, error)
	SyncInvoice(ctx context.Context, id string) (*model.Reservation, error)
	Cancel(ctx context.Context, id, reason string) (*model.Reservation, error)
	Confirm(ctx context.Context, id string) (*model.Reservation, error)
	Complete(ctx context.Context, id string) (*model.Reservation, error)
	Expire(ctx context.Context, id string) (*model.Reservation, error)
	Fail(ctx context.Context, id string) (*model.Reservation, error)
}

type ReservationHandler struct {
	service   service.ReservationService
	lifecycle Lifecycle
	log       *logger.Logger
}

func NewReservationHandler(service service.ReservationService, lifecycle Lifecycle, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service:   service,
		lifecycle: lifecycle,
		log:       log,
	}
}

const maxReasonLength = 500

type cancelRequest struct {
	Reason string `json:"reason"`
}

type checkoutRequest struct {
	Amount int64 `json:"amount"`
}

// paymentRequest is a settlement taken at the counter.
type paymentRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
}

const defaultPaymentMethod = "CASH"

func (h *ReservationHandler) Slots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	quantity, err := httputil.ExtractInt(r, "quantity")
	if err != nil {
		h.writeError(w, "Slots", err)
		return
	}

	query := &model.SlotQuery{
		StudioID:  ps.ByName("id"),
		PackageID: r.URL.Query().Get("package_id"),
		Date:      r.URL.Query().Get("date"),
		Quantity:  quantity,
	}

	slots, err := h.service.AvailableSlots(r.Context(), query)
	if err != nil {
		h.writeError(w, "Slots", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "Slots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Quote(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.QuoteRequest
	if !h.decode(w, r, "Quote", &req) {
		return
	}

	breakdown, err := h.service.Quote(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}

	if err := httputil.WriteSuccess(w, breakdown); err != nil {
		h.log.Error("failed to write success response", "handler", "Quote", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var draft model.ReservationDraft
	if !h.decode(w, r, "Create", &draft) {
		return
	}

	reservation, err := h.service.Create(r.Context(), &draft)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter, err := searchFilter(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	reservations, total, err := h.service.Search(r.Context(), filter)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, filter.Limit, filter.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Search", "operation", "WritePaginated", "error", err)
	}
}

func searchFilter(r *http.Request) (model.ReservationFilter, error) {
	query := r.URL.Query()

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		return model.ReservationFilter{}, err
	}
	from, err := httputil.ExtractTime(r, "from")
	if err != nil {
		return model.ReservationFilter{}, err
	}
	to, err := httputil.ExtractTime(r, "to")
	if err != nil {
		return model.ReservationFilter{}, err
	}

	var statuses []model.ReservationStatus
	if s := query.Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			statuses = append(statuses, model.ReservationStatus(strings.TrimSpace(part)))
		}
	}

	return model.ReservationFilter{
		StudioID:   query.Get("studio_id"),
		CategoryID: query.Get("category_id"),
		CustomerID: query.Get("customer_id"),
		From:       from,
		To:         to,
		Statuses:   statuses,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

func (h *ReservationHandler) Edit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var edit model.ReservationEdit
	if !h.decode(w, r, "Edit", &edit) {
		return
	}

	reservation, err := h.service.Edit(r.Context(), ps.ByName("id"), &edit)
	if err != nil {
		h.writeError(w, "Edit", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Edit", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Installments(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	installments, err := h.service.ListInstallments(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Installments", err)
		return
	}

	if err := httputil.WriteSuccess(w, installments); err != nil {
		h.log.Error("failed to write success response", "handler", "Installments", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Checkout(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req checkoutRequest
	if r.ContentLength != 0 && !h.decode(w, r, "Checkout", &req) {
		return
	}
	if req.Amount < 0 {
		h.writeError(w, "Checkout", apperrors.Validation("Checkout amount cannot be negative", map[string]any{"amount": req.Amount}))
		return
	}

	reservation, err := h.lifecycle.StartCheckout(r.Context(), ps.ByName("id"), req.Amount)
	h.writeTransition(w, "Checkout", reservation, err)
}

func (h *ReservationHandler) RecordPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req paymentRequest
	if !h.decode(w, r, "RecordPayment", &req) {
		return
	}
	if req.Amount <= 0 {
		h.writeError(w, "RecordPayment", apperrors.Validation("Payment amount must be positive", map[string]any{"amount": req.Amount}))
		return
	}
	method := strings.ToUpper(sanitizer.CollapseSpace(req.Method))
	if method == "" {
		method = defaultPaymentMethod
	}

	reservation, err := h.lifecycle.RecordPayment(r.Context(), lifecycle.Payment{
		ReservationID: ps.ByName("id"),
		Amount:        req.Amount,
		Method:        method,
	})
	h.writeTransition(w, "RecordPayment", reservation, err)
}

func (h *ReservationHandler) Sync(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.lifecycle.SyncInvoice(r.Context(), ps.ByName("id"))
	h.writeTransition(w, "Sync", reservation, err)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req cancelRequest
	if r.ContentLength != 0 && !h.decode(w, r, "Cancel", &req) {
		return
	}

	reservation, err := h.lifecycle.Cancel(r.Context(), ps.ByName("id"), sanitizer.NormalizeNote(req.Reason, maxReasonLength))
	h.writeTransition(w, "Cancel", reservation, err)
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.lifecycle.Confirm(r.Context(), ps.ByName("id"))
	h.writeTransition(w, "Confirm", reservation, err)
}

func (h *ReservationHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.lifecycle.Complete(r.Context(), ps.ByName("id"))
	h.writeTransition(w, "Complete", reservation, err)
}

func (h *ReservationHandler) Expire(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.lifecycle.Expire(r.Context(), ps.ByName("id"))
	h.writeTransition(w, "Expire", reservation, err)
}

func (h *ReservationHandler) Fail(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.lifecycle.Fail(r.Context(), ps.ByName("id"))
	h.writeTransition(w, "Fail", reservation, err)
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/studios/:id/slots", h.Slots)
	router.POST("/api/v1/quotes", h.Quote)

	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations", h.Search)
	router.GET("/api/v1/reservations/:id", h.GetByID)
	router.PATCH("/api/v1/reservations/:id", h.Edit)
	router.GET("/api/v1/reservations/:id/installments", h.Installments)

	router.POST("/api/v1/reservations/:id/checkout", h.Checkout)
	router.POST("/api/v1/reservations/:id/payments", h.RecordPayment)
	router.POST("/api/v1/reservations/:id/sync", h.Sync)
	router.POST("/api/v1/reservations/:id/cancel", h.Cancel)
	router.POST("/api/v1/reservations/:id/confirm", h.Confirm)
	router.POST("/api/v1/reservations/:id/complete", h.Complete)
	router.POST("/api/v1/reservations/:id/expire", h.Expire)
	router.POST("/api/v1/reservations/:id/fail", h.Fail)
}

// decode reads a JSON body into v and answers the request itself on failure.
func (h *ReservationHandler) decode(w http.ResponseWriter, r *http.Request, name string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			if writeErr := httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
				Error: "Request body too large",
				Code:  apperrors.CodeInvalidInput,
			}); writeErr != nil {
				h.log.Error("failed to write JSON response", "handler", name, "operation", "WriteJSON", "error", writeErr)
			}
			return false
		}
		h.writeError(w, name, apperrors.InvalidInput("Invalid request body"))
		return false
	}
	return true
}

func (h *ReservationHandler) writeTransition(w http.ResponseWriter, name string, reservation *model.Reservation, err error) {
	if err != nil {
		h.writeError(w, name, err)
		return
	}
	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}
