package handler

import (
	"context"
	"io"
	"net/http"

	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/gateway"
	httputil "studiobook/pkg/http"
	"studiobook/pkg/logger"
	"studiobook/pkg/middleware"
	"studiobook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type InvoiceEventApplier interface {
	ApplyInvoiceEvent(ctx context.Context, inv *gateway.Invoice) (*model.Reservation, error)
}

type callbackResponse struct {
	Status        string `json:"status"`
	ReservationID string `json:"reservation_id,omitempty"`
}

// PaymentHandler receives invoice notifications pushed by the gateway.
type PaymentHandler struct {
	engine        InvoiceEventApplier
	callbackToken string
	log           *logger.Logger
}

func NewPaymentHandler(engine InvoiceEventApplier, callbackToken string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		engine:        engine,
		callbackToken: callbackToken,
		log:           log,
	}
}

// Callback answers 200 for invoices this service does not own so the gateway
// stops redelivering them.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	inv, err := gateway.DecodeCallback(body)
	if err != nil {
		h.log.Warn("Rejected invoice callback", "request_id", middleware.RequestID(r), "error", err)
		h.writeError(w, err)
		return
	}

	reservation, err := h.engine.ApplyInvoiceEvent(r.Context(), inv)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			h.log.Warn("Invoice callback for unknown invoice", "invoice_id", inv.ID, "external_id", inv.ExternalID)
			h.write(w, callbackResponse{Status: "ignored"})
			return
		}
		h.log.Error("Failed to apply invoice callback", "invoice_id", inv.ID, "status", inv.Status, "error", err)
		h.writeError(w, err)
		return
	}

	h.log.Info("Invoice callback applied",
		"invoice_id", inv.ID,
		"status", inv.Status,
		"reservation_id", reservation.ID,
		"reservation_status", reservation.Status,
	)
	h.write(w, callbackResponse{Status: "applied", ReservationID: reservation.ID})
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	verify := middleware.CallbackTokenVerification(h.callbackToken, h.log)
	router.Handler(http.MethodPost, "/api/v1/payments/callback", verify(adapt(h.Callback)))
}

func adapt(handle httprouter.Handle) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle(w, r, httprouter.ParamsFromContext(r.Context()))
	})
}

func (h *PaymentHandler) write(w http.ResponseWriter, resp callbackResponse) {
	if err := httputil.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Callback", "operation", "WriteJSON", "error", err)
	}
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "Callback", "operation", "WriteError", "error", writeErr)
	}
}
