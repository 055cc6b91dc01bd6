package events

import (
	"context"
	"errors"

	bookingserrors "studiobook/internal/bookings/errors"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/gateway"
	"studiobook/pkg/kafka"
	"studiobook/pkg/lock"
	"studiobook/pkg/logger"
	"studiobook/pkg/model"
)

type InvoiceEventApplier interface {
	ApplyInvoiceEvent(ctx context.Context, inv *gateway.Invoice) (*model.Reservation, error)
}

// InvoiceEventHandler applies gateway invoice notifications read from the
// invoice events topic. Notifications for unknown invoices and repeats of an
// already settled invoice are acknowledged; lock contention and concurrent
// status changes are retried. Payments against closed reservations go to the
// DLQ.
func InvoiceEventHandler(engine InvoiceEventApplier, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		inv, err := gateway.DecodeCallback(msg.Value)
		if err != nil {
			return kafka.NewPermanentError("decode invoice event", err)
		}

		reservation, err := engine.ApplyInvoiceEvent(ctx, inv)
		switch {
		case err == nil:
			log.Info("Invoice event applied",
				"invoice_id", inv.ID,
				"status", inv.Status,
				"reservation_id", reservation.ID,
				"reservation_status", reservation.Status,
			)
			return nil
		case apperrors.IsCode(err, apperrors.CodeNotFound):
			log.Warn("Invoice event for unknown invoice", "invoice_id", inv.ID, "external_id", inv.ExternalID)
			return nil
		case errors.Is(err, bookingserrors.ErrDuplicatePayment):
			log.Info("Invoice event already applied", "invoice_id", inv.ID)
			return nil
		case apperrors.IsCode(err, apperrors.CodeStateTransition):
			log.Error("Invoice event rejected by reservation status", "invoice_id", inv.ID, "status", inv.Status, "error", err)
			return kafka.NewPermanentError("invoice event for closed reservation", err)
		case errors.Is(err, bookingserrors.ErrStaleStatus), errors.Is(err, lock.ErrBusy):
			return kafka.NewTransientError("reservation busy", err)
		default:
			return err
		}
	}
}
