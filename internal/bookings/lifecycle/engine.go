package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	bookingserrors "studiobook/internal/bookings/errors"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/gateway"
	"studiobook/pkg/lock"
	"studiobook/pkg/logger"
	"studiobook/pkg/model"

	"github.com/google/uuid"
)

const defaultLockTTL = 30 * time.Second

type ReservationStore interface {
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByInvoiceID(ctx context.Context, invoiceID string) (*model.Reservation, error)
	Update(ctx context.Context, id string, patch model.ReservationPatch) (*model.Reservation, error)
}

type InstallmentStore interface {
	ListByReservation(ctx context.Context, reservationID string) ([]*model.Installment, error)
	Create(ctx context.Context, installment *model.Installment) (*model.Installment, error)
}

type Transactor interface {
	ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Gateway interface {
	CreateInvoice(ctx context.Context, req gateway.InvoiceRequest) (*gateway.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*gateway.Invoice, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.ReservationEvent) error
}

type Dependencies struct {
	Reservations ReservationStore
	Installments InstallmentStore
	Transactor   Transactor
	Gateway      Gateway
	Locker       lock.Locker
	Events       EventPublisher
}

type Options struct {
	LockTTL time.Duration
	Now     func() time.Time
}

// Payment is a settlement credited against a reservation.
type Payment struct {
	ReservationID string
	InvoiceID     string
	Amount        int64
	Method        string
	PaidAt        time.Time
}

// Engine moves reservations through their statuses as payments and operator
// actions arrive. Every mutation of one reservation runs under that
// reservation's lock, and store updates are compare-and-set on the status the
// engine read.
type Engine struct {
	reservations ReservationStore
	installments InstallmentStore
	tx           Transactor
	gateway      Gateway
	locker       lock.Locker
	events       EventPublisher
	lockTTL      time.Duration
	now          func() time.Time
	log          *logger.Logger
}

func NewEngine(deps Dependencies, opts Options, log *logger.Logger) *Engine {
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		reservations: deps.Reservations,
		installments: deps.Installments,
		tx:           deps.Transactor,
		gateway:      deps.Gateway,
		locker:       deps.Locker,
		events:       deps.Events,
		lockTTL:      opts.LockTTL,
		now:          opts.Now,
		log:          log,
	}
}

// StartCheckout issues a gateway invoice for amount, or for the whole
// outstanding balance when amount is zero. An open invoice for the same amount
// is returned as is.
func (e *Engine) StartCheckout(ctx context.Context, id string, amount int64) (*model.Reservation, error) {
	release, err := e.lockReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	defer e.unlock(release, id)

	r, err := e.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !AcceptsPayment(r.Status) {
		return nil, Transition(r.Status, model.StatusPaid)
	}

	installments, err := e.listInstallments(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	outstanding := r.TotalAmount - model.PaidTotal(installments)
	if amount == 0 {
		amount = outstanding
	}
	if err := checkCheckoutAmount(r, amount, outstanding); err != nil {
		return nil, err
	}

	if pi := r.PendingInvoice; pi != nil {
		if pi.Amount == amount {
			return r, nil
		}
		return nil, apperrors.Conflict("Another invoice is already awaiting payment").
			WithDetails(map[string]any{"invoice_id": pi.InvoiceID, "amount": pi.Amount})
	}

	number := 0
	if amount < outstanding || countActive(installments) > 0 {
		number = countActive(installments) + 1
	}

	pending, err := e.issueInvoice(ctx, r, amount, number)
	if err != nil {
		return nil, err
	}

	updated, err := e.update(ctx, r, model.ReservationPatch{PendingInvoice: pending})
	if err != nil {
		return nil, err
	}

	e.log.Info("Checkout started",
		"id", r.ID,
		"invoice_id", pending.InvoiceID,
		"amount", amount,
		"installment_number", number,
	)
	e.publish(ctx, model.EventInvoiceIssued, updated, amount)
	return updated, nil
}

func checkCheckoutAmount(r *model.Reservation, amount, outstanding int64) error {
	if outstanding <= 0 {
		return apperrors.Validation("Reservation has no outstanding balance", map[string]any{"id": r.ID})
	}
	if amount <= 0 || amount > outstanding {
		return apperrors.Validation("Invoice amount must be between 1 and the outstanding balance", map[string]any{
			"amount":      amount,
			"outstanding": outstanding,
		})
	}
	if r.Status == model.StatusConfirmed && amount != outstanding {
		return apperrors.Validation("Confirmed reservations settle the full outstanding balance", map[string]any{
			"amount":      amount,
			"outstanding": outstanding,
		})
	}
	return nil
}

// RecordPayment credits a settlement taken outside the invoice callbacks, such
// as cash at the counter. A full payment of an untouched balance moves straight
// to Paid; anything else is stored as an installment, and when a balance
// remains a new invoice for it is issued before anything is written. While a
// gateway invoice is open only that invoice can be credited.
func (e *Engine) RecordPayment(ctx context.Context, p Payment) (*model.Reservation, error) {
	release, err := e.lockReservation(ctx, p.ReservationID)
	if err != nil {
		return nil, err
	}
	defer e.unlock(release, p.ReservationID)

	r, err := e.find(ctx, p.ReservationID)
	if err != nil {
		return nil, err
	}
	if pi := r.PendingInvoice; pi != nil && AcceptsPayment(r.Status) && pi.InvoiceID != p.InvoiceID {
		return nil, apperrors.Conflict("Reservation has an open invoice; settle it or let it expire first").
			WithDetails(map[string]any{"id": r.ID, "invoice_id": pi.InvoiceID})
	}
	return e.settle(ctx, r, p)
}

func (e *Engine) settle(ctx context.Context, r *model.Reservation, p Payment) (*model.Reservation, error) {
	if p.InvoiceID != "" && r.HasSettled(p.InvoiceID) {
		return nil, duplicatePayment(r.ID, p.InvoiceID)
	}
	if !AcceptsPayment(r.Status) {
		return nil, Transition(r.Status, model.StatusPaid)
	}
	if p.Amount <= 0 {
		return nil, apperrors.Validation("Payment amount must be positive", map[string]any{"amount": p.Amount})
	}

	installments, err := e.listInstallments(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	for _, i := range installments {
		if p.InvoiceID != "" && i.InvoiceID == p.InvoiceID && !i.Voided {
			return nil, duplicatePayment(r.ID, p.InvoiceID)
		}
	}

	paid := model.PaidTotal(installments)
	outstanding := r.TotalAmount - paid
	if p.Amount > outstanding {
		return nil, apperrors.Validation("Payment exceeds the outstanding balance", map[string]any{
			"amount":      p.Amount,
			"outstanding": outstanding,
		})
	}
	remaining := outstanding - p.Amount
	if r.Status == model.StatusConfirmed && remaining > 0 {
		return nil, apperrors.Validation("Confirmed reservations settle the full outstanding balance", map[string]any{
			"amount":      p.Amount,
			"outstanding": outstanding,
		})
	}

	next := model.StatusPaid
	if remaining > 0 {
		next = model.StatusInstallment
	}
	if err := Transition(r.Status, next); err != nil {
		return nil, err
	}

	paidAt := p.PaidAt
	if paidAt.IsZero() {
		paidAt = e.now()
	}

	var record *model.Installment
	if remaining > 0 || countActive(installments) > 0 {
		record = &model.Installment{
			ReservationID:     r.ID,
			Amount:            p.Amount,
			InstallmentNumber: countActive(installments) + 1,
			PaidAt:            paidAt.UTC(),
			PaymentMethod:     p.Method,
			InvoiceID:         p.InvoiceID,
			CreatedAt:         e.now().UTC(),
		}
	}

	patch := model.ReservationPatch{
		Status:         &next,
		SettledInvoice: p.InvoiceID,
		PaymentMethod:  p.Method,
	}
	if remaining > 0 {
		pending, err := e.issueInvoice(ctx, r, remaining, record.InstallmentNumber+1)
		if err != nil {
			return nil, err
		}
		patch.PendingInvoice = pending
	} else {
		patch.ClearPendingInvoice = true
		at := paidAt.UTC()
		patch.PaidAt = &at
	}

	var updated *model.Reservation
	err = e.tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if record != nil {
			if _, err := e.installments.Create(txCtx, record); err != nil {
				return apperrors.Internal("Failed to record installment", err)
			}
		}
		var err error
		updated, err = e.update(txCtx, r, patch)
		return err
	})
	if err != nil {
		e.log.Error("Failed to record payment", "id", r.ID, "invoice_id", p.InvoiceID, "error", err)
		return nil, err
	}

	e.log.Info("Payment recorded",
		"id", r.ID,
		"amount", p.Amount,
		"remaining", remaining,
		"status", next,
	)
	if record != nil {
		e.publish(ctx, model.EventInstallmentRecorded, updated, p.Amount)
	}
	if next == model.StatusPaid {
		e.publish(ctx, model.EventReservationPaid, updated, p.Amount)
	} else {
		e.publish(ctx, model.EventInvoiceIssued, updated, remaining)
	}
	return updated, nil
}

// ApplyInvoiceEvent reacts to a gateway notification for one of the
// reservation invoices.
func (e *Engine) ApplyInvoiceEvent(ctx context.Context, inv *gateway.Invoice) (*model.Reservation, error) {
	if inv == nil || inv.ID == "" {
		return nil, apperrors.Validation("Invoice event without id", nil)
	}

	owner, err := e.reservations.FindByInvoiceID(ctx, inv.ID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Invoice", inv.ID)
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}

	release, err := e.lockReservation(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	defer e.unlock(release, owner.ID)

	r, err := e.find(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	return e.applyInvoice(ctx, r, inv)
}

// SyncInvoice polls the gateway for the pending invoice and applies its status.
func (e *Engine) SyncInvoice(ctx context.Context, id string) (*model.Reservation, error) {
	release, err := e.lockReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	defer e.unlock(release, id)

	r, err := e.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.PendingInvoice == nil {
		return r, nil
	}

	inv, err := e.gateway.GetInvoice(ctx, r.PendingInvoice.InvoiceID)
	if err != nil {
		return nil, asGatewayError("Failed to fetch invoice status", err)
	}
	return e.applyInvoice(ctx, r, inv)
}

func (e *Engine) applyInvoice(ctx context.Context, r *model.Reservation, inv *gateway.Invoice) (*model.Reservation, error) {
	switch inv.Status {
	case gateway.StatusPending:
		return r, nil

	case gateway.StatusSettled:
		if r.HasSettled(inv.ID) {
			return nil, duplicatePayment(r.ID, inv.ID)
		}
		if r.HasVoided(inv.ID) {
			// Invoice was open when the reservation closed; settle rejects the status.
			updated, err := e.settle(ctx, r, invoicePayment(r, inv, inv.PaidAmount))
			e.log.Error("Payment received for an invoice of a closed reservation",
				"id", r.ID,
				"invoice_id", inv.ID,
				"status", r.Status,
				"paid_amount", inv.PaidAmount,
				"error", err,
			)
			return updated, err
		}
		if r.PendingInvoice == nil || r.PendingInvoice.InvoiceID != inv.ID {
			return nil, apperrors.Conflict("Invoice is not awaiting payment on this reservation").
				WithDetails(map[string]any{"id": r.ID, "invoice_id": inv.ID})
		}
		amount := inv.PaidAmount
		if amount == 0 {
			amount = r.PendingInvoice.Amount
		}
		return e.settle(ctx, r, invoicePayment(r, inv, amount))

	case gateway.StatusExpired:
		return e.reissue(ctx, r, inv.ID)

	default:
		return nil, apperrors.Gateway("Unexpected invoice status", fmt.Errorf("status %q", inv.Status))
	}
}

func invoicePayment(r *model.Reservation, inv *gateway.Invoice, amount int64) Payment {
	var paidAt time.Time
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	return Payment{
		ReservationID: r.ID,
		InvoiceID:     inv.ID,
		Amount:        amount,
		Method:        inv.PaymentMethod,
		PaidAt:        paidAt,
	}
}

// reissue replaces an expired invoice with a fresh one for the same amount and
// installment number. The reservation status does not change.
func (e *Engine) reissue(ctx context.Context, r *model.Reservation, expiredID string) (*model.Reservation, error) {
	pi := r.PendingInvoice
	if pi == nil || pi.InvoiceID != expiredID || !AcceptsPayment(r.Status) {
		e.log.Info("Ignoring expiry of stale invoice", "id", r.ID, "invoice_id", expiredID)
		return r, nil
	}

	pending, err := e.issueInvoice(ctx, r, pi.Amount, pi.InstallmentNumber)
	if err != nil {
		return nil, err
	}

	updated, err := e.update(ctx, r, model.ReservationPatch{PendingInvoice: pending})
	if err != nil {
		return nil, err
	}

	e.log.Info("Expired invoice reissued",
		"id", r.ID,
		"expired_invoice_id", expiredID,
		"invoice_id", pending.InvoiceID,
		"amount", pending.Amount,
	)
	e.publish(ctx, model.EventInvoiceIssued, updated, pending.Amount)
	return updated, nil
}

func (e *Engine) Cancel(ctx context.Context, id, reason string) (*model.Reservation, error) {
	now := e.now().UTC()
	return e.advance(ctx, id, model.StatusCancelled, model.EventReservationCancelled, model.ReservationPatch{
		CancelledAt:         &now,
		CancellationReason:  reason,
		ClearPendingInvoice: true,
	})
}

func (e *Engine) Confirm(ctx context.Context, id string) (*model.Reservation, error) {
	return e.advance(ctx, id, model.StatusConfirmed, model.EventReservationConfirmed, model.ReservationPatch{})
}

func (e *Engine) Complete(ctx context.Context, id string) (*model.Reservation, error) {
	return e.advance(ctx, id, model.StatusCompleted, model.EventReservationCompleted, model.ReservationPatch{})
}

func (e *Engine) Expire(ctx context.Context, id string) (*model.Reservation, error) {
	return e.advance(ctx, id, model.StatusExpired, model.EventReservationExpired, model.ReservationPatch{
		ClearPendingInvoice: true,
	})
}

func (e *Engine) Fail(ctx context.Context, id string) (*model.Reservation, error) {
	return e.advance(ctx, id, model.StatusFailed, model.EventReservationFailed, model.ReservationPatch{
		ClearPendingInvoice: true,
	})
}

func (e *Engine) advance(ctx context.Context, id string, to model.ReservationStatus, event model.EventType, patch model.ReservationPatch) (*model.Reservation, error) {
	release, err := e.lockReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	defer e.unlock(release, id)

	r, err := e.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Transition(r.Status, to); err != nil {
		e.log.Warn("Rejected status transition", "id", id, "from", r.Status, "to", to)
		return nil, err
	}

	patch.Status = &to
	if patch.ClearPendingInvoice && r.PendingInvoice != nil {
		patch.VoidedInvoice = r.PendingInvoice.InvoiceID
	}
	updated, err := e.update(ctx, r, patch)
	if err != nil {
		return nil, err
	}

	e.log.Info("Reservation status changed", "id", id, "from", r.Status, "to", to)
	e.publish(ctx, event, updated, 0)
	return updated, nil
}

func (e *Engine) issueInvoice(ctx context.Context, r *model.Reservation, amount int64, number int) (*model.PendingInvoice, error) {
	externalID := fmt.Sprintf("%s-%d-%s", r.ID, number, uuid.NewString()[:8])
	req := gateway.InvoiceRequest{
		ExternalID:  externalID,
		Amount:      amount,
		Description: describeInvoice(r, number),
	}
	if c := r.Customer; c != nil {
		req.Customer = &gateway.Customer{Name: c.Name, Email: c.Email, Phone: c.Phone}
	}

	inv, err := e.gateway.CreateInvoice(ctx, req)
	if err != nil {
		e.log.Error("Failed to create invoice", "id", r.ID, "amount", amount, "error", err)
		return nil, asGatewayError("Failed to create invoice", err)
	}

	if inv.ExternalID != "" {
		externalID = inv.ExternalID
	}
	return &model.PendingInvoice{
		InvoiceID:         inv.ID,
		InvoiceURL:        inv.URL,
		ExternalID:        externalID,
		Amount:            amount,
		InstallmentNumber: number,
		IssuedAt:          e.now().UTC(),
	}, nil
}

func describeInvoice(r *model.Reservation, number int) string {
	if number == 0 {
		return fmt.Sprintf("Reservation %s", r.ID)
	}
	return fmt.Sprintf("Reservation %s installment %d", r.ID, number)
}

func (e *Engine) find(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	r, err := e.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, id)
	}
	return r, nil
}

func (e *Engine) listInstallments(ctx context.Context, id string) ([]*model.Installment, error) {
	installments, err := e.installments.ListByReservation(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve installments", err)
	}
	return installments, nil
}

// update applies patch only if the reservation still has the status it was
// read with.
func (e *Engine) update(ctx context.Context, r *model.Reservation, patch model.ReservationPatch) (*model.Reservation, error) {
	expected := r.Status
	patch.ExpectedStatus = &expected
	updated, err := e.reservations.Update(ctx, r.ID, patch)
	if err != nil {
		return nil, storeError(err, r.ID)
	}
	return updated, nil
}

func (e *Engine) lockReservation(ctx context.Context, id string) (lock.Release, error) {
	return e.locker.Acquire(ctx, ReservationLockKey(id), e.lockTTL)
}

func (e *Engine) unlock(release lock.Release, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := release(ctx); err != nil {
		e.log.Warn("Failed to release reservation lock", "id", id, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, t model.EventType, r *model.Reservation, amount int64) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, model.NewReservationEvent(t, r, amount)); err != nil {
		e.log.Warn("Failed to publish reservation event", "id", r.ID, "type", t, "error", err)
	}
}

// ReservationLockKey serializes payment processing per reservation.
func ReservationLockKey(id string) string {
	return "reservation:" + id
}

func countActive(installments []*model.Installment) int {
	n := 0
	for _, i := range installments {
		if !i.Voided {
			n++
		}
	}
	return n
}

func duplicatePayment(id, invoiceID string) error {
	return apperrors.Wrap(bookingserrors.ErrDuplicatePayment, apperrors.CodeConflict,
		"Payment was already recorded for this invoice", http.StatusConflict).
		WithDetails(map[string]any{"id": id, "invoice_id": invoiceID})
}

func asGatewayError(message string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Gateway(message, err)
}

// storeError maps repository sentinels onto application errors.
func storeError(err error, id string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Reservation", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid reservation ID format")
	case errors.Is(err, bookingserrors.ErrStaleStatus):
		return apperrors.Wrap(err, apperrors.CodeConflict,
			"Reservation was modified by another request. Please retry.", http.StatusConflict)
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Failed to access reservation", err)
	}
}
