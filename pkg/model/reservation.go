package model

import (
	"slices"
	"time"
)

type ReservationStatus string

const (
	StatusPending     ReservationStatus = "pending"
	StatusConfirmed   ReservationStatus = "confirmed"
	StatusInstallment ReservationStatus = "installment"
	StatusPaid        ReservationStatus = "paid"
	StatusCompleted   ReservationStatus = "completed"
	StatusCancelled   ReservationStatus = "cancelled"
	StatusExpired     ReservationStatus = "expired"
	StatusFailed      ReservationStatus = "failed"
)

// OccupyingStatuses are the statuses whose reservations hold their time range.
var OccupyingStatuses = []ReservationStatus{
	StatusPending,
	StatusConfirmed,
	StatusInstallment,
	StatusPaid,
}

func (s ReservationStatus) Occupies() bool {
	for _, o := range OccupyingStatuses {
		if s == o {
			return true
		}
	}
	return false
}

type SelectedService struct {
	ServiceID string `json:"service_id" bson:"service_id" validate:"required"`
	Quantity  int    `json:"quantity" bson:"quantity" validate:"min=1,max=100"`
}

type Customer struct {
	Name  string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email string `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
}

// PendingInvoice is the gateway invoice currently awaiting payment.
// InstallmentNumber is 0 for a full-amount invoice.
type PendingInvoice struct {
	InvoiceID         string    `json:"invoice_id" bson:"invoice_id"`
	InvoiceURL        string    `json:"invoice_url" bson:"invoice_url"`
	ExternalID        string    `json:"external_id" bson:"external_id"`
	Amount            int64     `json:"amount" bson:"amount"`
	InstallmentNumber int       `json:"installment_number" bson:"installment_number"`
	IssuedAt          time.Time `json:"issued_at" bson:"issued_at"`
}

type Reservation struct {
	ID                  string            `json:"id,omitempty" bson:"_id,omitempty"`
	StudioID            string            `json:"studio_id" bson:"studio_id"`
	StudioKind          StudioKind        `json:"studio_kind" bson:"studio_kind"`
	PackageID           string            `json:"package_id" bson:"package_id"`
	PackageCategoryID   string            `json:"package_category_id,omitempty" bson:"package_category_id,omitempty"`
	CustomerID          string            `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	Customer            *Customer         `json:"customer,omitempty" bson:"customer,omitempty"`
	Quantity            int               `json:"quantity" bson:"quantity"`
	StartInstant        time.Time         `json:"start_instant" bson:"start_instant"`
	EndInstant          time.Time         `json:"end_instant" bson:"end_instant"`
	BaseDurationMinutes int               `json:"base_duration_minutes" bson:"base_duration_minutes"`
	ExtraMinutes        int               `json:"extra_minutes" bson:"extra_minutes"`
	SelectedServices    []SelectedService `json:"selected_services" bson:"selected_services"`
	TotalAmount         int64             `json:"total_amount" bson:"total_amount"`
	Status              ReservationStatus `json:"status" bson:"status"`
	IsWalkIn            bool              `json:"is_walk_in" bson:"is_walk_in"`
	PendingInvoice      *PendingInvoice   `json:"pending_invoice,omitempty" bson:"pending_invoice,omitempty"`
	SettledInvoices     []string          `json:"settled_invoices,omitempty" bson:"settled_invoices,omitempty"`
	VoidedInvoices      []string          `json:"voided_invoices,omitempty" bson:"voided_invoices,omitempty"`
	PaymentMethod       string            `json:"payment_method,omitempty" bson:"payment_method,omitempty"`
	PaidAt              *time.Time        `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	CancelledAt         *time.Time        `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CancellationReason  string            `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty"`
	CreatedAt           time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" bson:"updated_at"`
}

func (r *Reservation) Placement() Placement {
	if r.StudioKind == Regular {
		return RegularPlacement{Studio: r.StudioID, Category: r.PackageCategoryID}
	}
	return SelfPhotoPlacement{Studio: r.StudioID}
}

// EffectiveEnd folds granted extra time into the stored end instant.
func (r *Reservation) EffectiveEnd() time.Time {
	end := r.EndInstant
	if r.BaseDurationMinutes > 0 {
		derived := r.StartInstant.Add(time.Duration(r.BaseDurationMinutes+r.ExtraMinutes) * time.Minute)
		if derived.After(end) {
			end = derived
		}
	}
	return end
}

// HasSettled reports whether the gateway invoice was already credited.
func (r *Reservation) HasSettled(invoiceID string) bool {
	for _, id := range r.SettledInvoices {
		if id == invoiceID {
			return true
		}
	}
	return false
}

// HasVoided reports whether the invoice was still open when the reservation
// was cancelled, expired or failed.
func (r *Reservation) HasVoided(invoiceID string) bool {
	return slices.Contains(r.VoidedInvoices, invoiceID)
}

// DurationMinutes is the total booked time including extra minutes.
func (r *Reservation) DurationMinutes() int {
	return r.BaseDurationMinutes + r.ExtraMinutes
}

// ReservationPatch lists the fields an update may touch. Nil fields are left
// alone. ExpectedStatus, when set, turns the update into a compare-and-set on
// the current status.
type ReservationPatch struct {
	ExpectedStatus      *ReservationStatus
	Status              *ReservationStatus
	StartInstant        *time.Time
	EndInstant          *time.Time
	ExtraMinutes        *int
	SelectedServices    *[]SelectedService
	TotalAmount         *int64
	PendingInvoice      *PendingInvoice
	ClearPendingInvoice bool
	SettledInvoice      string
	VoidedInvoice       string
	PaymentMethod       string
	PaidAt              *time.Time
	CancelledAt         *time.Time
	CancellationReason  string
}

type ReservationFilter struct {
	StudioID   string
	CategoryID string
	CustomerID string
	From       *time.Time
	To         *time.Time
	Statuses   []ReservationStatus
	Limit      int
	Offset     int64
}

type Installment struct {
	ID                string    `json:"id,omitempty" bson:"_id,omitempty"`
	ReservationID     string    `json:"reservation_id" bson:"reservation_id"`
	Amount            int64     `json:"amount" bson:"amount"`
	InstallmentNumber int       `json:"installment_number" bson:"installment_number"`
	PaidAt            time.Time `json:"paid_at" bson:"paid_at"`
	PaymentMethod     string    `json:"payment_method" bson:"payment_method"`
	InvoiceID         string    `json:"invoice_id,omitempty" bson:"invoice_id,omitempty"`
	Voided            bool      `json:"voided" bson:"voided"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// PaidTotal sums the non-voided installments.
func PaidTotal(installments []*Installment) int64 {
	var total int64
	for _, i := range installments {
		if !i.Voided {
			total += i.Amount
		}
	}
	return total
}
