package model

import "time"

type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationUpdated   EventType = "reservation.updated"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventInstallmentRecorded  EventType = "reservation.installment_recorded"
	EventReservationPaid      EventType = "reservation.paid"
	EventReservationConfirmed EventType = "reservation.confirmed"
	EventReservationCompleted EventType = "reservation.completed"
	EventReservationExpired   EventType = "reservation.expired"
	EventReservationFailed    EventType = "reservation.failed"
	EventInvoiceIssued        EventType = "reservation.invoice_issued"
)

type ReservationEvent struct {
	Type          EventType         `json:"type"`
	ReservationID string            `json:"reservation_id"`
	StudioID      string            `json:"studio_id"`
	Status        ReservationStatus `json:"status"`
	TotalAmount   int64             `json:"total_amount"`
	Amount        int64             `json:"amount,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

func NewReservationEvent(t EventType, r *Reservation, amount int64) ReservationEvent {
	return ReservationEvent{
		Type:          t,
		ReservationID: r.ID,
		StudioID:      r.StudioID,
		Status:        r.Status,
		TotalAmount:   r.TotalAmount,
		Amount:        amount,
		OccurredAt:    time.Now().UTC(),
	}
}
