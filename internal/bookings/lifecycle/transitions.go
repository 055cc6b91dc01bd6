// Package lifecycle owns reservation status transitions and the payment flow
// that drives them.
package lifecycle

import (
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/model"
)

type statusSet map[model.ReservationStatus]struct{}

func set(statuses ...model.ReservationStatus) statusSet {
	s := make(statusSet, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

// transitions lists the allowed moves. Statuses missing from the table are
// terminal.
var transitions = map[model.ReservationStatus]statusSet{
	model.StatusPending: set(
		model.StatusConfirmed,
		model.StatusInstallment,
		model.StatusPaid,
		model.StatusCancelled,
		model.StatusExpired,
		model.StatusFailed,
	),
	model.StatusConfirmed:   set(model.StatusPaid, model.StatusCompleted, model.StatusCancelled),
	model.StatusInstallment: set(model.StatusInstallment, model.StatusPaid, model.StatusCancelled),
	model.StatusPaid:        set(model.StatusCompleted),
}

var editable = set(model.StatusPending, model.StatusConfirmed, model.StatusInstallment)

func CanTransition(from, to model.ReservationStatus) bool {
	_, ok := transitions[from][to]
	return ok
}

// Transition returns a StateTransition error when from cannot move to to.
func Transition(from, to model.ReservationStatus) error {
	if !CanTransition(from, to) {
		return apperrors.StateTransition(string(from), string(to))
	}
	return nil
}

func CanCancel(s model.ReservationStatus) bool {
	return CanTransition(s, model.StatusCancelled)
}

// CanEdit reports whether time, extra minutes or services may still change.
func CanEdit(s model.ReservationStatus) bool {
	_, ok := editable[s]
	return ok
}

func IsTerminal(s model.ReservationStatus) bool {
	return len(transitions[s]) == 0
}

// AcceptsPayment reports whether a settlement can still be credited.
func AcceptsPayment(s model.ReservationStatus) bool {
	return CanTransition(s, model.StatusPaid)
}
