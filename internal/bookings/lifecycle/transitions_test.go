package lifecycle

import (
	"testing"

	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/model"
)

var allStatuses = []model.ReservationStatus{
	model.StatusPending,
	model.StatusConfirmed,
	model.StatusInstallment,
	model.StatusPaid,
	model.StatusCompleted,
	model.StatusCancelled,
	model.StatusExpired,
	model.StatusFailed,
}

func TestTransition_Table(t *testing.T) {
	allowed := map[[2]model.ReservationStatus]bool{
		{model.StatusPending, model.StatusConfirmed}:       true,
		{model.StatusPending, model.StatusInstallment}:     true,
		{model.StatusPending, model.StatusPaid}:            true,
		{model.StatusPending, model.StatusCancelled}:       true,
		{model.StatusPending, model.StatusExpired}:         true,
		{model.StatusPending, model.StatusFailed}:          true,
		{model.StatusConfirmed, model.StatusPaid}:          true,
		{model.StatusConfirmed, model.StatusCompleted}:     true,
		{model.StatusConfirmed, model.StatusCancelled}:     true,
		{model.StatusInstallment, model.StatusInstallment}: true,
		{model.StatusInstallment, model.StatusPaid}:        true,
		{model.StatusInstallment, model.StatusCancelled}:   true,
		{model.StatusPaid, model.StatusCompleted}:          true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]model.ReservationStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
			err := Transition(from, to)
			if want && err != nil {
				t.Errorf("Transition(%s, %s) unexpected error: %v", from, to, err)
			}
			if !want && !apperrors.IsCode(err, apperrors.CodeStateTransition) {
				t.Errorf("Transition(%s, %s) = %v, want state transition error", from, to, err)
			}
		}
	}
}

func TestCanCancel(t *testing.T) {
	want := map[model.ReservationStatus]bool{
		model.StatusPending:     true,
		model.StatusConfirmed:   true,
		model.StatusInstallment: true,
	}
	for _, s := range allStatuses {
		if CanCancel(s) != want[s] {
			t.Errorf("CanCancel(%s) = %v", s, CanCancel(s))
		}
	}
}

func TestCanEdit(t *testing.T) {
	for _, s := range allStatuses {
		want := s == model.StatusPending || s == model.StatusConfirmed || s == model.StatusInstallment
		if CanEdit(s) != want {
			t.Errorf("CanEdit(%s) = %v, want %v", s, CanEdit(s), want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[model.ReservationStatus]bool{
		model.StatusCompleted: true,
		model.StatusCancelled: true,
		model.StatusExpired:   true,
		model.StatusFailed:    true,
	}
	for _, s := range allStatuses {
		if IsTerminal(s) != terminal[s] {
			t.Errorf("IsTerminal(%s) = %v", s, IsTerminal(s))
		}
	}
}
