package validator

import (
	"errors"
	"strings"
	"testing"

	"studiobook/pkg/logger"
	"studiobook/pkg/model"
)

func newValidator() *ReservationValidator {
	return NewReservationValidator(logger.Discard())
}

func validDraft() *model.ReservationDraft {
	return &model.ReservationDraft{
		StudioID:  "studio-1",
		PackageID: "pkg-1",
		Customer:  &model.Customer{Name: "Ayu Lestari", Phone: "+6281234567890"},
		Start:     "2026-03-14T10:00",
		Quantity:  1,
		Services:  []model.SelectedService{{ServiceID: "svc-1", Quantity: 2}},
	}
}

func TestValidate_Draft(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(d *model.ReservationDraft)
		wantField string
	}{
		{name: "valid draft", mutate: func(d *model.ReservationDraft) {}},
		{name: "seconds accepted", mutate: func(d *model.ReservationDraft) { d.Start = "2026-03-14T10:00:00" }},
		{name: "walk-in without customer", mutate: func(d *model.ReservationDraft) { d.Customer = nil; d.IsWalkIn = true }},
		{
			name:      "missing studio",
			mutate:    func(d *model.ReservationDraft) { d.StudioID = "" },
			wantField: "StudioID",
		},
		{
			name:      "unparsable start",
			mutate:    func(d *model.ReservationDraft) { d.Start = "14/03/2026 10:00" },
			wantField: "Start",
		},
		{
			name:      "negative extra minutes",
			mutate:    func(d *model.ReservationDraft) { d.ExtraMinutes = -5 },
			wantField: "ExtraMinutes",
		},
		{
			name:      "service quantity zero",
			mutate:    func(d *model.ReservationDraft) { d.Services[0].Quantity = 0 },
			wantField: "Quantity",
		},
		{
			name:      "negative quantity",
			mutate:    func(d *model.ReservationDraft) { d.Quantity = -3 },
			wantField: "Quantity",
		},
		{
			name:      "phone not e164",
			mutate:    func(d *model.ReservationDraft) { d.Customer.Phone = "0812-3456" },
			wantField: "Phone",
		},
		{
			name:      "scheduled reservation without customer",
			mutate:    func(d *model.ReservationDraft) { d.Customer = nil },
			wantField: "Customer",
		},
		{
			name: "duplicate service",
			mutate: func(d *model.ReservationDraft) {
				d.Services = append(d.Services, model.SelectedService{ServiceID: "svc-1", Quantity: 1})
			},
			wantField: "Services",
		},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(d)
			err := v.Validate(d)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() errors = %v, want field %s", verrs, tt.wantField)
			}
		})
	}
}

func TestValidate_StartMessage(t *testing.T) {
	d := validDraft()
	d.Start = "tomorrow"

	err := newValidator().Validate(d)
	if err == nil || !strings.Contains(err.Error(), "local date-time") {
		t.Errorf("Validate() error = %v, want local date-time message", err)
	}
}

func TestValidateEdit(t *testing.T) {
	start := "2026-03-14T13:00"
	bad := "13:00"
	extra := 15
	negative := -1
	dup := []model.SelectedService{{ServiceID: "a", Quantity: 1}, {ServiceID: "a", Quantity: 1}}

	tests := []struct {
		name    string
		edit    model.ReservationEdit
		wantErr bool
	}{
		{name: "empty edit", edit: model.ReservationEdit{}, wantErr: true},
		{name: "reschedule", edit: model.ReservationEdit{Start: &start}},
		{name: "extra time", edit: model.ReservationEdit{ExtraMinutes: &extra}},
		{name: "bad start", edit: model.ReservationEdit{Start: &bad}, wantErr: true},
		{name: "negative extra", edit: model.ReservationEdit{ExtraMinutes: &negative}, wantErr: true},
		{name: "duplicate services", edit: model.ReservationEdit{Services: &dup}, wantErr: true},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateEdit(&tt.edit)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEdit() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSlotQuery(t *testing.T) {
	v := newValidator()

	if err := v.ValidateSlotQuery(&model.SlotQuery{StudioID: "s", PackageID: "p", Date: "2026-03-14"}); err != nil {
		t.Errorf("ValidateSlotQuery() error = %v", err)
	}
	if err := v.ValidateSlotQuery(&model.SlotQuery{StudioID: "s", PackageID: "p", Date: "14-03-2026"}); err == nil {
		t.Error("ValidateSlotQuery() accepted a malformed date")
	}
}

func TestValidateQuote(t *testing.T) {
	v := newValidator()

	q := &model.QuoteRequest{StudioID: "s", PackageID: "p", Quantity: 2, ExtraMinutes: 7}
	if err := v.ValidateQuote(q); err != nil {
		t.Errorf("ValidateQuote() error = %v", err)
	}

	q.Quantity = 21
	if err := v.ValidateQuote(q); err == nil {
		t.Error("ValidateQuote() accepted quantity above max")
	}

	q.Quantity = -1
	if err := v.ValidateQuote(q); err == nil {
		t.Error("ValidateQuote() accepted a negative quantity")
	}

	q.Quantity = 1
	q.Services = []model.SelectedService{{ServiceID: "a", Quantity: 1}, {ServiceID: "a", Quantity: 2}}
	err := v.ValidateQuote(q)
	if err == nil || !strings.Contains(err.Error(), "same ServiceID twice") {
		t.Errorf("ValidateQuote() error = %v, want duplicate service message", err)
	}
}
