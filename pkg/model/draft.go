package model

// ReservationDraft is what a booking screen submits. Start is a local WITA
// wall-clock value.
type ReservationDraft struct {
	StudioID     string            `json:"studio_id" validate:"required"`
	PackageID    string            `json:"package_id" validate:"required"`
	CustomerID   string            `json:"customer_id,omitempty" validate:"omitempty,max=64"`
	Customer     *Customer         `json:"customer,omitempty" validate:"omitempty"`
	Start        string            `json:"start" validate:"required,local_datetime"`
	Quantity     int               `json:"quantity,omitempty" validate:"omitempty,min=1,max=20"`
	ExtraMinutes int               `json:"extra_minutes" validate:"min=0,max=600"`
	Services     []SelectedService `json:"services,omitempty" validate:"omitempty,max=50,unique=ServiceID,dive"`
	IsWalkIn     bool              `json:"is_walk_in"`
}

// ReservationEdit carries operator changes to an unpaid reservation.
type ReservationEdit struct {
	Start        *string            `json:"start,omitempty" validate:"omitempty,local_datetime"`
	ExtraMinutes *int               `json:"extra_minutes,omitempty" validate:"omitempty,min=0,max=600"`
	Services     *[]SelectedService `json:"services,omitempty" validate:"omitempty,max=50,unique=ServiceID,dive"`
}

func (e *ReservationEdit) Empty() bool {
	return e.Start == nil && e.ExtraMinutes == nil && e.Services == nil
}

// QuoteRequest prices a package selection without booking it.
type QuoteRequest struct {
	StudioID     string            `json:"studio_id" validate:"required"`
	PackageID    string            `json:"package_id" validate:"required"`
	Quantity     int               `json:"quantity,omitempty" validate:"omitempty,min=1,max=20"`
	ExtraMinutes int               `json:"extra_minutes" validate:"min=0,max=600"`
	Services     []SelectedService `json:"services,omitempty" validate:"omitempty,max=50,unique=ServiceID,dive"`
}

// SlotQuery asks for one local day of candidate slots.
type SlotQuery struct {
	StudioID  string `validate:"required"`
	PackageID string `validate:"required"`
	Date      string `validate:"required,datetime=2006-01-02"`
	Quantity  int    `validate:"omitempty,min=1,max=20"`
}
