// Package slots produces the bookable candidate windows for one local day.
package slots

import (
	"iter"
	"slices"
	"time"

	"studiobook/pkg/civiltime"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/model"
)

type Request struct {
	Date            civiltime.Date
	DurationMinutes int
	GapMinutes      int
	OpenAt          civiltime.TimeOfDay
	CloseAt         civiltime.TimeOfDay
}

// ForPolicy builds the request for a package booked quantity times under the
// operating window and gap of its studio kind.
func ForPolicy(date civiltime.Date, policy model.StudioPolicy, baseDurationMinutes, quantity int) Request {
	if quantity < 1 {
		quantity = 1
	}
	return Request{
		Date:            date,
		DurationMinutes: baseDurationMinutes * quantity,
		GapMinutes:      policy.GapMinutes,
		OpenAt:          policy.OpenAt,
		CloseAt:         policy.CloseAt,
	}
}

func (r Request) Validate() error {
	details := map[string]any{}
	if r.Date.IsZero() {
		details["date"] = "date is required"
	}
	if r.DurationMinutes <= 0 {
		details["duration_minutes"] = "duration must be positive"
	}
	if r.GapMinutes < 0 {
		details["gap_minutes"] = "gap cannot be negative"
	}
	if !r.OpenAt.Valid() || !r.CloseAt.Valid() || r.CloseAt <= r.OpenAt {
		details["operating_window"] = "operating window must open before it closes on the same day"
	}
	if len(details) > 0 {
		return apperrors.Validation("Invalid slot request", details)
	}
	return nil
}

type Slot struct {
	Start civiltime.LocalDateTime `json:"start"`
	End   civiltime.LocalDateTime `json:"end"`
}

func (s Slot) Label() string {
	return s.Start.Clock() + " - " + s.End.Clock()
}

func (s Slot) StartInstant() time.Time { return civiltime.ToAbsolute(s.Start) }
func (s Slot) EndInstant() time.Time   { return civiltime.ToAbsolute(s.End) }

// Generate returns the day's candidate slots. A slot is emitted only when it
// ends strictly before closing; the cursor then advances past the gap. The
// sequence is a pure function of the request and can be ranged over any
// number of times.
func Generate(r Request) (iter.Seq[Slot], error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	closeAt := r.Date.At(r.CloseAt)
	return func(yield func(Slot) bool) {
		cursor := r.Date.At(r.OpenAt)
		for {
			end := cursor.AddMinutes(r.DurationMinutes)
			if !end.Before(closeAt) {
				return
			}
			if !yield(Slot{Start: cursor, End: end}) {
				return
			}
			cursor = end.AddMinutes(r.GapMinutes)
		}
	}, nil
}

func Collect(r Request) ([]Slot, error) {
	seq, err := Generate(r)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}
