// Package conflict decides whether a candidate time range collides with the
// reservations already holding the same studio (or studio category).
package conflict

import (
	"time"

	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/model"
)

// lookback widens store queries so reservations that started before the
// candidate but run into it are still fetched.
const lookback = 12 * time.Hour

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Touching endpoints
// do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// Candidate is the range being placed. ReservationID is set when an existing
// reservation is being moved or resized so its own record is ignored.
type Candidate struct {
	ReservationID string
	Start         time.Time
	End           time.Time
	WalkIn        bool
}

func (c Candidate) validate() error {
	if c.Start.IsZero() || c.End.IsZero() || !c.End.After(c.Start) {
		return apperrors.Validation("Candidate range must end after it starts", map[string]any{
			"start": c.Start,
			"end":   c.End,
		})
	}
	return nil
}

// Scope selects the reservations a candidate competes with.
type Scope struct {
	Placement model.Placement
	// SeparateWalkIns keeps walk-in sessions and scheduled bookings in
	// distinct conflict sets.
	SeparateWalkIns bool
}

// Filter returns the store query for reservations that could collide with c.
func (s Scope) Filter(c Candidate) model.ReservationFilter {
	from := c.Start.Add(-lookback)
	to := c.End
	return model.ReservationFilter{
		StudioID:   s.Placement.StudioID(),
		CategoryID: s.Placement.CategoryID(),
		From:       &from,
		To:         &to,
		Statuses:   model.OccupyingStatuses,
	}
}

// Includes reports whether r belongs to the conflict set of a candidate with
// the given walk-in flag.
func (s Scope) Includes(r *model.Reservation, walkIn bool) bool {
	if !r.Status.Occupies() {
		return false
	}
	if r.StudioID != s.Placement.StudioID() {
		return false
	}
	if _, regular := s.Placement.(model.RegularPlacement); regular && r.PackageCategoryID != s.Placement.CategoryID() {
		return false
	}
	if s.SeparateWalkIns && r.IsWalkIn != walkIn {
		return false
	}
	return true
}

type Result struct {
	Accepted       bool
	ConflictingIDs []string
}

// Err converts a rejected result into a Conflict error naming the blockers.
func (r Result) Err() error {
	if r.Accepted {
		return nil
	}
	return apperrors.ConflictWithIDs("Selected time overlaps an existing reservation", r.ConflictingIDs)
}

// Check compares c against every reservation in scope. The candidate is
// accepted only when nothing overlaps; all blockers are reported.
func Check(c Candidate, scope Scope, existing []*model.Reservation) (Result, error) {
	if err := c.validate(); err != nil {
		return Result{}, err
	}
	if scope.Placement == nil {
		return Result{}, apperrors.Validation("Conflict scope requires a placement", nil)
	}

	var ids []string
	for _, r := range existing {
		if c.ReservationID != "" && r.ID == c.ReservationID {
			continue
		}
		if !scope.Includes(r, c.WalkIn) {
			continue
		}
		if Overlaps(c.Start, c.End, r.StartInstant, r.EffectiveEnd()) {
			ids = append(ids, r.ID)
		}
	}
	return Result{Accepted: len(ids) == 0, ConflictingIDs: ids}, nil
}
