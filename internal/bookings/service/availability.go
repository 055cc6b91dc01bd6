package service

import (
	"context"
	"errors"
	"time"

	"studiobook/internal/bookings/conflict"
	bookingserrors "studiobook/internal/bookings/errors"
	"studiobook/internal/bookings/pricing"
	"studiobook/internal/bookings/slots"
	"studiobook/pkg/civiltime"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/model"
)

// SlotAvailability is one candidate slot of a day with its booking state.
type SlotAvailability struct {
	Label          string    `json:"label"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	StartInstant   time.Time `json:"start_instant"`
	EndInstant     time.Time `json:"end_instant"`
	Available      bool      `json:"available"`
	Past           bool      `json:"past,omitempty"`
	ConflictingIDs []string  `json:"conflicting_ids,omitempty"`
}

// selection is a catalog-resolved package choice.
type selection struct {
	studio    *model.Studio
	pkg       *model.Package
	placement model.Placement
	policy    model.StudioPolicy
	lines     []pricing.ServiceLine
}

func (sel *selection) pricingInput(quantity, extraMinutes int) pricing.Input {
	return pricing.Input{
		Kind:         sel.studio.Kind,
		Package:      sel.pkg,
		Quantity:     quantity,
		ExtraMinutes: extraMinutes,
		Services:     sel.lines,
	}
}

func (sel *selection) selected() []model.SelectedService {
	out := make([]model.SelectedService, 0, len(sel.lines))
	for _, line := range sel.lines {
		out = append(out, model.SelectedService{ServiceID: line.Service.ID, Quantity: line.Quantity})
	}
	return out
}

func (s *reservationService) AvailableSlots(ctx context.Context, query *model.SlotQuery) ([]SlotAvailability, error) {
	if query.Quantity == 0 {
		query.Quantity = 1
	}
	if err := s.validator.ValidateSlotQuery(query); err != nil {
		s.cfg.Log.Warn("Slot query validation failed", "error", err)
		return nil, apperrors.Validation("Invalid slot query", map[string]any{"error": err.Error()})
	}
	date, err := civiltime.ParseDate(query.Date)
	if err != nil {
		return nil, err
	}

	sel, err := s.resolve(ctx, query.StudioID, query.PackageID, nil)
	if err != nil {
		return nil, err
	}
	if sel.studio.Kind == model.Regular && query.Quantity != 1 {
		return nil, apperrors.Validation("Regular studio bookings use quantity 1", map[string]any{
			"quantity": query.Quantity,
		})
	}
	if sel.policy.MaxQuantity > 0 && query.Quantity > sel.policy.MaxQuantity {
		return nil, apperrors.Validation("Quantity exceeds the studio maximum", map[string]any{
			"quantity":     query.Quantity,
			"max_quantity": sel.policy.MaxQuantity,
		})
	}

	candidates, err := slots.Generate(slots.ForPolicy(date, sel.policy, sel.pkg.BaseDurationMinutes, query.Quantity))
	if err != nil {
		return nil, err
	}

	scope := s.scope(sel.placement)
	day := conflict.Candidate{
		Start: civiltime.ToAbsolute(date.At(sel.policy.OpenAt)),
		End:   civiltime.ToAbsolute(date.At(sel.policy.CloseAt)),
	}
	existing, err := s.reservations.List(ctx, scope.Filter(day))
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations for slots", "studio_id", sel.studio.ID, "date", query.Date, "error", err)
		return nil, apperrors.Internal("Failed to check existing reservations", err)
	}

	now := s.now()
	out := []SlotAvailability{}
	for slot := range candidates {
		result, err := conflict.Check(conflict.Candidate{
			Start: slot.StartInstant(),
			End:   slot.EndInstant(),
		}, scope, existing)
		if err != nil {
			return nil, err
		}
		past := slot.StartInstant().Before(now)
		out = append(out, SlotAvailability{
			Label:          slot.Label(),
			Start:          slot.Start.String(),
			End:            slot.End.String(),
			StartInstant:   slot.StartInstant(),
			EndInstant:     slot.EndInstant(),
			Available:      result.Accepted && !past,
			Past:           past,
			ConflictingIDs: result.ConflictingIDs,
		})
	}

	s.cfg.Log.Debug("Slots generated",
		"studio_id", sel.studio.ID,
		"package_id", sel.pkg.ID,
		"date", query.Date,
		"slots", len(out),
	)
	return out, nil
}

func (s *reservationService) Quote(ctx context.Context, req *model.QuoteRequest) (*pricing.Breakdown, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := s.validator.ValidateQuote(req); err != nil {
		s.cfg.Log.Warn("Quote validation failed", "error", err)
		return nil, apperrors.Validation("Invalid quote request", map[string]any{"error": err.Error()})
	}

	sel, err := s.resolve(ctx, req.StudioID, req.PackageID, req.Services)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.calculator.Calculate(sel.pricingInput(req.Quantity, req.ExtraMinutes))
	if err != nil {
		return nil, err
	}
	return &breakdown, nil
}

// resolve loads the studio, package and services of a selection and places
// the package in its studio.
func (s *reservationService) resolve(ctx context.Context, studioID, packageID string, services []model.SelectedService) (*selection, error) {
	studio, err := s.catalog.Studio(ctx, studioID)
	if err != nil {
		return nil, catalogError(err, "Studio", studioID)
	}
	pkg, err := s.catalog.Package(ctx, packageID)
	if err != nil {
		return nil, catalogError(err, "Package", packageID)
	}
	placement, err := model.Place(studio, pkg)
	if err != nil {
		return nil, err
	}
	if regular, ok := placement.(model.RegularPlacement); ok {
		category, err := s.catalog.Category(ctx, regular.Category)
		if err != nil {
			return nil, catalogError(err, "Package category", regular.Category)
		}
		if category.StudioID != studio.ID {
			return nil, apperrors.Validation("Package category does not belong to studio", map[string]any{
				"studio_id":   studio.ID,
				"category_id": category.ID,
			})
		}
	}

	policy, ok := s.policies.For(studio.Kind)
	if !ok {
		return nil, apperrors.Internal("No policy for studio kind", errors.New(string(studio.Kind)))
	}

	lines, err := s.serviceLines(ctx, studio.ID, services)
	if err != nil {
		return nil, err
	}

	return &selection{
		studio:    studio,
		pkg:       pkg,
		placement: placement,
		policy:    policy,
		lines:     lines,
	}, nil
}

// serviceLines keeps the requested order and rejects services that are
// unknown, inactive or owned by another studio.
func (s *reservationService) serviceLines(ctx context.Context, studioID string, selected []model.SelectedService) ([]pricing.ServiceLine, error) {
	if len(selected) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(selected))
	for _, sel := range selected {
		ids = append(ids, sel.ServiceID)
	}
	found, err := s.catalog.Services(ctx, studioID, ids)
	if err != nil {
		return nil, apperrors.Internal("Failed to load additional services", err)
	}
	byID := make(map[string]*model.AdditionalService, len(found))
	for _, svc := range found {
		byID[svc.ID] = svc
	}

	lines := make([]pricing.ServiceLine, 0, len(selected))
	var missing []string
	for _, sel := range selected {
		svc, ok := byID[sel.ServiceID]
		if !ok {
			missing = append(missing, sel.ServiceID)
			continue
		}
		lines = append(lines, pricing.ServiceLine{Service: svc, Quantity: sel.Quantity})
	}
	if len(missing) > 0 {
		return nil, apperrors.Validation("Unknown additional services", map[string]any{
			"studio_id":   studioID,
			"service_ids": missing,
		})
	}
	return lines, nil
}

func catalogError(err error, resource, id string) error {
	if errors.Is(err, bookingserrors.ErrCatalogNotFound) {
		return apperrors.NotFoundWithID(resource, id)
	}
	return apperrors.Internal("Failed to load "+resource, err)
}
