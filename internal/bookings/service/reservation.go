package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"studiobook/internal/bookings/conflict"
	bookingserrors "studiobook/internal/bookings/errors"
	"studiobook/internal/bookings/lifecycle"
	"studiobook/internal/bookings/pricing"
	"studiobook/internal/bookings/repository"
	"studiobook/internal/bookings/validator"
	"studiobook/pkg/civiltime"
	"studiobook/pkg/config"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/lock"
	"studiobook/pkg/model"
	"studiobook/pkg/sanitizer"
)

type ReservationService interface {
	AvailableSlots(ctx context.Context, query *model.SlotQuery) ([]SlotAvailability, error)
	Quote(ctx context.Context, req *model.QuoteRequest) (*pricing.Breakdown, error)
	Create(ctx context.Context, draft *model.ReservationDraft) (*model.Reservation, error)
	Edit(ctx context.Context, id string, edit *model.ReservationEdit) (*model.Reservation, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	Search(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, int64, error)
	ListInstallments(ctx context.Context, id string) ([]*model.Installment, error)
}

type Dependencies struct {
	Reservations repository.ReservationRepository
	Installments repository.InstallmentRepository
	Catalog      repository.CatalogRepository
	Locker       lock.Locker
	Events       lifecycle.EventPublisher
	Validator    *validator.ReservationValidator
	Now          func() time.Time
}

type reservationService struct {
	reservations repository.ReservationRepository
	installments repository.InstallmentRepository
	catalog      repository.CatalogRepository
	locker       lock.Locker
	events       lifecycle.EventPublisher
	validator    *validator.ReservationValidator
	calculator   *pricing.Calculator
	policies     model.Policies
	now          func() time.Time
	cfg          *config.Config
}

func NewReservationService(deps Dependencies, cfg *config.Config) ReservationService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	policies := cfg.Policies()
	return &reservationService{
		reservations: deps.Reservations,
		installments: deps.Installments,
		catalog:      deps.Catalog,
		locker:       deps.Locker,
		events:       deps.Events,
		validator:    deps.Validator,
		calculator:   pricing.NewCalculator(policies),
		policies:     policies,
		now:          now,
		cfg:          cfg,
	}
}

func (s *reservationService) Create(ctx context.Context, draft *model.ReservationDraft) (*model.Reservation, error) {
	s.applyDefaults(draft)
	s.sanitize(draft)
	if err := s.validate(draft); err != nil {
		return nil, err
	}

	start, err := civiltime.ParseLocal(draft.Start)
	if err != nil {
		return nil, err
	}

	sel, err := s.resolve(ctx, draft.StudioID, draft.PackageID, draft.Services)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.calculator.Calculate(sel.pricingInput(draft.Quantity, draft.ExtraMinutes))
	if err != nil {
		return nil, err
	}

	end := start.AddMinutes(breakdown.DurationMinutes)
	if err := s.checkOperatingHours(sel.policy, start, end); err != nil {
		return nil, err
	}
	if !draft.IsWalkIn && civiltime.ToAbsolute(start).Before(s.now()) {
		return nil, apperrors.Validation("Reservation cannot start in the past", map[string]any{
			"start": start.String(),
		})
	}

	status := model.StatusPending
	if draft.IsWalkIn {
		status = model.StatusConfirmed
	}

	reservation := &model.Reservation{
		StudioID:            sel.studio.ID,
		StudioKind:          sel.studio.Kind,
		PackageID:           sel.pkg.ID,
		PackageCategoryID:   sel.placement.CategoryID(),
		CustomerID:          draft.CustomerID,
		Customer:            draft.Customer,
		Quantity:            draft.Quantity,
		StartInstant:        civiltime.ToAbsolute(start),
		EndInstant:          civiltime.ToAbsolute(end),
		BaseDurationMinutes: sel.pkg.BaseDurationMinutes * draft.Quantity,
		ExtraMinutes:        draft.ExtraMinutes,
		SelectedServices:    sel.selected(),
		TotalAmount:         breakdown.Total,
		Status:              status,
		IsWalkIn:            draft.IsWalkIn,
	}

	release, err := s.locker.Acquire(ctx, StudioLockKey(sel.placement, start.Date()), s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer s.unlock(release, "studio", sel.studio.ID)

	candidate := conflict.Candidate{
		Start:  reservation.StartInstant,
		End:    reservation.EndInstant,
		WalkIn: reservation.IsWalkIn,
	}
	err = s.reservations.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.verifyAvailability(txCtx, candidate, sel.placement); err != nil {
			return err
		}
		if err := s.reservations.Create(txCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeConflict) {
			s.cfg.Log.Warn("Reservation rejected by conflict check",
				"studio_id", reservation.StudioID,
				"start", start.String(),
				"conflicting_ids", apperrors.ConflictingIDs(err),
			)
		} else {
			s.cfg.Log.Error("Failed to create reservation", "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"studio_id", reservation.StudioID,
		"category_id", reservation.PackageCategoryID,
		"start", start.String(),
		"total_amount", reservation.TotalAmount,
		"status", reservation.Status,
	)
	s.publish(ctx, model.EventReservationCreated, reservation)
	return reservation, nil
}

func (s *reservationService) Edit(ctx context.Context, id string, edit *model.ReservationEdit) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	if err := s.validator.ValidateEdit(edit); err != nil {
		s.cfg.Log.Warn("Reservation edit validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid edit input", map[string]any{"error": err.Error()})
	}

	reservationRelease, err := s.locker.Acquire(ctx, lifecycle.ReservationLockKey(id), s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer s.unlock(reservationRelease, "reservation", id)

	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanEdit(existing.Status) {
		return nil, apperrors.New(apperrors.CodeStateTransition,
			fmt.Sprintf("reservation in status %s cannot be edited", existing.Status), http.StatusConflict).
			WithDetails(map[string]any{"id": id, "status": existing.Status})
	}

	start := civiltime.ToLocal(existing.StartInstant)
	if edit.Start != nil {
		if start, err = civiltime.ParseLocal(*edit.Start); err != nil {
			return nil, err
		}
	}
	extra := existing.ExtraMinutes
	if edit.ExtraMinutes != nil {
		extra = *edit.ExtraMinutes
	}
	services := existing.SelectedServices
	if edit.Services != nil {
		services = *edit.Services
	}

	sel, err := s.resolve(ctx, existing.StudioID, existing.PackageID, services)
	if err != nil {
		return nil, err
	}

	breakdown, unchanged, err := s.calculator.Verify(sel.pricingInput(existing.Quantity, extra), existing.TotalAmount)
	if err != nil {
		return nil, err
	}
	if !unchanged {
		if err := s.checkRepricing(ctx, existing, breakdown.Total); err != nil {
			return nil, err
		}
	}

	end := start.AddMinutes(breakdown.DurationMinutes)
	if err := s.checkOperatingHours(sel.policy, start, end); err != nil {
		return nil, err
	}
	if edit.Start != nil && !existing.IsWalkIn && civiltime.ToAbsolute(start).Before(s.now()) {
		return nil, apperrors.Validation("Reservation cannot be moved into the past", map[string]any{
			"start": start.String(),
		})
	}

	studioRelease, err := s.locker.Acquire(ctx, StudioLockKey(sel.placement, start.Date()), s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer s.unlock(studioRelease, "studio", existing.StudioID)

	startInstant := civiltime.ToAbsolute(start)
	endInstant := civiltime.ToAbsolute(end)
	selected := sel.selected()
	total := breakdown.Total
	expected := existing.Status
	patch := model.ReservationPatch{
		ExpectedStatus:   &expected,
		StartInstant:     &startInstant,
		EndInstant:       &endInstant,
		ExtraMinutes:     &extra,
		SelectedServices: &selected,
		TotalAmount:      &total,
	}

	candidate := conflict.Candidate{
		ReservationID: existing.ID,
		Start:         startInstant,
		End:           endInstant,
		WalkIn:        existing.IsWalkIn,
	}
	var updated *model.Reservation
	err = s.reservations.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.verifyAvailability(txCtx, candidate, sel.placement); err != nil {
			return err
		}
		updated, err = s.reservations.Update(txCtx, id, patch)
		if err != nil {
			return storeError(err, id)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to edit reservation", "id", id, "error", err)
		return nil, err
	}

	if !unchanged {
		s.cfg.Log.Info("Reservation total recomputed",
			"id", id,
			"previous_total", existing.TotalAmount,
			"total_amount", total,
		)
	}
	s.cfg.Log.Info("Reservation edited successfully", "id", id, "start", start.String())
	s.publish(ctx, model.EventReservationUpdated, updated)
	return updated, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	return s.find(ctx, id)
}

func (s *reservationService) Search(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, int64, error) {
	filter.Limit = config.NormalizePaginationLimit(filter.Limit)
	filter.Offset = config.NormalizeOffset(filter.Offset)
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, 0, apperrors.InvalidInput("Search range end must be after its start")
	}

	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.reservations.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count reservations", "studio_id", filter.StudioID, "error", err)
			errCount = apperrors.Internal("Failed to count reservations", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		reservations, err = s.reservations.List(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to search reservations",
				"studio_id", filter.StudioID,
				"limit", filter.Limit,
				"offset", filter.Offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to search reservations", err)
		}
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	s.cfg.Log.Debug("Reservation search completed",
		"studio_id", filter.StudioID,
		"count", len(reservations),
		"total_count", count,
	)
	return reservations, count, nil
}

func (s *reservationService) ListInstallments(ctx context.Context, id string) ([]*model.Installment, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	installments, err := s.installments.ListByReservation(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve installments", err)
	}
	return installments, nil
}

// --- Helpers ---

func (s *reservationService) sanitize(d *model.ReservationDraft) {
	d.CustomerID = sanitizer.CollapseSpace(d.CustomerID)
	if d.Customer == nil {
		return
	}
	d.Customer.Name = sanitizer.NormalizeName(d.Customer.Name)
	d.Customer.Email = sanitizer.NormalizeEmail(d.Customer.Email)
	if phone := sanitizer.NormalizePhone(d.Customer.Phone); phone != "" {
		d.Customer.Phone = phone
	}
}

// applyDefaults fills an absent quantity. Negative values are left for the
// validator to reject.
func (s *reservationService) applyDefaults(d *model.ReservationDraft) {
	if d.Quantity == 0 {
		d.Quantity = 1
	}
}

func (s *reservationService) validate(d *model.ReservationDraft) error {
	if err := s.validator.Validate(d); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// checkOperatingHours applies the slot generator's boundary: a reservation
// must end strictly before closing time.
func (s *reservationService) checkOperatingHours(policy model.StudioPolicy, start, end civiltime.LocalDateTime) error {
	date := start.Date()
	if start.Before(date.At(policy.OpenAt)) || !end.Before(date.At(policy.CloseAt)) {
		return apperrors.Validation("Reservation must fit within operating hours", map[string]any{
			"start":    start.String(),
			"end":      end.String(),
			"open_at":  policy.OpenAt.String(),
			"close_at": policy.CloseAt.String(),
		})
	}
	return nil
}

// checkRepricing refuses totals that would fall below what was already paid,
// or that would leave an issued invoice for a different amount.
func (s *reservationService) checkRepricing(ctx context.Context, r *model.Reservation, total int64) error {
	if r.PendingInvoice != nil {
		return apperrors.Conflict("Reservation has an open invoice; its price cannot change until the invoice is settled or expired").
			WithDetails(map[string]any{"id": r.ID, "invoice_id": r.PendingInvoice.InvoiceID})
	}
	if r.Status != model.StatusInstallment {
		return nil
	}
	installments, err := s.installments.ListByReservation(ctx, r.ID)
	if err != nil {
		return apperrors.Internal("Failed to retrieve installments", err)
	}
	if paid := model.PaidTotal(installments); total < paid {
		return apperrors.Validation("New total is below the amount already paid", map[string]any{
			"total_amount": total,
			"paid_amount":  paid,
		})
	}
	return nil
}

// verifyAvailability runs the conflict check against the store; the caller
// holds the placement's lock.
func (s *reservationService) verifyAvailability(ctx context.Context, c conflict.Candidate, placement model.Placement) error {
	scope := s.scope(placement)
	existing, err := s.reservations.List(ctx, scope.Filter(c))
	if err != nil {
		return apperrors.Internal("Failed to check existing reservations", err)
	}
	result, err := conflict.Check(c, scope, existing)
	if err != nil {
		return err
	}
	return result.Err()
}

func (s *reservationService) scope(placement model.Placement) conflict.Scope {
	return conflict.Scope{
		Placement:       placement,
		SeparateWalkIns: !s.cfg.WalkInsShareSchedule,
	}
}

func (s *reservationService) find(ctx context.Context, id string) (*model.Reservation, error) {
	r, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, id)
	}
	return r, nil
}

func (s *reservationService) unlock(release lock.Release, kind, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := release(ctx); err != nil {
		s.cfg.Log.Warn("Failed to release lock", "kind", kind, "id", id, "error", err)
	}
}

func (s *reservationService) publish(ctx context.Context, t model.EventType, r *model.Reservation) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, model.NewReservationEvent(t, r, 0)); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event", "id", r.ID, "type", t, "error", err)
	}
}

// StudioLockKey serializes the check-then-insert sequence for one schedulable
// line of a studio on one local day.
func StudioLockKey(p model.Placement, date civiltime.Date) string {
	if p.CategoryID() == "" {
		return fmt.Sprintf("studio:%s:%s", p.StudioID(), date)
	}
	return fmt.Sprintf("studio:%s:%s:%s", p.StudioID(), p.CategoryID(), date)
}

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
