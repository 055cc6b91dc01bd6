package repository

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	bookingserrors "studiobook/internal/bookings/errors"
	mongotx "studiobook/pkg/db/mongo"
	"studiobook/pkg/model"
)

// MemoryReservations is an in-process ReservationRepository fake for tests.
// Transactions run the function directly without isolation.
type MemoryReservations struct {
	mu    sync.RWMutex
	items map[string]*model.Reservation
	seq   int
}

func NewMemoryReservations() *MemoryReservations {
	return &MemoryReservations{items: make(map[string]*model.Reservation)}
}

func (m *MemoryReservations) Create(_ context.Context, reservation *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	if reservation.ID == "" {
		reservation.ID = "rsv-" + strconv.Itoa(m.seq)
	}
	if _, exists := m.items[reservation.ID]; exists {
		return fmt.Errorf("failed to create reservation: duplicate id %s", reservation.ID)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	m.items[reservation.ID] = cloneReservation(reservation)
	return nil
}

func (m *MemoryReservations) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.items[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return cloneReservation(r), nil
}

func (m *MemoryReservations) FindByInvoiceID(_ context.Context, invoiceID string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.items {
		if (r.PendingInvoice != nil && r.PendingInvoice.InvoiceID == invoiceID) || r.HasSettled(invoiceID) || r.HasVoided(invoiceID) {
			return cloneReservation(r), nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *MemoryReservations) List(_ context.Context, filter model.ReservationFilter) ([]*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Reservation
	for _, r := range m.items {
		if matches(r, filter) {
			out = append(out, cloneReservation(r))
		}
	}
	slices.SortFunc(out, func(a, b *model.Reservation) int {
		if c := a.StartInstant.Compare(b.StartInstant); c != 0 {
			return c
		}
		return compareStrings(a.ID, b.ID)
	})

	if filter.Offset > 0 {
		if int(filter.Offset) >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryReservations) Count(ctx context.Context, filter model.ReservationFilter) (int64, error) {
	filter.Limit, filter.Offset = 0, 0
	items, err := m.List(ctx, filter)
	return int64(len(items)), err
}

func (m *MemoryReservations) Update(_ context.Context, id string, patch model.ReservationPatch) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.items[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if patch.ExpectedStatus != nil && r.Status != *patch.ExpectedStatus {
		return nil, bookingserrors.ErrStaleStatus
	}

	applyPatch(r, patch)
	return cloneReservation(r), nil
}

func (m *MemoryReservations) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

func matches(r *model.Reservation, f model.ReservationFilter) bool {
	if f.StudioID != "" && r.StudioID != f.StudioID {
		return false
	}
	if f.CategoryID != "" && r.PackageCategoryID != f.CategoryID {
		return false
	}
	if f.CustomerID != "" && r.CustomerID != f.CustomerID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.To != nil && !r.StartInstant.Before(*f.To) {
		return false
	}
	if f.From != nil && !r.EndInstant.After(*f.From) {
		return false
	}
	return true
}

func applyPatch(r *model.Reservation, p model.ReservationPatch) {
	r.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.StartInstant != nil {
		r.StartInstant = *p.StartInstant
	}
	if p.EndInstant != nil {
		r.EndInstant = *p.EndInstant
	}
	if p.ExtraMinutes != nil {
		r.ExtraMinutes = *p.ExtraMinutes
	}
	if p.SelectedServices != nil {
		r.SelectedServices = slices.Clone(*p.SelectedServices)
	}
	if p.TotalAmount != nil {
		r.TotalAmount = *p.TotalAmount
	}
	if p.PendingInvoice != nil {
		pi := *p.PendingInvoice
		r.PendingInvoice = &pi
	} else if p.ClearPendingInvoice {
		r.PendingInvoice = nil
	}
	if p.SettledInvoice != "" && !r.HasSettled(p.SettledInvoice) {
		r.SettledInvoices = append(r.SettledInvoices, p.SettledInvoice)
	}
	if p.VoidedInvoice != "" && !r.HasVoided(p.VoidedInvoice) {
		r.VoidedInvoices = append(r.VoidedInvoices, p.VoidedInvoice)
	}
	if p.PaymentMethod != "" {
		r.PaymentMethod = p.PaymentMethod
	}
	if p.PaidAt != nil {
		at := *p.PaidAt
		r.PaidAt = &at
	}
	if p.CancelledAt != nil {
		at := *p.CancelledAt
		r.CancelledAt = &at
	}
	if p.CancellationReason != "" {
		r.CancellationReason = p.CancellationReason
	}
}

func cloneReservation(r *model.Reservation) *model.Reservation {
	c := *r
	c.SelectedServices = slices.Clone(r.SelectedServices)
	c.SettledInvoices = slices.Clone(r.SettledInvoices)
	c.VoidedInvoices = slices.Clone(r.VoidedInvoices)
	if r.Customer != nil {
		customer := *r.Customer
		c.Customer = &customer
	}
	if r.PendingInvoice != nil {
		pi := *r.PendingInvoice
		c.PendingInvoice = &pi
	}
	if r.PaidAt != nil {
		at := *r.PaidAt
		c.PaidAt = &at
	}
	if r.CancelledAt != nil {
		at := *r.CancelledAt
		c.CancelledAt = &at
	}
	return &c
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

type MemoryInstallments struct {
	mu    sync.RWMutex
	items []*model.Installment
}

func NewMemoryInstallments() *MemoryInstallments {
	return &MemoryInstallments{}
}

func (m *MemoryInstallments) Create(_ context.Context, installment *model.Installment) (*model.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.ReservationID == installment.ReservationID && existing.InstallmentNumber == installment.InstallmentNumber {
			return nil, fmt.Errorf("failed to create installment: number %d already recorded for %s",
				installment.InstallmentNumber, installment.ReservationID)
		}
	}

	if installment.ID == "" {
		installment.ID = "inst-" + strconv.Itoa(len(m.items)+1)
	}
	if installment.CreatedAt.IsZero() {
		installment.CreatedAt = time.Now().UTC()
	}
	c := *installment
	m.items = append(m.items, &c)
	return installment, nil
}

func (m *MemoryInstallments) ListByReservation(_ context.Context, reservationID string) ([]*model.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Installment
	for _, i := range m.items {
		if i.ReservationID == reservationID {
			c := *i
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *model.Installment) int {
		return a.InstallmentNumber - b.InstallmentNumber
	})
	return out, nil
}

// MemoryCatalog is a fixed catalog fake for tests.
type MemoryCatalog struct {
	Studios    map[string]*model.Studio
	Packages   map[string]*model.Package
	Categories map[string]*model.PackageCategory
	Additional map[string]*model.AdditionalService
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		Studios:    map[string]*model.Studio{},
		Packages:   map[string]*model.Package{},
		Categories: map[string]*model.PackageCategory{},
		Additional: map[string]*model.AdditionalService{},
	}
}

func (m *MemoryCatalog) AddStudio(s *model.Studio) *MemoryCatalog {
	m.Studios[s.ID] = s
	return m
}

func (m *MemoryCatalog) AddPackage(p *model.Package) *MemoryCatalog {
	m.Packages[p.ID] = p
	return m
}

func (m *MemoryCatalog) AddCategory(c *model.PackageCategory) *MemoryCatalog {
	m.Categories[c.ID] = c
	return m
}

func (m *MemoryCatalog) AddService(s *model.AdditionalService) *MemoryCatalog {
	m.Additional[s.ID] = s
	return m
}

func (m *MemoryCatalog) Studio(_ context.Context, id string) (*model.Studio, error) {
	if s, ok := m.Studios[id]; ok && s.Active {
		c := *s
		return &c, nil
	}
	return nil, fmt.Errorf("%w: studio %s", bookingserrors.ErrCatalogNotFound, id)
}

func (m *MemoryCatalog) Package(_ context.Context, id string) (*model.Package, error) {
	if p, ok := m.Packages[id]; ok && p.Active {
		c := *p
		return &c, nil
	}
	return nil, fmt.Errorf("%w: package %s", bookingserrors.ErrCatalogNotFound, id)
}

func (m *MemoryCatalog) Category(_ context.Context, id string) (*model.PackageCategory, error) {
	if cat, ok := m.Categories[id]; ok && cat.Active {
		c := *cat
		return &c, nil
	}
	return nil, fmt.Errorf("%w: category %s", bookingserrors.ErrCatalogNotFound, id)
}

func (m *MemoryCatalog) Services(_ context.Context, studioID string, ids []string) ([]*model.AdditionalService, error) {
	var out []*model.AdditionalService
	for _, id := range ids {
		if s, ok := m.Additional[id]; ok && s.Active && s.StudioID == studioID {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}
