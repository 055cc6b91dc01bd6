package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	bookingserrors "studiobook/internal/bookings/errors"
	"studiobook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

var day = time.Date(2024, time.August, 17, 2, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *MemoryReservations, studio string, startMin, endMin int, status model.ReservationStatus) *model.Reservation {
	t.Helper()
	r := &model.Reservation{
		StudioID:     studio,
		StartInstant: day.Add(time.Duration(startMin) * time.Minute),
		EndInstant:   day.Add(time.Duration(endMin) * time.Minute),
		Status:       status,
	}
	if err := repo.Create(context.Background(), r); err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

func TestMemoryReservations_ListFiltersByRangeAndStatus(t *testing.T) {
	repo := NewMemoryReservations()
	ctx := context.Background()

	early := seed(t, repo, "s1", 0, 60, model.StatusPending)
	seed(t, repo, "s1", 60, 120, model.StatusCancelled)
	late := seed(t, repo, "s1", 120, 180, model.StatusPaid)
	seed(t, repo, "s2", 30, 90, model.StatusPaid)

	from, to := day.Add(30*time.Minute), day.Add(150*time.Minute)
	got, err := repo.List(ctx, model.ReservationFilter{
		StudioID: "s1",
		From:     &from,
		To:       &to,
		Statuses: model.OccupyingStatuses,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != early.ID || got[1].ID != late.ID {
		t.Fatalf("unexpected result %+v", got)
	}

	n, err := repo.Count(ctx, model.ReservationFilter{StudioID: "s1", Limit: 1})
	if err != nil || n != 3 {
		t.Errorf("count = %d, %v", n, err)
	}
}

func TestMemoryReservations_UpdateCompareAndSet(t *testing.T) {
	repo := NewMemoryReservations()
	ctx := context.Background()
	r := seed(t, repo, "s1", 0, 60, model.StatusPending)

	pending, paid := model.StatusPending, model.StatusPaid
	updated, err := repo.Update(ctx, r.ID, model.ReservationPatch{
		ExpectedStatus: &pending,
		Status:         &paid,
		SettledInvoice: "inv-1",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != model.StatusPaid || !updated.HasSettled("inv-1") {
		t.Errorf("unexpected update %+v", updated)
	}

	_, err = repo.Update(ctx, r.ID, model.ReservationPatch{ExpectedStatus: &pending, Status: &paid})
	if !errors.Is(err, bookingserrors.ErrStaleStatus) {
		t.Errorf("expected stale status, got %v", err)
	}

	_, err = repo.Update(ctx, "missing", model.ReservationPatch{Status: &paid})
	if !errors.Is(err, bookingserrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemoryReservations_ReturnsCopies(t *testing.T) {
	repo := NewMemoryReservations()
	ctx := context.Background()
	r := seed(t, repo, "s1", 0, 60, model.StatusPending)

	got, _ := repo.FindByID(ctx, r.ID)
	got.Status = model.StatusCancelled

	again, _ := repo.FindByID(ctx, r.ID)
	if again.Status != model.StatusPending {
		t.Error("mutating a returned reservation changed the store")
	}
}

func TestMemoryReservations_FindByInvoiceID(t *testing.T) {
	repo := NewMemoryReservations()
	ctx := context.Background()
	r := seed(t, repo, "s1", 0, 60, model.StatusPending)

	_, err := repo.Update(ctx, r.ID, model.ReservationPatch{PendingInvoice: &model.PendingInvoice{InvoiceID: "inv-7", Amount: 10}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.FindByInvoiceID(ctx, "inv-7")
	if err != nil || got.ID != r.ID {
		t.Fatalf("find by invoice: %v %v", got, err)
	}
	if _, err := repo.FindByInvoiceID(ctx, "inv-8"); !errors.Is(err, bookingserrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	cancelled := model.StatusCancelled
	_, err = repo.Update(ctx, r.ID, model.ReservationPatch{Status: &cancelled, ClearPendingInvoice: true, VoidedInvoice: "inv-7"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, err = repo.FindByInvoiceID(ctx, "inv-7")
	if err != nil || got.ID != r.ID || got.PendingInvoice != nil || !got.HasVoided("inv-7") {
		t.Fatalf("voided invoice lookup = %+v, %v", got, err)
	}
}

func TestMemoryInstallments_UniqueNumber(t *testing.T) {
	repo := NewMemoryInstallments()
	ctx := context.Background()

	if _, err := repo.Create(ctx, &model.Installment{ReservationID: "r1", InstallmentNumber: 2, Amount: 5}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, &model.Installment{ReservationID: "r1", InstallmentNumber: 1, Amount: 5}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, &model.Installment{ReservationID: "r1", InstallmentNumber: 1, Amount: 5}); err == nil {
		t.Error("expected duplicate installment number to fail")
	}

	got, _ := repo.ListByReservation(ctx, "r1")
	if len(got) != 2 || got[0].InstallmentNumber != 1 || got[1].InstallmentNumber != 2 {
		t.Errorf("unexpected installments %+v", got)
	}
}

func TestMemoryCatalog_InactiveHidden(t *testing.T) {
	catalog := NewMemoryCatalog().
		AddStudio(&model.Studio{ID: "s1", Kind: model.SelfPhoto, Active: true}).
		AddPackage(&model.Package{ID: "p-off", StudioID: "s1"}).
		AddService(&model.AdditionalService{ID: "print", StudioID: "s1", Active: true}).
		AddService(&model.AdditionalService{ID: "other", StudioID: "s2", Active: true})

	ctx := context.Background()
	if _, err := catalog.Studio(ctx, "s1"); err != nil {
		t.Errorf("studio: %v", err)
	}
	if _, err := catalog.Package(ctx, "p-off"); !errors.Is(err, bookingserrors.ErrCatalogNotFound) {
		t.Errorf("inactive package should be hidden, got %v", err)
	}
	services, _ := catalog.Services(ctx, "s1", []string{"print", "other"})
	if len(services) != 1 || services[0].ID != "print" {
		t.Errorf("unexpected services %+v", services)
	}
}

func TestBuildReservationFilter(t *testing.T) {
	from, to := day, day.Add(time.Hour)
	f := buildReservationFilter(model.ReservationFilter{
		StudioID:   "s1",
		CategoryID: "family",
		From:       &from,
		To:         &to,
		Statuses:   []model.ReservationStatus{model.StatusPending},
	})

	if f["studio_id"] != "s1" || f["package_category_id"] != "family" {
		t.Errorf("unexpected filter %v", f)
	}
	if _, ok := f["start_instant"]; !ok {
		t.Error("missing start bound")
	}
	if _, ok := f["end_instant"]; !ok {
		t.Error("missing end bound")
	}
}

func TestBuildUpdate(t *testing.T) {
	paid := model.StatusPaid
	u := buildUpdate(model.ReservationPatch{Status: &paid, ClearPendingInvoice: true, SettledInvoice: "inv-1"})

	if _, ok := u["$unset"]; !ok {
		t.Error("expected pending invoice to be unset")
	}
	if _, ok := u["$addToSet"]; !ok {
		t.Error("expected settled invoice to be added")
	}

	cancelled := model.StatusCancelled
	u = buildUpdate(model.ReservationPatch{Status: &cancelled, ClearPendingInvoice: true, VoidedInvoice: "inv-2"})
	add, ok := u["$addToSet"].(bson.M)
	if !ok || add["voided_invoices"] != "inv-2" {
		t.Errorf("expected voided invoice to be added, got %v", u["$addToSet"])
	}
	if _, ok := add["settled_invoices"]; ok {
		t.Error("voiding must not mark the invoice settled")
	}
}
