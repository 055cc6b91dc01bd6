package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studiobook/internal/bookings/lifecycle"
	"studiobook/internal/bookings/pricing"
	"studiobook/internal/bookings/service"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/gateway"
	"studiobook/pkg/logger"
	"studiobook/pkg/middleware"
	"studiobook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockReservationService struct {
	slotsFunc  func(ctx context.Context, q *model.SlotQuery) ([]service.SlotAvailability, error)
	createFunc func(ctx context.Context, d *model.ReservationDraft) (*model.Reservation, error)
	editFunc   func(ctx context.Context, id string, e *model.ReservationEdit) (*model.Reservation, error)
	searchFunc func(ctx context.Context, f model.ReservationFilter) ([]*model.Reservation, int64, error)
}

func (m *mockReservationService) AvailableSlots(ctx context.Context, q *model.SlotQuery) ([]service.SlotAvailability, error) {
	if m.slotsFunc != nil {
		return m.slotsFunc(ctx, q)
	}
	return nil, nil
}

func (m *mockReservationService) Quote(ctx context.Context, req *model.QuoteRequest) (*pricing.Breakdown, error) {
	return &pricing.Breakdown{Total: 100000}, nil
}

func (m *mockReservationService) Create(ctx context.Context, d *model.ReservationDraft) (*model.Reservation, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, d)
	}
	return &model.Reservation{ID: "r-1"}, nil
}

func (m *mockReservationService) Edit(ctx context.Context, id string, e *model.ReservationEdit) (*model.Reservation, error) {
	if m.editFunc != nil {
		return m.editFunc(ctx, id, e)
	}
	return &model.Reservation{ID: id}, nil
}

func (m *mockReservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "missing" {
		return nil, apperrors.NotFoundWithID("Reservation", id)
	}
	return &model.Reservation{ID: id}, nil
}

func (m *mockReservationService) Search(ctx context.Context, f model.ReservationFilter) ([]*model.Reservation, int64, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, f)
	}
	return []*model.Reservation{}, 0, nil
}

func (m *mockReservationService) ListInstallments(ctx context.Context, id string) ([]*model.Installment, error) {
	return []*model.Installment{}, nil
}

type mockLifecycle struct {
	calls       []string
	lastAmount  int64
	lastReason  string
	lastPayment lifecycle.Payment
	err         error
}

func (m *mockLifecycle) record(op, id string) (*model.Reservation, error) {
	m.calls = append(m.calls, op+":"+id)
	if m.err != nil {
		return nil, m.err
	}
	return &model.Reservation{ID: id}, nil
}

func (m *mockLifecycle) StartCheckout(ctx context.Context, id string, amount int64) (*model.Reservation, error) {
	m.lastAmount = amount
	return m.record("checkout", id)
}

func (m *mockLifecycle) RecordPayment(ctx context.Context, p lifecycle.Payment) (*model.Reservation, error) {
	m.lastPayment = p
	return m.record("payment", p.ReservationID)
}

func (m *mockLifecycle) SyncInvoice(ctx context.Context, id string) (*model.Reservation, error) {
	return m.record("sync", id)
}

func (m *mockLifecycle) Cancel(ctx context.Context, id, reason string) (*model.Reservation, error) {
	m.lastReason = reason
	return m.record("cancel", id)
}

func (m *mockLifecycle) Confirm(ctx context.Context, id string) (*model.Reservation, error) {
	return m.record("confirm", id)
}

func (m *mockLifecycle) Complete(ctx context.Context, id string) (*model.Reservation, error) {
	return m.record("complete", id)
}

func (m *mockLifecycle) Expire(ctx context.Context, id string) (*model.Reservation, error) {
	return m.record("expire", id)
}

func (m *mockLifecycle) Fail(ctx context.Context, id string) (*model.Reservation, error) {
	return m.record("fail", id)
}

func newRouter(svc service.ReservationService, lc Lifecycle) *httprouter.Router {
	router := httprouter.New()
	NewReservationHandler(svc, lc, logger.Discard()).RegisterRoutes(router)
	return router
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestCreate(t *testing.T) {
	var received *model.ReservationDraft
	svc := &mockReservationService{
		createFunc: func(ctx context.Context, d *model.ReservationDraft) (*model.Reservation, error) {
			received = d
			return &model.Reservation{ID: "r-1", Status: model.StatusPending}, nil
		},
	}
	router := newRouter(svc, &mockLifecycle{})

	rec := serve(router, http.MethodPost, "/api/v1/reservations",
		`{"studio_id":"s1","package_id":"p1","start":"2026-03-14T10:00","customer":{"name":"Ayu","phone":"+6281234567890"}}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if received == nil || received.StudioID != "s1" || received.Start != "2026-03-14T10:00" {
		t.Errorf("service received %+v", received)
	}
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "malformed body", body: `{"studio_id":`, wantStatus: http.StatusBadRequest, wantCode: apperrors.CodeInvalidInput},
		{
			name:       "conflict",
			body:       `{}`,
			err:        apperrors.ConflictWithIDs("Requested time overlaps an existing reservation", []string{"r-9"}),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeConflict,
		},
		{
			name:       "validation",
			body:       `{}`,
			err:        apperrors.Validation("Reservation validation failed", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.CodeValidation,
		},
		{
			name:       "unknown error",
			body:       `{}`,
			err:        errors.New("socket closed"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockReservationService{
				createFunc: func(ctx context.Context, d *model.ReservationDraft) (*model.Reservation, error) {
					return nil, tt.err
				},
			}
			rec := serve(newRouter(svc, &mockLifecycle{}), http.MethodPost, "/api/v1/reservations", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeError(t, rec)["code"]; got != tt.wantCode {
				t.Errorf("code = %v, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestCreate_ConflictDetails(t *testing.T) {
	svc := &mockReservationService{
		createFunc: func(ctx context.Context, d *model.ReservationDraft) (*model.Reservation, error) {
			return nil, apperrors.ConflictWithIDs("Requested time overlaps an existing reservation", []string{"r-9"})
		},
	}
	rec := serve(newRouter(svc, &mockLifecycle{}), http.MethodPost, "/api/v1/reservations", `{}`)

	details, ok := decodeError(t, rec)["details"].(map[string]any)
	if !ok {
		t.Fatalf("details missing: %s", rec.Body.String())
	}
	ids, _ := details[apperrors.DetailConflictingIDs].([]any)
	if len(ids) != 1 || ids[0] != "r-9" {
		t.Errorf("conflicting ids = %v", details[apperrors.DetailConflictingIDs])
	}
}

func TestSlots_PassesQuery(t *testing.T) {
	var received *model.SlotQuery
	svc := &mockReservationService{
		slotsFunc: func(ctx context.Context, q *model.SlotQuery) ([]service.SlotAvailability, error) {
			received = q
			return []service.SlotAvailability{{Label: "10:00 - 10:30", Available: true}}, nil
		},
	}
	router := newRouter(svc, &mockLifecycle{})

	rec := serve(router, http.MethodGet, "/api/v1/studios/self-1/slots?package_id=p1&date=2026-03-14&quantity=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	want := model.SlotQuery{StudioID: "self-1", PackageID: "p1", Date: "2026-03-14", Quantity: 2}
	if received == nil || *received != want {
		t.Errorf("query = %+v, want %+v", received, want)
	}

	rec = serve(router, http.MethodGet, "/api/v1/studios/self-1/slots?quantity=two", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric quantity status = %d, want 400", rec.Code)
	}
}

func TestSearch_Filter(t *testing.T) {
	var received model.ReservationFilter
	svc := &mockReservationService{
		searchFunc: func(ctx context.Context, f model.ReservationFilter) ([]*model.Reservation, int64, error) {
			received = f
			return []*model.Reservation{{ID: "r-1"}}, 1, nil
		},
	}
	router := newRouter(svc, &mockLifecycle{})

	rec := serve(router, http.MethodGet,
		"/api/v1/reservations?studio_id=s1&status=pending,confirmed&from=2026-03-14T00:00:00Z&to=2026-03-15T00:00:00Z&limit=5&offset=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if received.StudioID != "s1" || received.Limit != 5 || received.Offset != 10 {
		t.Errorf("filter = %+v", received)
	}
	if len(received.Statuses) != 2 || received.Statuses[1] != model.StatusConfirmed {
		t.Errorf("statuses = %v", received.Statuses)
	}
	if received.From == nil || received.To == nil {
		t.Error("time range not parsed")
	}

	tests := []string{
		"/api/v1/reservations?from=yesterday",
		"/api/v1/reservations?limit=abc",
		"/api/v1/reservations?offset=1.5",
	}
	for _, target := range tests {
		if rec := serve(router, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", target, rec.Code)
		}
	}
}

func TestGetByID_NotFound(t *testing.T) {
	rec := serve(newRouter(&mockReservationService{}, &mockLifecycle{}), http.MethodGet, "/api/v1/reservations/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestEdit_PassesFields(t *testing.T) {
	var received *model.ReservationEdit
	svc := &mockReservationService{
		editFunc: func(ctx context.Context, id string, e *model.ReservationEdit) (*model.Reservation, error) {
			received = e
			return &model.Reservation{ID: id}, nil
		},
	}
	rec := serve(newRouter(svc, &mockLifecycle{}), http.MethodPatch, "/api/v1/reservations/r-1", `{"extra_minutes":10}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if received == nil || received.ExtraMinutes == nil || *received.ExtraMinutes != 10 || received.Start != nil {
		t.Errorf("edit = %+v", received)
	}
}

func TestLifecycleRoutes(t *testing.T) {
	lc := &mockLifecycle{}
	router := newRouter(&mockReservationService{}, lc)

	for _, op := range []string{"sync", "confirm", "complete", "expire", "fail"} {
		rec := serve(router, http.MethodPost, "/api/v1/reservations/r-1/"+op, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", op, rec.Code)
		}
	}

	serve(router, http.MethodPost, "/api/v1/reservations/r-1/cancel", `{"reason":"  customer request  "}`)
	if lc.lastReason != "customer request" {
		t.Errorf("cancel reason = %q", lc.lastReason)
	}
	serve(router, http.MethodPost, "/api/v1/reservations/r-1/cancel", "")

	serve(router, http.MethodPost, "/api/v1/reservations/r-1/checkout", `{"amount":50000}`)
	if lc.lastAmount != 50000 {
		t.Errorf("checkout amount = %d", lc.lastAmount)
	}

	want := []string{"sync:r-1", "confirm:r-1", "complete:r-1", "expire:r-1", "fail:r-1", "cancel:r-1", "cancel:r-1", "checkout:r-1"}
	if strings.Join(lc.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", lc.calls, want)
	}
}

func TestCheckout_Errors(t *testing.T) {
	lc := &mockLifecycle{}
	router := newRouter(&mockReservationService{}, lc)

	rec := serve(router, http.MethodPost, "/api/v1/reservations/r-1/checkout", `{"amount":-1}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative amount status = %d, want 422", rec.Code)
	}
	if len(lc.calls) != 0 {
		t.Errorf("engine called for invalid amount")
	}

	lc.err = apperrors.Gateway("Failed to issue invoice", errors.New("connection reset"))
	rec = serve(router, http.MethodPost, "/api/v1/reservations/r-1/checkout", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("gateway failure status = %d, want 502", rec.Code)
	}
	if decodeError(t, rec)["retryable"] != true {
		t.Error("gateway failure not marked retryable")
	}
}

func TestRecordPayment(t *testing.T) {
	lc := &mockLifecycle{}
	router := newRouter(&mockReservationService{}, lc)

	rec := serve(router, http.MethodPost, "/api/v1/reservations/r-1/payments", `{"amount":150000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if lc.lastPayment.ReservationID != "r-1" || lc.lastPayment.Amount != 150000 || lc.lastPayment.Method != "CASH" {
		t.Errorf("payment = %+v", lc.lastPayment)
	}

	serve(router, http.MethodPost, "/api/v1/reservations/r-1/payments", `{"amount":50000,"method":" debit  card "}`)
	if lc.lastPayment.Method != "DEBIT CARD" {
		t.Errorf("method = %q", lc.lastPayment.Method)
	}

	rec = serve(router, http.MethodPost, "/api/v1/reservations/r-1/payments", `{"amount":0}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero amount status = %d, want 422", rec.Code)
	}
	if len(lc.calls) != 2 {
		t.Errorf("calls = %v", lc.calls)
	}

	lc.err = apperrors.StateTransition(string(model.StatusCancelled), string(model.StatusPaid))
	rec = serve(router, http.MethodPost, "/api/v1/reservations/r-1/payments", `{"amount":150000}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("closed reservation status = %d, want 409", rec.Code)
	}
}

type mockApplier struct {
	received *gateway.Invoice
	err      error
}

func (m *mockApplier) ApplyInvoiceEvent(ctx context.Context, inv *gateway.Invoice) (*model.Reservation, error) {
	m.received = inv
	if m.err != nil {
		return nil, m.err
	}
	return &model.Reservation{ID: "r-1", Status: model.StatusPaid}, nil
}

func TestPaymentCallback(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		body       string
		engineErr  error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "settled invoice",
			token:      "cb-token",
			body:       `{"id":"inv-1","external_id":"r-1","status":"PAID","amount":150000,"paid_amount":150000}`,
			wantStatus: http.StatusOK,
			wantBody:   `"applied"`,
		},
		{
			name:       "unknown invoice",
			token:      "cb-token",
			body:       `{"id":"inv-x","status":"PAID"}`,
			engineErr:  apperrors.NotFoundWithID("Invoice", "inv-x"),
			wantStatus: http.StatusOK,
			wantBody:   `"ignored"`,
		},
		{
			name:       "bad token",
			token:      "nope",
			body:       `{"id":"inv-1","status":"PAID"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed payload",
			token:      "cb-token",
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "settlement for cancelled reservation",
			token:      "cb-token",
			body:       `{"id":"inv-1","status":"PAID","paid_amount":40000}`,
			engineErr:  apperrors.StateTransition(string(model.StatusCancelled), string(model.StatusPaid)),
			wantStatus: http.StatusConflict,
			wantBody:   `INVALID_STATE_TRANSITION`,
		},
		{
			name:       "duplicate settlement",
			token:      "cb-token",
			body:       `{"id":"inv-1","status":"PAID"}`,
			engineErr:  apperrors.Conflict("Payment was already recorded for this invoice"),
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := &mockApplier{err: tt.engineErr}
			router := httprouter.New()
			NewPaymentHandler(applier, "cb-token", logger.Discard()).RegisterRoutes(router)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(tt.body))
			req.Header.Set(middleware.CallbackTokenHeader, tt.token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", rec.Body.String(), tt.wantBody)
			}
			if tt.name == "settled invoice" && (applier.received == nil || applier.received.Status != gateway.StatusSettled) {
				t.Errorf("engine received %+v", applier.received)
			}
		})
	}
}

func TestReady(t *testing.T) {
	healthy := Check{Name: "mongo", Ping: func(ctx context.Context) error { return nil }}
	broken := Check{Name: "redis", Ping: func(ctx context.Context) error { return errors.New("dial tcp: refused") }}

	router := httprouter.New()
	NewHealthHandler(logger.Discard(), healthy).RegisterRoutes(router)
	if rec := serve(router, http.MethodGet, "/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}

	router = httprouter.New()
	NewHealthHandler(logger.Discard(), healthy, broken).RegisterRoutes(router)
	rec := serve(router, http.MethodGet, "/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready status = %d, want 503", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Dependencies["mongo"] != "ok" || resp.Dependencies["redis"] != "error" {
		t.Errorf("dependencies = %v", resp.Dependencies)
	}

	if rec := serve(router, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}
