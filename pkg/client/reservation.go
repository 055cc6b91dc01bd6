package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"studiobook/pkg/model"
)

// ReservationClient calls the bookings API.
type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(baseURL string, timeout time.Duration) *ReservationClient {
	return &ReservationClient{
		httpClient: NewHttpClient(strings.TrimRight(baseURL, "/"), timeout),
	}
}

type Metadata struct {
	TotalCount int64
	Limit      int
	Offset     int64
}

func (c *ReservationClient) Slots(ctx context.Context, q model.SlotQuery) (*Response, error) {
	v := url.Values{}
	v.Set("package_id", q.PackageID)
	v.Set("date", q.Date)
	if q.Quantity > 0 {
		v.Set("quantity", strconv.Itoa(q.Quantity))
	}
	return c.httpClient.GET(ctx, "/api/v1/studios/"+url.PathEscape(q.StudioID)+"/slots?"+v.Encode())
}

func (c *ReservationClient) Quote(ctx context.Context, req *model.QuoteRequest) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/quotes", req)
}

// Create sends the draft with an idempotency key so a retried request does
// not book twice.
func (c *ReservationClient) Create(ctx context.Context, draft *model.ReservationDraft, idempotencyKey string) (*Response, error) {
	if idempotencyKey == "" {
		return c.httpClient.POST(ctx, "/api/v1/reservations", draft)
	}
	return c.httpClient.POSTWithHeaders(ctx, "/api/v1/reservations", draft, map[string]string{
		"Idempotency-Key": idempotencyKey,
	})
}

func (c *ReservationClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/reservations/"+url.PathEscape(id))
}

func (c *ReservationClient) Edit(ctx context.Context, id string, edit *model.ReservationEdit) (*Response, error) {
	return c.httpClient.PATCH(ctx, "/api/v1/reservations/"+url.PathEscape(id), edit)
}

func (c *ReservationClient) Search(ctx context.Context, studioID string, from, to time.Time, limit int, offset int64) (*Response, error) {
	q := url.Values{}
	if studioID != "" {
		q.Set("studio_id", studioID)
	}
	if !from.IsZero() {
		q.Set("from", from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		q.Set("to", to.Format(time.RFC3339))
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.FormatInt(offset, 10))

	return c.httpClient.GET(ctx, "/api/v1/reservations?"+q.Encode())
}

// Transition posts one of the lifecycle actions (checkout, payments, sync,
// cancel, confirm, complete, expire, fail). body may be nil.
func (c *ReservationClient) Transition(ctx context.Context, id, action string, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/reservations/"+url.PathEscape(id)+"/"+action, body)
}

func (c *ReservationClient) DecodeReservation(resp *Response) (*model.Reservation, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode reservation wrapper:\n%+v\n%s", resp.ToString(), err)
	}

	var reservation model.Reservation
	if err := json.Unmarshal(wrapper.Data, &reservation); err != nil {
		return nil, fmt.Errorf("could not decode reservation json:\n%+v\n%s", resp.ToString(), err)
	}

	return &reservation, nil
}

func (c *ReservationClient) DecodeReservations(resp *Response) ([]*model.Reservation, *Metadata, error) {
	var wrapper struct {
		Data       json.RawMessage `json:"data"`
		TotalCount int64           `json:"total_count"`
		Limit      int             `json:"limit"`
		Offset     int64           `json:"offset"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("could not decode paginated resp:\n%+v\n%s", resp.ToString(), err)
	}

	var reservations []*model.Reservation
	if err := json.Unmarshal(wrapper.Data, &reservations); err != nil {
		return nil, nil, fmt.Errorf("could not decode reservation list:\n%+v\n%s", resp.ToString(), err)
	}

	metadata := &Metadata{
		TotalCount: wrapper.TotalCount,
		Limit:      wrapper.Limit,
		Offset:     wrapper.Offset,
	}

	return reservations, metadata, nil
}
