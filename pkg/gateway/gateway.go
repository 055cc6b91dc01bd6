// Package gateway talks to the hosted payment gateway that issues invoices for
// reservations. Only invoice creation and status lookup are used.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"studiobook/pkg/client"
	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/logger"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSettled Status = "SETTLED"
	StatusExpired Status = "EXPIRED"
)

type Customer struct {
	Name  string `json:"given_names,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"mobile_number,omitempty"`
}

type InvoiceRequest struct {
	ExternalID  string
	Amount      int64
	Description string
	Customer    *Customer
}

type Invoice struct {
	ID            string
	ExternalID    string
	URL           string
	Amount        int64
	PaidAmount    int64
	Status        Status
	PaymentMethod string
	PaidAt        *time.Time
	ExpiresAt     time.Time
}

type Config struct {
	BaseURL         string
	SecretKey       string
	InvoiceDuration time.Duration
	Timeout         time.Duration
}

type Client struct {
	http            *client.HttpClient
	invoiceDuration time.Duration
	log             *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	hc := client.NewHttpClient(strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout)
	auth := base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey + ":"))
	hc.Headers["Authorization"] = "Basic " + auth
	return &Client{
		http:            hc,
		invoiceDuration: cfg.InvoiceDuration,
		log:             log,
	}
}

type createInvoiceBody struct {
	ExternalID      string    `json:"external_id"`
	Amount          int64     `json:"amount"`
	Description     string    `json:"description"`
	InvoiceDuration int64     `json:"invoice_duration,omitempty"`
	Customer        *Customer `json:"customer,omitempty"`
	Currency        string    `json:"currency"`
}

type invoicePayload struct {
	ID            string     `json:"id"`
	ExternalID    string     `json:"external_id"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount"`
	PaidAmount    int64      `json:"paid_amount"`
	InvoiceURL    string     `json:"invoice_url"`
	PaymentMethod string     `json:"payment_method"`
	PaidAt        *time.Time `json:"paid_at"`
	ExpiryDate    time.Time  `json:"expiry_date"`
}

func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	if req.Amount <= 0 {
		return nil, apperrors.Validation("Invoice amount must be positive", map[string]any{"amount": req.Amount})
	}

	body := createInvoiceBody{
		ExternalID:      req.ExternalID,
		Amount:          req.Amount,
		Description:     req.Description,
		InvoiceDuration: int64(c.invoiceDuration / time.Second),
		Customer:        req.Customer,
		Currency:        "IDR",
	}

	resp, err := c.http.POSTWithHeaders(ctx, "/v2/invoices", body, map[string]string{
		"Idempotency-Key": req.ExternalID,
	})
	if err != nil {
		return nil, apperrors.Gateway("Failed to create invoice", err)
	}
	if !resp.IsSuccess() {
		return nil, apperrors.Gateway("Gateway rejected invoice creation",
			fmt.Errorf("%s: %s", resp.Status, client.GetErrorMessage(resp)))
	}

	invoice, err := decodeInvoice(resp)
	if err != nil {
		return nil, err
	}

	c.log.Info("Invoice created",
		"invoice_id", invoice.ID,
		"external_id", invoice.ExternalID,
		"amount", invoice.Amount,
	)
	return invoice, nil
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	resp, err := c.http.GET(ctx, "/v2/invoices/"+url.PathEscape(invoiceID))
	if err != nil {
		return nil, apperrors.Gateway("Failed to fetch invoice", err)
	}
	if !resp.IsSuccess() {
		return nil, apperrors.Gateway("Gateway rejected invoice lookup",
			fmt.Errorf("%s: %s", resp.Status, client.GetErrorMessage(resp)))
	}
	return decodeInvoice(resp)
}

// DecodeCallback parses an invoice notification pushed by the gateway, either
// to the HTTP callback or through the invoice events topic.
func DecodeCallback(data []byte) (*Invoice, error) {
	var p invoicePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperrors.InvalidInput("Malformed invoice callback")
	}
	if p.ID == "" {
		return nil, apperrors.Validation("Invoice callback without id", nil)
	}
	return p.toInvoice()
}

func decodeInvoice(resp *client.Response) (*Invoice, error) {
	var p invoicePayload
	if err := resp.DecodeJSON(&p); err != nil {
		return nil, apperrors.Gateway("Malformed invoice response", err)
	}
	return p.toInvoice()
}

func (p invoicePayload) toInvoice() (*Invoice, error) {
	status, err := ParseStatus(p.Status)
	if err != nil {
		return nil, err
	}

	return &Invoice{
		ID:            p.ID,
		ExternalID:    p.ExternalID,
		URL:           p.InvoiceURL,
		Amount:        p.Amount,
		PaidAmount:    p.PaidAmount,
		Status:        status,
		PaymentMethod: p.PaymentMethod,
		PaidAt:        p.PaidAt,
		ExpiresAt:     p.ExpiryDate,
	}, nil
}

// ParseStatus maps gateway status strings onto the three statuses the booking
// engine reacts to. PAID and SETTLED are both treated as settled.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(s) {
	case "PENDING":
		return StatusPending, nil
	case "PAID", "SETTLED":
		return StatusSettled, nil
	case "EXPIRED":
		return StatusExpired, nil
	default:
		return "", apperrors.Gateway("Unexpected invoice status", fmt.Errorf("status %q", s))
	}
}
