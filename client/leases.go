package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Lease is a lease record as returned by the API.
type Lease struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	TenantID   int64     `json:"tenant_id"`
	Status     string    `json:"status"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

// Invoice is an invoice record as returned by the API.
type Invoice struct {
	ID          int64  `json:"id"`
	LeaseID     int64  `json:"lease_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date"`
}

// CreateInvoiceRequest is the JSON body for POST /invoices.
type CreateInvoiceRequest struct {
	LeaseID     int64  `json:"lease_id"`
	AmountCents int64  `json:"amount_cents"`
	DueDate     string `json:"due_date"`
}

// ActivateLease transitions a lease to active through the protected
// request path.
func (c *Client) ActivateLease(ctx context.Context, leaseID int64) (Lease, error) {
	data, err := c.Post(ctx, fmt.Sprintf("/leases/%d/activate", leaseID), nil)
	if err != nil {
		return Lease{}, err
	}
	var lease Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		return Lease{}, fmt.Errorf("decoding lease: %w", err)
	}
	return lease, nil
}

// CreateInvoice creates an invoice through the protected request path.
func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (Invoice, error) {
	data, err := c.Post(ctx, "/invoices", req)
	if err != nil {
		return Invoice{}, err
	}
	var invoice Invoice
	if err := json.Unmarshal(data, &invoice); err != nil {
		return Invoice{}, fmt.Errorf("decoding invoice: %w", err)
	}
	return invoice, nil
}

// Payment is a payment recorded against an invoice.
type Payment struct {
	ID          int64  `json:"id"`
	InvoiceID   int64  `json:"invoice_id"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

// RecordPaymentRequest is the JSON body for POST /invoices/{id}/payments.
type RecordPaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

// RecordPayment records a payment against an invoice through the
// protected request path.
func (c *Client) RecordPayment(ctx context.Context, invoiceID int64, req RecordPaymentRequest) (Payment, error) {
	data, err := c.Post(ctx, fmt.Sprintf("/invoices/%d/payments", invoiceID), req)
	if err != nil {
		return Payment{}, err
	}
	var payment Payment
	if err := json.Unmarshal(data, &payment); err != nil {
		return Payment{}, fmt.Errorf("decoding payment: %w", err)
	}
	return payment, nil
}

// GetLease fetches a lease. GET requests carry no anti-forgery header.
func (c *Client) GetLease(ctx context.Context, leaseID int64) (Lease, error) {
	data, err := c.Get(ctx, fmt.Sprintf("/leases/%d", leaseID))
	if err != nil {
		return Lease{}, err
	}
	var lease Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		return Lease{}, fmt.Errorf("decoding lease: %w", err)
	}
	return lease, nil
}
