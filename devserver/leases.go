package devserver

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
)

// leaseStore holds the in-memory lease and invoice records the stub
// serves. It is seeded with a handful of leases so protected calls have
// something to act on.
type leaseStore struct {
	mu          sync.Mutex
	leases      map[int64]*Lease
	invoices    map[int64]*Invoice
	payments    map[int64][]*Payment
	paid        map[int64]int64
	nextInvoice int64
	nextPayment int64
}

func newLeaseStore() *leaseStore {
	store := &leaseStore{
		leases:      make(map[int64]*Lease),
		invoices:    make(map[int64]*Invoice),
		payments:    make(map[int64][]*Payment),
		paid:        make(map[int64]int64),
		nextInvoice: 1,
		nextPayment: 1,
	}
	for id := int64(1); id <= 5; id++ {
		store.leases[id] = &Lease{ID: id, PropertyID: id, TenantID: 100 + id, Status: "draft"}
	}
	return store
}

// GetLease handles GET /leases/{leaseID}.
func (s *Server) GetLease(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "leaseID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lease id")
		return
	}
	s.leases.mu.Lock()
	lease, ok := s.leases.leases[id]
	s.leases.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "lease not found")
		return
	}
	writeJSON(w, http.StatusOK, lease)
}

// ActivateLease handles POST /leases/{leaseID}/activate.
func (s *Server) ActivateLease(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "leaseID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lease id")
		return
	}
	s.leases.mu.Lock()
	lease, ok := s.leases.leases[id]
	if ok {
		lease.Status = "active"
	}
	s.leases.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "lease not found")
		return
	}
	writeJSON(w, http.StatusOK, lease)
}

// CreateInvoice handles POST /invoices.
func (s *Server) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateInvoiceRequest](w, r)
	if !ok {
		return
	}
	s.leases.mu.Lock()
	defer s.leases.mu.Unlock()
	if _, exists := s.leases.leases[req.LeaseID]; !exists {
		writeError(w, http.StatusNotFound, "lease not found")
		return
	}
	invoice := &Invoice{
		ID:          s.leases.nextInvoice,
		LeaseID:     req.LeaseID,
		AmountCents: req.AmountCents,
		Status:      "open",
		DueDate:     req.DueDate,
	}
	s.leases.nextInvoice++
	s.leases.invoices[invoice.ID] = invoice
	writeJSON(w, http.StatusCreated, invoice)
}

// RecordPayment handles POST /invoices/{invoiceID}/payments. An invoice
// becomes "paid" once recorded payments cover its amount.
func (s *Server) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}
	req, ok := decodeJSON[RecordPaymentRequest](w, r)
	if !ok {
		return
	}
	if req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "payment amount must be positive")
		return
	}

	s.leases.mu.Lock()
	defer s.leases.mu.Unlock()
	invoice, exists := s.leases.invoices[id]
	if !exists {
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	}
	payment := &Payment{
		ID:          s.leases.nextPayment,
		InvoiceID:   id,
		AmountCents: req.AmountCents,
		Method:      req.Method,
	}
	s.leases.nextPayment++
	s.leases.payments[id] = append(s.leases.payments[id], payment)
	s.leases.paid[id] += req.AmountCents
	if s.leases.paid[id] >= invoice.AmountCents {
		invoice.Status = "paid"
	}
	writeJSON(w, http.StatusCreated, payment)
}
