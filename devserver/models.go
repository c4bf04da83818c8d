package devserver

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Message string `json:"message"`
}

// User is the principal record returned to the client.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// SignInRequest is the JSON body for POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the JSON body for POST /auth/signup.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned from signin, signup and whoami.
type SessionResponse struct {
	User User `json:"user"`
}

// MessageResponse acknowledges an operation with a human-readable message.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenResponse carries a CSRF token in the body.
type TokenResponse struct {
	Token string `json:"token"`
}

// Lease is a lease record.
type Lease struct {
	ID         int64  `json:"id"`
	PropertyID int64  `json:"property_id"`
	TenantID   int64  `json:"tenant_id"`
	Status     string `json:"status"`
}

// Invoice is an invoice record.
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

// Payment is a payment recorded against an invoice.
type Payment struct {
	ID          int64  `json:"id"`
	InvoiceID   int64  `json:"invoice_id"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

// RecordPaymentRequest is the JSON body for POST /invoices/{invoiceID}/payments.
type RecordPaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}
