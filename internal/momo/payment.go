package momo

import (
	"context"
	"time"
)

// Currency is the only settlement currency the gateway supports.
// Multi-currency is out of scope.
const Currency = "MGA"

// Payment request limits.
const (
	MinAmount          = 100
	MaxDescriptionLen  = 100
	MaxReferenceLen    = 50
	MaxMetadataEntries = 10
	MaxMetadataKeyLen  = 64
	MaxMetadataValLen  = 256
)

// PaymentRequest is a unified collection request. Network may be left empty,
// in which case the gateway infers it from the customer phone number.
type PaymentRequest struct {
	Network       Network           `json:"network,omitempty"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency,omitempty"`
	CustomerPhone string            `json:"customer_phone"`
	Description   string            `json:"description,omitempty"`
	Reference     string            `json:"reference,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Validate enforces the structural bounds of a payment request. Phone and
// network resolution are the gateway's concern, not checked here.
func (r *PaymentRequest) Validate() error {
	if r.Amount < MinAmount {
		return NewError(KindUpstreamValidation, r.Network, "amount must be at least 100 MGA", nil)
	}
	if len(r.Description) > MaxDescriptionLen {
		return NewError(KindUpstreamValidation, r.Network, "description exceeds 100 characters", nil)
	}
	if len(r.Reference) > MaxReferenceLen {
		return NewError(KindUpstreamValidation, r.Network, "reference exceeds 50 characters", nil)
	}
	if len(r.Metadata) > MaxMetadataEntries {
		return NewError(KindUpstreamValidation, r.Network, "metadata exceeds 10 entries", nil)
	}
	for k, v := range r.Metadata {
		if len(k) > MaxMetadataKeyLen {
			return NewError(KindUpstreamValidation, r.Network, "metadata key exceeds 64 characters", nil)
		}
		if len(v) > MaxMetadataValLen {
			return NewError(KindUpstreamValidation, r.Network, "metadata value exceeds 256 characters", nil)
		}
	}
	return nil
}

// PaymentResponse is the unified result of an initiate call. It is created
// once per call and never mutated afterwards; persistence is the surrounding
// application's responsibility.
type PaymentResponse struct {
	Success       bool           `json:"success"`
	Network       Network        `json:"network"`
	TransactionID string         `json:"transaction_id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Status        Status         `json:"status"`
	RedirectURL   string         `json:"redirect_url,omitempty"`
	Message       string         `json:"message,omitempty"`
	Raw           map[string]any `json:"raw,omitempty"`
}

// StatusQuery identifies a transaction for a status lookup. CorrelationID is
// required by networks that key status queries on their own correlation id;
// Reference and Amount are required by networks that key them on the original
// order instead.
type StatusQuery struct {
	Network       Network `json:"network"`
	TransactionID string  `json:"transaction_id"`
	CorrelationID string  `json:"correlation_id,omitempty"`
	Reference     string  `json:"reference,omitempty"`
	Amount        int64   `json:"amount,omitempty"`
}

// TransactionDetail is the full view of a transaction produced by a status
// query or a normalized callback.
type TransactionDetail struct {
	Network       Network        `json:"network"`
	TransactionID string         `json:"transaction_id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Status        Status         `json:"status"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Fees          int64          `json:"fees,omitempty"`
	DebitPhone    string         `json:"debit_phone,omitempty"`
	CreditPhone   string         `json:"credit_phone,omitempty"`
	CreatedAt     *time.Time     `json:"created_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Raw           map[string]any `json:"raw,omitempty"`
}

// CallbackData is the normalized form of an asynchronous provider
// notification. It carries the same shape as a synchronous status query so
// downstream consumers never need to know which network produced it.
type CallbackData struct {
	Network       Network `json:"network"`
	TransactionID string  `json:"transaction_id"`
	CorrelationID string  `json:"correlation_id,omitempty"`
	Status        Status  `json:"status"`
	NativeStatus  string  `json:"native_status"`
	Amount        int64   `json:"amount,omitempty"`
	CustomerPhone string  `json:"customer_phone,omitempty"`
}

// Provider is the uniform contract every network adapter satisfies, real or
// simulated. Implementations refresh their own bearer token transparently and
// never retry upstream calls.
type Provider interface {
	// Network returns the network this adapter serves.
	Network() Network

	// Authenticate establishes or refreshes the adapter's bearer token.
	Authenticate(ctx context.Context) error

	// InitiatePayment starts a collection and returns a response whose
	// status has already been normalized.
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)

	// GetTransactionStatus queries the upstream transaction state.
	GetTransactionStatus(ctx context.Context, q StatusQuery) (*TransactionDetail, error)
}
