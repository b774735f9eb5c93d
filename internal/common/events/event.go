package events

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"momogateway/internal/momo"
)

// Event represents a gateway event envelope
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Network       momo.Network    `json:"network"`
	TransactionID string          `json:"transaction_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event
func NewEvent(eventType string, network momo.Network, transactionID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		Network:       network,
		TransactionID: transactionID,
		Data:          dataBytes,
	}, nil
}

// WithCorrelation adds a correlation ID
func (e *Event) WithCorrelation(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// DecodeData decodes the event data into a struct
func (e *Event) DecodeData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Event types
const (
	EventPaymentInitiated = "payment.initiated"
	EventPaymentStatus    = "payment.status"
	EventCallbackReceived = "payment.callback.received"
)

// PaymentInitiatedData is the data for payment.initiated events
type PaymentInitiatedData struct {
	Network       momo.Network `json:"network"`
	TransactionID string       `json:"transaction_id"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	Amount        int64        `json:"amount"`
	Currency      string       `json:"currency"`
	Status        momo.Status  `json:"status"`
	RedirectURL   string       `json:"redirect_url,omitempty"`
}

// PaymentStatusData is the data for payment.status events
type PaymentStatusData struct {
	Network       momo.Network `json:"network"`
	TransactionID string       `json:"transaction_id"`
	Status        momo.Status  `json:"status"`
	Amount        int64        `json:"amount"`
}

// CallbackReceivedData is the data for payment.callback.received events
type CallbackReceivedData struct {
	Network       momo.Network `json:"network"`
	TransactionID string       `json:"transaction_id"`
	Status        momo.Status  `json:"status"`
	NativeStatus  string       `json:"native_status"`
	Amount        int64        `json:"amount"`
}
