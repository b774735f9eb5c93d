package orange

import (
	"encoding/json"

	"momogateway/internal/momo"
)

// callbackPayload is the flat notification Orange posts to the notif URL.
type callbackPayload struct {
	Status     string `json:"status"`
	NotifToken string `json:"notif_token"`
	TxnID      string `json:"txnid"`
	OrderID    string `json:"order_id"`
	Amount     any    `json:"amount"`
	Msisdn     string `json:"msisdn"`
}

// ParseCallback normalizes an Orange Money notification into the unified
// callback shape.
func ParseCallback(raw []byte) (*momo.CallbackData, error) {
	var p callbackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, momo.NewError(momo.KindUpstreamValidation, momo.NetworkOrange, "malformed callback payload", err)
	}

	status, _ := statusTable.Normalize(p.Status)

	transactionID := p.TxnID
	if transactionID == "" {
		transactionID = p.OrderID
	}

	return &momo.CallbackData{
		Network:       momo.NetworkOrange,
		TransactionID: transactionID,
		CorrelationID: p.NotifToken,
		Status:        status,
		NativeStatus:  p.Status,
		Amount:        momo.ParseAmount(p.Amount),
		CustomerPhone: p.Msisdn,
	}, nil
}
