package airtel

import (
	"encoding/json"

	"momogateway/internal/momo"
)

// callbackPayload is the notification Airtel posts to the callback URL. The
// interesting fields sit inside a nested transaction object, unlike the flat
// payloads of the other networks.
type callbackPayload struct {
	Transaction struct {
		ID            string `json:"id"`
		Message       string `json:"message"`
		StatusCode    string `json:"status_code"`
		AirtelMoneyID string `json:"airtel_money_id"`
		Msisdn        string `json:"msisdn"`
		Amount        any    `json:"amount"`
	} `json:"transaction"`
}

// ParseCallback normalizes an Airtel Money notification into the unified
// callback shape.
func ParseCallback(raw []byte) (*momo.CallbackData, error) {
	var p callbackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, momo.NewError(momo.KindUpstreamValidation, momo.NetworkAirtel, "malformed callback payload", err)
	}

	status, _ := statusTable.Normalize(p.Transaction.StatusCode)

	return &momo.CallbackData{
		Network:       momo.NetworkAirtel,
		TransactionID: p.Transaction.ID,
		CorrelationID: p.Transaction.AirtelMoneyID,
		Status:        status,
		NativeStatus:  p.Transaction.StatusCode,
		Amount:        momo.ParseAmount(p.Transaction.Amount),
		CustomerPhone: p.Transaction.Msisdn,
	}, nil
}
