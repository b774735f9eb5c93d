package mvola

import (
	"encoding/json"

	"momogateway/internal/momo"
)

// callbackPayload is the flat notification MVola pushes to the callback URL.
type callbackPayload struct {
	TransactionStatus    string     `json:"transactionStatus"`
	ServerCorrelationID  string     `json:"serverCorrelationId"`
	TransactionReference string     `json:"transactionReference"`
	Amount               any        `json:"amount"`
	RequestDate          string     `json:"requestDate"`
	DebitParty           []keyValue `json:"debitParty"`
}

// ParseCallback normalizes an MVola notification into the unified callback
// shape, passing the native status through this adapter's status table.
func ParseCallback(raw []byte) (*momo.CallbackData, error) {
	var p callbackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, momo.NewError(momo.KindUpstreamValidation, momo.NetworkMVola, "malformed callback payload", err)
	}

	status, _ := statusTable.Normalize(p.TransactionStatus)

	data := &momo.CallbackData{
		Network:       momo.NetworkMVola,
		TransactionID: p.TransactionReference,
		CorrelationID: p.ServerCorrelationID,
		Status:        status,
		NativeStatus:  p.TransactionStatus,
		Amount:        momo.ParseAmount(p.Amount),
	}
	for _, party := range p.DebitParty {
		if party.Key == "msisdn" {
			data.CustomerPhone = party.Value
		}
	}

	return data, nil
}
