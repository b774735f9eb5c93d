package momo

import "strings"

// Status is the unified transaction status every native provider status is
// mapped into. Pending is the only non-terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// StatusTable maps a network's native status vocabulary to unified statuses.
// Lookups are case-insensitive; keys must be stored lowercase. Tables are
// per-adapter and never shared: the same short code can mean different things
// on different networks.
type StatusTable map[string]Status

// Normalize resolves a native status token. Unknown tokens resolve to pending
// rather than failing; the second return value lets the adapter log a
// diagnostic for tokens missing from its table without changing the result.
func (t StatusTable) Normalize(native string) (Status, bool) {
	if s, ok := t[strings.ToLower(strings.TrimSpace(native))]; ok {
		return s, true
	}
	return StatusPending, false
}
