// Package phone normalizes Malagasy subscriber numbers and resolves the
// mobile-money network that owns them.
package phone

import (
	"strings"

	"momogateway/internal/momo"
)

const (
	// CountryCode is the Madagascar dialing code.
	CountryCode = "261"

	// localLength is the length of a normalized local number (03X XX XXX XX).
	localLength = 10

	mobileMarker = "03"
)

// Rejection reasons returned by Classify.
const (
	ReasonWrongLength   = "wrong length"
	ReasonWrongPrefix   = "wrong leading digits"
	ReasonUnknownPrefix = "prefix not recognized"
)

// prefixes maps the three-digit operator prefix to the owning network.
// Each network owns a fixed, disjoint set of prefixes.
var prefixes = map[string]momo.Network{
	"034": momo.NetworkMVola,
	"038": momo.NetworkMVola,
	"032": momo.NetworkOrange,
	"037": momo.NetworkOrange,
	"033": momo.NetworkAirtel,
}

// Classification is the result of classifying a raw phone number.
type Classification struct {
	Valid      bool
	Network    momo.Network
	Normalized string
	Reason     string
}

// Normalize strips formatting from a raw phone number and rewrites it into
// local format: exactly ten digits with a leading zero. International numbers
// (261 prefix, twelve digits) and nine-digit numbers missing the leading zero
// are rewritten; anything else is returned digits-only as-is.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, CountryCode) && len(digits) == 12 {
		return "0" + digits[len(CountryCode):]
	}
	if len(digits) == 9 && !strings.HasPrefix(digits, "0") {
		return "0" + digits
	}
	return digits
}

// Classify normalizes a raw phone number and resolves its owning network.
// The normalized number is populated even when the prefix is not recognized,
// so callers can still display what was parsed.
func Classify(raw string) Classification {
	n := Normalize(raw)

	if len(n) != localLength {
		return Classification{Normalized: n, Reason: ReasonWrongLength}
	}
	if !strings.HasPrefix(n, mobileMarker) {
		return Classification{Normalized: n, Reason: ReasonWrongPrefix}
	}

	network, ok := prefixes[n[:3]]
	if !ok {
		return Classification{Normalized: n, Reason: ReasonUnknownPrefix}
	}

	return Classification{Valid: true, Network: network, Normalized: n}
}

// NetworkFor returns the owning network for a raw phone number, or false when
// the number is invalid or its prefix is not recognized.
func NetworkFor(raw string) (momo.Network, bool) {
	c := Classify(raw)
	return c.Network, c.Valid
}
