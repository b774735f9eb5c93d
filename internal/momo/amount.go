package momo

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseAmount decodes an amount field from a loosely-typed provider payload.
// Networks variously send amounts as JSON numbers, integer strings or
// decimal strings ("1000.00"); ariary has no minor decimals, so the integer
// part is what counts. Unparseable values yield zero.
func ParseAmount(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case int64:
		return x
	case float64:
		return int64(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return int64(f)
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if i := strings.IndexAny(s, "."); i >= 0 {
			s = s[:i]
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
