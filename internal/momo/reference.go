package momo

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NewReference generates a transaction reference of the form
// <PREFIX>-<base36 millisecond timestamp>-<4 random hex bytes>. The timestamp
// and random tail together make collisions vanishingly unlikely.
func NewReference(prefix string) string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)

	buf := make([]byte, 4)
	_, _ = rand.Read(buf)

	return fmt.Sprintf("%s-%s-%s",
		strings.ToUpper(prefix),
		strings.ToUpper(ts),
		strings.ToUpper(hex.EncodeToString(buf)),
	)
}
