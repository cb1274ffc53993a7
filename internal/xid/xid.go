package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// NewOrderID returns a human-facing order identifier with a date prefix,
// e.g. ORD-20260828-3f9c21ab. The date makes order lists scannable; the
// random suffix disambiguates orders created the same day.
func NewOrderID(at time.Time) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("ORD-%s-%d", at.UTC().Format("20060102"), at.UnixNano()%100000000)
	}
	return fmt.Sprintf("ORD-%s-%s", at.UTC().Format("20060102"), hex.EncodeToString(buf))
}
