// Package cache stores raw provider responses keyed by symbol, data type
// and parameters, with freshness decided per TTL category at read time.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
)

// Store is a response cache. Get never fails: absent, expired and
// unreadable entries are all misses.
type Store interface {
	Get(ctx context.Context, key, category string) ([]byte, bool)
	Put(ctx context.Context, key, category string, payload []byte) error
}

// TTLs maps a category to its expiry duration
type TTLs map[string]time.Duration

// Fresh reports whether an entry stored at storedAt is still valid at now.
// Unknown categories are never fresh.
func (t TTLs) Fresh(category string, storedAt, now time.Time) bool {
	ttl, ok := t[category]
	if !ok {
		return false
	}
	return now.Sub(storedAt) <= ttl
}

// Validate checks that category is known
func (t TTLs) Validate(category string) error {
	if _, ok := t[category]; !ok {
		return fmt.Errorf("unknown cache category %q", category)
	}
	return nil
}

// Key builds a cache key from data type, symbol and parameters. Parameters
// are encoded in sorted order so equal requests share a key.
func Key(dataType contracts.DataType, symbol string, params url.Values) string {
	var b strings.Builder
	b.WriteString(string(dataType))
	b.WriteByte(':')
	b.WriteString(strings.ToUpper(symbol))
	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(params.Encode())
	}
	return b.String()
}

// usable reports whether a stored payload can be handed back to callers
func usable(payload []byte) bool {
	return len(payload) > 0 && json.Valid(payload)
}

// Stats summarizes cache contents per category
type Stats struct {
	Category string `json:"category"`
	Entries  int    `json:"entries"`
	Fresh    int    `json:"fresh"`
	Stale    int    `json:"stale"`
}
