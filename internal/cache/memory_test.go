package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	m := NewMemory(testTTLs, clk, nil)

	require.NoError(t, m.Put(ctx, "quote:AAPL", "daily-quote", []byte(`{"c":1}`)))
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get(ctx, "quote:AAPL", "daily-quote")
	require.True(t, ok)
	assert.JSONEq(t, `{"c":1}`, string(got))

	// Returned slices are copies.
	got[0] = 'x'
	again, _ := m.Get(ctx, "quote:AAPL", "daily-quote")
	assert.JSONEq(t, `{"c":1}`, string(again))

	clk.Advance(time.Hour + time.Second)
	_, ok = m.Get(ctx, "quote:AAPL", "daily-quote")
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "bad", "financials", []byte(`not json`)))
	_, ok = m.Get(ctx, "bad", "financials")
	assert.False(t, ok)
}

func TestTTLs_Fresh(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		category string
		storedAt time.Time
		want     bool
	}{
		{"just stored", "daily-quote", now, true},
		{"at boundary", "daily-quote", now.Add(-time.Hour), true},
		{"past boundary", "daily-quote", now.Add(-time.Hour - time.Nanosecond), false},
		{"long ttl", "financials", now.Add(-23 * time.Hour), true},
		{"unknown category", "other", now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, testTTLs.Fresh(tt.category, tt.storedAt, now))
		})
	}
}
