package finnhub

import (
	"context"
	"fmt"
	"strings"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
)

// FetchRecord fetches the requested data types for symbol (all per-symbol
// types when none are given) and decodes them into a record. Fragments
// that are unavailable or fail to decode are listed in Unavailable.
func (c *Client) FetchRecord(ctx context.Context, symbol string, types ...contracts.DataType) *contracts.RawFinancialRecord {
	if len(types) == 0 {
		types = contracts.AllRecordTypes
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	record := &contracts.RawFinancialRecord{
		Symbol: symbol,
		AsOf:   c.clock.Now(),
	}

	for _, dt := range types {
		if ctx.Err() != nil {
			record.MarkUnavailable(dt, "cancelled")
			continue
		}

		frag := c.Fetch(ctx, symbol, dt)
		if frag.Unavailable {
			record.MarkUnavailable(dt, frag.Reason)
			continue
		}

		if err := decodeInto(record, dt, frag.Payload); err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol":    symbol,
				"data_type": string(dt),
			}).Debug("Fragment failed to decode")
			record.MarkUnavailable(dt, "decode_failed")
		}
	}

	return record
}

func decodeInto(r *contracts.RawFinancialRecord, dt contracts.DataType, payload []byte) error {
	var err error
	switch dt {
	case contracts.DataProfile:
		r.Profile, err = decodeProfile(payload)
	case contracts.DataQuote:
		r.Quote, err = decodeQuote(payload)
	case contracts.DataFinancialsAnnual:
		r.Annual, err = decodeReported(payload)
	case contracts.DataFinancialsQuarterly:
		r.Quarterly, err = decodeReported(payload)
	case contracts.DataBasicFinancials:
		r.Ratios, err = decodeBasicFinancials(payload)
	case contracts.DataCandles:
		r.Prices, err = decodeCandles(payload)
	case contracts.DataInsider:
		r.Insider, err = decodeInsider(payload)
	case contracts.DataRecommendations:
		r.Recommendations, err = decodeRecommendations(payload)
	case contracts.DataEPSEstimates:
		r.EPSEstimates, err = decodeEPSEstimates(payload)
	default:
		err = fmt.Errorf("no decoder for %s", dt)
	}
	return err
}

// FetchPrices returns daily candles for symbol, used for the benchmark
func (c *Client) FetchPrices(ctx context.Context, symbol string) ([]contracts.PricePoint, error) {
	frag := c.Fetch(ctx, strings.ToUpper(symbol), contracts.DataCandles)
	if frag.Unavailable {
		return nil, fmt.Errorf("prices for %s unavailable: %s", symbol, frag.Reason)
	}
	return decodeCandles(frag.Payload)
}

// Symbols returns the provider's symbol list for exchange
func (c *Client) Symbols(ctx context.Context, exchange string) ([]SymbolInfo, error) {
	frag := c.Fetch(ctx, exchange, contracts.DataSymbols)
	if frag.Unavailable {
		return nil, fmt.Errorf("symbol list for %s unavailable: %s", exchange, frag.Reason)
	}
	return decodeSymbols(frag.Payload)
}
