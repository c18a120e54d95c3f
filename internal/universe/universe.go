// Package universe resolves the list of symbols a screening run covers.
package universe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/external/finnhub"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// Provider security type for ordinary shares
const typeCommonStock = "Common Stock"

// SymbolLister lists every security on an exchange
type SymbolLister interface {
	Symbols(ctx context.Context, exchange string) ([]finnhub.SymbolInfo, error)
}

// ProviderSource lists US common stocks from the data provider
// ⭐ SSOT: default universe
type ProviderSource struct {
	lister   SymbolLister
	exchange string
	logger   *logger.Logger
}

// NewProviderSource creates a source over the provider's exchange listing
func NewProviderSource(lister SymbolLister, exchange string, log *logger.Logger) *ProviderSource {
	if exchange == "" {
		exchange = "US"
	}
	return &ProviderSource{
		lister:   lister,
		exchange: exchange,
		logger:   log.WithField("module", "universe"),
	}
}

var _ contracts.UniverseSource = (*ProviderSource)(nil)

// Symbols implements contracts.UniverseSource. Share classes and other
// dotted tickers are left out.
func (s *ProviderSource) Symbols(ctx context.Context) ([]string, error) {
	infos, err := s.lister.Symbols(ctx, s.exchange)
	if err != nil {
		return nil, fmt.Errorf("list %s symbols: %w", s.exchange, err)
	}

	excluded := make(map[string]int)
	symbols := make([]string, 0, len(infos))
	for _, info := range infos {
		switch {
		case info.Type != typeCommonStock:
			excluded["type"]++
		case strings.Contains(info.Symbol, "."):
			excluded["share_class"]++
		default:
			symbols = append(symbols, info.Symbol)
		}
	}
	symbols = Normalize(symbols)

	s.logger.WithFields(map[string]interface{}{
		"exchange": s.exchange,
		"listed":   len(infos),
		"symbols":  len(symbols),
		"excluded": excluded,
	}).Info("Universe loaded")

	return symbols, nil
}

// Static is a fixed symbol list
type Static []string

// Symbols implements contracts.UniverseSource
func (s Static) Symbols(context.Context) ([]string, error) {
	return Normalize(s), nil
}

// Limited caps another source to its first n symbols; n <= 0 is no cap
type Limited struct {
	Source contracts.UniverseSource
	N      int
}

// Symbols implements contracts.UniverseSource
func (l Limited) Symbols(ctx context.Context) ([]string, error) {
	symbols, err := l.Source.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	if l.N > 0 && len(symbols) > l.N {
		symbols = symbols[:l.N]
	}
	return symbols, nil
}

// Normalize upper-cases, trims, de-duplicates and sorts symbols
func Normalize(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
