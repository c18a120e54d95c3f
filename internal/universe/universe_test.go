package universe

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/external/finnhub"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/httputil"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

type fakeLister struct {
	infos []finnhub.SymbolInfo
	err   error
}

func (f fakeLister) Symbols(context.Context, string) ([]finnhub.SymbolInfo, error) {
	return f.infos, f.err
}

type fakeGetter struct {
	body string
}

func (f fakeGetter) Get(context.Context, string, string, http.Header) (*httputil.Response, error) {
	return &httputil.Response{StatusCode: http.StatusOK, Body: []byte(f.body)}, nil
}

func TestProviderSource(t *testing.T) {
	lister := fakeLister{infos: []finnhub.SymbolInfo{
		{Symbol: "MSFT", Type: "Common Stock"},
		{Symbol: "AAPL", Type: "Common Stock"},
		{Symbol: "BRK.B", Type: "Common Stock"},
		{Symbol: "SPY", Type: "ETP"},
		{Symbol: "AAPL", Type: "Common Stock"},
	}}

	got, err := NewProviderSource(lister, "", logger.Nop()).Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)

	_, err = NewProviderSource(fakeLister{err: errors.New("boom")}, "US", logger.Nop()).Symbols(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestStaticAndLimited(t *testing.T) {
	src := Static{" nvda", "AAPL", "msft", "AAPL", ""}

	got, err := src.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, got)

	got, err = Limited{Source: src, N: 2}.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)

	got, err = Limited{Source: src}.Symbols(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	content := "# watchlist\nNVDA, AMD\nmsft\tgoog # big tech\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := FileSource{Path: path}.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AMD", "GOOG", "MSFT", "NVDA"}, got)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.txt")}.Symbols(context.Background())
	assert.Error(t, err)
}

const constituents = `<html><body>
<table class="nav"><tr><td>Menu</td></tr></table>
<table id="constituents">
  <tr><th>Symbol</th><th>Security</th></tr>
  <tr><td><a href="#">MMM</a></td><td>3M</td></tr>
  <tr><td>BRK.B</td><td>Berkshire Hathaway</td></tr>
  <tr><td> AOS </td><td>A. O. Smith</td></tr>
</table>
</body></html>`

func TestHTMLTableSource(t *testing.T) {
	src := NewHTMLTableSource(fakeGetter{body: constituents}, "https://example.test/sp500", "table#constituents", 0)

	got, err := src.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AOS", "BRK-B", "MMM"}, got)
}

func TestParseHTMLTable_Errors(t *testing.T) {
	_, err := ParseHTMLTable([]byte(constituents), "table#missing", 0)
	assert.ErrorContains(t, err, "no table")

	_, err = ParseHTMLTable([]byte(constituents), "table#constituents", 5)
	assert.ErrorContains(t, err, "no symbols")
}
