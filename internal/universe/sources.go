package universe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/httputil"
)

// FileSource reads symbols from a text file: one or more per line,
// separated by commas or whitespace, with # comments
type FileSource struct {
	Path string
}

// Symbols implements contracts.UniverseSource
func (f FileSource) Symbols(context.Context) ([]string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read symbol file: %w", err)
	}

	var symbols []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		symbols = append(symbols, strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan symbol file: %w", err)
	}
	return Normalize(symbols), nil
}

// Getter fetches a URL
type Getter interface {
	Get(ctx context.Context, label, rawURL string, header http.Header) (*httputil.Response, error)
}

// HTMLTableSource scrapes symbols from a column of an HTML table, such as
// an index constituents page
type HTMLTableSource struct {
	client   Getter
	url      string
	selector string // table selector
	column   int    // zero-based symbol column
}

// NewHTMLTableSource creates a scraping source. selector defaults to the
// first table on the page.
func NewHTMLTableSource(client Getter, url, selector string, column int) *HTMLTableSource {
	if selector == "" {
		selector = "table"
	}
	return &HTMLTableSource{client: client, url: url, selector: selector, column: column}
}

// Symbols implements contracts.UniverseSource
func (h *HTMLTableSource) Symbols(ctx context.Context) ([]string, error) {
	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0 (compatible; stockscreener)")

	resp, err := h.client.Get(ctx, "universe_html", h.url, header)
	if err != nil {
		return nil, fmt.Errorf("fetch symbol table: %w", err)
	}
	return ParseHTMLTable(resp.Body, h.selector, h.column)
}

// ParseHTMLTable returns the column-th cell of every body row of the first
// table matching selector. Share-class dots are mapped to the provider's
// dash form (BRK.B → BRK-B).
func ParseHTMLTable(html []byte, selector string, column int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no table matches %q", selector)
	}

	var symbols []string
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= column {
			return
		}
		text := strings.TrimSpace(cells.Eq(column).Text())
		if text == "" {
			return
		}
		symbols = append(symbols, strings.ReplaceAll(text, ".", "-"))
	})

	if len(symbols) == 0 {
		return nil, fmt.Errorf("table %q has no symbols in column %d", selector, column)
	}
	return Normalize(symbols), nil
}
