// Package report writes screening runs to disk.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/screener"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
)

// Files are the paths a run was written to
type Files struct {
	JSON              string `json:"json"`
	CSV               string `json:"csv"`
	Disqualifications string `json:"disqualifications"`
}

// Document is the JSON report of one run
type Document struct {
	Provenance *strategyconfig.Provenance   `json:"provenance"`
	Strategy   string                       `json:"strategy"`
	Screened   int                          `json:"screened"`
	Qualified  int                          `json:"qualified"`
	Reasons    map[contracts.ReasonCode]int `json:"disqualification_reasons"`
	Themes     []screener.ThemeCount        `json:"themes"`
	Candidates []contracts.ScoredCandidate  `json:"candidates"`
}

// NewDocument builds the JSON report of a run
func NewDocument(s *screener.Summary, prov *strategyconfig.Provenance) Document {
	return Document{
		Provenance: prov,
		Strategy:   s.Strategy,
		Screened:   s.Screened,
		Qualified:  len(s.Ranking.Candidates),
		Reasons:    s.ReasonCounts(),
		Themes:     s.ThemeCounts(),
		Candidates: s.Ranking.Candidates,
	}
}

// Writer writes run reports into a directory
type Writer struct {
	dir    string
	logger *logger.Logger
}

// NewWriter creates a report writer for dir
func NewWriter(dir string, log *logger.Logger) *Writer {
	return &Writer{dir: dir, logger: log.WithField("module", "report")}
}

// Write stores the ranked candidates as JSON and CSV and the
// disqualifications as JSON. Each file is written to a temporary name and
// renamed into place.
func (w *Writer) Write(s *screener.Summary, prov *strategyconfig.Provenance) (*Files, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	base := filepath.Join(w.dir, baseName(s.Strategy, prov.CreatedAt, s.RunID))
	files := &Files{
		JSON:              base + ".json",
		CSV:               base + ".csv",
		Disqualifications: base + "_disqualified.json",
	}

	doc := NewDocument(s, prov)

	if err := writeAtomic(files.JSON, func(out io.Writer) error { return encodeJSON(out, doc) }); err != nil {
		return nil, fmt.Errorf("write json report: %w", err)
	}
	if err := writeAtomic(files.CSV, func(out io.Writer) error { return WriteCSV(out, s.Ranking.Candidates) }); err != nil {
		return nil, fmt.Errorf("write csv report: %w", err)
	}
	if err := writeAtomic(files.Disqualifications, func(out io.Writer) error {
		return encodeJSON(out, s.Ranking.Disqualifications)
	}); err != nil {
		return nil, fmt.Errorf("write disqualifications: %w", err)
	}

	w.logger.WithFields(map[string]interface{}{
		"run_id":     s.RunID,
		"strategy":   s.Strategy,
		"qualified":  doc.Qualified,
		"screened":   doc.Screened,
		"json":       files.JSON,
		"csv":        files.CSV,
		"disqualify": files.Disqualifications,
	}).Info("Report written")

	return files, nil
}

func baseName(strategy string, at time.Time, runID string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s_%s", strategy, at.UTC().Format("20060102_150405"), short)
}

func encodeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeAtomic writes through a temp file in the target directory and
// renames it over path
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteCSV writes one row per candidate. Sub-score columns are the union
// of all candidates' sub-scores in name order.
func WriteCSV(out io.Writer, candidates []contracts.ScoredCandidate) error {
	subNames := subScoreNames(candidates)

	header := []string{"rank", "symbol", "name", "strategy", "composite_score", "coverage", "moat_score"}
	header = append(header, subNames...)
	header = append(header, "price", "market_cap", "structural_violation", "themes")

	cw := csv.NewWriter(out)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, c := range candidates {
		row := []string{
			strconv.Itoa(c.Rank),
			c.Symbol,
			c.Name,
			c.Strategy,
			formatFloat(c.CompositeScore),
			formatFloat(c.Coverage),
			formatOptional(c.MoatScore),
		}
		for _, name := range subNames {
			if v, ok := c.SubScores[name]; ok {
				row = append(row, formatFloat(v))
			} else {
				row = append(row, "")
			}
		}
		row = append(row,
			formatOptional(c.Price),
			formatOptional(c.MarketCap),
			strconv.FormatBool(c.Violation),
			strings.Join(c.Themes, ";"),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func subScoreNames(candidates []contracts.ScoredCandidate) []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range candidates {
		for name := range c.SubScores {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v contracts.Float) string {
	if x, ok := v.Get(); ok {
		return formatFloat(x)
	}
	return ""
}
