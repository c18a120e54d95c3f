package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/contracts"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/report"
	"github.com/RyanJHamby/stock-screener-cagr-based/internal/screener"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// every command prints through these so output stays uniform
// ═══════════════════════════════════════════════════════════

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorRed     = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F5F"}
	colorYellow  = lipgloss.AdaptiveColor{Light: "#B58900", Dark: "#F2C94C"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			PaddingRight(2)

	cellStyle = lipgloss.NewStyle().PaddingRight(2)

	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	successStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
)

const separator = "───────────────────────────────────────────────────────────"

// PrintHeader prints a titled block with key/value lines
func PrintHeader(w io.Writer, title string, fields [][2]string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, dimStyle.Render(separator))
	for _, f := range fields {
		fmt.Fprintf(w, "  %-10s: %s\n", f[0], f[1])
	}
	fmt.Fprintln(w, dimStyle.Render(separator))
}

// PrintProgress prints one screened symbol with a counter
// Example: [trend] NVDA qualified 87.50 [12/500]
func PrintProgress(w io.Writer, strategy string, res screener.Result, current, total int) {
	var status string
	switch {
	case res.Outcome.Candidate != nil:
		status = successStyle.Render(fmt.Sprintf("qualified %.2f", res.Outcome.Candidate.CompositeScore))
	case res.Outcome.Disqualification != nil:
		status = warnStyle.Render(string(res.Outcome.Disqualification.Reason))
	}
	counter := dimStyle.Render(fmt.Sprintf("[%d/%d]", current, total))
	fmt.Fprintf(w, "[%s] %-6s %s %s\n", strategy, res.Symbol, status, counter)
}

// table renders rows as left-aligned columns sized to their widest cell
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = headerCellStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	b.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			cells[i] = cellStyle.Width(widths[i] + 2).Render(cell)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}
	return b.String()
}

// PrintCandidates prints the top ranked candidates
func PrintCandidates(w io.Writer, candidates []contracts.ScoredCandidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No candidates qualified"))
		return
	}

	header := []string{"RANK", "SYMBOL", "SCORE", "COVERAGE", "MOAT", "PRICE", "THEMES"}
	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.Rank),
			c.Symbol,
			fmt.Sprintf("%.2f", c.CompositeScore),
			fmt.Sprintf("%.0f%%", c.Coverage*100),
			optional(c.MoatScore, "%.2f"),
			optional(c.Price, "%.2f"),
			strings.Join(c.Themes, ", "),
		})
	}
	fmt.Fprint(w, table(header, rows))
}

// PrintReasons prints disqualification counts, most common first
func PrintReasons(w io.Writer, counts map[contracts.ReasonCode]int) {
	if len(counts) == 0 {
		return
	}

	reasons := make([]contracts.ReasonCode, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if counts[reasons[i]] != counts[reasons[j]] {
			return counts[reasons[i]] > counts[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Excluded"))
	for _, r := range reasons {
		fmt.Fprintf(w, "  %-28s %d\n", r, counts[r])
	}
}

// PrintFiles prints where a report was written
func PrintFiles(w io.Writer, files *report.Files) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, successStyle.Render("✅ Report written"))
	fmt.Fprintf(w, "  JSON         : %s\n", files.JSON)
	fmt.Fprintf(w, "  CSV          : %s\n", files.CSV)
	fmt.Fprintf(w, "  Disqualified : %s\n", files.Disqualifications)
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, warnStyle.Render("⚠️  "+message))
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintln(w, errorStyle.Render("❌ "+message))
}

// metricRow is one labelled metric for PrintMetrics
type metricRow struct {
	label string
	value string
}

// PrintMetrics prints a symbol's derived metrics grouped by section;
// unavailable values print as "n/a"
func PrintMetrics(w io.Writer, m contracts.DerivedMetrics) {
	pct := func(v contracts.Float) string {
		if x, ok := v.Get(); ok {
			return fmt.Sprintf("%.1f%%", x*100)
		}
		return "n/a"
	}
	num := func(v contracts.Float) string { return optional(v, "%.2f") }

	sections := []struct {
		title string
		rows  []metricRow
	}{
		{"Snapshot", []metricRow{
			{"Price", num(m.Price)},
			{"Market cap", optional(m.MarketCap, "%.0f")},
			{"US listed", flag(m.USListed)},
			{"P/E", num(m.PERatio)},
		}},
		{"Growth", []metricRow{
			{"Revenue CAGR 3y", pct(m.RevenueCAGR3Y)},
			{"Revenue CAGR 5y", pct(m.RevenueCAGR5Y)},
			{"EPS CAGR 3y", pct(m.EPSCAGR3Y)},
			{"EPS CAGR 5y", pct(m.EPSCAGR5Y)},
			{"FCF CAGR 3y", pct(m.FCFCAGR3Y)},
			{"QoQ acceleration", pct(m.QoQAcceleration)},
			{"Forward EPS growth", pct(m.ForwardEPSGrowth)},
		}},
		{"Profitability", []metricRow{
			{"FCF margin", pct(m.FCFMargin)},
			{"Operating margin", pct(m.OperatingMargin)},
			{"Gross margin", pct(m.GrossMargin)},
			{"ROIC", pct(m.ROIC)},
			{"ROE", pct(m.ROE)},
			{"Margin stability", num(m.MarginStability)},
			{"Debt/EBITDA", num(m.DebtToEBITDA)},
		}},
		{"Sentiment", []metricRow{
			{"Insider buy ratio", num(m.InsiderBuyRatio)},
			{"Analyst buy ratio", num(m.AnalystBuyRatio)},
			{"Institutional stability", num(m.InstitutionalStability)},
		}},
		{"Trend", []metricRow{
			{"40-week MA", num(m.MA40W)},
			{"80-week MA", num(m.MA80W)},
			{"Regime aligned", flag(m.RegimeAligned)},
			{"RS percentile", num(m.RSPercentile)},
			{"RS persistence", pct(m.RSPersistence)},
			{"Max drawdown", pct(m.MaxDrawdown)},
			{"Structural violation", flag(m.StructuralViolation)},
		}},
	}

	PrintHeader(w, "Metrics: "+m.Symbol, [][2]string{
		{"Name", m.Name},
		{"As of", m.AsOf.Format("2006-01-02")},
		{"Themes", strings.Join(m.Themes, ", ")},
	})
	for _, s := range sections {
		fmt.Fprintln(w, titleStyle.Render(s.title))
		for _, r := range s.rows {
			value := r.value
			if value == "n/a" {
				value = dimStyle.Render(value)
			}
			fmt.Fprintf(w, "  %-24s %s\n", r.label, value)
		}
	}
}

func optional(v contracts.Float, format string) string {
	if x, ok := v.Get(); ok {
		return fmt.Sprintf(format, x)
	}
	return "n/a"
}

func flag(v contracts.Flag) string {
	if b, ok := v.Get(); ok {
		return fmt.Sprintf("%t", b)
	}
	return "n/a"
}
