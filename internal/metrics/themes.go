package metrics

import (
	"regexp"
	"strings"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/strategyconfig"
)

type themeRule struct {
	name     string
	keywords []*regexp.Regexp
	sectors  []string
}

// ThemeClassifier tags companies with investment themes. Rules are applied
// in configuration order, so output order is deterministic.
type ThemeClassifier struct {
	rules []themeRule
}

// NewThemeClassifier compiles theme rules. Keywords match whole words.
func NewThemeClassifier(rules []strategyconfig.ThemeRule) *ThemeClassifier {
	c := &ThemeClassifier{rules: make([]themeRule, 0, len(rules))}
	for _, r := range rules {
		rule := themeRule{name: r.Name}
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			rule.keywords = append(rule.keywords, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
		}
		for _, s := range r.Sectors {
			rule.sectors = append(rule.sectors, strings.TrimSpace(s))
		}
		c.rules = append(c.rules, rule)
	}
	return c
}

// Classify returns the themes matching industry and company name. The
// result is never nil.
func (c *ThemeClassifier) Classify(industry, name string) []string {
	industry = strings.TrimSpace(industry)
	text := strings.ToLower(industry + " " + name)

	themes := make([]string, 0)
	for _, rule := range c.rules {
		if rule.matches(industry, text) {
			themes = append(themes, rule.name)
		}
	}
	return themes
}

func (r themeRule) matches(industry, text string) bool {
	for _, s := range r.sectors {
		if industry != "" && strings.EqualFold(industry, s) {
			return true
		}
	}
	for _, re := range r.keywords {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
