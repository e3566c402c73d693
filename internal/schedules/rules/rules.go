package rules

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v4"
)

const (
	Pruning          = "pruning"
	Furniture        = "furniture"
	GlassElectronics = "glass-electronics"
)

// Rule binds a waste category to the only weekday it is collected on and to its
// per-day capacity.
type Rule struct {
	Category   string       `yaml:"category"`
	Label      string       `yaml:"label"`
	Weekday    time.Weekday `yaml:"weekday"`
	DailyLimit int          `yaml:"daily_limit"`
}

// Rules is immutable once built; lookups never need locking.
type Rules struct {
	byCategory map[string]Rule
	categories []string
}

func Default() *Rules {
	r, _ := New([]Rule{
		{Category: Pruning, Label: "Pruning", Weekday: time.Tuesday, DailyLimit: 3},
		{Category: Furniture, Label: "Furniture", Weekday: time.Wednesday, DailyLimit: 8},
		{Category: GlassElectronics, Label: "Glass & Electronics", Weekday: time.Thursday, DailyLimit: 8},
	})
	return r
}

func New(list []Rule) (*Rules, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("at least one capacity rule is required")
	}
	r := &Rules{byCategory: make(map[string]Rule, len(list))}
	for _, rule := range list {
		rule.Category = strings.TrimSpace(rule.Category)
		if rule.Category == "" {
			return nil, fmt.Errorf("capacity rule without category")
		}
		if _, dup := r.byCategory[rule.Category]; dup {
			return nil, fmt.Errorf("duplicate capacity rule for category %q", rule.Category)
		}
		if rule.Weekday < time.Sunday || rule.Weekday > time.Saturday {
			return nil, fmt.Errorf("category %q: weekday must be between 0 and 6, got %d", rule.Category, rule.Weekday)
		}
		if rule.DailyLimit <= 0 {
			return nil, fmt.Errorf("category %q: daily limit must be positive, got %d", rule.Category, rule.DailyLimit)
		}
		if rule.Label == "" {
			rule.Label = rule.Category
		}
		r.byCategory[rule.Category] = rule
		r.categories = append(r.categories, rule.Category)
	}
	sort.Strings(r.categories)
	return r, nil
}

type fileFormat struct {
	Categories []Rule `yaml:"categories"`
}

// LoadFile reads a YAML rules table:
//
//	categories:
//	  - category: pruning
//	    label: Pruning
//	    weekday: 2
//	    daily_limit: 3
func LoadFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules YAML: %w", err)
	}
	return New(f.Categories)
}

func (r *Rules) Get(category string) (Rule, bool) {
	rule, ok := r.byCategory[category]
	return rule, ok
}

// Categories returns the configured categories in lexical order.
func (r *Rules) Categories() []string {
	out := make([]string, len(r.categories))
	copy(out, r.categories)
	return out
}

func WeekdayName(d time.Weekday) string {
	return d.String()
}
