package rules

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// Declarative rule configuration. The YAML file defines scoring weights,
// category/subcategory regex patterns, the risk dictionary, URL domain
// attributions and anomaly thresholds. Malformed regexes are skipped and
// reported once; unknown keys are tolerated.

//go:embed rules_default.yaml
var defaultRulesYAML []byte

// CatSub is a (category, subcategory) attribution for a URL domain.
type CatSub struct {
	Category    string `yaml:"category" json:"category"`
	Subcategory string `yaml:"subcategory" json:"subcategory"`
}

// AnomalyThresholds configures the baseline anomaly detectors.
type AnomalyThresholds struct {
	OutlierZScore         float64 `yaml:"outlier_zscore" json:"outlier_zscore"`
	NewCpLargePct         float64 `yaml:"new_cp_large_pct" json:"new_cp_large_pct"`
	P2PBurstCount         int     `yaml:"p2p_burst_count" json:"p2p_burst_count"`
	CashClusterCount      int     `yaml:"cash_cluster_count" json:"cash_cluster_count"`
	SpendingOverIncomePct float64 `yaml:"spending_over_income_pct" json:"spending_over_income_pct"`
}

// Config is the raw, file-shaped rule configuration.
type Config struct {
	Version        string                         `yaml:"version"`
	Scoring        map[string]int                 `yaml:"scoring"`
	Categories     map[string]map[string][]string `yaml:"categories"`
	RiskDictionary map[string][]string            `yaml:"risk_dictionary"`
	URLDomains     map[string]CatSub              `yaml:"url_domains"`
	Anomaly        AnomalyThresholds              `yaml:"anomaly"`
}

// CompiledSubcategory holds the compiled patterns of one subcategory.
type CompiledSubcategory struct {
	Name     string
	Patterns []*regexp.Regexp
}

// CompiledCategory holds one category's subcategories in stable order.
type CompiledCategory struct {
	Name          string
	Subcategories []CompiledSubcategory
}

// CompiledRisk is one risk-dictionary entry with compiled patterns.
type CompiledRisk struct {
	Name     string
	Patterns []*regexp.Regexp
}

// Compiled is the runtime form of a Config: regexes compiled, map iteration
// stabilized by sorted keys so classification output is deterministic.
type Compiled struct {
	Version    string
	Scoring    map[string]int
	Categories []CompiledCategory
	RiskRules  []CompiledRisk
	URLDomains map[string]CatSub
	Anomaly    AnomalyThresholds
}

// Default returns the built-in minimal configuration used when no rules
// file is available.
func Default() *Config {
	cfg, err := Parse(defaultRulesYAML)
	if err != nil {
		// The embedded file is validated by tests; this is unreachable in a
		// released binary but keeps the zero-config path total.
		log.Printf("[Rules] Embedded default config failed to parse: %v", err)
		return &Config{
			Version: "builtin",
			Scoring: map[string]int{
				"CRYPTO_RELATED":  25,
				"GAMBLING":        30,
				"LARGE_OUTLIER":   20,
				"WHITELIST_MATCH": -10,
				"BLACKLIST_MATCH": 30,
			},
			Anomaly: defaultAnomaly(),
		}
	}
	return cfg
}

func defaultAnomaly() AnomalyThresholds {
	return AnomalyThresholds{
		OutlierZScore:         2.5,
		NewCpLargePct:         0.3,
		P2PBurstCount:         5,
		CashClusterCount:      3,
		SpendingOverIncomePct: 1.2,
	}
}

// Parse unmarshals a YAML rules document and fills threshold defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("rules config unmarshal: %v", err)
	}
	if cfg.Anomaly.OutlierZScore == 0 {
		cfg.Anomaly.OutlierZScore = 2.5
	}
	if cfg.Anomaly.NewCpLargePct == 0 {
		cfg.Anomaly.NewCpLargePct = 0.3
	}
	if cfg.Anomaly.P2PBurstCount == 0 {
		cfg.Anomaly.P2PBurstCount = 5
	}
	if cfg.Anomaly.CashClusterCount == 0 {
		cfg.Anomaly.CashClusterCount = 3
	}
	if cfg.Anomaly.SpendingOverIncomePct == 0 {
		cfg.Anomaly.SpendingOverIncomePct = 1.2
	}
	return &cfg, nil
}

// LoadFile reads and parses a rules YAML file. A missing file falls back to
// the built-in defaults so the engine always has a scoring table.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[Rules] Config %s not found, using built-in defaults", path)
			return Default(), nil
		}
		return nil, fmt.Errorf("read rules config: %v", err)
	}
	return Parse(data)
}

// Compile turns a Config into its runtime form. Malformed regexes are
// skipped; each is logged once here, never again during classification.
func (c *Config) Compile() *Compiled {
	out := &Compiled{
		Version:    c.Version,
		Scoring:    make(map[string]int, len(c.Scoring)),
		URLDomains: make(map[string]CatSub, len(c.URLDomains)),
		Anomaly:    c.Anomaly,
	}
	for tag, w := range c.Scoring {
		out.Scoring[strings.ToUpper(tag)] = w
	}
	for domain, cs := range c.URLDomains {
		out.URLDomains[strings.ToLower(domain)] = cs
	}

	for _, cat := range sortedKeys(c.Categories) {
		compiled := CompiledCategory{Name: cat}
		for _, sub := range sortedKeys(c.Categories[cat]) {
			cs := CompiledSubcategory{Name: sub}
			for _, pat := range c.Categories[cat][sub] {
				re, err := compilePattern(pat)
				if err != nil {
					log.Printf("[Rules] Skipping bad pattern %q in %s:%s: %v", pat, cat, sub, err)
					continue
				}
				cs.Patterns = append(cs.Patterns, re)
			}
			if len(cs.Patterns) > 0 {
				compiled.Subcategories = append(compiled.Subcategories, cs)
			}
		}
		if len(compiled.Subcategories) > 0 {
			out.Categories = append(out.Categories, compiled)
		}
	}

	for _, name := range sortedKeys(c.RiskDictionary) {
		cr := CompiledRisk{Name: name}
		for _, pat := range c.RiskDictionary[name] {
			re, err := compilePattern(pat)
			if err != nil {
				log.Printf("[Rules] Skipping bad pattern %q in risk_dictionary.%s: %v", pat, name, err)
				continue
			}
			cr.Patterns = append(cr.Patterns, re)
		}
		if len(cr.Patterns) > 0 {
			out.RiskRules = append(out.RiskRules, cr)
		}
	}

	return out
}

func compilePattern(pat string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pat)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
