// Package processing cleans VLM responses stored in JSON and JSONL datasets.
package processing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Caia-Tech/caia-chartforge/internal/registry"
	"github.com/Caia-Tech/caia-chartforge/pkg/logging"
	"github.com/rs/zerolog"
)

// CleaningRule is a single named text transformation.
type CleaningRule interface {
	Name() string
	Description() string
	Apply(content string) (string, error)
}

// CleanerConfig holds cleaner settings
type CleanerConfig struct {
	Input         string   `json:"input" mapstructure:"input"`
	Output        string   `json:"output" mapstructure:"output"` // defaults to <base>_cleaned.<ext>
	JSONL         bool     `json:"jsonl" mapstructure:"jsonl"`   // also inferred from a .jsonl extension
	ExtraPhrases  []string `json:"extra_phrases" mapstructure:"extra_phrases"`
	PhraseFile    string   `json:"phrase_file" mapstructure:"phrase_file"`
	OnlyKeys      []string `json:"only_keys" mapstructure:"only_keys"` // empty cleans every string
	KeepMarkers   bool     `json:"keep_markers" mapstructure:"keep_markers"`
	KeepAnswer    bool     `json:"keep_answer" mapstructure:"keep_answer"`
	KeepHintLines bool     `json:"keep_hint_lines" mapstructure:"keep_hint_lines"`
	Normalize     bool     `json:"normalize" mapstructure:"normalize"`
	StrictMode    bool     `json:"strict_mode" mapstructure:"strict_mode"`
}

// DefaultCleanerConfig returns default cleaner configuration
func DefaultCleanerConfig() *CleanerConfig {
	return &CleanerConfig{
		Input:    "input.json",
		OnlyKeys: []string{"value"},
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *CleanerConfig) Validate() error {
	if c.Input == "" {
		return errors.New("input file is required")
	}
	if c.Output != "" && filepath.Clean(c.Output) == filepath.Clean(c.Input) {
		return errors.New("output must differ from input")
	}
	return nil
}

// IsJSONL reports whether the input is read line by line.
func (c *CleanerConfig) IsJSONL() bool {
	return c.JSONL || strings.EqualFold(filepath.Ext(c.Input), ".jsonl")
}

// OutputPath resolves the output file name.
func (c *CleanerConfig) OutputPath() string {
	if c.Output != "" {
		return c.Output
	}
	return DefaultOutputPath(c.Input)
}

// DefaultOutputPath turns "a/b.json" into "a/b_cleaned.json"; a name with
// no dot gets a plain "_cleaned" suffix.
func DefaultOutputPath(in string) string {
	i := strings.LastIndex(in, ".")
	if i < 0 || strings.ContainsRune(in[i:], filepath.Separator) {
		return in + "_cleaned"
	}
	return in[:i] + "_cleaned" + in[i:]
}

// CleaningResult summarizes one file run.
type CleaningResult struct {
	Input          string         `json:"input"`
	Output         string         `json:"output"`
	Records        int            `json:"records"`
	Values         int            `json:"values"`
	Changed        int            `json:"changed"`
	Passthrough    int            `json:"passthrough"` // unparseable JSONL lines copied as is
	BytesRemoved   int            `json:"bytes_removed"`
	RuleHits       map[string]int `json:"rule_hits"`
	ProcessingTime time.Duration  `json:"processing_time"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// ResponseCleaner applies the ordered rule set to selected string values.
type ResponseCleaner struct {
	config       *CleanerConfig
	rules        []CleaningRule
	enabledRules map[string]bool
	onlyKeys     map[string]bool
	logger       zerolog.Logger
}

// NewResponseCleaner builds the rule chain in its canonical order.
func NewResponseCleaner(config *CleanerConfig) (*ResponseCleaner, error) {
	if config == nil {
		config = DefaultCleanerConfig()
	}

	phrases := append([]string(nil), DefaultPhrases...)
	if config.PhraseFile != "" {
		extra, err := LoadPhrases(config.PhraseFile)
		if err != nil {
			return nil, err
		}
		phrases = append(phrases, extra...)
	}
	phrases = append(phrases, config.ExtraPhrases...)

	prefix, err := NewBoilerplatePrefixRule(phrases)
	if err != nil {
		return nil, err
	}

	rc := &ResponseCleaner{
		config:       config,
		enabledRules: make(map[string]bool),
		logger:       logging.GetCurationLogger("vlm-cleaner", "clean"),
	}
	if len(config.OnlyKeys) > 0 {
		rc.onlyKeys = make(map[string]bool, len(config.OnlyKeys))
		for _, k := range config.OnlyKeys {
			rc.onlyKeys[k] = true
		}
	}

	rc.AddRule(&EncodingNormalizationRule{})
	rc.AddRule(&ImageQuestionSpanRule{})
	rc.AddRule(prefix)
	rc.AddRule(&AnswerSegmentRule{})
	rc.AddRule(&HintLineRule{})
	rc.AddRule(&MarkerRule{})
	rc.AddRule(&QuoteTrimRule{})
	rc.AddRule(&WhitespaceNormalizationRule{})
	rc.AddRule(&AsteriskRemovalRule{})

	if !config.Normalize {
		rc.DisableRule("encoding_normalization")
	}
	if config.KeepAnswer {
		rc.DisableRule("answer_segment")
	}
	if config.KeepHintLines {
		rc.DisableRule("hint_lines")
	}
	if config.KeepMarkers {
		rc.DisableRule("question_markers")
	}
	return rc, nil
}

// LoadPhrases reads one regex per line, skipping blanks and # comments.
func LoadPhrases(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open phrase file: %w", err)
	}
	defer f.Close()

	var phrases []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		phrases = append(phrases, s)
	}
	return phrases, sc.Err()
}

// AddRule appends a rule to the end of the chain and enables it.
func (rc *ResponseCleaner) AddRule(rule CleaningRule) {
	rc.rules = append(rc.rules, rule)
	rc.enabledRules[rule.Name()] = true
}

// EnableRule enables a specific rule by name
func (rc *ResponseCleaner) EnableRule(ruleName string) {
	rc.enabledRules[ruleName] = true
}

// DisableRule disables a specific rule by name
func (rc *ResponseCleaner) DisableRule(ruleName string) {
	rc.enabledRules[ruleName] = false
}

// GetEnabledRules returns enabled rule names in application order.
func (rc *ResponseCleaner) GetEnabledRules() []string {
	enabled := make([]string, 0, len(rc.rules))
	for _, rule := range rc.rules {
		if rc.enabledRules[rule.Name()] {
			enabled = append(enabled, rule.Name())
		}
	}
	return enabled
}

// GetAvailableRules returns all available rules with descriptions
func (rc *ResponseCleaner) GetAvailableRules() map[string]string {
	rules := make(map[string]string, len(rc.rules))
	for _, rule := range rc.rules {
		rules[rule.Name()] = rule.Description()
	}
	return rules
}

// CleanValue runs every enabled rule over s. hits, when non-nil, counts the
// rules that changed the text.
func (rc *ResponseCleaner) CleanValue(s string, hits map[string]int) (string, error) {
	for _, rule := range rc.rules {
		if !rc.enabledRules[rule.Name()] {
			continue
		}
		after, err := rule.Apply(s)
		if err != nil {
			if rc.config.StrictMode {
				return "", fmt.Errorf("rule %s failed: %w", rule.Name(), err)
			}
			rc.logger.Warn().Err(err).Str("rule", rule.Name()).Str("outcome", logging.OutcomeWarn).Msg("Rule failed")
			continue
		}
		if after != s && hits != nil {
			hits[rule.Name()]++
		}
		s = after
	}
	return s, nil
}

// walk cleans string values under selected object keys. Strings inside
// arrays are cleaned only when no key filter is set.
func (rc *ResponseCleaner) walk(v any, res *CleaningResult) (any, error) {
	switch t := v.(type) {
	case *orderedObject:
		for _, k := range t.keys {
			val := t.values[k]
			if s, ok := val.(string); ok && (rc.onlyKeys == nil || rc.onlyKeys[k]) {
				cleaned, err := rc.cleanString(s, res)
				if err != nil {
					return nil, err
				}
				t.values[k] = cleaned
				continue
			}
			out, err := rc.walk(val, res)
			if err != nil {
				return nil, err
			}
			t.values[k] = out
		}
		return t, nil
	case []any:
		for i, item := range t {
			if s, ok := item.(string); ok && rc.onlyKeys == nil {
				cleaned, err := rc.cleanString(s, res)
				if err != nil {
					return nil, err
				}
				t[i] = cleaned
				continue
			}
			out, err := rc.walk(item, res)
			if err != nil {
				return nil, err
			}
			t[i] = out
		}
		return t, nil
	}
	return v, nil
}

func (rc *ResponseCleaner) cleanString(s string, res *CleaningResult) (string, error) {
	cleaned, err := rc.CleanValue(s, res.RuleHits)
	if err != nil {
		return "", err
	}
	res.Values++
	if cleaned != s {
		res.Changed++
		res.BytesRemoved += len(s) - len(cleaned)
	}
	return cleaned, nil
}

func (r *CleaningResult) merge(o *CleaningResult) {
	r.Records += o.Records
	r.Values += o.Values
	r.Changed += o.Changed
	r.BytesRemoved += o.BytesRemoved
	for k, v := range o.RuleHits {
		r.RuleHits[k] += v
	}
}

// CleanDocument cleans one JSON document and returns it re-encoded with its
// key order intact.
func (rc *ResponseCleaner) CleanDocument(data []byte) ([]byte, *CleaningResult, error) {
	res := &CleaningResult{RuleHits: make(map[string]int)}
	doc, err := parseOrdered(data)
	if err != nil {
		return nil, nil, err
	}
	doc, err = rc.walk(doc, res)
	if err != nil {
		return nil, nil, err
	}
	out, err := marshalRaw(doc)
	if err != nil {
		return nil, nil, err
	}
	res.Records = 1
	return out, res, nil
}

// CleanFile cleans the configured input and writes the output file.
func (rc *ResponseCleaner) CleanFile(ctx context.Context) (*CleaningResult, error) {
	start := time.Now()
	in, out := rc.config.Input, rc.config.OutputPath()
	res := &CleaningResult{Input: in, Output: out, RuleHits: make(map[string]int)}

	var err error
	if rc.config.IsJSONL() {
		err = rc.cleanJSONL(ctx, in, out, res)
	} else {
		err = rc.cleanJSON(in, out, res)
	}
	if err != nil {
		return nil, err
	}
	res.ProcessingTime = time.Since(start)

	rc.logger.Info().
		Str("input", in).
		Str("output", out).
		Int("records", res.Records).
		Int("values", res.Values).
		Int("changed", res.Changed).
		Int("passthrough", res.Passthrough).
		Str("outcome", logging.OutcomeOK).
		Msg("Cleaning completed")
	return res, nil
}

func (rc *ResponseCleaner) cleanJSON(in, out string, res *CleaningResult) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	raw, doc, err := rc.CleanDocument(data)
	if err != nil {
		return fmt.Errorf("failed to clean %s: %w", in, err)
	}
	res.merge(doc)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	return os.WriteFile(out, pretty.Bytes(), 0644)
}

func (rc *ResponseCleaner) cleanJSONL(ctx context.Context, in, out string, res *CleaningResult) error {
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	w, err := registry.Create(out)
	if err != nil {
		return err
	}

	lineNo := 0
	err = registry.ScanLines(f, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		if len(bytes.TrimSpace(line)) == 0 {
			return w.WriteRaw(nil)
		}
		doc, perr := parseOrdered(line)
		if perr != nil {
			res.Passthrough++
			rc.logger.Debug().Int("line", lineNo).Err(perr).Str("outcome", logging.OutcomeSkip).Msg("Passing through unparseable line")
			return w.WriteRaw(line)
		}
		doc, err := rc.walk(doc, res)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		raw, err := marshalRaw(doc)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		res.Records++
		return w.WriteRaw(raw)
	})
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}
