package curation

import (
	"regexp"
	"sort"
	"strings"
)

// Canonical chart sources.
const (
	SourceOWID     = "owid"
	SourceOECD     = "oecd"
	SourceStatista = "statista"
	SourcePew      = "pew"
)

// DefaultAllowedSources are the sources whose charts may be redistributed.
var DefaultAllowedSources = []string{SourceOWID, SourceOECD}

type domainPattern struct {
	source string
	re     *regexp.Regexp
}

// SourceClassifier infers the publisher of a chart from its annotation.
type SourceClassifier struct {
	explicitKeys  []string
	urlKeys       []string
	containerKeys []string
	domains       []domainPattern
}

// NewSourceClassifier returns a classifier for OWID, OECD, Statista and Pew.
func NewSourceClassifier() *SourceClassifier {
	return &SourceClassifier{
		explicitKeys: []string{"source", "dataset", "origin", "provider"},
		urlKeys: []string{
			"url", "page_url", "source_url", "data_url", "image_url", "chart_url",
			"reference", "ref_url", "origin_url",
		},
		containerKeys: []string{"meta", "metadata", "provenance", "chart_meta"},
		domains: []domainPattern{
			{SourceOWID, regexp.MustCompile(`(?i)ourworldindata\.org`)},
			{SourceOECD, regexp.MustCompile(`(?i)(oecd\.org|stats\.oecd\.org)`)},
			{SourceStatista, regexp.MustCompile(`(?i)(statista\.com|statcdn\.com)`)},
			{SourcePew, regexp.MustCompile(`(?i)pewresearch\.org`)},
		},
	}
}

func (c *SourceClassifier) fromName(v string) string {
	low := strings.ToLower(v)
	switch {
	case strings.Contains(low, "owid"), strings.Contains(low, "our world in data"):
		return SourceOWID
	case strings.Contains(low, "oecd"):
		return SourceOECD
	case strings.Contains(low, "statista"):
		return SourceStatista
	case strings.Contains(low, "pew"):
		return SourcePew
	}
	return ""
}

func (c *SourceClassifier) fromDomain(v string) string {
	for _, d := range c.domains {
		if d.re.MatchString(v) {
			return d.source
		}
	}
	return ""
}

// sortedStrings returns the string values of m in key order.
func sortedStrings(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Classify returns the canonical source of rec, or "" when unknown. It checks
// explicit source fields, then URL fields and metadata containers, then every
// string anywhere one level deep.
func (c *SourceClassifier) Classify(rec Record) string {
	for _, k := range c.explicitKeys {
		if v, ok := rec[k].(string); ok {
			if src := c.fromName(v); src != "" {
				return src
			}
		}
	}

	var candidates []string
	for _, k := range c.urlKeys {
		if v, ok := rec[k].(string); ok {
			candidates = append(candidates, v)
		}
	}
	for _, k := range c.containerKeys {
		if m, ok := rec[k].(map[string]any); ok {
			candidates = append(candidates, sortedStrings(m)...)
		}
	}
	for _, s := range candidates {
		if src := c.fromDomain(s); src != "" {
			return src
		}
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			if src := c.fromDomain(v); src != "" {
				return src
			}
		case map[string]any:
			for _, s := range sortedStrings(v) {
				if src := c.fromDomain(s); src != "" {
					return src
				}
			}
		}
	}
	return ""
}
