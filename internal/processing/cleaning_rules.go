package processing

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultPhrases are boilerplate openers stripped from the start of a value.
var DefaultPhrases = []string{
	`sure[,!\.]?\s*here\s+is\s+(?:your|the)\s+(?:generated\s+)?text`,
	`sure[,!\.]?`,
	`here\s+is\s+(?:your|the)\s+(?:generated\s+)?text`,
	`here\s+you\s+go`,
	`absolutely[,!\.]?`,
	`of\s+course[,!\.]?`,
	`no\s+problem[,!\.]?`,
	`happy\s+to\s+help[,!\.]?`,
	`as\s+requested[,!\.]?`,
	`certainly[,!\.]?`,
	`okay[,!\.]?`,
	`ok[,!\.]?`,
	`great[,!\.]?`,
	`sure\s+thing[,!\.]?`,
}

var (
	questionMarkerRe = regexp.MustCompile(`(?is)\*{0,2}\s*question\s*\*{0,2}\s*:\s*`)
	optionsMarkerRe  = regexp.MustCompile(`(?is)\*{0,2}\s*options?\s*\*{0,2}\s*:\s*`)
	answerSegmentRe  = regexp.MustCompile(`(?is)\*{0,2}\s*answer\s*\*{0,2}\s*:\s*.*$`)
	hintLineRe       = regexp.MustCompile(`(?im)^\s*\*{0,2}\s*hint\s*\*{0,2}\s*:\s*.*?$`)
	imageQuestionRe  = regexp.MustCompile(`(?is)(<image>\s*)(?:.*?)(?:\*{0,2}\s*question\s*\*{0,2}\s*:\s*)`)
	manyNewlinesRe   = regexp.MustCompile(`\n{3,}`)
	spaceRunRe       = regexp.MustCompile(`[ \t]{2,}`)
	optionMarkerRe   = regexp.MustCompile(`^(?:[A-Za-z]|[0-9]+)[.)]?(?:\s|$)`)
)

// ImageQuestionSpanRule drops everything between "<image>" and a following
// "Question:" marker, the marker included.
type ImageQuestionSpanRule struct{}

func (r *ImageQuestionSpanRule) Name() string { return "image_question_span" }

func (r *ImageQuestionSpanRule) Description() string {
	return "Removes text between <image> and the Question: marker"
}

func (r *ImageQuestionSpanRule) Apply(content string) (string, error) {
	return imageQuestionRe.ReplaceAllString(content, "$1"), nil
}

// BoilerplatePrefixRule strips leading boilerplate phrases until none is left.
type BoilerplatePrefixRule struct {
	re *regexp.Regexp
}

// NewBoilerplatePrefixRule compiles the phrase list into one anchored pattern.
func NewBoilerplatePrefixRule(phrases []string) (*BoilerplatePrefixRule, error) {
	// matches nothing when no phrase is configured
	alt := `[^\s\S]`
	if len(phrases) > 0 {
		parts := make([]string, len(phrases))
		for i, p := range phrases {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid phrase %q: %w", p, err)
			}
			parts[i] = "(?:" + p + ")"
		}
		alt = strings.Join(parts, "|")
	}
	re, err := regexp.Compile(`(?i)^(?:` + alt + `)[ \t\-–—:;,.!?"'()]*`)
	if err != nil {
		return nil, err
	}
	return &BoilerplatePrefixRule{re: re}, nil
}

func (r *BoilerplatePrefixRule) Name() string { return "boilerplate_prefix" }

func (r *BoilerplatePrefixRule) Description() string {
	return "Strips leading boilerplate such as \"Sure, here is the text\""
}

func (r *BoilerplatePrefixRule) Apply(content string) (string, error) {
	for {
		next := strings.TrimLeft(r.re.ReplaceAllString(content, ""), " \t\n\r\f\v")
		if next == content {
			return content, nil
		}
		content = next
	}
}

// AnswerSegmentRule removes "Answer: ..." through the end of the value.
type AnswerSegmentRule struct{}

func (r *AnswerSegmentRule) Name() string { return "answer_segment" }

func (r *AnswerSegmentRule) Description() string {
	return "Removes an inline Answer: segment and everything after it"
}

func (r *AnswerSegmentRule) Apply(content string) (string, error) {
	return answerSegmentRe.ReplaceAllString(content, ""), nil
}

// HintLineRule removes whole lines starting with "Hint:".
type HintLineRule struct{}

func (r *HintLineRule) Name() string { return "hint_lines" }

func (r *HintLineRule) Description() string { return "Removes lines starting with Hint:" }

func (r *HintLineRule) Apply(content string) (string, error) {
	return hintLineRe.ReplaceAllString(content, ""), nil
}

// MarkerRule replaces Question: and Options: markers with a single space.
type MarkerRule struct{}

func (r *MarkerRule) Name() string { return "question_markers" }

func (r *MarkerRule) Description() string {
	return "Replaces Question:/Options: markers, bold or plain, with a space"
}

func (r *MarkerRule) Apply(content string) (string, error) {
	content = questionMarkerRe.ReplaceAllString(content, " ")
	return optionsMarkerRe.ReplaceAllString(content, " "), nil
}

// QuoteTrimRule trims surrounding quotes and spaces.
type QuoteTrimRule struct{}

func (r *QuoteTrimRule) Name() string { return "quote_trim" }

func (r *QuoteTrimRule) Description() string { return "Trims outer quotes and whitespace" }

func (r *QuoteTrimRule) Apply(content string) (string, error) {
	return strings.Trim(strings.TrimSpace(content), "“”\"' \t"), nil
}

// WhitespaceNormalizationRule normalizes whitespace gently: the newline
// after <image> is kept, 3+ newlines become two, a blank line before an
// option marker becomes a single newline, and runs of spaces or tabs
// collapse to one space.
type WhitespaceNormalizationRule struct{}

func (r *WhitespaceNormalizationRule) Name() string { return "whitespace_normalization" }

func (r *WhitespaceNormalizationRule) Description() string {
	return "Collapses blank lines and space runs, keeping <image> line breaks"
}

const keepNewline = "\x00KEEPNEWLINE\x00"

func (r *WhitespaceNormalizationRule) Apply(content string) (string, error) {
	content = strings.ReplaceAll(content, "<image>\n", "<image>"+keepNewline)
	content = manyNewlinesRe.ReplaceAllString(content, "\n\n")
	content = collapseBeforeOptions(content)
	content = spaceRunRe.ReplaceAllString(content, " ")
	return strings.ReplaceAll(content, keepNewline, "\n"), nil
}

// collapseBeforeOptions turns "\n\n" into "\n" when an option marker such as
// "A", "b)", "3." follows.
func collapseBeforeOptions(s string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "\n\n")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		rest := s[i+2:]
		if optionMarkerRe.MatchString(rest) {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}
		s = rest
	}
}

// AsteriskRemovalRule removes every asterisk.
type AsteriskRemovalRule struct{}

func (r *AsteriskRemovalRule) Name() string { return "asterisk_removal" }

func (r *AsteriskRemovalRule) Description() string { return "Removes all * characters" }

func (r *AsteriskRemovalRule) Apply(content string) (string, error) {
	return strings.ReplaceAll(content, "*", ""), nil
}

// EncodingNormalizationRule rewrites text to Unicode NFC and drops the
// replacement and zero-width characters VLM outputs tend to carry.
// Disabled unless the cleaner is configured to normalize.
type EncodingNormalizationRule struct{}

func (r *EncodingNormalizationRule) Name() string { return "encoding_normalization" }

func (r *EncodingNormalizationRule) Description() string {
	return "Normalizes to NFC and removes U+FFFD and zero-width characters"
}

var invisibleReplacer = strings.NewReplacer("\uFFFD", "", "\u200B", "", "\u200C", "", "\u200D", "", "\uFEFF", "")

func (r *EncodingNormalizationRule) Apply(content string) (string, error) {
	return invisibleReplacer.Replace(norm.NFC.String(content)), nil
}
