package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// classifySampleLen is how much document text joins the filename when
// testing classification rules.
const classifySampleLen = 600

// dateSampleLen is how much document text the episode-date rules scan.
const dateSampleLen = 2000

// yearPivot splits two-digit years: <70 maps to 2000s, >=70 to 1900s.
const yearPivot = 70

// typeRule binds a document type to the patterns that identify it.
type typeRule struct {
	docType  domain.DocumentType
	patterns []*regexp.Regexp
}

// typeRules is the ordered classification rule list. The first rule with
// any matching pattern wins; order encodes specificity.
var typeRules = []typeRule{
	{domain.TypeDischargeSummary, []*regexp.Regexp{
		regexp.MustCompile(`discharge\s+summary`),
		regexp.MustCompile(`\bdischarge\b`),
	}},
	{domain.TypeBiopsychosocial, []*regexp.Regexp{
		regexp.MustCompile(`bio[\s-]?psycho[\s-]?social`),
	}},
	{domain.TypePsychEval, []*regexp.Regexp{
		regexp.MustCompile(`psychiatric\s+eval`),
		regexp.MustCompile(`psych(?:ological)?\s+eval`),
		regexp.MustCompile(`\bpsych\s*eval\b`),
	}},
	{domain.TypeIntake, []*regexp.Regexp{
		regexp.MustCompile(`intake\s+(?:assessment|form|note|packet)`),
		regexp.MustCompile(`\bintake\b`),
	}},
	{domain.TypeProgressNote, []*regexp.Regexp{
		regexp.MustCompile(`progress\s+note`),
		regexp.MustCompile(`(?:soap|session)\s+note`),
	}},
}

// datePattern matches the date formats the episode rules accept.
const datePattern = `(\d{4}-\d{2}-\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`

// dateRules is the ordered list of date-context patterns. Each captures
// one date; the first normalisable capture wins. The bare "date:" rule
// comes last so labelled service dates take precedence.
var dateRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)date\s+of\s+service[:\s]+` + datePattern),
	regexp.MustCompile(`(?i)(?:admission|admit)\s+date[:\s]+` + datePattern),
	regexp.MustCompile(`(?i)(?:visit|session|encounter)\s+date[:\s]+` + datePattern),
	regexp.MustCompile(`(?i)date\s+of\s+(?:evaluation|assessment|admission)[:\s]+` + datePattern),
	regexp.MustCompile(`(?i)\bdate[:\s]+` + datePattern),
}

// Classify determines a document's clinical type from its filename and
// leading text. The first matching rule wins; unmatched documents are
// TypeOther.
func Classify(filename, text string) domain.DocumentType {
	if len(text) > classifySampleLen {
		text = text[:classifySampleLen]
	}
	sample := strings.ToLower(filename + " " + text)

	for _, rule := range typeRules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(sample) {
				return rule.docType
			}
		}
	}
	return domain.TypeOther
}

// ExtractEpisodeDate finds the episode date in the document's leading
// text and normalises it to YYYY-MM-DD. An empty result means no date was
// found, which is not an error.
func ExtractEpisodeDate(text string) string {
	if len(text) > dateSampleLen {
		text = text[:dateSampleLen]
	}

	for _, rule := range dateRules {
		for _, match := range rule.FindAllStringSubmatch(text, -1) {
			if normalised, ok := normaliseDate(match[1]); ok {
				return normalised
			}
		}
	}
	return ""
}

// normaliseDate converts a matched date string to YYYY-MM-DD.
// US-style month/day ordering is assumed for slash and dash dates.
func normaliseDate(raw string) (string, bool) {
	// Already ISO.
	if len(raw) == 10 && raw[4] == '-' && raw[7] == '-' {
		month, _ := strconv.Atoi(raw[5:7])
		day, _ := strconv.Atoi(raw[8:10])
		if validMonthDay(month, day) {
			return raw, true
		}
		return "", false
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '/' || r == '-'
	})
	if len(parts) != 3 {
		return "", false
	}

	month, _ := strconv.Atoi(parts[0])
	day, _ := strconv.Atoi(parts[1])
	year, _ := strconv.Atoi(parts[2])

	if !validMonthDay(month, day) {
		return "", false
	}

	switch {
	case year < yearPivot:
		year += 2000
	case year < 100:
		year += 1900
	case year < 1900 || year > 2100:
		return "", false
	}

	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// validMonthDay bounds-checks a month/day pair.
func validMonthDay(month, day int) bool {
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}
