package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
	"github.com/editnori/psych-intake-brief-sub001/internal/logger"
)

// Ensure EditReconciler implements the interface.
var _ driving.EditReconciler = (*EditReconciler)(nil)

// Span is a located region of the haystack.
type Span struct {
	// Start is the inclusive start offset.
	Start int

	// End is the exclusive end offset.
	End int
}

// Matcher locates a needle inside a haystack. Matchers are tried in
// ladder order; the first hit wins.
type Matcher interface {
	// Name identifies the strategy in logs.
	Name() string

	// Find returns the matched span, or ok=false when the strategy does
	// not apply or nothing matches.
	Find(haystack, needle string) (Span, bool)
}

// EditReconciler merges a proposed revision into existing prose via an
// escalating matcher ladder.
type EditReconciler struct {
	matchers []Matcher
}

// NewEditReconciler creates a reconciler with the standard ladder:
// exact substring, case-insensitive substring, whitespace-normalised
// token regex, loose head-and-tail.
func NewEditReconciler() *EditReconciler {
	return &EditReconciler{
		matchers: []Matcher{
			exactMatcher{},
			caseInsensitiveMatcher{},
			tokenRegexMatcher{},
			headTailMatcher{},
		},
	}
}

// Reconcile locates target inside current and substitutes replacement in
// place. When no matcher succeeds the miss policy resolves the outcome.
func (r *EditReconciler) Reconcile(current, target, replacement string, policy driving.MissPolicy) (string, error) {
	if strings.TrimSpace(target) == "" {
		return "", fmt.Errorf("empty target excerpt: %w", domain.ErrInvalidInput)
	}

	for _, m := range r.matchers {
		span, ok := m.Find(current, target)
		if !ok {
			continue
		}
		logger.Debug("Edit matched via %s at [%d:%d]", m.Name(), span.Start, span.End)
		return current[:span.Start] + replacement + current[span.End:], nil
	}

	logger.Debug("Edit target not found, applying %s policy", policy)
	switch policy {
	case driving.MissAppend:
		if current == "" {
			return replacement, nil
		}
		return current + "\n\n" + replacement, nil
	case driving.MissReplaceAll:
		return replacement, nil
	case driving.MissReject:
		return "", domain.ErrNoMatch
	default:
		return "", fmt.Errorf("miss policy %q: %w", policy, domain.ErrInvalidInput)
	}
}

// exactMatcher finds the needle as a literal substring.
type exactMatcher struct{}

func (exactMatcher) Name() string { return "exact" }

func (exactMatcher) Find(haystack, needle string) (Span, bool) {
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return Span{}, false
	}
	return Span{Start: idx, End: idx + len(needle)}, true
}

// caseInsensitiveMatcher finds the needle ignoring case.
type caseInsensitiveMatcher struct{}

func (caseInsensitiveMatcher) Name() string { return "case-insensitive" }

func (caseInsensitiveMatcher) Find(haystack, needle string) (Span, bool) {
	idx := strings.Index(strings.ToLower(haystack), strings.ToLower(needle))
	if idx < 0 {
		return Span{}, false
	}
	return Span{Start: idx, End: idx + len(needle)}, true
}

// tokenRegexMatcher splits the needle into tokens, escapes each, and
// matches them joined by arbitrary whitespace. Absorbs line wrapping and
// spacing differences between the model's excerpt and the stored prose.
type tokenRegexMatcher struct{}

func (tokenRegexMatcher) Name() string { return "token-regex" }

func (tokenRegexMatcher) Find(haystack, needle string) (Span, bool) {
	tokens := strings.Fields(needle)
	if len(tokens) == 0 {
		return Span{}, false
	}

	escaped := make([]string, len(tokens))
	for i, t := range tokens {
		escaped[i] = regexp.QuoteMeta(t)
	}
	pattern, err := regexp.Compile(`(?is)` + strings.Join(escaped, `\s+`))
	if err != nil {
		return Span{}, false
	}

	loc := pattern.FindStringIndex(haystack)
	if loc == nil {
		return Span{}, false
	}
	return Span{Start: loc[0], End: loc[1]}, true
}

// headTailTokens is the minimum needle length, in tokens, for the loose
// head-and-tail strategy to apply.
const headTailTokens = 6

// headTailAnchor is how many tokens anchor each end of the loose match.
const headTailAnchor = 3

// headTailMatcher anchors the first and last few tokens of the needle and
// allows a bounded gap between them. A last resort for excerpts the model
// paraphrased in the middle.
type headTailMatcher struct{}

func (headTailMatcher) Name() string { return "head-tail" }

func (headTailMatcher) Find(haystack, needle string) (Span, bool) {
	tokens := strings.Fields(needle)
	if len(tokens) < headTailTokens {
		return Span{}, false
	}

	headPattern, err := regexp.Compile(`(?is)` + escapeJoin(tokens[:headTailAnchor]))
	if err != nil {
		return Span{}, false
	}
	tailPattern, err := regexp.Compile(`(?is)` + escapeJoin(tokens[len(tokens)-headTailAnchor:]))
	if err != nil {
		return Span{}, false
	}
	gap := headTailGap(len(needle))

	// The anchors are matched separately with the gap checked
	// arithmetically, since the gap can exceed what a bounded regex
	// repeat allows.
	for _, headLoc := range headPattern.FindAllStringIndex(haystack, -1) {
		rest := haystack[headLoc[1]:]
		tailLoc := tailPattern.FindStringIndex(rest)
		if tailLoc == nil {
			break
		}
		if tailLoc[0] <= gap {
			return Span{Start: headLoc[0], End: headLoc[1] + tailLoc[1]}, true
		}
	}
	return Span{}, false
}

// headTailGap bounds the characters allowed between the head and tail
// anchors: min(4000, max(400, len+200)).
func headTailGap(needleLen int) int {
	gap := needleLen + 200
	if gap < 400 {
		gap = 400
	}
	if gap > 4000 {
		gap = 4000
	}
	return gap
}

// escapeJoin escapes tokens and joins them on a whitespace pattern.
func escapeJoin(tokens []string) string {
	escaped := make([]string, len(tokens))
	for i, t := range tokens {
		escaped[i] = regexp.QuoteMeta(t)
	}
	return strings.Join(escaped, `\s+`)
}
