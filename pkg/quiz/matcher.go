package quiz

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// MatcherOption configures an [AnswerMatcher].
type MatcherOption func(*AnswerMatcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score accepted for an
// alias that also shares a Double Metaphone code with the typed answer.
func WithPhoneticThreshold(threshold float64) MatcherOption {
	return func(m *AnswerMatcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score accepted when there
// is no phonetic overlap.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *AnswerMatcher) {
		m.fuzzyThreshold = threshold
	}
}

// AnswerMatcher resolves a typed answer to one of a question's options. An
// option matches when the answer equals it, or when the answer is close to
// one of the option's aliases (English name, symbol) by Double Metaphone
// code overlap and Jaro-Winkler similarity. It is read-only after
// construction and safe for concurrent use.
type AnswerMatcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewAnswerMatcher returns a matcher with thresholds 0.70 (phonetic) and
// 0.85 (fuzzy) unless overridden.
func NewAnswerMatcher(opts ...MatcherOption) *AnswerMatcher {
	m := &AnswerMatcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Resolve returns the option answer refers to. aliases maps an option to
// alternative spellings. When nothing matches, ok is false and option is the
// trimmed answer.
func (m *AnswerMatcher) Resolve(answer string, options []string, aliases map[string][]string) (option string, score float64, ok bool) {
	answer = strings.TrimSpace(answer)
	if answer == "" || len(options) == 0 {
		return answer, 0, false
	}
	for _, o := range options {
		if o == answer {
			return o, 1, true
		}
	}

	lower := strings.ToLower(answer)
	for _, o := range options {
		for _, a := range aliases[o] {
			if strings.EqualFold(a, answer) {
				return o, 1, true
			}
		}
	}

	inputCodes := metaphoneCodes(lower)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, o := range options {
		for _, a := range aliases[o] {
			al := strings.ToLower(strings.TrimSpace(a))
			// Symbols are one or two letters; only exact matches count.
			if len(al) < 3 {
				continue
			}
			s := matchr.JaroWinkler(lower, al, false)
			if overlaps(inputCodes, metaphoneCodes(al)) {
				if s >= m.phoneticThreshold && (!bestPhonetic || s > bestScore) {
					best, bestScore, bestPhonetic = o, s, true
				}
			} else if !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore {
				best, bestScore = o, s
			}
		}
	}
	if best != "" {
		return best, bestScore, true
	}
	return answer, 0, false
}

func metaphoneCodes(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
