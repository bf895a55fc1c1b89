package domain

import (
	"regexp"
	"strings"
)

// Intent is the classification of a user's reply during confirmation
type Intent string

const (
	IntentYes     Intent = "yes"
	IntentNo      Intent = "no"
	IntentUnknown Intent = "unknown"
)

// Positive matchers are evaluated before negative ones; the first category
// that matches wins. Prefix patterns are anchored so that ambiguous syllables
// (bare いい without a qualifying suffix) stay unknown.
var (
	positivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(はい|yes|ok|おk|おけ|お願い|登録|いいよ|いいね|それで|頼む|よろしく)`),
		regexp.MustCompile(`👍|⭕|✅|🙆`),
	}

	negativePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(いいえ|no|ダメ|だめ|やめ|キャンセル|cancel|作り直|やり直|違う|ちがう|却下)`),
		regexp.MustCompile(`👎|❌|🙅|✖`),
	}
)

// ClassifyIntent maps free text to a yes/no/unknown intent.
// Classification is case-insensitive and ignores surrounding whitespace.
func ClassifyIntent(text string) Intent {
	normalized := strings.TrimSpace(strings.ToLower(text))

	for _, pattern := range positivePatterns {
		if pattern.MatchString(normalized) {
			return IntentYes
		}
	}

	for _, pattern := range negativePatterns {
		if pattern.MatchString(normalized) {
			return IntentNo
		}
	}

	return IntentUnknown
}
