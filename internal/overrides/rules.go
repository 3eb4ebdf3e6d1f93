// Package overrides intercepts product questions with canned answers
// before any retrieval or generation happens, keeping product copy out of
// the retrieval core.
package overrides

import (
	"strings"

	"github.com/koretax/taxchat/internal/retrieval"
)

// Rule pairs a trigger predicate with fixed localized responses. Rules are
// evaluated in order; the first match wins.
type Rule struct {
	Name      string
	Keywords  []string
	Responses map[retrieval.Language]string
}

// Matches reports whether the query contains any of the rule's keywords,
// case-insensitively.
func (r Rule) Matches(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range r.Keywords {
		if strings.Contains(q, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Respond returns the rule's canned answer in the requested language.
func (r Rule) Respond(lang retrieval.Language) string {
	if m, ok := r.Responses[lang]; ok {
		return m
	}
	return r.Responses[retrieval.LangKorean]
}

// Engine evaluates an ordered rule list.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the given rules, evaluated in order.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Apply returns the canned response for the first matching rule, if any.
func (e *Engine) Apply(query string, lang retrieval.Language) (string, bool) {
	for _, r := range e.rules {
		if r.Matches(query) {
			return r.Respond(lang), true
		}
	}
	return "", false
}

// DefaultRules cover the product questions that should never reach the
// generation model.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "mobile-app",
			Keywords: []string{"mobile app", "모바일 앱", "어플", "앱 있", "앱으로", "app store", "play store"},
			Responses: map[retrieval.Language]string{
				retrieval.LangKorean:  "현재는 웹 서비스로만 제공되며, 모바일 앱은 준비 중입니다. 모바일 브라우저에서도 동일하게 이용하실 수 있습니다.",
				retrieval.LangEnglish: "We are currently a web-only service; a mobile app is in the works. The site works the same in a mobile browser.",
			},
		},
		{
			Name:     "irs-filing",
			Keywords: []string{"e-file", "efile", "submit to the irs", "file with the irs", "irs에 제출", "전자신고", "신고서 제출"},
			Responses: map[retrieval.Language]string{
				retrieval.LangKorean:  "이 서비스는 세금 신고 시뮬레이션 도구로, IRS에 실제로 신고서를 제출하지 않습니다. 생성된 Form 1040은 참고용이며, 실제 신고는 IRS 공인 소프트웨어나 세무 전문가를 통해 진행해 주세요.",
				retrieval.LangEnglish: "This service is a tax-filing simulation; it does not submit anything to the IRS. The generated Form 1040 is for reference only; please file through IRS-authorized software or a tax professional.",
			},
		},
	}
}
