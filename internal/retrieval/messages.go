package retrieval

// Language selects the answer language. Anything other than Korean
// normalizes to English.
type Language string

const (
	LangKorean  Language = "ko"
	LangEnglish Language = "en"
)

// NormalizeLanguage maps arbitrary user input to a supported language,
// defaulting to Korean (the product's primary audience).
func NormalizeLanguage(s string) Language {
	switch s {
	case "en", "en-US", "english", "English":
		return LangEnglish
	case "":
		return LangKorean
	default:
		return LangKorean
	}
}

// Fixed user-facing fallbacks. The retrieval path never surfaces a raw
// error to the end user.
var noInfoMessages = map[Language]string{
	LangKorean:  "죄송합니다. 질문과 관련된 세무 정보를 찾지 못했습니다. 질문을 조금 더 구체적으로 해 주시겠어요?",
	LangEnglish: "Sorry, I could not find any tax information related to your question. Could you try rephrasing it?",
}

var apologyMessages = map[Language]string{
	LangKorean:  "죄송합니다. 일시적인 오류로 답변을 생성하지 못했습니다. 잠시 후 다시 시도해 주세요.",
	LangEnglish: "Sorry, a temporary error prevented me from generating an answer. Please try again shortly.",
}

// NoInfoMessage is returned when retrieval finds nothing relevant.
func NoInfoMessage(lang Language) string {
	if m, ok := noInfoMessages[lang]; ok {
		return m
	}
	return noInfoMessages[LangKorean]
}

// ApologyMessage is returned when the generation service fails.
func ApologyMessage(lang Language) string {
	if m, ok := apologyMessages[lang]; ok {
		return m
	}
	return apologyMessages[LangKorean]
}
