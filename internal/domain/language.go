package domain

import "strings"

// Language supported by the tutor.
type Language string

const (
	// LanguageEnglish english.
	LanguageEnglish Language = "en"
	// LanguageChinese simplified chinese.
	LanguageChinese Language = "zh"
)

// String returns the string representation.
func (l Language) String() string {
	return string(l)
}

// IsValid checks if the Language value is valid.
func (l Language) IsValid() bool {
	return l == LanguageEnglish || l == LanguageChinese
}

// LookupLanguage maps a language code such as "zh-CN" to a supported Language.
func LookupLanguage(code string) (Language, bool) {
	lang := Language(strings.ToLower(strings.TrimSpace(code)))
	if idx := strings.IndexAny(string(lang), "-_"); idx > 0 {
		lang = lang[:idx]
	}
	return lang, lang.IsValid()
}

// ParseLanguage maps a language code to a Language, defaulting to english.
func ParseLanguage(code string) Language {
	lang, ok := LookupLanguage(code)
	if !ok {
		return LanguageEnglish
	}
	return lang
}
