package locale

import "strings"

const (
	LanguageEnglish = "en"
	LanguageFrench  = "fr"
)

type Preference struct {
	Language string
	Locale   string
}

// NormalizeLanguage 将任意语言标记归一到支持的语言，无法识别时返回空串
func NormalizeLanguage(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "fr") {
		return LanguageFrench
	}
	if strings.HasPrefix(trimmed, "en") {
		return LanguageEnglish
	}
	return ""
}

// LanguageFromAcceptLanguage 按 Accept-Language 中出现的先后顺序选择第一个支持的语言
func LanguageFromAcceptLanguage(header string) string {
	trimmed := strings.ToLower(strings.TrimSpace(header))
	if trimmed == "" {
		return ""
	}
	for _, part := range strings.Split(trimmed, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if normalized := NormalizeLanguage(tag); normalized != "" {
			return normalized
		}
	}
	return ""
}

func PreferenceForLanguage(language string) Preference {
	if NormalizeLanguage(language) == LanguageFrench {
		return Preference{Language: LanguageFrench, Locale: "fr_FR"}
	}
	return Preference{Language: LanguageEnglish, Locale: "en_US"}
}
