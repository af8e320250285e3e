package locale

// Pick returns the text matching the language, defaulting to English.
func Pick(language, english, french string) string {
	if NormalizeLanguage(language) == LanguageFrench {
		if french != "" {
			return french
		}
		return english
	}
	if english != "" {
		return english
	}
	return french
}
