package ocr

import "strings"

// DiacriticThreshold is how many language-specific characters must occur
// before we declare that language the dominant one.
const DiacriticThreshold = 5

// characters that identify a language with reasonable precision.
// å is shared between Norwegian and Swedish and deliberately excluded.
var languageDiacritics = map[string]string{
	"nor": "æøÆØ",
	"swe": "äöÄÖ",
	"deu": "üßÜ",
}

// DetectLanguage guesses the dominant language of OCR output by counting
// language-specific diacritics. Falls back to the primary configured language
// when no language clears the threshold.
func DetectLanguage(text, primary string) string {
	best := primary
	bestCount := DiacriticThreshold // must be exceeded, not met
	for lang, chars := range languageDiacritics {
		count := 0
		for _, r := range text {
			if strings.ContainsRune(chars, r) {
				count++
			}
		}
		if count > bestCount {
			best = lang
			bestCount = count
		}
	}
	return best
}
