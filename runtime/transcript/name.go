package transcript

import (
	"strings"
	"unicode/utf8"
)

// NameExtractor looks for the user's name in one output transcription
// fragment. ok is false when the fragment does not state a name.
type NameExtractor interface {
	ExtractName(text string) (name string, ok bool)
}

// NameExtractorFunc adapts a function to NameExtractor.
type NameExtractorFunc func(text string) (string, bool)

// ExtractName implements NameExtractor.
func (f NameExtractorFunc) ExtractName(text string) (string, bool) { return f(text) }

// DefaultNamePhrases are the Indonesian phrases that introduce a name.
var DefaultNamePhrases = []string{"nama saya", "panggil aku"}

// minNameRunes excludes particles such as "ya" picked up as the last token.
const minNameRunes = 3

// PhraseExtractor is a best-effort heuristic: when the lowercased fragment
// contains one of Phrases, the last whitespace token with trailing
// punctuation removed is taken as the name.
type PhraseExtractor struct {
	Phrases []string
}

// NewPhraseExtractor returns an extractor for DefaultNamePhrases.
func NewPhraseExtractor() *PhraseExtractor {
	return &PhraseExtractor{Phrases: DefaultNamePhrases}
}

// ExtractName implements NameExtractor.
func (p *PhraseExtractor) ExtractName(text string) (string, bool) {
	lower := strings.ToLower(text)
	matched := false
	for _, phrase := range p.Phrases {
		if strings.Contains(lower, phrase) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	name := strings.NewReplacer(".", "", "!", "", "?", "").Replace(fields[len(fields)-1])
	if utf8.RuneCountInString(name) < minNameRunes {
		return "", false
	}
	return name, true
}
