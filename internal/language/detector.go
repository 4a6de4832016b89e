package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Tag is the resolved language register of a query.
type Tag string

const (
	TagEnglish  Tag = "english"
	TagHinglish Tag = "hinglish"
)

// Colloquial markers that indicate romanized Hindi. The classifier labels such
// text as Hindi or Urdu; the marker ratio separates casual Hinglish from it.
var hinglishMarkers = map[string]struct{}{
	"kya": {}, "kaise": {}, "hai": {}, "nahi": {}, "mera": {},
	"tum": {}, "ke": {}, "ki": {}, "ho": {},
	"kyunki": {}, "ka": {}, "kab": {}, "kaun": {}, "batao": {},
}

const markerRatioThreshold = 0.2

// Detect classifies free text as english or hinglish. It never fails: anything
// the classifier cannot place confidently resolves to english.
func Detect(text string) Tag {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return TagEnglish
	}

	// Romanized Hindi confuses trigram classifiers, so the marker ratio is
	// checked before trusting the statistical result.
	if markerRatio(trimmed) > markerRatioThreshold {
		return TagHinglish
	}

	info := whatlanggo.Detect(trimmed)
	if info.Lang == whatlanggo.Hin || info.Lang == whatlanggo.Urd {
		return TagHinglish
	}
	return TagEnglish
}

// Resolve honors an explicit hint, falling back to detection for "auto" or
// unknown values.
func Resolve(hint, text string) Tag {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case string(TagEnglish):
		return TagEnglish
	case string(TagHinglish):
		return TagHinglish
	default:
		return Detect(text)
	}
}

func markerRatio(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	matches := 0
	for _, w := range words {
		if _, ok := hinglishMarkers[strings.Trim(w, ".,!?")]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(words))
}
