package experiments

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify folds value to ASCII, drops punctuation, and joins words with
// hyphens: "A new experiment!" becomes "a-new-experiment".
func Slugify(value string) string {
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, value)
	if err != nil {
		folded = value
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r > unicode.MaxASCII:
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			pendingHyphen = true
		}
	}
	return b.String()
}
