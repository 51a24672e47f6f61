// Package normalize cleans transcribed dictation before it is sent to the
// extraction backends: filler words are removed on whole-word boundaries and
// whitespace and comma runs are collapsed.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultFillers is the Spanish disfluency vocabulary used when the config
// does not provide one.
var DefaultFillers = []string{"eh", "este", "pues", "o sea", "mmm", "ajá", "em", "ah"}

// space matches Unicode whitespace. RE2's \s is ASCII only and misses \v
// and no-break spaces.
const space = `[\s\v\x{85}\p{Z}]`

var (
	spaceRun         = regexp.MustCompile(space + `+`)
	spaceBeforeComma = regexp.MustCompile(space + `+,`)
	commaRun         = regexp.MustCompile(`,+`)
)

// Normalizer removes a fixed filler vocabulary from text.
// A Normalizer is immutable and safe for concurrent use.
type Normalizer struct {
	fillers *regexp.Regexp // nil when the vocabulary is empty
}

// New compiles a Normalizer for the given filler vocabulary. Matching is
// case-insensitive. Multi-word fillers ("o sea") match across any run of
// whitespace. Blank entries are ignored.
func New(fillers []string) *Normalizer {
	alts := make([]string, 0, len(fillers))
	for _, f := range fillers {
		words := strings.Fields(f)
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, space+`+`))
	}
	if len(alts) == 0 {
		return &Normalizer{}
	}

	// Longest alternatives first so "o sea" wins over a shorter prefix.
	sort.SliceStable(alts, func(i, j int) bool {
		return utf8.RuneCountInString(alts[i]) > utf8.RuneCountInString(alts[j])
	})

	return &Normalizer{fillers: regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)}
}

var defaultNormalizer = New(DefaultFillers)

// Normalize cleans text with DefaultFillers.
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}

// Normalize removes whole-word fillers, collapses whitespace runs to a single
// space, drops whitespace before commas, collapses comma runs and trims the
// result. It never fails and Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text string) string {
	out := spaceRun.ReplaceAllString(text, " ")

	// Removing one filler can bring two words together that form another
	// ("o eh sea" -> "o sea"), so strip until nothing changes.
	for {
		next := spaceRun.ReplaceAllString(n.stripFillers(out), " ")
		if next == out {
			break
		}
		out = next
	}

	out = spaceBeforeComma.ReplaceAllString(out, ",")
	out = commaRun.ReplaceAllString(out, ",")
	return strings.TrimSpace(out)
}

// stripFillers deletes every filler match that sits on word boundaries.
// Go's \b is ASCII-only, so boundaries are checked here against Unicode
// letters, digits and marks ("ajá", "después").
func (n *Normalizer) stripFillers(s string) string {
	if n.fillers == nil {
		return s
	}

	var b strings.Builder
	last := 0
	removed := false
	for _, loc := range n.fillers.FindAllStringIndex(s, -1) {
		if !onWordBoundary(s, loc[0], loc[1]) {
			continue
		}
		b.WriteString(s[last:loc[0]])
		last = loc[1]
		removed = true
	}
	if !removed {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

func onWordBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
