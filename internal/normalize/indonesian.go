package normalize

import "strings"

// IndonesianStemmer is an affix stripper for Indonesian backed by a small
// list of known roots.
//
// One pass strips particles (-kah, -lah, -pun) and possessive pronouns (-ku,
// -mu, -nya), then either a first-order prefix followed by a derivational
// suffix and a second-order prefix, or a second-order prefix followed by a
// derivational suffix. Passes repeat until the word stops changing, so the
// result is always a fixed point. Stripping halts at a known root and never
// leaves fewer than two syllables.
type IndonesianStemmer struct{}

func (IndonesianStemmer) Stem(word string) (string, error) {
	word = strings.ToLower(word)
	// every change shortens the word, so this terminates
	for {
		next := stemPass(word)
		if next == word {
			return word, nil
		}
		word = next
	}
}

func stemPass(word string) string {
	if syllables(word) <= 2 || isRoot(word) {
		return word
	}

	word = stripSuffixes(word, "kah", "lah", "pun")
	word = stripSuffixes(word, "nya", "ku", "mu")
	if isRoot(word) {
		return word
	}

	if stripped, alt, ok := stripFirstOrderPrefix(word); ok {
		if alt != "" {
			if w := afterFirstOrder(alt); isRoot(w) {
				return w
			}
		}
		return afterFirstOrder(stripped)
	}

	prefixed := false
	if stripped, ok := stripSecondOrderPrefix(word); ok {
		if isRoot(stripped) {
			return stripped
		}
		word, prefixed = stripped, true
	}
	if stripped, ok := stripDerivationalSuffix(word, prefixed); ok {
		word = stripped
	}
	return word
}

// afterFirstOrder finishes a word whose first-order prefix is gone
func afterFirstOrder(word string) string {
	if isRoot(word) {
		return word
	}
	stripped, ok := stripDerivationalSuffix(word, true)
	if !ok {
		return word
	}
	if isRoot(stripped) {
		return stripped
	}
	if s, ok := stripSecondOrderPrefix(stripped); ok {
		return s
	}
	return stripped
}

// stripSuffixes removes the first matching suffix when at least two
// syllables remain
func stripSuffixes(word string, suffixes ...string) string {
	for _, suffix := range suffixes {
		if !strings.HasSuffix(word, suffix) {
			continue
		}
		if rest := strings.TrimSuffix(word, suffix); syllables(rest) >= 2 {
			return rest
		}
		return word
	}
	return word
}

// stripDerivationalSuffix removes -kan, -an or -i. Unprefixed words only
// lose -an; loanwords such as "polisi" and "ekonomi" keep their final -i.
// A candidate that is a known root wins over suffix order.
func stripDerivationalSuffix(word string, prefixed bool) (string, bool) {
	if syllables(word) <= 2 {
		return word, false
	}
	suffixes := []string{"an"}
	if prefixed {
		suffixes = []string{"kan", "an", "i"}
	}

	first := ""
	for _, suffix := range suffixes {
		if !strings.HasSuffix(word, suffix) {
			continue
		}
		candidate := strings.TrimSuffix(word, suffix)
		if isRoot(candidate) {
			return candidate, true
		}
		if first == "" {
			first = candidate
		}
	}
	if first == "" {
		return word, false
	}
	return first, true
}

// stripFirstOrderPrefix removes me-, pe-, di-, ter- or ke-. Nasal
// assimilation is undone into stripped; alt carries the other reading of
// an ambiguous nasal (meng+vowel as k or vowel, meny as s or ny, mem as p
// or m, men as t or n) and is used only when it leads to a known root.
func stripFirstOrderPrefix(word string) (stripped, alt string, ok bool) {
	if syllables(word) <= 2 {
		return word, "", false
	}
	for _, nasal := range []string{"me", "pe"} {
		if !strings.HasPrefix(word, nasal) {
			continue
		}
		rest := word[len(nasal):]
		switch {
		case strings.HasPrefix(rest, "ng"):
			if startsWithVowel(rest[2:]) {
				return rest[2:], "k" + rest[2:], true
			}
			return rest[2:], "", true
		case strings.HasPrefix(rest, "ny") && startsWithVowel(rest[2:]):
			return "s" + rest[2:], rest, true
		case strings.HasPrefix(rest, "n") && startsWithVowel(rest[1:]):
			return "t" + rest[1:], rest, true
		case strings.HasPrefix(rest, "n"):
			return rest[1:], "", true
		case strings.HasPrefix(rest, "m") && startsWithVowel(rest[1:]):
			return "p" + rest[1:], rest, true
		case strings.HasPrefix(rest, "m"):
			return rest[1:], "", true
		case nasal == "me" && startsWithAny(rest, "l", "r", "w", "y"):
			return rest, "", true
		}
	}
	for _, prefix := range []string{"di", "ter", "ke"} {
		if strings.HasPrefix(word, prefix) {
			return word[len(prefix):], "", true
		}
	}
	return word, "", false
}

func stripSecondOrderPrefix(word string) (string, bool) {
	if syllables(word) <= 2 {
		return word, false
	}
	switch {
	case strings.HasPrefix(word, "ber"):
		return word[3:], true
	case strings.HasPrefix(word, "per"):
		return word[3:], true
	case strings.HasPrefix(word, "be") && len(word) > 4 && !startsWithVowel(word[2:]) && word[3:5] == "er":
		return word[2:], true
	case strings.HasPrefix(word, "pe") && startsWithAny(word[2:], "l"):
		return word[2:], true
	}
	return word, false
}

// indonesianRoots holds frequent news roots that look affixed
var indonesianRoots = map[string]struct{}{
	"berita": {}, "beras": {}, "bersih": {}, "bijak": {}, "dinas": {},
	"direktur": {}, "kata": {}, "keluarga": {}, "kemarin": {}, "kepala": {},
	"main": {}, "makan": {}, "masalah": {}, "menteri": {}, "minta": {},
	"nanti": {}, "nilai": {}, "nyata": {}, "pemilu": {}, "perang": {},
	"periksa": {}, "perintah": {}, "perlu": {}, "peroleh": {}, "persen": {},
	"pertama": {}, "polisi": {}, "sekolah": {}, "sejumlah": {}, "terus": {},
}

func isRoot(word string) bool {
	_, ok := indonesianRoots[word]
	return ok
}

// syllables approximates the syllable count by counting vowels
func syllables(word string) int {
	count := 0
	for _, r := range word {
		if isVowel(r) {
			count++
		}
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func startsWithVowel(s string) bool {
	return s != "" && isVowel(rune(s[0]))
}

func startsWithAny(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
