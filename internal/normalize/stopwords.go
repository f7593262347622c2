package normalize

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball/english"
)

// Stopwords decides whether a lowercased token carries no retrieval value
type Stopwords interface {
	Contains(token string) bool
}

// StopwordSet is a union of word lists and lexicon predicates
type StopwordSet struct {
	words    map[string]struct{}
	lexicons []func(string) bool
}

func NewStopwordSet(words ...string) *StopwordSet {
	s := &StopwordSet{words: make(map[string]struct{}, len(words))}
	s.Add(words...)
	return s
}

// Add inserts words, lowercased and trimmed
func (s *StopwordSet) Add(words ...string) {
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			s.words[w] = struct{}{}
		}
	}
}

// AddLexicon unions a predicate-backed word list into the set
func (s *StopwordSet) AddLexicon(contains func(string) bool) {
	s.lexicons = append(s.lexicons, contains)
}

func (s *StopwordSet) Contains(token string) bool {
	if _, ok := s.words[token]; ok {
		return true
	}
	for _, contains := range s.lexicons {
		if contains(token) {
			return true
		}
	}
	return false
}

// Len counts the explicit words only; lexicon predicates are not enumerable.
func (s *StopwordSet) Len() int {
	return len(s.words)
}

// NewStopwords builds the union of the named lexicons plus extra words.
// Known lexicons are "id"/"indonesian" and "en"/"english".
func NewStopwords(languages []string, extra []string) (*StopwordSet, error) {
	set := NewStopwordSet(extra...)
	for _, lang := range languages {
		switch strings.ToLower(strings.TrimSpace(lang)) {
		case "id", "indonesian":
			set.Add(indonesianStopwords...)
		case "en", "english":
			set.AddLexicon(english.IsStopWord)
		case "":
		default:
			return nil, fmt.Errorf("unknown stopword lexicon %q", lang)
		}
	}
	return set, nil
}

var indonesianStopwords = []string{
	"ada", "adalah", "agak", "agar", "akan", "amat", "anda", "antara", "anu",
	"apakah", "apalagi", "atau", "bagaimanapun", "bagi", "bahwa", "begitu",
	"belum", "bisa", "boleh", "dahulu", "dalam", "dan", "dapat", "dari",
	"daripada", "demi", "demikian", "dengan", "di", "dia", "dimana", "dll",
	"dsb", "dst", "dua", "dulunya", "guna", "hal", "hanya", "harus", "ia",
	"ingin", "ini", "itu", "itulah", "jika", "juga", "kah", "kami", "karena",
	"ke", "kecuali", "kembali", "kemana", "kenapa", "kepada", "ketika", "kita",
	"lagi", "lain", "maka", "mari", "masih", "melainkan", "mengapa", "menurut",
	"mereka", "namun", "nanti", "nggak", "oh", "ok", "oleh", "pada", "para",
	"pasti", "pula", "pun", "saat", "saja", "sambil", "sampai", "saya",
	"sebab", "sebagai", "sebelum", "sebetulnya", "secara", "sedangkan",
	"seharusnya", "sehingga", "sekitar", "selagi", "selain", "sementara",
	"seolah", "seperti", "seraya", "serta", "sesuatu", "sesudah", "setelah",
	"seterusnya", "setiap", "setidaknya", "sudah", "supaya", "tanpa", "tapi",
	"telah", "tentang", "tentu", "terhadap", "tetapi", "tidak", "toh",
	"tolong", "untuk", "walau", "ya", "yaitu", "yakni", "yang",
}
