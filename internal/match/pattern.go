package match

import (
	"strings"
	"sync"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
	"golang.org/x/text/unicode/norm"
)

// Atom kinds, selected by the fzf-style syntax of each search term.
type kind int

const (
	kindFuzzy  kind = iota // foo
	kindExact              // 'foo
	kindPrefix             // ^foo
	kindSuffix             // foo$
	kindEqual              // ^foo$
)

var schemeOnce sync.Once

// usePathScheme switches the fzf scorer to its path scheme, where "/" is a
// delimiter earning a boundary bonus. The scheme is process-wide.
func usePathScheme() {
	schemeOnce.Do(func() {
		algo.Init("path")
	})
}

type atom struct {
	kind          kind
	needle        []rune
	caseSensitive bool
	normalize     bool
	inverse       bool
}

func (a atom) matchFunc() algo.Algo {
	switch a.kind {
	case kindExact:
		return algo.ExactMatchNaive
	case kindPrefix:
		return algo.PrefixMatch
	case kindSuffix:
		return algo.SuffixMatch
	case kindEqual:
		return algo.EqualMatch
	}
	return algo.FuzzyMatchV2
}

// Pattern is a compiled search pattern: a conjunction of atoms.
type Pattern struct {
	atoms []atom
}

// Compile parses pattern into whitespace-separated atoms. A backslash
// escapes a space inside an atom. Each atom is case-sensitive only when it
// contains an upper-case rune, and diacritics in candidates are folded
// unless the atom contains some itself.
func Compile(pattern string) *Pattern {
	usePathScheme()

	p := &Pattern{}
	for _, term := range splitTerms(norm.NFC.String(pattern)) {
		if a, ok := parseAtom(term); ok {
			p.atoms = append(p.atoms, a)
		}
	}
	return p
}

// Empty reports whether the pattern has no atoms and therefore matches
// everything without scoring.
func (p *Pattern) Empty() bool {
	return len(p.atoms) == 0
}

func splitTerms(s string) []string {
	var (
		terms []string
		cur   strings.Builder
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes) && runes[i+1] == ' ':
			cur.WriteRune(' ')
			i++
		case unicode.IsSpace(r):
			if cur.Len() > 0 {
				terms = append(terms, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		terms = append(terms, cur.String())
	}
	return terms
}

func parseAtom(term string) (atom, bool) {
	a := atom{kind: kindFuzzy}

	if rest, ok := strings.CutPrefix(term, "!"); ok {
		a.inverse = true
		a.kind = kindExact
		term = rest
	}

	switch {
	case strings.HasPrefix(term, `\`) && len(term) > 1 && strings.ContainsRune("!^'", rune(term[1])):
		term = term[1:]
	case strings.HasPrefix(term, "^"):
		a.kind = kindPrefix
		term = term[1:]
	case strings.HasPrefix(term, "'"):
		a.kind = kindExact
		term = term[1:]
	}

	switch {
	case strings.HasSuffix(term, `\$`):
		term = strings.TrimSuffix(term, `\$`) + "$"
	case strings.HasSuffix(term, "$") && len(term) > 1:
		if a.kind == kindPrefix {
			a.kind = kindEqual
		} else {
			a.kind = kindSuffix
		}
		term = strings.TrimSuffix(term, "$")
	}

	if term == "" {
		return atom{}, false
	}

	needle := []rune(term)
	a.caseSensitive = hasUpper(needle)
	if !a.caseSensitive {
		for i, r := range needle {
			needle[i] = unicode.ToLower(r)
		}
	}
	a.normalize = string(algo.NormalizeRunes(needle)) == string(needle)
	a.needle = needle
	return a, true
}

func hasUpper(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// Scorer scores candidates against one Pattern. It owns scratch memory and
// must not be shared between goroutines; creating one is cheap.
type Scorer struct {
	pattern *Pattern
	slab    *util.Slab
}

// NewScorer returns a Scorer for p.
func (p *Pattern) NewScorer() *Scorer {
	return &Scorer{pattern: p, slab: util.MakeSlab(slab16Size, slab32Size)}
}

const (
	slab16Size = 100 * 1024
	slab32Size = 2048
)

// Score returns the total score of text over all atoms, or false when any
// atom rejects it. Inverse atoms never add to the score.
func (s *Scorer) Score(text string) (int, bool) {
	if !norm.NFC.IsNormalString(text) {
		text = norm.NFC.String(text)
	}
	chars := util.ToChars([]byte(text))

	total := 0
	for _, a := range s.pattern.atoms {
		res, _ := a.matchFunc()(a.caseSensitive, a.normalize, true, &chars, a.needle, false, s.slab)
		matched := res.Start >= 0
		if a.inverse {
			if matched {
				return 0, false
			}
			continue
		}
		if !matched {
			return 0, false
		}
		total += res.Score
	}
	return total, true
}
