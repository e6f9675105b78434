package trackchanges

import (
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Compute diffs candidate against baseline at word granularity. The result is
// a minimal edit script, so identical inputs always produce identical chunks.
func Compute(baseline, candidate string) ([]Chunk, error) {
	if baseline == "" {
		return nil, ErrEmptyBaseline
	}
	if baseline == candidate {
		return []Chunk{{ID: 0, Op: OpEqual, Text: baseline}}, nil
	}

	enc := newTokenEncoder()
	src := enc.encode(tokenize(baseline))
	dst := enc.encode(tokenize(candidate))

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(src, dst, false)

	chunks := make([]Chunk, 0, len(diffs))
	for _, d := range diffs {
		text := enc.decode(d.Text)
		if text == "" {
			continue
		}
		op := opFor(d.Type)
		if n := len(chunks); n > 0 && chunks[n-1].Op == op {
			chunks[n-1].Text += text
			continue
		}
		chunks = append(chunks, Chunk{ID: len(chunks), Op: op, Text: text})
	}
	return chunks, nil
}

func opFor(kind diffmatchpatch.Operation) Op {
	switch kind {
	case diffmatchpatch.DiffInsert:
		return OpInsert
	case diffmatchpatch.DiffDelete:
		return OpDelete
	default:
		return OpEqual
	}
}

type tokenClass int

const (
	classWord tokenClass = iota
	classSpace
	classOther
)

func classify(r rune) tokenClass {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
		return classWord
	case unicode.IsSpace(r):
		return classSpace
	default:
		return classOther
	}
}

// tokenize splits text into word runs, whitespace runs and single punctuation
// runes. Concatenating the tokens yields text.
func tokenize(text string) []string {
	var tokens []string
	start := 0
	prev := tokenClass(-1)
	for i, r := range text {
		class := classify(r)
		if i > start && (class != prev || class == classOther) {
			tokens = append(tokens, text[start:i])
			start = i
		}
		prev = class
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

// tokenEncoder assigns every distinct token a rune so the rune differ can
// operate on whole tokens.
type tokenEncoder struct {
	index  map[string]rune
	tokens []string
}

func newTokenEncoder() *tokenEncoder {
	return &tokenEncoder{index: make(map[string]rune)}
}

func (e *tokenEncoder) encode(tokens []string) []rune {
	out := make([]rune, len(tokens))
	for i, token := range tokens {
		r, ok := e.index[token]
		if !ok {
			r = runeForIndex(len(e.tokens))
			e.index[token] = r
			e.tokens = append(e.tokens, token)
		}
		out[i] = r
	}
	return out
}

func (e *tokenEncoder) decode(text string) string {
	var out strings.Builder
	for _, r := range text {
		idx := indexForRune(r)
		if idx < 0 || idx >= len(e.tokens) {
			continue
		}
		out.WriteString(e.tokens[idx])
	}
	return out.String()
}

const (
	surrogateMin = 0xD800
	surrogateGap = 0x800
)

// runeForIndex skips the surrogate block so every encoded rune survives a
// round trip through a Go string.
func runeForIndex(i int) rune {
	r := rune(i + 1)
	if r >= surrogateMin {
		r += surrogateGap
	}
	return r
}

func indexForRune(r rune) int {
	if r >= surrogateMin+surrogateGap {
		r -= surrogateGap
	}
	return int(r) - 1
}
