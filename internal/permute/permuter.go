package permute

import (
	"iter"
	"slices"
)

// maxPresize caps how many result slots AppendVariants reserves up front.
const maxPresize = 1 << 20

// Permuter expands words with a fixed depth and alphabet. It holds no
// mutable state and is safe for concurrent use.
type Permuter struct {
	Depth    int
	Alphabet Alphabet
}

// New returns a Permuter. depth <= 0 permutes every digit position.
func New(depth int, alphabet Alphabet) *Permuter {
	return &Permuter{Depth: depth, Alphabet: alphabet}
}

// Template builds the template for word using the configured depth.
func (p *Permuter) Template(word string) (Template, error) {
	positions := EffectivePositions(DigitPositions(word), p.Depth)
	return BuildTemplate(word, positions)
}

// Variants returns the lazy variant sequence for word.
func (p *Permuter) Variants(word string) (iter.Seq[string], error) {
	t, err := p.Template(word)
	if err != nil {
		return nil, err
	}
	return t.Expand(p.Alphabet), nil
}

// AppendVariants appends every variant of word to dst.
func (p *Permuter) AppendVariants(dst []string, word string) ([]string, error) {
	t, err := p.Template(word)
	if err != nil {
		return dst, err
	}
	if n, ok := t.Count(p.Alphabet); ok && n < maxPresize {
		dst = slices.Grow(dst, int(n))
	}
	for v := range t.Expand(p.Alphabet) {
		dst = append(dst, v)
	}
	return dst, nil
}
