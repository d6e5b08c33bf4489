package permute

import (
	"errors"
	"fmt"
	"iter"
	"math/bits"
	"strings"
	"unicode/utf8"
)

// DefaultAlphabet is the ten decimal digits in ascending order.
const DefaultAlphabet = "0123456789"

// ErrEmptyAlphabet is returned when an alphabet has no symbols.
var ErrEmptyAlphabet = errors.New("digit alphabet is empty")

// Alphabet is an ordered list of single-rune symbols used to fill
// placeholders. Repeated symbols are kept as given.
type Alphabet []string

// ParseAlphabet splits s into one symbol per rune.
func ParseAlphabet(s string) (Alphabet, error) {
	if s == "" {
		return nil, ErrEmptyAlphabet
	}
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("digit alphabet %q is not valid UTF-8", s)
	}
	a := make(Alphabet, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		a = append(a, string(r))
	}
	return a, nil
}

// String joins the symbols back together.
func (a Alphabet) String() string {
	return strings.Join(a, "")
}

// Count returns the number of variants Expand yields for a, i.e. D^k, or 1
// when the template has no placeholders. ok is false if the count does not
// fit in a uint64.
func (t Template) Count(a Alphabet) (n uint64, ok bool) {
	n = 1
	d := uint64(len(a))
	for i := 0; i < t.Placeholders(); i++ {
		hi, lo := bits.Mul64(n, d)
		if hi != 0 {
			return 0, false
		}
		n = lo
	}
	return n, true
}

// Expand returns every variant of the template in odometer order: the
// rightmost placeholder advances fastest through the alphabet. The sequence
// can be ranged over any number of times.
//
// A template with no placeholders yields the original word exactly once.
func (t Template) Expand(a Alphabet) iter.Seq[string] {
	return func(yield func(string) bool) {
		k := t.Placeholders()
		if k == 0 {
			yield(t.Segments[0])
			return
		}
		if len(a) == 0 {
			return
		}

		widest := 0
		for _, sym := range a {
			widest = max(widest, len(sym))
		}
		size := widest * k
		for _, seg := range t.Segments {
			size += len(seg)
		}

		idx := make([]int, k)
		var b strings.Builder
		for {
			b.Reset()
			b.Grow(size)
			for i, seg := range t.Segments {
				b.WriteString(seg)
				if i < k {
					b.WriteString(a[idx[i]])
				}
			}
			if !yield(b.String()) {
				return
			}

			i := k - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(a) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}
