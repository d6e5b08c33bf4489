package permute

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTemplate is returned when positions cannot be turned into a
// template for the given word.
var ErrInvalidTemplate = errors.New("invalid template")

// Template is a word split into literal segments around placeholder slots.
// Placeholder i sits between Segments[i] and Segments[i+1], so a template
// with k placeholders always has k+1 segments.
type Template struct {
	Segments []string
	// Original holds the digit each placeholder replaced.
	Original []byte
}

// Placeholders returns the number of placeholder slots.
func (t Template) Placeholders() int {
	return len(t.Original)
}

// Reconstruct re-inserts the original digits and returns the source word.
func (t Template) Reconstruct() string {
	var b strings.Builder
	for i, seg := range t.Segments {
		b.WriteString(seg)
		if i < len(t.Original) {
			b.WriteByte(t.Original[i])
		}
	}
	return b.String()
}

// BuildTemplate splits word at the given digit positions. positions must be
// strictly increasing, in range, and point at digits.
//
// An empty positions list yields a single-segment template holding the
// whole word.
func BuildTemplate(word string, positions []int) (Template, error) {
	t := Template{
		Segments: make([]string, 0, len(positions)+1),
		Original: make([]byte, 0, len(positions)),
	}

	last := 0
	for _, pos := range positions {
		if pos < last || pos >= len(word) {
			return Template{}, fmt.Errorf("%w: position %d out of order or range for %q", ErrInvalidTemplate, pos, word)
		}
		if !isDigit(word[pos]) {
			return Template{}, fmt.Errorf("%w: position %d of %q is not a digit", ErrInvalidTemplate, pos, word)
		}
		t.Segments = append(t.Segments, word[last:pos])
		t.Original = append(t.Original, word[pos])
		last = pos + 1
	}
	t.Segments = append(t.Segments, word[last:])

	return t, nil
}
