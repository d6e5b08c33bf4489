// Package permute expands a word into every variant obtained by replacing
// its digit characters with symbols from a digit alphabet.
//
// The flow for a single word is DigitPositions → EffectivePositions →
// BuildTemplate → Template.Expand.
package permute

// isDigit reports whether b is an ASCII decimal digit.
func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// DigitPositions returns the byte offsets of every ASCII digit in word,
// in ascending order. The result is nil when the word has no digits.
//
// ASCII digits are single bytes in UTF-8 and never occur inside a
// multi-byte sequence, so slicing the word at these offsets is safe.
func DigitPositions(word string) []int {
	var positions []int
	for i := 0; i < len(word); i++ {
		if isDigit(word[i]) {
			positions = append(positions, i)
		}
	}
	return positions
}

// EffectivePositions limits positions to the last depth entries.
// depth <= 0 means all positions are kept.
func EffectivePositions(positions []int, depth int) []int {
	if depth <= 0 || depth >= len(positions) {
		return positions
	}
	return positions[len(positions)-depth:]
}
