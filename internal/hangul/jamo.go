// Package hangul maps Hangul syllable blocks to and from their jamo components
// and enumerates the full syllable space in a fixed order.
package hangul

import (
	"errors"
	"fmt"
)

// Unicode Hangul syllable block layout.
const (
	syllableBase = 0xAC00
	medialCount  = 21
	finalCount   = 28
	initialCount = 19
	blockSize    = medialCount * finalCount

	// Total is the number of syllables in the block (19 × 21 × 28).
	Total = initialCount * medialCount * finalCount

	// NoFinal is the final-slot symbol used for syllables without a final consonant.
	NoFinal = "none"
)

var (
	// ErrNotHangulSyllable indicates a code point outside the Hangul syllable block.
	ErrNotHangulSyllable = errors.New("not a hangul syllable")
	// ErrUnknownJamo indicates a symbol that is not in the matching jamo table.
	ErrUnknownJamo = errors.New("unknown jamo")
)

var initials = [initialCount]string{
	"ㄱ", "ㄲ", "ㄴ", "ㄷ", "ㄸ", "ㄹ", "ㅁ", "ㅂ", "ㅃ", "ㅅ",
	"ㅆ", "ㅇ", "ㅈ", "ㅉ", "ㅊ", "ㅋ", "ㅌ", "ㅍ", "ㅎ",
}

var medials = [medialCount]string{
	"ㅏ", "ㅐ", "ㅑ", "ㅒ", "ㅓ", "ㅔ", "ㅕ", "ㅖ", "ㅗ", "ㅘ", "ㅙ",
	"ㅚ", "ㅛ", "ㅜ", "ㅝ", "ㅞ", "ㅟ", "ㅠ", "ㅡ", "ㅢ", "ㅣ",
}

// Compound finals are spelled with their two constituent jamo.
var finals = [finalCount]string{
	"", "ㄱ", "ㄲ", "ㄱㅅ", "ㄴ", "ㄴㅈ", "ㄴㅎ", "ㄷ", "ㄹ", "ㄹㄱ",
	"ㄹㅁ", "ㄹㅂ", "ㄹㅅ", "ㄹㅌ", "ㄹㅍ", "ㄹㅎ", "ㅁ", "ㅂ", "ㅂㅅ", "ㅅ",
	"ㅆ", "ㅇ", "ㅈ", "ㅊ", "ㅋ", "ㅌ", "ㅍ", "ㅎ",
}

var (
	initialIndex = indexOf(initials[:])
	medialIndex  = indexOf(medials[:])
	finalIndex   = indexOf(finals[:])
)

// Components holds the three positional jamo of one syllable.
type Components struct {
	Initial string `json:"initial"`
	Medial  string `json:"medial"`
	Final   string `json:"final"`
}

// Initials returns the initial consonant table in enumeration order.
func Initials() []string {
	out := make([]string, initialCount)
	copy(out, initials[:])

	return out
}

// Decompose splits a syllable block into its jamo. A missing final is reported as NoFinal.
func Decompose(syllable rune) (Components, error) {
	code := int(syllable) - syllableBase
	if code < 0 || code >= Total {
		return Components{}, fmt.Errorf("%w: %U", ErrNotHangulSyllable, syllable)
	}

	return componentsAt(code/blockSize, (code%blockSize)/finalCount, code%finalCount), nil
}

// Compose builds the syllable block for the given jamo. The final may be NoFinal or empty.
func Compose(initial, medial, final string) (rune, error) {
	initialIdx, ok := initialIndex[initial]
	if !ok {
		return 0, fmt.Errorf("%w: initial %q", ErrUnknownJamo, initial)
	}

	medialIdx, ok := medialIndex[medial]
	if !ok {
		return 0, fmt.Errorf("%w: medial %q", ErrUnknownJamo, medial)
	}

	if final == NoFinal {
		final = ""
	}

	finalIdx, ok := finalIndex[final]
	if !ok {
		return 0, fmt.Errorf("%w: final %q", ErrUnknownJamo, final)
	}

	return composeIndex(initialIdx, medialIdx, finalIdx), nil
}

func composeIndex(initialIdx, medialIdx, finalIdx int) rune {
	return rune(syllableBase + initialIdx*blockSize + medialIdx*finalCount + finalIdx)
}

func componentsAt(initialIdx, medialIdx, finalIdx int) Components {
	final := finals[finalIdx]
	if finalIdx == 0 {
		final = NoFinal
	}

	return Components{
		Initial: initials[initialIdx],
		Medial:  medials[medialIdx],
		Final:   final,
	}
}

func indexOf(table []string) map[string]int {
	out := make(map[string]int, len(table))
	for i, symbol := range table {
		out[symbol] = i
	}

	return out
}
