package hangul

import (
	"fmt"
	"sync"
)

const (
	filenameSeparator = "_"
	audioExtension    = ".mp3"
)

// Syllable is one enumerated syllable block with its derived output filename.
type Syllable struct {
	Character rune
	Components
	Filename string
	Index    int
}

// String returns the syllable as text.
func (s Syllable) String() string {
	return string(s.Character)
}

var (
	enumerateOnce sync.Once
	allSyllables  []Syllable
	byComponents  map[Components]int
)

// Filename derives the audio file name for a set of components.
func Filename(c Components) string {
	return c.Initial + filenameSeparator + c.Medial + filenameSeparator + c.Final + audioExtension
}

// All returns every syllable in initial→medial→final order. The slice is shared; do not modify it.
func All() []Syllable {
	enumerateOnce.Do(enumerate)

	return allSyllables
}

// Slice returns the contiguous window [start, start+size) clamped to the enumeration.
func Slice(start, size int) []Syllable {
	all := All()
	if start < 0 || size <= 0 || start >= len(all) {
		return nil
	}

	size = min(size, len(all)-start)

	return all[start : start+size]
}

// Lookup finds the syllable for the given components. The final may be NoFinal.
func Lookup(c Components) (Syllable, bool) {
	enumerateOnce.Do(enumerate)

	idx, ok := byComponents[c]
	if !ok {
		return Syllable{}, false
	}

	return allSyllables[idx], true
}

func enumerate() {
	allSyllables = make([]Syllable, 0, Total)
	byComponents = make(map[Components]int, Total)

	for i := range initialCount {
		for j := range medialCount {
			for k := range finalCount {
				character := composeIndex(i, j, k)

				// Names come from decomposing the generated code point so the
				// filename always agrees with what is sent to synthesis.
				components, err := Decompose(character)
				if err != nil {
					panic(fmt.Sprintf("hangul: enumerated invalid code point %U: %v", character, err))
				}

				byComponents[components] = len(allSyllables)
				allSyllables = append(allSyllables, Syllable{
					Character:  character,
					Components: components,
					Filename:   Filename(components),
					Index:      len(allSyllables),
				})
			}
		}
	}
}
