package hangul_test

import (
	"testing"

	"github.com/book-expert/hangul-tts/internal/hangul"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompose_KnownSyllables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		syllable rune
		want     hangul.Components
	}{
		{'가', hangul.Components{Initial: "ㄱ", Medial: "ㅏ", Final: hangul.NoFinal}},
		{'간', hangul.Components{Initial: "ㄱ", Medial: "ㅏ", Final: "ㄴ"}},
		{'안', hangul.Components{Initial: "ㅇ", Medial: "ㅏ", Final: "ㄴ"}},
		{'닭', hangul.Components{Initial: "ㄷ", Medial: "ㅏ", Final: "ㄹㄱ"}},
		{'힣', hangul.Components{Initial: "ㅎ", Medial: "ㅣ", Final: "ㅎ"}},
	}

	for _, testCase := range tests {
		t.Run(string(testCase.syllable), func(t *testing.T) {
			t.Parallel()

			got, err := hangul.Decompose(testCase.syllable)
			require.NoError(t, err)
			assert.Equal(t, testCase.want, got)
		})
	}
}

func TestDecompose_OutsideBlock(t *testing.T) {
	t.Parallel()

	for _, r := range []rune{'A', 'ㄱ', 0xABFF, 0xD7A4} {
		_, err := hangul.Decompose(r)
		require.ErrorIs(t, err, hangul.ErrNotHangulSyllable)
	}
}

func TestCompose_UnknownJamo(t *testing.T) {
	t.Parallel()

	_, err := hangul.Compose("x", "ㅏ", hangul.NoFinal)
	require.ErrorIs(t, err, hangul.ErrUnknownJamo)

	_, err = hangul.Compose("ㄱ", "ㄱ", hangul.NoFinal)
	require.ErrorIs(t, err, hangul.ErrUnknownJamo)

	_, err = hangul.Compose("ㄱ", "ㅏ", "ㅃ")
	require.ErrorIs(t, err, hangul.ErrUnknownJamo)
}

func TestCompose_EmptyFinalMatchesNone(t *testing.T) {
	t.Parallel()

	withNone, err := hangul.Compose("ㄱ", "ㅏ", hangul.NoFinal)
	require.NoError(t, err)

	withEmpty, err := hangul.Compose("ㄱ", "ㅏ", "")
	require.NoError(t, err)

	assert.Equal(t, '가', withNone)
	assert.Equal(t, withNone, withEmpty)
}

func TestRoundTrip_WholeBlock(t *testing.T) {
	t.Parallel()

	for code := rune(0xAC00); code < 0xAC00+hangul.Total; code++ {
		components, err := hangul.Decompose(code)
		require.NoError(t, err)

		back, err := hangul.Compose(components.Initial, components.Medial, components.Final)
		require.NoError(t, err)
		require.Equal(t, code, back, "round trip for %U", code)
	}
}
