package textsplit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunk_Empty(t *testing.T) {
	require.Nil(t, Chunk("", 300))
	require.Nil(t, Chunk("   \n ", 300))
}

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	chunks := Chunk("Plants convert sunlight into energy.", 300)
	require.Len(t, chunks, 1)
	require.Equal(t, "Plants convert sunlight into energy.", chunks[0])
}

func TestChunk_RespectsSoftMax(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("Photosynthesis happens inside the chloroplasts of plant cells. ")
	}

	chunks := Chunk(b.String(), 300)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), 300)
	}
}

func TestChunk_OversizedSentenceKeptWhole(t *testing.T) {
	long := strings.Repeat("water ", 60) + "flows."
	chunks := Chunk("Short one. "+long, 100)

	require.GreaterOrEqual(t, len(chunks), 2)
	found := false
	for _, c := range chunks {
		if len(c) > 100 {
			// Only the single over-length sentence may exceed the max.
			require.Contains(t, c, "flows.")
			found = true
		}
	}
	require.True(t, found)
}

func TestChunk_ConcatenationPreservesSentenceSequence(t *testing.T) {
	text := "The sun rises in the east. Water boils at one hundred degrees. " +
		"Sound travels slower than light. Plants need carbon dioxide. " +
		"The moon orbits the earth. Rivers flow toward the sea."

	chunks := Chunk(text, 80)
	rejoined := normalize(strings.Join(chunks, " "))
	require.Equal(t, normalize(text), rejoined)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
