package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "question", text: "What is the Weather in Boston?", want: []string{"boston", "weather"}},
		{name: "empty", text: "", want: []string{}},
		{name: "only stop words", text: "what is it, and how?", want: []string{}},
		{name: "digits split words", text: "room42b abc_def", want: []string{"abc", "b", "def", "room"}},
		{name: "non ascii letters split", text: "café naïve", want: []string{"caf", "na", "ve"}},
		{name: "kelvin sign is not a letter", text: "\u212Aelvin scale", want: []string{"elvin", "scale"}},
		{name: "duplicates collapse", text: "Refund refund REFUND", want: []string{"refund"}},
		{name: "single letters kept unless stop word", text: "x a i", want: []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text).Sorted())
		})
	}
}

func TestExtractDeterministic(t *testing.T) {
	text := "Schedule an appointment for Monday with the dentist"
	first := Extract(text)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Extract(text))
	}
}

func TestExtractAll(t *testing.T) {
	got := ExtractAll("hello world", "world peace")
	assert.Equal(t, []string{"hello", "peace", "world"}, got.Sorted())
}

func TestIntersects(t *testing.T) {
	a := FromSlice([]string{"appointment", "monday"})
	assert.True(t, a.Intersects(Extract("my appointment")))
	assert.False(t, a.Intersects(Extract("refund")))
	assert.False(t, a.Intersects(Set{}))
}

func TestChunk(t *testing.T) {
	s := FromSlice([]string{"a1", "b", "c", "d", "e", "f", "g", "h", "j", "k", "l", "m"})
	chunks := s.Chunk(10)
	assert.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 10)
	assert.Len(t, chunks[1], 2)

	assert.Empty(t, Set{}.Chunk(10))
}
