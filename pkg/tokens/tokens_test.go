package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterCount(t *testing.T) {
	counter, err := NewCounter("gpt-4")
	require.NoError(t, err)

	assert.Equal(t, 0, counter.Count(""))
	assert.Positive(t, counter.Count("hello world"))

	// More text means more tokens.
	short := counter.Count("one sentence")
	long := counter.Count(strings.Repeat("one sentence. ", 50))
	assert.Greater(t, long, short)
}

func TestCountSimple(t *testing.T) {
	assert.Positive(t, CountSimple("the quick brown fox"))
}

func TestNilCodecFallback(t *testing.T) {
	c := &Counter{}
	assert.Equal(t, len("abcdefgh")/4, c.Count("abcdefgh"))
}
