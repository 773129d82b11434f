// Package tokens provides tiktoken-based token counting utilities.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Counter provides approximate token counting for prompt budgeting and
// usage estimation. All supported chat models are approximated with the
// GPT-4 encoding.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter creates a token counter for the specified model.
func NewCounter(model string) (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("create tokenizer codec for model %s: %w", model, err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in the given text.
func (c *Counter) Count(text string) int {
	if c.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token).
		return len(text) / 4
	}

	count, err := c.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// CountSimple counts tokens without requiring a Counter instance.
func CountSimple(text string) int {
	counter, err := NewCounter("gpt-4")
	if err != nil {
		return len(text) / 4
	}
	return counter.Count(text)
}
