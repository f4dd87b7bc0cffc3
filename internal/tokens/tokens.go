// Package tokens estimates token counts for audit entries.
package tokens

import (
	"log/slog"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens in a piece of text.
type Counter interface {
	Count(text string) int
}

// Estimator approximates four characters per token.
type Estimator struct{}

func (Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// TiktokenCounter counts with the cl100k_base encoding. The codec is loaded
// on first use; if loading fails every count falls back to Estimator.
type TiktokenCounter struct {
	once  sync.Once
	codec tokenizer.Codec
}

func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{}
}

func (c *TiktokenCounter) load() {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		slog.Warn("tokenizer unavailable, estimating token counts", "error", err)
		return
	}
	c.codec = codec
}

func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(c.load)
	if c.codec == nil {
		return Estimator{}.Count(text)
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return Estimator{}.Count(text)
	}
	return len(ids)
}
