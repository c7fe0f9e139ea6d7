// Package tokenizer maps text to model token ids and back.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// FallbackEncoding is used for models tiktoken does not know.
const FallbackEncoding = "cl100k_base"

// Tokenizer encodes and decodes text for one model family.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

var loaderOnce sync.Once

// useOfflineLoader makes tiktoken read BPE ranks embedded in the binary
// instead of downloading them.
func useOfflineLoader() {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
}

// Tiktoken is a Tokenizer backed by tiktoken-go.
type Tiktoken struct {
	enc  *tiktoken.Tiktoken
	name string
}

// ForModel returns the tokenizer for model, falling back to cl100k_base.
func ForModel(model string) (*Tiktoken, error) {
	useOfflineLoader()
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return &Tiktoken{enc: enc, name: model}, nil
	}
	return ForEncoding(FallbackEncoding)
}

// ForEncoding returns the tokenizer for a named encoding such as "p50k_base".
func ForEncoding(name string) (*Tiktoken, error) {
	useOfflineLoader()
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", name, err)
	}
	return &Tiktoken{enc: enc, name: name}, nil
}

// Name reports the model or encoding the tokenizer was loaded for.
func (t *Tiktoken) Name() string { return t.name }

// Encode returns the token ids of text. Special tokens are encoded as text.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode returns the text for tokens.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
