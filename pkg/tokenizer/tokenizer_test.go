package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKnownIDs(t *testing.T) {
	tok, err := ForEncoding("cl100k_base")
	require.NoError(t, err)
	assert.Equal(t, []int{15339, 1917}, tok.Encode("hello world"))
	assert.Equal(t, "hello world", tok.Decode([]int{15339, 1917}))
}

func TestForModelRoundTrip(t *testing.T) {
	tok, err := ForModel("gpt-3.5-turbo-instruct")
	require.NoError(t, err)

	text := "Tell me a joke about <|im_start|> markers."
	ids := tok.Encode(text)
	assert.NotEmpty(t, ids)
	assert.Equal(t, text, tok.Decode(ids))
}

func TestForModelFallsBack(t *testing.T) {
	tok, err := ForModel("some-local-model")
	require.NoError(t, err)
	assert.Equal(t, FallbackEncoding, tok.Name())
	assert.Equal(t, []int{15339, 1917}, tok.Encode("hello world"))
}

func TestForEncodingUnknown(t *testing.T) {
	_, err := ForEncoding("no_such_encoding")
	assert.Error(t, err)
}

func TestEmptyInput(t *testing.T) {
	tok, err := ForEncoding(FallbackEncoding)
	require.NoError(t, err)
	assert.Empty(t, tok.Encode(""))
	assert.Equal(t, "", tok.Decode(nil))
}
