package chunk

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer abstracts the BPE encoder so the chunker can be driven by the
// embedding model's real tokenizer in production and a cheap one in tests.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenTokenizer struct {
	tke *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads a named tiktoken encoding (cl100k_base matches
// the OpenAI embedding models in use).
func NewTiktokenTokenizer(encoding string) (Tokenizer, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &tiktokenTokenizer{tke: tke}, nil
}

func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.tke.Encode(text, nil, nil)
}

func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return t.tke.Decode(tokens)
}
