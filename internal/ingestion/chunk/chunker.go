package chunk

import (
	"fmt"

	"github.com/mentorium/backend/internal/ingestion/extract"
)

// Profile bounds chunks for one document family. Narrative formats use small
// overlapping chunks; spreadsheet exports get wide non-overlapping ones so a
// sheet row never straddles a boundary more than necessary.
type Profile struct {
	MaxTokens int
	Overlap   int
}

func ProfileFor(docType extract.DocumentType, narrative, spreadsheet Profile) Profile {
	if docType == extract.TypeSpreadsheet {
		return spreadsheet
	}
	return narrative
}

// Chunk is one bounded fragment of a source unit.
type Chunk struct {
	Text string
	Unit int
}

type Chunker struct {
	tok Tokenizer
}

func NewChunker(tok Tokenizer) (*Chunker, error) {
	if tok == nil {
		return nil, fmt.Errorf("tokenizer required")
	}
	return &Chunker{tok: tok}, nil
}

// Split windows each unit's token stream into chunks of at most
// profile.MaxTokens, with profile.Overlap tokens shared between consecutive
// chunks of the same unit. Pure: same input and profile, same output.
// Output order follows source order; empty units produce no chunks.
func (c *Chunker) Split(units []extract.Unit, profile Profile) ([]Chunk, error) {
	if profile.MaxTokens <= 0 {
		return nil, fmt.Errorf("chunk profile max tokens must be positive, got %d", profile.MaxTokens)
	}
	overlap := profile.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= profile.MaxTokens {
		overlap = profile.MaxTokens / 2
	}
	step := profile.MaxTokens - overlap

	out := make([]Chunk, 0, len(units))
	for _, u := range units {
		tokens := c.tok.Encode(u.Text)
		if len(tokens) == 0 {
			continue
		}
		for start := 0; start < len(tokens); start += step {
			end := start + profile.MaxTokens
			if end > len(tokens) {
				end = len(tokens)
			}
			out = append(out, Chunk{Text: c.tok.Decode(tokens[start:end]), Unit: u.Index})
			if end == len(tokens) {
				break
			}
		}
	}
	return out, nil
}
