package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mentorium/backend/internal/platform/envutil"
	"github.com/mentorium/backend/internal/platform/logger"
)

// RetrievalService turns a question into the context block the prompt builder
// feeds the model. An empty string is a valid outcome: it means nothing in
// scope was relevant enough, not that retrieval failed.
type RetrievalService interface {
	BuildContext(ctx context.Context, question string, filter ScopeFilter) (string, error)
}

type retrievalService struct {
	log      *logger.Logger
	indexer  IndexerService
	topK     int
	minScore float64
}

func NewRetrievalService(log *logger.Logger, indexer IndexerService) (RetrievalService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if indexer == nil {
		return nil, fmt.Errorf("indexer required")
	}
	return &retrievalService{
		log:      log.With("service", "RetrievalService"),
		indexer:  indexer,
		topK:     envutil.Int("RETRIEVAL_TOP_K", 6),
		minScore: envutil.Float("RETRIEVAL_MIN_SCORE", 0.5),
	}, nil
}

func (s *retrievalService) BuildContext(ctx context.Context, question string, filter ScopeFilter) (string, error) {
	matches, err := s.indexer.Search(ctx, question, s.topK, filter)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	kept := 0
	for _, m := range matches {
		if m.Score < s.minScore {
			continue
		}
		text, _ := m.Metadata["text"].(string)
		text = collapseWhitespace(text)
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
		kept++
	}

	s.log.Debug("Retrieval context built", "matches", len(matches), "kept", kept)
	return b.String(), nil
}

// collapseWhitespace flattens runs of whitespace, newlines included, into
// single spaces so each context entry occupies exactly one line.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
