package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/types"
)

// AskRequest is one student question scoped to a syllabus event.
type AskRequest struct {
	UserID          string `json:"user_id"`
	SyllabusEventID int64  `json:"syllabus_event_id"`
	Question        string `json:"question"`
	StudentName     string `json:"student_name,omitempty"`
}

// TextGenerator is the slice of the OpenAI client the chat flow needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
}

// ChatService answers questions grounded on the syllabus materials: chat
// history plus retrieval context assembled into the prompt, the answer
// appended back to the history.
type ChatService interface {
	Ask(ctx context.Context, req AskRequest) (string, error)
}

type chatService struct {
	log       *logger.Logger
	ai        TextGenerator
	retrieval RetrievalService
	history   HistoryService
	catalog   CatalogService
}

func NewChatService(
	log *logger.Logger,
	ai TextGenerator,
	retrieval RetrievalService,
	history HistoryService,
	catalog CatalogService,
) (ChatService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ai == nil || retrieval == nil || history == nil || catalog == nil {
		return nil, fmt.Errorf("chat service: all dependencies required")
	}
	return &chatService{
		log:       log.With("service", "ChatService"),
		ai:        ai,
		retrieval: retrieval,
		history:   history,
		catalog:   catalog,
	}, nil
}

func (s *chatService) Ask(ctx context.Context, req AskRequest) (string, error) {
	if req.UserID == "" || strings.TrimSpace(req.Question) == "" {
		return "", apierr.Newf(http.StatusBadRequest, apierr.CodeInvalidArgument,
			"user id and question required")
	}

	turns, err := s.history.History(ctx, req.UserID, req.SyllabusEventID)
	if err != nil {
		return "", err
	}

	filter, err := s.scopeFor(ctx, req.SyllabusEventID)
	if err != nil {
		return "", err
	}

	contextBlock, err := s.retrieval.BuildContext(ctx, req.Question, filter)
	if err != nil {
		return "", err
	}

	system := buildSystemPrompt(req.StudentName, contextBlock, turns)
	answer, err := s.ai.GenerateText(ctx, system, req.Question)
	if err != nil {
		return "", err
	}

	if err := s.history.Append(ctx, req.UserID, req.SyllabusEventID, types.ChatTurn{
		UserMessage: req.Question,
		AIMessage:   answer,
		Prompt:      system,
	}); err != nil {
		return "", err
	}

	s.log.Info("Question answered",
		"user_id", req.UserID, "syllabus_event_id", req.SyllabusEventID,
		"history_turns", len(turns), "context_bytes", len(contextBlock))
	return answer, nil
}

// scopeFor prefers the catalog's resource allowlist for the syllabus; when
// the mirror has no rows yet the vector metadata's own syllabus id still
// scopes the search.
func (s *chatService) scopeFor(ctx context.Context, syllabusEventID int64) (ScopeFilter, error) {
	if syllabusEventID == 0 {
		return ScopeFilter{}, nil
	}
	ids, err := s.catalog.AllowedResources(ctx, syllabusEventID)
	if err != nil {
		return ScopeFilter{}, err
	}
	if len(ids) > 0 {
		return ScopeFilter{ResourceIDs: ids}, nil
	}
	return ScopeFilter{SyllabusEventID: syllabusEventID}, nil
}

func buildSystemPrompt(studentName, contextBlock string, turns []types.ChatTurn) string {
	var b strings.Builder
	b.WriteString("You are a course assistant. Answer using only the course material below. ")
	b.WriteString("If the material does not cover the question, say so instead of guessing.\n")

	if studentName != "" {
		fmt.Fprintf(&b, "The student's name is %s.\n", studentName)
	}

	if len(turns) == 0 {
		b.WriteString("This is the start of the conversation; greet the student briefly before answering.\n")
	} else {
		b.WriteString("The conversation is ongoing; do not greet again, answer directly.\n")
		b.WriteString("Conversation so far:\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "Student: %s\nAssistant: %s\n", t.UserMessage, t.AIMessage)
		}
	}

	b.WriteString("\nCourse material:\n")
	if contextBlock == "" {
		b.WriteString("(no relevant material found)\n")
	} else {
		b.WriteString(contextBlock)
	}
	return b.String()
}
