package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mentorium/backend/internal/clients/redisstore"
	"github.com/mentorium/backend/internal/platform/envutil"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/types"
)

const chatKeyPrefix = "chat:"

// HistoryService keeps the per-user, per-syllabus conversation log. Turns are
// soft-deleted: delete tombstones every turn in place so the log length and
// TTL are preserved while reads skip them.
type HistoryService interface {
	Append(ctx context.Context, userID string, syllabusEventID int64, turn types.ChatTurn) error
	// History returns live turns oldest first.
	History(ctx context.Context, userID string, syllabusEventID int64) ([]types.ChatTurn, error)
	Delete(ctx context.Context, userID string, syllabusEventID int64) error
}

type historyService struct {
	log      *logger.Logger
	store    redisstore.Store
	ttl      time.Duration
	maxTurns int
}

func NewHistoryService(log *logger.Logger, store redisstore.Store) (HistoryService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	return &historyService{
		log:      log.With("service", "HistoryService"),
		store:    store,
		ttl:      envutil.Duration("CHAT_HISTORY_TTL", 7*24*time.Hour),
		maxTurns: envutil.Int("CHAT_HISTORY_MAX_TURNS", 20),
	}, nil
}

func chatKey(userID string, syllabusEventID int64) string {
	return chatKeyPrefix + userID + ":" + strconv.FormatInt(syllabusEventID, 10)
}

func (s *historyService) Append(ctx context.Context, userID string, syllabusEventID int64, turn types.ChatTurn) error {
	if userID == "" {
		return fmt.Errorf("chat history append: user id required")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(turn)
	if err != nil {
		return err
	}

	key := chatKey(userID, syllabusEventID)
	if err := s.store.LPush(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("chat history push: %w", err)
	}
	if err := s.store.LTrim(ctx, key, 0, int64(s.maxTurns)-1); err != nil {
		return fmt.Errorf("chat history trim: %w", err)
	}
	// TTL restarts on every exchange so an active conversation never expires
	// under the user.
	if err := s.store.Expire(ctx, key, s.ttl); err != nil {
		return fmt.Errorf("chat history expire: %w", err)
	}
	return nil
}

func (s *historyService) History(ctx context.Context, userID string, syllabusEventID int64) ([]types.ChatTurn, error) {
	entries, err := s.store.LRange(ctx, chatKey(userID, syllabusEventID), 0, int64(s.maxTurns)-1)
	if err != nil {
		return nil, fmt.Errorf("chat history read: %w", err)
	}

	// LPush stores newest first; walk backwards for chronological order.
	turns := make([]types.ChatTurn, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		var turn types.ChatTurn
		if err := json.Unmarshal([]byte(entries[i]), &turn); err != nil {
			s.log.Warn("Skipping malformed chat turn", "user_id", userID, "error", err)
			continue
		}
		if turn.Deleted {
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *historyService) Delete(ctx context.Context, userID string, syllabusEventID int64) error {
	key := chatKey(userID, syllabusEventID)
	entries, err := s.store.LRange(ctx, key, 0, -1)
	if err != nil {
		return fmt.Errorf("chat history read: %w", err)
	}

	for i, entry := range entries {
		var turn types.ChatTurn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			continue
		}
		if turn.Deleted {
			continue
		}
		turn.Deleted = true
		raw, err := json.Marshal(turn)
		if err != nil {
			return err
		}
		if err := s.store.LSet(ctx, key, int64(i), string(raw)); err != nil {
			return fmt.Errorf("chat history tombstone: %w", err)
		}
	}

	s.log.Info("Chat history deleted", "user_id", userID, "syllabus_event_id", syllabusEventID, "turns", len(entries))
	return nil
}
