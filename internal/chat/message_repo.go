package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurorahq/aurora/internal/logger"
)

// MessageRepo is the append-only conversation log.
type MessageRepo interface {
	// Append stores one message and returns the persisted row.
	Append(ctx context.Context, conversationID, userID uuid.UUID, role, content string) (*Message, error)

	// ListRecent returns up to limit messages for the conversation, newest
	// first. Callers wanting chronological order reverse the slice.
	ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)

	// ListByConversation returns all messages for the conversation, oldest
	// first.
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]Message, error)

	// CountByRole counts the conversation's messages with the given role.
	CountByRole(ctx context.Context, conversationID uuid.UUID, role string) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Append(ctx context.Context, conversationID, userID uuid.UUID, role, content string) (*Message, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation id")
	}
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	msg := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

func (r *messageRepo) ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation id")
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var out []Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	return out, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation id")
	}
	var out []Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

func (r *messageRepo) CountByRole(ctx context.Context, conversationID uuid.UUID, role string) (int64, error) {
	if conversationID == uuid.Nil {
		return 0, fmt.Errorf("missing conversation id")
	}
	var n int64
	err := r.db.WithContext(ctx).
		Model(&Message{}).
		Where("conversation_id = ? AND role = ?", conversationID, role).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
