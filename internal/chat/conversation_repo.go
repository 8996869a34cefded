package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurorahq/aurora/internal/logger"
)

// ErrNotFound is returned when a conversation lookup or owner-scoped update
// matches no row.
var ErrNotFound = errors.New("chat: conversation not found")

// ConversationRepo is the conversation directory.
type ConversationRepo interface {
	Create(ctx context.Context, userID uuid.UUID, title string) (*Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*Conversation, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]Conversation, error)

	// UpdateTitleAndActivity sets the title and bumps last_activity, scoped
	// by conversation id and owner. Last write wins.
	UpdateTitleAndActivity(ctx context.Context, id, ownerID uuid.UUID, title string) error

	// TouchActivity bumps last_activity without changing the title.
	TouchActivity(ctx context.Context, id uuid.UUID) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: log.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(ctx context.Context, userID uuid.UUID, title string) (*Conversation, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user id")
	}
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now().UTC()
	conv := &Conversation{
		ID:           uuid.New(),
		UserID:       userID,
		Title:        title,
		LastActivity: now,
		CreatedAt:    now,
	}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (r *conversationRepo) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	var conv Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepo) ListByOwner(ctx context.Context, userID uuid.UUID) ([]Conversation, error) {
	var out []Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_activity DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

func (r *conversationRepo) UpdateTitleAndActivity(ctx context.Context, id, ownerID uuid.UUID, title string) error {
	if title == "" {
		title = DefaultTitle
	}
	res := r.db.WithContext(ctx).
		Model(&Conversation{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(map[string]interface{}{
			"title":         title,
			"last_activity": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *conversationRepo) TouchActivity(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&Conversation{}).
		Where("id = ?", id).
		Update("last_activity", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("touch conversation: %w", res.Error)
	}
	return nil
}
