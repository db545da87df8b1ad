package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
)

// ChatRepository chat membership data access. The recipient set of every
// message is read from here at send time and frozen into the ledger.
type ChatRepository interface {
	Create(chat *domain.Chat, memberIDs []string) error
	FindByID(chatID string) (*domain.Chat, error)
	GetMemberIDs(chatID string) ([]string, error)
	IsMember(chatID, userID string) (bool, error)

	// AddMember joins a user to an existing chat. Messages sent before the
	// join keep their original recipient set.
	AddMember(chatID, userID string) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new ChatRepository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(chat *domain.Chat, memberIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return common.ErrAlreadyExists
			}
			return err
		}

		now := time.Now()
		members := make([]domain.ChatMember, len(memberIDs))
		for i, id := range memberIDs {
			members[i] = domain.ChatMember{
				ChatID:   chat.ID,
				UserID:   id,
				JoinedAt: now,
			}
		}
		return tx.Create(&members).Error
	})
}

func (r *chatRepository) FindByID(chatID string) (*domain.Chat, error) {
	var chat domain.Chat
	err := r.db.Where("id = ?", chatID).First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepository) GetMemberIDs(chatID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&domain.ChatMember{}).
		Where("chat_id = ?", chatID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, common.ErrChatNotFound
	}
	return ids, nil
}

func (r *chatRepository) AddMember(chatID, userID string) error {
	if _, err := r.FindByID(chatID); err != nil {
		return err
	}

	member := domain.ChatMember{
		ChatID:   chatID,
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	if err := r.db.Create(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *chatRepository) IsMember(chatID, userID string) (bool, error) {
	var count int64
	err := r.db.Model(&domain.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}
