package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
)

// MessageRepository is the persisted delivery ledger: message records plus
// one receipt row per recipient, and the single atomic deletion write.
type MessageRepository interface {
	// Create persists the message and seeds one empty receipt per recipient
	// in a single transaction. Returns common.ErrAlreadyExists if a ledger
	// entry for this message ID was created before.
	Create(msg *domain.Message, recipientIDs []string) error

	FindByID(chatID, messageID string) (*domain.Message, error)
	FindWithReceipts(chatID, messageID string) (*domain.Message, error)
	ListByChat(chatID string, page, limit int) ([]*domain.Message, int64, error)

	// MarkDelivered sets delivered_at for one recipient only if it is still
	// NULL. A repeated acknowledgment is a no-op; an unknown message or
	// recipient is an error, never silent.
	MarkDelivered(chatID, messageID, recipientID string, at time.Time) error
	// MarkRead is analogous for read_at and does not require a prior
	// delivery acknowledgment.
	MarkRead(chatID, messageID, recipientID string, at time.Time) error
	// IsFullyDelivered reports whether every receipt has delivered_at set.
	// Side-effect free.
	IsFullyDelivered(chatID, messageID string) (bool, error)

	// FindExpired returns live messages whose expiry deadline has passed.
	FindExpired(now time.Time, limit int) ([]*domain.Message, error)
	// MarkDeleted flips the terminal deletion flag in one atomic write.
	// Marking an already-deleted message succeeds without touching it.
	MarkDeleted(chatID, messageID string, reason domain.DeletionReason, at time.Time) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(msg *domain.Message, recipientIDs []string) error {
	if len(recipientIDs) == 0 {
		return common.ErrInvalidInput
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Message{}).Where("id = ?", msg.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return common.ErrAlreadyExists
		}

		if err := tx.Create(msg).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return common.ErrAlreadyExists
			}
			return err
		}

		receipts := make([]domain.DeliveryReceipt, len(recipientIDs))
		for i, id := range recipientIDs {
			receipts[i] = domain.DeliveryReceipt{
				MessageID:   msg.ID,
				RecipientID: id,
			}
		}
		return tx.Create(&receipts).Error
	})
}

func (r *messageRepository) FindByID(chatID, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.Where("id = ? AND chat_id = ?", messageID, chatID).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindWithReceipts(chatID, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.Preload("Receipts").
		Where("id = ? AND chat_id = ?", messageID, chatID).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListByChat(chatID string, page, limit int) ([]*domain.Message, int64, error) {
	var messages []*domain.Message
	var total int64

	r.db.Model(&domain.Message{}).
		Where("chat_id = ? AND is_deleted = ?", chatID, false).
		Count(&total)

	offset := (page - 1) * limit
	err := r.db.Where("chat_id = ? AND is_deleted = ?", chatID, false).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&messages).Error
	return messages, total, err
}

func (r *messageRepository) MarkDelivered(chatID, messageID, recipientID string, at time.Time) error {
	return r.markReceipt(chatID, messageID, recipientID, "delivered_at", at)
}

func (r *messageRepository) MarkRead(chatID, messageID, recipientID string, at time.Time) error {
	return r.markReceipt(chatID, messageID, recipientID, "read_at", at)
}

// markReceipt sets a receipt timestamp column exactly once. The conditional
// update (column IS NULL) makes interleaved acknowledgments for different
// recipients safe without locking: each slot goes NULL -> value at most once.
func (r *messageRepository) markReceipt(chatID, messageID, recipientID, column string, at time.Time) error {
	msg, err := r.FindByID(chatID, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return common.ErrMessageNotFound
	}

	res := r.db.Model(&domain.DeliveryReceipt{}).
		Where("message_id = ? AND recipient_id = ? AND "+column+" IS NULL", messageID, recipientID).
		Update(column, at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Nothing updated: either the timestamp was already set (idempotent
	// no-op) or the recipient was never part of this message's ledger.
	var count int64
	err = r.db.Model(&domain.DeliveryReceipt{}).
		Where("message_id = ? AND recipient_id = ?", messageID, recipientID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return common.ErrRecipientNotFound
	}
	return nil
}

func (r *messageRepository) IsFullyDelivered(chatID, messageID string) (bool, error) {
	if _, err := r.FindByID(chatID, messageID); err != nil {
		return false, err
	}

	var pending int64
	err := r.db.Model(&domain.DeliveryReceipt{}).
		Where("message_id = ? AND delivered_at IS NULL", messageID).
		Count(&pending).Error
	if err != nil {
		return false, err
	}
	return pending == 0, nil
}

func (r *messageRepository) FindExpired(now time.Time, limit int) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.Where("expires_at < ? AND is_deleted = ?", now, false).
		Order("expires_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) MarkDeleted(chatID, messageID string, reason domain.DeletionReason, at time.Time) error {
	res := r.db.Model(&domain.Message{}).
		Where("id = ? AND chat_id = ? AND is_deleted = ?", messageID, chatID, false).
		Updates(map[string]interface{}{
			"is_deleted":      true,
			"deleted_at":      at,
			"deletion_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Zero rows: already deleted (converged, fine) or never existed.
	var count int64
	err := r.db.Model(&domain.Message{}).
		Where("id = ? AND chat_id = ?", messageID, chatID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return common.ErrMessageNotFound
	}
	return nil
}
