package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vaporchat/vapor-backend/internal/common"
	"github.com/vaporchat/vapor-backend/internal/domain"
	"github.com/vaporchat/vapor-backend/internal/repository"
	pkgcache "github.com/vaporchat/vapor-backend/pkg/cache"
	pkglogger "github.com/vaporchat/vapor-backend/pkg/logger"
)

// Notifier pushes realtime events to recipients. Calls are fire-and-forget:
// a notification failure never affects the operation that triggered it.
type Notifier interface {
	NotifyNewMessage(recipientID string, msg *domain.MessageResponse)
	NotifyMessageDeleted(recipientID, chatID, messageID string)
}

// MessageService business logic for the ephemeral message lifecycle:
// send, acknowledge, and the completion-triggered deletion path.
type MessageService interface {
	Send(ctx context.Context, chatID, senderID string, req *domain.SendMessageRequest) (*domain.MessageResponse, error)
	Get(ctx context.Context, chatID, messageID, userID string) (*domain.MessageResponse, error)
	ListChat(ctx context.Context, chatID, userID string, page, limit int) ([]*domain.MessageResponse, *common.Meta, error)

	// AckDelivered records one recipient's delivery confirmation and runs
	// the completion detector. Detector failures are isolated: the ack
	// itself still succeeds once persisted.
	AckDelivered(ctx context.Context, chatID, messageID, recipientID string, at time.Time) error
	AckRead(ctx context.Context, chatID, messageID, recipientID string, at time.Time) error

	GetDeliveryStatus(ctx context.Context, chatID, messageID, userID string) (*domain.DeliveryStatusResponse, error)
}

type messageService struct {
	repo     repository.MessageRepository
	chatRepo repository.ChatRepository
	cache    pkgcache.Service
	deletion DeletionService
	notifier Notifier
	ttl      time.Duration
}

// NewMessageService creates a new MessageService
func NewMessageService(
	repo repository.MessageRepository,
	chatRepo repository.ChatRepository,
	cache pkgcache.Service,
	deletion DeletionService,
	notifier Notifier,
	ttl time.Duration,
) MessageService {
	return &messageService{
		repo:     repo,
		chatRepo: chatRepo,
		cache:    cache,
		deletion: deletion,
		notifier: notifier,
		ttl:      ttl,
	}
}

func (s *messageService) Send(ctx context.Context, chatID, senderID string, req *domain.SendMessageRequest) (*domain.MessageResponse, error) {
	member, err := s.chatRepo.IsMember(chatID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, common.ErrForbidden
	}

	memberIDs, err := s.memberIDs(ctx, chatID)
	if err != nil {
		return nil, err
	}

	// Recipient set = chat membership at send time, minus the sender.
	// Frozen into the ledger here; never grows or shrinks afterwards.
	recipients := make([]string, 0, len(memberIDs)-1)
	for _, id := range memberIDs {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return nil, common.ErrInvalidInput
	}

	now := time.Now()
	msg := &domain.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   req.Content,
		MediaKey:  req.MediaKey,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.repo.Create(msg, recipients); err != nil {
		return nil, err
	}

	resp := msg.ToResponse()

	// Fire-and-forget: dispatch failure must not roll back the send.
	if s.notifier != nil {
		for _, recipientID := range recipients {
			s.notifier.NotifyNewMessage(recipientID, resp)
		}
	}

	return resp, nil
}

// memberIDs reads the chat's member set through the cache. Invalidated
// whenever membership changes; a cache failure falls through to the store.
func (s *messageService) memberIDs(ctx context.Context, chatID string) ([]string, error) {
	if s.cache != nil {
		if ids, err := s.cache.GetRecipients(ctx, chatID); err == nil && len(ids) > 0 {
			return ids, nil
		}
	}

	ids, err := s.chatRepo.GetMemberIDs(chatID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetRecipients(ctx, chatID, ids); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("chat_id", chatID).
				Msg("member set cache write failed")
		}
	}
	return ids, nil
}

func (s *messageService) Get(ctx context.Context, chatID, messageID, userID string) (*domain.MessageResponse, error) {
	member, err := s.chatRepo.IsMember(chatID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, common.ErrForbidden
	}

	msg, err := s.repo.FindByID(chatID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, common.ErrMessageNotFound
	}

	return msg.ToResponse(), nil
}

func (s *messageService) ListChat(ctx context.Context, chatID, userID string, page, limit int) ([]*domain.MessageResponse, *common.Meta, error) {
	member, err := s.chatRepo.IsMember(chatID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !member {
		return nil, nil, common.ErrForbidden
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	messages, total, err := s.repo.ListByChat(chatID, page, limit)
	if err != nil {
		return nil, nil, err
	}

	responses := make([]*domain.MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = m.ToResponse()
	}

	meta := &common.Meta{
		ChatID: chatID,
		Page:   page,
		Limit:  limit,
		Total:  total,
	}

	return responses, meta, nil
}

func (s *messageService) AckDelivered(ctx context.Context, chatID, messageID, recipientID string, at time.Time) error {
	if err := s.repo.MarkDelivered(chatID, messageID, recipientID, at); err != nil {
		return err
	}

	// Completion detector: re-read the ledger after every ack. Errors here
	// are logged, not returned, so one recipient's detection failure never
	// rejects another recipient's acknowledgment.
	full, err := s.repo.IsFullyDelivered(chatID, messageID)
	if err != nil {
		pkglogger.WithMessage(chatID, messageID).Error().
			Err(err).
			Msg("completion check failed after delivery ack")
		return nil
	}
	if full {
		s.deletion.ScheduleAfterCompletion(ctx, chatID, messageID)
	}

	return nil
}

func (s *messageService) AckRead(ctx context.Context, chatID, messageID, recipientID string, at time.Time) error {
	return s.repo.MarkRead(chatID, messageID, recipientID, at)
}

func (s *messageService) GetDeliveryStatus(ctx context.Context, chatID, messageID, userID string) (*domain.DeliveryStatusResponse, error) {
	msg, err := s.repo.FindWithReceipts(chatID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, common.ErrForbidden
	}

	resp := &domain.DeliveryStatusResponse{
		MessageID:      msg.ID,
		FullyDelivered: true,
		Recipients:     make([]domain.RecipientStatus, 0, len(msg.Receipts)),
	}

	for _, r := range msg.Receipts {
		status := domain.RecipientStatus{RecipientID: r.RecipientID}
		if r.DeliveredAt != nil {
			status.DeliveredAt = r.DeliveredAt.Format(time.RFC3339)
		} else {
			resp.FullyDelivered = false
		}
		if r.ReadAt != nil {
			status.ReadAt = r.ReadAt.Format(time.RFC3339)
		}
		resp.Recipients = append(resp.Recipients, status)
	}

	return resp, nil
}
