package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/vaporchat/vapor-backend/internal/domain"
)

// MockMessageRepository is a mock implementation of repository.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(msg *domain.Message, recipientIDs []string) error {
	args := m.Called(msg, recipientIDs)
	return args.Error(0)
}

func (m *MockMessageRepository) FindByID(chatID, messageID string) (*domain.Message, error) {
	args := m.Called(chatID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) FindWithReceipts(chatID, messageID string) (*domain.Message, error) {
	args := m.Called(chatID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) ListByChat(chatID string, page, limit int) ([]*domain.Message, int64, error) {
	args := m.Called(chatID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Message), args.Get(1).(int64), args.Error(2)
}

func (m *MockMessageRepository) MarkDelivered(chatID, messageID, recipientID string, at time.Time) error {
	args := m.Called(chatID, messageID, recipientID, at)
	return args.Error(0)
}

func (m *MockMessageRepository) MarkRead(chatID, messageID, recipientID string, at time.Time) error {
	args := m.Called(chatID, messageID, recipientID, at)
	return args.Error(0)
}

func (m *MockMessageRepository) IsFullyDelivered(chatID, messageID string) (bool, error) {
	args := m.Called(chatID, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) FindExpired(now time.Time, limit int) ([]*domain.Message, error) {
	args := m.Called(now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) MarkDeleted(chatID, messageID string, reason domain.DeletionReason, at time.Time) error {
	args := m.Called(chatID, messageID, reason, at)
	return args.Error(0)
}

// MockChatRepository is a mock implementation of repository.ChatRepository
type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Create(chat *domain.Chat, memberIDs []string) error {
	args := m.Called(chat, memberIDs)
	return args.Error(0)
}

func (m *MockChatRepository) FindByID(chatID string) (*domain.Chat, error) {
	args := m.Called(chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chat), args.Error(1)
}

func (m *MockChatRepository) GetMemberIDs(chatID string) ([]string, error) {
	args := m.Called(chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockChatRepository) IsMember(chatID, userID string) (bool, error) {
	args := m.Called(chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatRepository) AddMember(chatID, userID string) error {
	args := m.Called(chatID, userID)
	return args.Error(0)
}

// MockDeletionService records scheduling and delete calls
type MockDeletionService struct {
	mock.Mock
}

func (m *MockDeletionService) Delete(ctx context.Context, chatID, messageID string, reason domain.DeletionReason) error {
	args := m.Called(chatID, messageID, reason)
	return args.Error(0)
}

func (m *MockDeletionService) ScheduleAfterCompletion(ctx context.Context, chatID, messageID string) {
	m.Called(chatID, messageID)
}

// fakeMediaStore records blob deletions and can be told to fail
type fakeMediaStore struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeMediaStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return f.err
}

func (f *fakeMediaStore) deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// fakeNotifier records fire-and-forget dispatches
type fakeNotifier struct {
	mu       sync.Mutex
	notified []string
	deleted  []string
}

func (f *fakeNotifier) NotifyNewMessage(recipientID string, msg *domain.MessageResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, recipientID)
}

func (f *fakeNotifier) NotifyMessageDeleted(recipientID, chatID, messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, recipientID)
}

func (f *fakeNotifier) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notified...)
}

func (f *fakeNotifier) deletedTargets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}
