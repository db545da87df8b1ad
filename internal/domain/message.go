package domain

import "time"

// DeletionReason tags the terminal state of a deleted message
type DeletionReason string

const (
	DeletionReasonAllReceived DeletionReason = "all_recipients_received"
	DeletionReasonExpired     DeletionReason = "expired"
)

// Message is an ephemeral chat message. The persisted payload lives only
// until every recipient confirmed delivery or the TTL deadline passed,
// whichever comes first. Once IsDeleted is set the record is terminal.
type Message struct {
	ID             string            `gorm:"column:id;primaryKey;size:36" json:"id"`
	ChatID         string            `gorm:"column:chat_id;size:36;index" json:"chat_id"`
	SenderID       string            `gorm:"column:sender_id;size:64;index" json:"sender_id"`
	Content        string            `gorm:"column:content;type:text" json:"content"`
	MediaKey       string            `gorm:"column:media_key;size:512" json:"media_key,omitempty"`
	CreatedAt      time.Time         `gorm:"column:created_at" json:"created_at"`
	ExpiresAt      time.Time         `gorm:"column:expires_at;index:idx_messages_expiry" json:"expires_at"`
	IsDeleted      bool              `gorm:"column:is_deleted;index:idx_messages_expiry" json:"is_deleted"`
	DeletedAt      *time.Time        `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	DeletionReason DeletionReason    `gorm:"column:deletion_reason;size:32" json:"deletion_reason,omitempty"`
	Receipts       []DeliveryReceipt `gorm:"foreignKey:MessageID;references:ID" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

// DeliveryReceipt is one recipient's slot in the delivery ledger. The
// recipient set is fixed at message creation; each timestamp is settable
// exactly once (NULL -> value) and never changes afterwards.
type DeliveryReceipt struct {
	ID          uint       `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	MessageID   string     `gorm:"column:message_id;size:36;uniqueIndex:idx_receipts_msg_recipient" json:"message_id"`
	RecipientID string     `gorm:"column:recipient_id;size:64;uniqueIndex:idx_receipts_msg_recipient" json:"recipient_id"`
	DeliveredAt *time.Time `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	ReadAt      *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
}

func (DeliveryReceipt) TableName() string {
	return "delivery_receipts"
}

// SendMessageRequest represents a send message request
type SendMessageRequest struct {
	Content  string `json:"content" binding:"required"`
	MediaKey string `json:"media_key"`
}

// AckRequest carries an optional client-side timestamp for a delivery or
// read acknowledgment; zero means "use server time"
type AckRequest struct {
	At *time.Time `json:"at"`
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	MediaKey  string `json:"media_key,omitempty"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

// ToResponse converts Message to MessageResponse
func (m *Message) ToResponse() *MessageResponse {
	return &MessageResponse{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		MediaKey:  m.MediaKey,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
		ExpiresAt: m.ExpiresAt.Format(time.RFC3339),
	}
}

// RecipientStatus is one recipient's entry in a delivery status response
type RecipientStatus struct {
	RecipientID string `json:"recipient_id"`
	DeliveredAt string `json:"delivered_at,omitempty"`
	ReadAt      string `json:"read_at,omitempty"`
}

// DeliveryStatusResponse reports per-recipient delivery state for a message
type DeliveryStatusResponse struct {
	MessageID      string            `json:"message_id"`
	FullyDelivered bool              `json:"fully_delivered"`
	Recipients     []RecipientStatus `json:"recipients"`
}
