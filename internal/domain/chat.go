package domain

import "time"

// Chat is a conversation; only membership matters to this service, since
// the recipient set of every message is the membership at send time.
type Chat struct {
	ID        string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Title     string    `gorm:"column:title;size:255" json:"title"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Chat) TableName() string {
	return "chats"
}

// ChatMember links a user to a chat
type ChatMember struct {
	ID       uint      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	ChatID   string    `gorm:"column:chat_id;size:36;uniqueIndex:idx_chat_members_chat_user" json:"chat_id"`
	UserID   string    `gorm:"column:user_id;size:64;uniqueIndex:idx_chat_members_chat_user;index" json:"user_id"`
	JoinedAt time.Time `gorm:"column:joined_at" json:"joined_at"`
}

func (ChatMember) TableName() string {
	return "chat_members"
}
