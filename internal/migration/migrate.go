package migration

import (
	"gorm.io/gorm"

	"github.com/vaporchat/vapor-backend/internal/domain"
)

// Run executes AutoMigrate for the message lifecycle tables.
// Tables are created if missing and altered in place otherwise.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Chat{},
		&domain.ChatMember{},
		&domain.Message{},
		&domain.DeliveryReceipt{},
	)
}
