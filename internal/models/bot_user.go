package models

// BotUser links a Telegram account to a chat that receives reply
// notifications. One row per /start, removed on /stop.
type BotUser struct {
	BaseModel
	TelegramUsername string `json:"telegramUsername" gorm:"type:varchar(100);uniqueIndex;not null"`
	TelegramUserID   int64  `json:"telegramUserID" gorm:"not null;index"`
	ChatID           int64  `json:"chatID" gorm:"not null"`
}

func (BotUser) TableName() string {
	return "bot_users"
}
