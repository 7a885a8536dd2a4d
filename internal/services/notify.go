package services

import (
	"fmt"

	"github.com/glsbox/backend/internal/models"
	"github.com/glsbox/backend/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"
)

// NotifyService pushes comment-reply notifications to Telegram. Users opt in
// by setting the telegram field on their profile and sending /start to the
// bot; /stop unsubscribes the chat. A nil service (no bot token) disables
// notifications without any caller-side checks.
type NotifyService struct {
	DB      *gorm.DB
	bot     *tgbotapi.BotAPI
	hostURL string
}

func NewNotifyService(db *gorm.DB, token, hostURL string) (*NotifyService, error) {
	if token == "" {
		logger.Warn("bot_token_missing", map[string]interface{}{
			"notifications": "disabled",
		})
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed initializing telegram bot: %w", err)
	}

	return &NotifyService{DB: db, bot: bot, hostURL: hostURL}, nil
}

// Run polls for bot commands until the updates channel closes. Meant to be
// started on its own goroutine.
func (n *NotifyService) Run() {
	if n == nil {
		return
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	for update := range n.bot.GetUpdatesChan(updateConfig) {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}

		switch update.Message.Command() {
		case "start":
			n.handleStart(update.Message)
		case "stop":
			n.handleStop(update.Message)
		}
	}
}

func (n *NotifyService) handleStart(message *tgbotapi.Message) {
	username := message.From.UserName
	if username == "" {
		n.reply(message.Chat.ID, "A Telegram username is required to use this bot")
		return
	}

	var users []models.User
	if err := n.DB.Where("telegram = ?", username).Find(&users).Error; err != nil {
		logger.Error("bot_start_lookup_failed", err, map[string]interface{}{
			"telegram_username": username,
		})
		n.reply(message.Chat.ID, "Internal error")
		return
	}
	if len(users) == 0 {
		n.reply(message.Chat.ID, "This Telegram account is not assigned to any GLSBox users")
		return
	}

	subscription := models.BotUser{
		TelegramUsername: username,
		TelegramUserID:   message.From.ID,
		ChatID:           message.Chat.ID,
	}
	if err := n.DB.Create(&subscription).Error; err != nil {
		logger.Error("bot_start_subscribe_failed", err, map[string]interface{}{
			"telegram_username": username,
		})
		n.reply(message.Chat.ID, "Internal error")
		return
	}

	links := ""
	for i, user := range users {
		if i > 0 {
			links += ", "
		}
		links += fmt.Sprintf("[%s](%s/users/%s)", user.Username, n.hostURL, user.ID)
	}
	n.replyMarkdown(message.Chat.ID, fmt.Sprintf("You will now receive updates for %s", links))
	n.reply(message.Chat.ID, "Enter /stop to stop receiving updates")
}

func (n *NotifyService) handleStop(message *tgbotapi.Message) {
	if err := n.DB.Where("telegram_user_id = ?", message.From.ID).Delete(&models.BotUser{}).Error; err != nil {
		logger.Error("bot_stop_failed", err, map[string]interface{}{
			"telegram_user_id": message.From.ID,
		})
		n.reply(message.Chat.ID, "Internal error")
		return
	}
	n.reply(message.Chat.ID, "This account will no longer receive updates")
}

// NotifyReply tells the parent comment's author that replyAuthor answered
// them. Safe to call on a nil service; failures are logged only.
func (n *NotifyService) NotifyReply(parentAuthor, replyAuthor *models.User, comment *models.Comment) {
	if n == nil || parentAuthor.Telegram == nil || comment.ParentComment == nil {
		return
	}

	var subscription models.BotUser
	err := n.DB.First(&subscription, "telegram_username = ?", *parentAuthor.Telegram).Error
	if err != nil {
		return
	}

	text := fmt.Sprintf(
		"User [%s](%s/users/%s) left a [reply](%s/view/%s?comment=%s) to your [comment](%s/view/%s?comment=%s)",
		replyAuthor.Username, n.hostURL, replyAuthor.ID,
		n.hostURL, comment.ParentShader, comment.ID,
		n.hostURL, comment.ParentShader, *comment.ParentComment,
	)
	n.replyMarkdown(subscription.ChatID, text)
}

func (n *NotifyService) reply(chatID int64, text string) {
	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.Error("bot_send_failed", err, map[string]interface{}{"chat_id": chatID})
	}
}

func (n *NotifyService) replyMarkdown(chatID int64, text string) {
	message := tgbotapi.NewMessage(chatID, text)
	message.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(message); err != nil {
		logger.Error("bot_send_failed", err, map[string]interface{}{"chat_id": chatID})
	}
}
