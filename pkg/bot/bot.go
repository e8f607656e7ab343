package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/internal"
)

var log = internal.GetLogger()

const (
	callbackReset = "reset"

	clearedReply = "✅ Conversation history cleared"
	resetToast   = "Conversation reset!"
	resetReply   = "The conversation has been reset. What would you like to ask next?"
)

// API is the Telegram surface the bot drives. Implemented by Client.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (*Message, error)
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error
	EditMessageText(ctx context.Context, chatID int64, messageID int64, text string) error
}

// ChatService is the conversational pipeline behind the bot.
type ChatService interface {
	Respond(ctx context.Context, sessionID string, text string) (string, error)
	InitSession(ctx context.Context, sessionID string) error
	ClearSession(ctx context.Context, sessionID string) error
}

// Bot long-polls Telegram for updates and dispatches them to the chat
// pipeline. Updates for different users are handled concurrently; the chat
// service serializes turns per session.
type Bot struct {
	api  API
	chat ChatService
	cfg  config.TelegramConfig
}

func NewBot(api API, chat ChatService, cfg config.TelegramConfig) *Bot {
	return &Bot{
		api:  api,
		chat: chat,
		cfg:  cfg,
	}
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	log.Info("telegram bot polling started")

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			log.Info("telegram bot polling stopped")
			return nil
		}

		updates, err := b.api.GetUpdates(ctx, offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("telegram bot polling stopped")
				return nil
			}
			log.Errorf("failed to get updates: %v", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			update := update
			go b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate routes a single update to its handler.
func (b *Bot) HandleUpdate(ctx context.Context, update Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *Message) {
	if message.From == nil {
		return
	}
	sessionID := strconv.FormatInt(message.From.ID, 10)
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch {
	case text == "/start":
		b.handleStart(ctx, chatID, sessionID, message.From.FirstName)
	case text == "/clear":
		b.handleClear(ctx, chatID, sessionID)
	case strings.HasPrefix(text, "/"):
		b.reply(ctx, chatID, fmt.Sprintf("Unknown command: %s", text), nil)
	default:
		b.handleChat(ctx, chatID, sessionID, text)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, sessionID string, firstName string) {
	if err := b.chat.InitSession(ctx, sessionID); err != nil {
		log.Errorf("failed to init session %s: %v", sessionID, err)
	}
	greeting := fmt.Sprintf(
		"Hi %s! I'm your document assistant.\nSend /clear to reset the conversation.",
		firstName,
	)
	b.reply(ctx, chatID, greeting, nil)
}

func (b *Bot) handleClear(ctx context.Context, chatID int64, sessionID string) {
	if err := b.chat.ClearSession(ctx, sessionID); err != nil {
		log.Errorf("failed to clear session %s: %v", sessionID, err)
		b.reply(ctx, chatID, "⚠️ Could not clear the conversation. Please try again.", nil)
		return
	}
	b.reply(ctx, chatID, clearedReply, nil)
}

func (b *Bot) handleChat(ctx context.Context, chatID int64, sessionID string, text string) {
	response, err := b.chat.Respond(ctx, sessionID, text)
	if err != nil {
		log.Errorf("failed to respond to session %s: %v", sessionID, err)
		b.reply(ctx, chatID, "⚠️ Something went wrong. Please try again later.", nil)
		return
	}
	b.reply(ctx, chatID, response, b.keyboard())
}

func (b *Bot) handleCallback(ctx context.Context, query *CallbackQuery) {
	sessionID := strconv.FormatInt(query.From.ID, 10)

	if query.Data != callbackReset {
		if err := b.api.AnswerCallbackQuery(ctx, query.ID, fmt.Sprintf("Unknown action: %s", query.Data)); err != nil {
			log.Errorf("failed to answer callback query: %v", err)
		}
		return
	}

	if err := b.chat.ClearSession(ctx, sessionID); err != nil {
		log.Errorf("failed to clear session %s: %v", sessionID, err)
	}
	if err := b.api.AnswerCallbackQuery(ctx, query.ID, resetToast); err != nil {
		log.Errorf("failed to answer callback query: %v", err)
	}
	if query.Message != nil {
		err := b.api.EditMessageText(ctx, query.Message.Chat.ID, query.Message.MessageID, resetReply)
		if err != nil {
			log.Errorf("failed to edit message: %v", err)
		}
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) {
	if _, err := b.api.SendMessage(ctx, chatID, text, markup); err != nil {
		log.Errorf("failed to send message to chat %d: %v", chatID, err)
	}
}

// keyboard returns the inline keyboard attached to answers: a conversation
// reset button and, when configured, a link to the documentation.
func (b *Bot) keyboard() *InlineKeyboardMarkup {
	rows := [][]InlineKeyboardButton{
		{{Text: "🔄 Reset conversation", CallbackData: callbackReset}},
	}
	if b.cfg.DocsURL != "" {
		rows = append(rows, []InlineKeyboardButton{
			{Text: "🌐 Open documentation", URL: b.cfg.DocsURL},
		})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}
