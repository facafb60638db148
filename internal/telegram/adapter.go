package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/concierge/internal/gateway"
	"github.com/user/concierge/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot      *tgbotapi.BotAPI
	gateway  *gateway.Gateway
	threads  types.ThreadStore
	messages types.MessageStore
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway, threads types.ThreadStore, messages types.MessageStore) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:      bot,
		gateway:  gw,
		threads:  threads,
		messages: messages,
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	inbound := &types.InboundMessage{
		Source:    "telegram",
		ThreadKey: buildThreadKey(msg.From.ID, msg.Chat.ID),
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		Text:      msg.Text,
	}

	err := a.gateway.HandleInbound(ctx, inbound, gateway.WithOnComplete(func(res *types.TurnResult) {
		a.sendResponse(chatID, res.Answer)
	}))
	if err != nil {
		slog.Error("handle inbound failed", "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Xin chào! I'm your personal concierge. Ask me about your calendar, expenses, or notes, in Vietnamese or English.")

	case "new":
		key := buildThreadKey(msg.From.ID, msg.Chat.ID)
		tid, err := a.threads.ResolveOrCreate(ctx, key, strconv.FormatInt(msg.From.ID, 10))
		if err != nil {
			a.sendResponse(chatID, "Error starting a new conversation.")
			return
		}
		if _, err := a.threads.SoftDelete(ctx, tid); err != nil {
			a.sendResponse(chatID, "Error starting a new conversation.")
			return
		}
		a.sendResponse(chatID, "Starting fresh. Previous conversation has been archived.")

	case "status":
		key := buildThreadKey(msg.From.ID, msg.Chat.ID)
		tid, err := a.threads.ResolveOrCreate(ctx, key, strconv.FormatInt(msg.From.ID, 10))
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		count, err := a.messages.Count(ctx, tid)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Thread: %s\nMessages: %d", tid, count))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /new, /status")
	}
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	parts := splitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				slog.Error("send message failed", "error", err)
			}
		}
	}
}

// SendTo delivers a message to the chat encoded in a thread key of the
// form "telegram:<user_id>:<chat_id>". Used by the delivery registry for
// scheduled task output.
func (a *Adapter) SendTo(threadKey, message string) error {
	chatID, err := chatIDFromThreadKey(threadKey)
	if err != nil {
		return err
	}
	a.sendResponse(chatID, message)
	return nil
}

func chatIDFromThreadKey(key string) (int64, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "telegram" {
		return 0, fmt.Errorf("malformed telegram thread key: %s", key)
	}
	chatID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id in thread key %s: %w", key, err)
	}
	return chatID, nil
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildThreadKey(userID, chatID int64) types.ThreadKey {
	return types.NewThreadKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}
