// Package telegram fronts the qualification bot on Telegram via long
// polling. Each Telegram chat maps to one bot session at a time.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sdrbot-io/sdrbot/internal/connector"
)

// Config holds Telegram connector configuration.
type Config struct {
	Token     string  // Bot token from @BotFather
	AllowFrom []int64 // Allowed Telegram user IDs (empty = allow all)
}

// Connector implements connector.Connector for Telegram.
type Connector struct {
	bot     *tgbotapi.BotAPI
	config  Config
	handler connector.TurnHandler
	logger  *slog.Logger
	cancel  context.CancelFunc

	mu       sync.Mutex
	sessions map[int64]string // chat id -> bot session id
}

// New creates a new Telegram connector.
func New(cfg Config, handler connector.TurnHandler, logger *slog.Logger) (*Connector, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Connector{
		bot:      bot,
		config:   cfg,
		handler:  handler,
		logger:   logger,
		sessions: make(map[int64]string),
	}, nil
}

func (c *Connector) Name() string { return "telegram" }

// Start begins long-polling for updates. Blocks until context is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := c.bot.GetUpdatesChan(u)

	c.logger.Info("telegram connector started", "bot", c.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			c.handleUpdate(ctx, update.Message)

		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("telegram connector stopped")
			return ctx.Err()
		}
	}
}

// Stop gracefully shuts down the connector.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *Connector) handleUpdate(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if len(c.config.AllowFrom) > 0 && !contains(c.config.AllowFrom, userID) {
		c.logger.Warn("unauthorized user", "user_id", userID, "username", msg.From.UserName)
		return
	}

	// /start and /novo drop the session binding so the next message
	// opens a fresh conversation.
	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "novo":
			c.mu.Lock()
			delete(c.sessions, chatID)
			c.mu.Unlock()
			c.reply(chatID, "Conversa reiniciada. Pode mandar sua mensagem!")
		default:
			c.reply(chatID, "Comandos disponíveis:\n/novo - Reiniciar a conversa\n\nFora isso, é só mandar sua mensagem!")
		}
		return
	}

	text := msg.Text
	if text == "" && msg.Caption != "" {
		text = msg.Caption
	}
	if text == "" {
		return
	}

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	c.bot.Send(typing)

	c.mu.Lock()
	sessionID := c.sessions[chatID]
	c.mu.Unlock()

	reply, err := c.handler(ctx, connector.Turn{
		Channel:   "telegram",
		ChatID:    strconv.FormatInt(chatID, 10),
		SessionID: sessionID,
		Content:   text,
	})
	if err != nil {
		c.logger.Error("chat turn failed", "chat_id", chatID, "error", err)
		c.reply(chatID, "Desculpe, ocorreu um erro. Envie /novo para recomeçar.")
		return
	}

	c.mu.Lock()
	c.sessions[chatID] = reply.SessionID
	c.mu.Unlock()

	c.reply(chatID, reply.Content)
}

func (c *Connector) reply(chatID int64, text string) {
	if text == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := c.bot.Send(msg); err != nil {
		c.logger.Warn("telegram send failed", "chat_id", chatID, "error", err)
	}
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
