package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rickgao/odds-history/internal/config"
	"github.com/rickgao/odds-history/internal/model"
)

// Sender is the subset of *tgbotapi.BotAPI the publisher uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPublisher posts a summary of the top radar items to a chat.
type TelegramPublisher struct {
	bot    Sender
	chatID int64
	topN   int
	logger *slog.Logger
}

// NewTelegramBot authenticates with the Bot API.
func NewTelegramBot(cfg config.TelegramConfig, logger *slog.Logger) (*TelegramPublisher, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = false
	return NewTelegramPublisher(bot, cfg.ChatID, cfg.TopN, logger), nil
}

// NewTelegramPublisher wraps an existing sender. topN <= 0 selects 10.
func NewTelegramPublisher(bot Sender, chatID int64, topN int, logger *slog.Logger) *TelegramPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if topN <= 0 {
		topN = 10
	}
	return &TelegramPublisher{
		bot:    bot,
		chatID: chatID,
		topN:   topN,
		logger: logger.With("component", "telegram_publisher"),
	}
}

func (p *TelegramPublisher) Name() string { return "telegram" }

// Publish sends the summary. An empty radar sends nothing.
func (p *TelegramPublisher) Publish(ctx context.Context, radar model.Radar) error {
	if len(radar.Items) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(p.chatID, FormatSummary(radar, p.topN))
	msg.DisableWebPagePreview = true
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	p.logger.Debug("radar summary sent", "chat_id", p.chatID)
	return nil
}

func (p *TelegramPublisher) Close() error { return nil }

// FormatSummary renders the first n radar items as plain text.
func FormatSummary(radar model.Radar, n int) string {
	items := radar.Items
	if len(items) > n {
		items = items[:n]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Odds radar %s: %d moves\n", radar.GeneratedAt.UTC().Format("2006-01-02 15:04Z"), len(radar.Items))
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. %s %s | %s %s @ %s: %.2f -> %.2f (%+.3f)",
			i+1, it.League, it.FixtureID, it.Market, it.Selection, it.Bookmaker,
			it.Opening, it.Current, it.Delta)
	}
	if rest := len(radar.Items) - len(items); rest > 0 {
		fmt.Fprintf(&b, "\n\n+%d more", rest)
	}
	return b.String()
}
