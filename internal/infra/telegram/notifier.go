package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-subscription-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AdminNotifier = (*AdminNotifier)(nil)

// sender is the slice of *tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AdminNotifier broadcasts monitoring messages to the configured admin chats.
// Delivery is best-effort: a dead bot must never fail a payment or a batch.
type AdminNotifier struct {
	bot      sender
	adminIDs []int64
	log      *zerolog.Logger
}

func NewAdminNotifier(bot sender, adminIDs []int64, logger *zerolog.Logger) *AdminNotifier {
	nLog := logger.With().Str("component", "AdminNotifier").Logger()
	return &AdminNotifier{bot: bot, adminIDs: adminIDs, log: &nLog}
}

func (n *AdminNotifier) Notify(ctx context.Context, text string) error {
	var lastErr error
	for _, id := range n.adminIDs {
		msg := tgbotapi.NewMessage(id, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.log.Warn().Err(err).Int64("chat_id", id).Msg("admin notification failed")
			lastErr = err
		}
	}
	return lastErr
}

func (n *AdminNotifier) NotifyCritical(ctx context.Context, text string) error {
	return n.Notify(ctx, "🚨 "+text)
}
