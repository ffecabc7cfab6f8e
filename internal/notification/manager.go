package notification

import (
	"context"
	"sync"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/format"
	tgsender "github.com/m3rciful/shopbot/core/telegram/sender"
	"github.com/m3rciful/shopbot/internal/storefront"
)

// Manager delivers owner notifications through the async send queue.
// It is constructed before the bot exists and bound to the transport in
// the OnStart hook; notices arriving before Bind are dropped with a log.
type Manager struct {
	chatID int64
	texts  storefront.Texts

	mu   sync.RWMutex
	bot  *tele.Bot
	disp *tgsender.Dispatcher
}

var _ storefront.Notifier = (*Manager)(nil)

// NewManager creates a manager that notifies chatID. A zero chatID
// disables notifications entirely.
func NewManager(chatID int64, texts storefront.Texts) *Manager {
	return &Manager{chatID: chatID, texts: texts}
}

// Bind attaches the live transport.
func (m *Manager) Bind(bot *tele.Bot, disp *tgsender.Dispatcher) {
	m.mu.Lock()
	m.bot = bot
	m.disp = disp
	m.mu.Unlock()
}

// NotifyPurchase enqueues the purchase notice. It never returns an
// error: delivery problems are the queue's business, not the buyer's.
func (m *Manager) NotifyPurchase(ctx context.Context, n storefront.PurchaseNotice) {
	if m.chatID == 0 {
		return
	}

	m.mu.RLock()
	bot, disp := m.bot, m.disp
	m.mu.RUnlock()
	if bot == nil || disp == nil {
		logger.Warn(ctx, "notify", "notice.dropped",
			slog.String("reason", "transport not bound"),
			slog.Int64("order_id", n.OrderID),
		)
		return
	}

	text := m.texts.Text("admin_purchase_notice",
		n.OrderRef,
		format.EscapeHTML(n.Subcategory),
		n.Quantity,
		n.Total.StringFixed(2),
		n.BuyerID,
		format.EscapeHTML(n.BuyerUsername),
	)

	err := disp.Enqueue(ctx, "send", "purchase_notice", func() error {
		_, err := bot.Send(&tele.User{ID: m.chatID}, text, tele.ModeHTML)
		return err
	})
	if err != nil {
		logger.Warn(ctx, "notify", "notice.enqueue_failed",
			slog.Int64("order_id", n.OrderID),
			slog.String("err", err.Error()),
		)
	}
}
