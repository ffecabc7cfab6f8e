package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/format"
	"github.com/m3rciful/shopbot/internal/models"
)

// fulfill executes a confirmed purchase. The cheap pre-checks (stock,
// balance) run outside the transaction to reject hopeless purchases
// early; the transaction then re-verifies both under locks, so a stale
// pre-check can never oversell or overdraw.
func (f *Flow) fulfill(ctx context.Context, user models.User, tok Token) (*View, error) {
	if tok.SubcategoryID < 0 || tok.Quantity <= 0 {
		return nil, &MalformedTokenError{Raw: tok.Encode(), Reason: "fulfillment requires a position and quantity"}
	}

	if !tok.Confirmed {
		logger.Debug(ctx, "shop", "purchase.declined",
			slog.Int64("subcategory_id", tok.SubcategoryID),
		)
		return f.failureView("purchase_declined"), nil
	}

	available, err := f.catalog.AvailableQuantity(ctx, tok.SubcategoryID)
	if err != nil {
		return nil, err
	}
	if available < tok.Quantity {
		return f.failureView("out_of_stock"), nil
	}

	affordable, err := f.wallet.CanAfford(ctx, user.ID, tok.TotalPrice)
	if err != nil {
		return nil, err
	}
	if !affordable {
		return f.failureView("insufficient_funds"), nil
	}

	var (
		order models.Order
		items []models.Item
	)
	err = f.transactor.InTx(ctx, func(tx Tx) error {
		if err := tx.DebitBalance(ctx, user.ID, tok.TotalPrice); err != nil {
			return err
		}
		items, err = tx.AllocateUnsold(ctx, tok.SubcategoryID, tok.Quantity)
		if err != nil {
			return err
		}
		order, err = tx.CreateOrder(ctx, user.ID, tok.Quantity, tok.TotalPrice)
		if err != nil {
			return err
		}
		if err := tx.AddOrderItems(ctx, order.ID, items); err != nil {
			return err
		}
		return tx.MarkSold(ctx, items)
	})
	switch {
	case errors.Is(err, ErrAllocationRace):
		logger.Warn(ctx, "shop", "purchase.race",
			slog.Int64("subcategory_id", tok.SubcategoryID),
			slog.Int("quantity", tok.Quantity),
		)
		return f.failureView("out_of_stock"), nil
	case errors.Is(err, ErrInsufficientFunds):
		return f.failureView("insufficient_funds"), nil
	case err != nil:
		return nil, fmt.Errorf("purchase transaction: %w", err)
	}

	sub, err := f.catalog.Subcategory(ctx, tok.SubcategoryID)
	if err != nil {
		// The purchase is committed; a failed name lookup only degrades
		// the receipt and notice.
		sub = models.Subcategory{ID: tok.SubcategoryID, Name: fmt.Sprintf("position-%d", tok.SubcategoryID)}
	}

	logger.Info(ctx, "shop", "purchase.success",
		slog.Int64("order_id", order.ID),
		slog.String("order_ref", order.Reference),
		slog.Int64("subcategory_id", tok.SubcategoryID),
		slog.Int("quantity", tok.Quantity),
		slog.String("total", tok.TotalPrice.StringFixed(2)),
	)

	if f.notifier != nil {
		f.notifier.NotifyPurchase(ctx, PurchaseNotice{
			OrderID:       order.ID,
			OrderRef:      order.Reference,
			Subcategory:   sub.Name,
			Quantity:      tok.Quantity,
			Total:         tok.TotalPrice,
			BuyerID:       user.TelegramID,
			BuyerUsername: user.Username,
		})
	}

	return f.receiptView(user, order, sub, items), nil
}

// failureView reports a failed or abandoned purchase. Every failure
// keeps a return-to-browse button so the buyer is never stranded on an
// edited message with no controls.
func (f *Flow) failureView(textKey string) *View {
	return &View{
		Text: f.texts.Text(textKey),
		Rows: [][]Button{{{Label: f.texts.Text("back_button"), Token: NewToken(StepBrowse)}}},
	}
}

// receiptView builds the buyer-facing receipt. A single item fits in a
// message; larger purchases become a plain-text document so arbitrarily
// long private payloads never hit message length limits.
func (f *Flow) receiptView(user models.User, order models.Order, sub models.Subcategory, items []models.Item) *View {
	if len(items) == 1 {
		text := f.texts.Text("purchase_caption") + "\n\n" +
			f.texts.Text("purchased_item", 1, format.EscapeHTML(items[0].PrivateData))
		return &View{Text: text}
	}

	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, it.PrivateData)
	}
	name := fmt.Sprintf("%d-%d-%s-%d-%s.txt",
		user.TelegramID, order.ID, sub.Name, len(items), order.Total.StringFixed(2))

	return &View{
		Document: &Document{
			Name:    name,
			Caption: f.texts.Text("purchase_caption"),
			Content: []byte(b.String()),
		},
		DeleteMessage: true,
	}
}
