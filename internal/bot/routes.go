package bot

import (
	"errors"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/callbacks"
	"github.com/m3rciful/shopbot/core/telegram/commands"
	"github.com/m3rciful/shopbot/core/telegram/format"
	"github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/core/telegram/keyboard"
	"github.com/m3rciful/shopbot/internal/models"
	"github.com/m3rciful/shopbot/internal/service"
	"github.com/m3rciful/shopbot/internal/storefront"
)

// Handlers binds the purchase flow and account services to bot updates.
type Handlers struct {
	flow  *storefront.Flow
	users *service.UserService
	texts storefront.Texts
}

func NewHandlers(flow *storefront.Flow, users *service.UserService, texts storefront.Texts) *Handlers {
	return &Handlers{flow: flow, users: users, texts: texts}
}

// resolveUser loads the registered account behind the update. Unknown
// accounts get pointed at /start; ok is false and err nil in that case.
func (h *Handlers) resolveUser(c tele.Context) (u models.User, ok bool, err error) {
	sender := c.Sender()
	if sender == nil {
		return models.User{}, false, nil
	}
	ctx := helpers.BuildContext(c)
	u, err = h.users.ByTelegramID(ctx, sender.ID)
	if errors.Is(err, service.ErrUserNotFound) {
		return models.User{}, false, helpers.SendHTML(c, h.texts.Text("need_start"))
	}
	if err != nil {
		return models.User{}, false, err
	}
	return u, true, nil
}

func (h *Handlers) mainMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons([]string{
		h.texts.Text("catalog_button"),
		h.texts.Text("balance_button"),
	})
}

// Start registers the buyer (or refreshes their username) and shows the
// main menu.
func (h *Handlers) Start(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)
	u, err := h.users.Register(ctx, sender.ID, sender.Username)
	if err != nil {
		return err
	}
	name := u.Username
	if name == "" {
		name = sender.FirstName
	}
	return helpers.SendHTML(c, h.texts.Text("start", format.EscapeHTML(name)), h.mainMenu())
}

// Balance shows the buyer's prepaid balance.
func (h *Handlers) Balance(c tele.Context) error {
	u, ok, err := h.resolveUser(c)
	if !ok || err != nil {
		return err
	}
	ctx := helpers.BuildContext(c)
	balance, err := h.users.Balance(ctx, u.ID)
	if err != nil {
		return err
	}
	return helpers.SendHTML(c, h.texts.Text("balance", balance.StringFixed(2)))
}

// Catalog opens the purchase wizard at the category listing.
func (h *Handlers) Catalog(c tele.Context) error {
	_, ok, err := h.resolveUser(c)
	if !ok || err != nil {
		return err
	}
	ctx := helpers.BuildContext(c)
	view, err := h.flow.Entry(ctx)
	if err != nil {
		return err
	}
	return renderView(c, view, false)
}

// ShopCallback drives every wizard step. The token in the callback
// payload carries the whole state; a bad token resets the buyer to the
// category listing instead of leaving the wizard wedged.
func (h *Handlers) ShopCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	u, ok, err := h.resolveUser(c)
	if !ok || err != nil {
		return err
	}

	ctx := helpers.BuildContext(c)
	_, payload := callbacks.ParseCallbackData(cb)

	view, err := h.flow.HandleCallback(ctx, u, payload)
	if err != nil {
		var malformed *storefront.MalformedTokenError
		var unknown *storefront.UnknownStepError
		if errors.As(err, &malformed) || errors.As(err, &unknown) {
			if entry, entryErr := h.flow.Entry(ctx); entryErr == nil {
				_ = renderView(c, entry, true)
			}
			return err
		}
		_ = helpers.SendHTML(c, h.texts.Text("purchase_failed"))
		return err
	}
	return renderView(c, view, true)
}

// BuildRegistry wires the handlers into a command/callback registry.
func BuildRegistry(h *Handlers) *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Register and open the menu",
	})
	reg.RegisterCommand("/catalog", commands.Command{
		Handler:     h.Catalog,
		Description: "Browse the catalog",
		Aliases:     []string{h.texts.Text("catalog_button")},
	})
	reg.RegisterCommand("/balance", commands.Command{
		Handler:     h.Balance,
		Description: "Show your balance",
		Aliases:     []string{h.texts.Text("balance_button")},
	})

	_ = reg.RegisterCallback(callbackUnique, h.ShopCallback)

	reg.SetTextFallback(func(c tele.Context) error {
		return helpers.SendHTML(c, h.texts.Text("unknown_text"), h.mainMenu())
	})

	return reg
}
