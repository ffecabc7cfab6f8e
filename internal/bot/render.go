package bot

import (
	"bytes"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/core/telegram/keyboard"
	"github.com/m3rciful/shopbot/internal/storefront"
)

// callbackUnique keys every wizard button; the callback router uses it to
// find the single storefront handler.
const callbackUnique = "shop"

func markupFor(view *storefront.View) *tele.ReplyMarkup {
	if len(view.Rows) == 0 {
		return nil
	}
	rows := make([][]keyboard.InlineBtn, 0, len(view.Rows))
	for _, row := range view.Rows {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			btns = append(btns, keyboard.InlineBtn{
				Text:   b.Label,
				Unique: callbackUnique,
				Data:   b.Token.Encode(),
			})
		}
		rows = append(rows, btns)
	}
	return keyboard.InlineButtonsRows(rows...)
}

// renderView materializes a wizard view. Callback-driven steps edit the
// existing message in place; command entry points send a fresh one.
func renderView(c tele.Context, view *storefront.View, edit bool) error {
	if view.Document != nil {
		doc := &tele.Document{
			File:     tele.FromReader(bytes.NewReader(view.Document.Content)),
			FileName: view.Document.Name,
			Caption:  view.Document.Caption,
		}
		if view.DeleteMessage {
			_ = c.Delete()
		}
		return c.Send(doc)
	}

	markup := markupFor(view)
	if edit {
		if markup != nil {
			return helpers.EditOrSendHTML(c, view.Text, markup)
		}
		return helpers.EditOrSendHTML(c, view.Text)
	}
	if markup != nil {
		return helpers.SendHTML(c, view.Text, markup)
	}
	return helpers.SendHTML(c, view.Text)
}
