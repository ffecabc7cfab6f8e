package storefront

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/shopbot/core/telegram/format"
)

// selectQuantity renders the fixed quantity candidates for a chosen
// position. Stock is deliberately not consulted here: availability is
// checked at fulfillment, under locks, where the answer actually holds.
func (f *Flow) selectQuantity(ctx context.Context, tok Token) (*View, error) {
	if tok.SubcategoryID < 0 {
		return nil, &MalformedTokenError{Raw: tok.Encode(), Reason: "quantity selection requires a position"}
	}

	backToken := NewToken(StepSubcategoryList)
	backToken.CategoryID = tok.CategoryID
	backToken.Page = tok.Page
	backRow := []Button{{Label: f.texts.Text("back_button"), Token: backToken}}

	sub, err := f.catalog.Subcategory(ctx, tok.SubcategoryID)
	if err != nil {
		return nil, err
	}
	description, err := f.catalog.Description(ctx, tok.SubcategoryID)
	if err != nil {
		return nil, err
	}

	buttons := make([]Button, 0, len(quantitySteps))
	for _, qty := range quantitySteps {
		t := tok
		t.Step = StepConfirm
		t.Quantity = qty
		t.TotalPrice = tok.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
		buttons = append(buttons, Button{Label: f.texts.Text("quantity_button", qty), Token: t})
	}

	rows := chunkButtons(buttons, quantityButtonsPerRow)
	rows = append(rows, backRow)

	text := f.texts.Text("select_quantity",
		format.EscapeHTML(sub.Name),
		tok.UnitPrice.StringFixed(2),
		format.EscapeHTML(description),
	)
	return &View{Text: text, Rows: rows}, nil
}

// confirm renders the final yes/no prompt. The back button intentionally
// drops quantity and total so re-entering the quantity step starts clean.
func (f *Flow) confirm(ctx context.Context, tok Token) (*View, error) {
	if tok.SubcategoryID < 0 || tok.Quantity <= 0 {
		return nil, &MalformedTokenError{Raw: tok.Encode(), Reason: "confirmation requires a position and quantity"}
	}

	sub, err := f.catalog.Subcategory(ctx, tok.SubcategoryID)
	if err != nil {
		return nil, err
	}
	description, err := f.catalog.Description(ctx, tok.SubcategoryID)
	if err != nil {
		return nil, err
	}

	confirmToken := tok
	confirmToken.Step = StepFulfill
	confirmToken.Confirmed = true

	declineToken := confirmToken
	declineToken.Confirmed = false

	backToken := NewToken(StepQuantitySelect)
	backToken.CategoryID = tok.CategoryID
	backToken.SubcategoryID = tok.SubcategoryID
	backToken.UnitPrice = tok.UnitPrice
	backToken.Page = tok.Page

	rows := [][]Button{
		{
			{Label: f.texts.Text("confirm_button"), Token: confirmToken},
			{Label: f.texts.Text("decline_button"), Token: declineToken},
		},
		{
			{Label: f.texts.Text("back_button"), Token: backToken},
		},
	}

	text := f.texts.Text("buy_confirmation",
		format.EscapeHTML(sub.Name),
		format.EscapeHTML(description),
		tok.Quantity,
		tok.UnitPrice.StringFixed(2),
		tok.TotalPrice.StringFixed(2),
	)
	return &View{Text: text, Rows: rows}, nil
}
