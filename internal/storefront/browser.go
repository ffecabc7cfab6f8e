package storefront

import (
	"context"

	"log/slog"

	"github.com/m3rciful/shopbot/core/logger"
)

// browse renders the paginated category listing. Categories whose whole
// stock is sold out are hidden entirely.
func (f *Flow) browse(ctx context.Context, tok Token) (*View, error) {
	cats, err := f.catalog.UnsoldCategories(ctx, tok.Page, f.categoriesPerPage)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 && tok.Page == 0 {
		return &View{Text: f.texts.Text("no_categories")}, nil
	}

	maxPage, err := f.catalog.CategoryMaxPage(ctx, f.categoriesPerPage)
	if err != nil {
		return nil, err
	}

	buttons := make([]Button, 0, len(cats))
	for _, cat := range cats {
		t := NewToken(StepSubcategoryList)
		t.CategoryID = cat.ID
		buttons = append(buttons, Button{Label: cat.Name, Token: t})
	}

	rows := chunkButtons(buttons, categoryButtonsPerRow)
	if pag := f.paginationRow(NewToken(StepBrowse), tok.Page, maxPage); len(pag) > 0 {
		rows = append(rows, pag)
	}

	logger.Debug(ctx, "shop", "browse.page",
		slog.Int("page", tok.Page),
		slog.Int("categories", len(cats)),
	)
	return &View{Text: f.texts.Text("all_categories"), Rows: rows}, nil
}

// subcategories renders the positions of one category with live price and
// stock in the button labels. The price shown here becomes the snapshot
// carried by the quantity-step tokens.
func (f *Flow) subcategories(ctx context.Context, tok Token) (*View, error) {
	if tok.CategoryID < 0 {
		return nil, &MalformedTokenError{Raw: tok.Encode(), Reason: "subcategory listing requires a category"}
	}

	subs, err := f.catalog.UnsoldSubcategories(ctx, tok.CategoryID, tok.Page, f.subcategoriesPerPage)
	if err != nil {
		return nil, err
	}

	backRow := []Button{{Label: f.texts.Text("back_button"), Token: NewToken(StepBrowse)}}
	if len(subs) == 0 && tok.Page == 0 {
		return &View{
			Text: f.texts.Text("no_subcategories"),
			Rows: [][]Button{backRow},
		}, nil
	}

	maxPage, err := f.catalog.SubcategoryMaxPage(ctx, tok.CategoryID, f.subcategoriesPerPage)
	if err != nil {
		return nil, err
	}

	rows := make([][]Button, 0, len(subs)+2)
	for _, sub := range subs {
		price, err := f.catalog.Price(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		available, err := f.catalog.AvailableQuantity(ctx, sub.ID)
		if err != nil {
			return nil, err
		}

		t := NewToken(StepQuantitySelect)
		t.CategoryID = tok.CategoryID
		t.SubcategoryID = sub.ID
		t.UnitPrice = price
		t.Page = tok.Page

		label := f.texts.Text("subcategory_button", sub.Name, price.StringFixed(2), available)
		rows = append(rows, []Button{{Label: label, Token: t}})
	}

	pagBase := NewToken(StepSubcategoryList)
	pagBase.CategoryID = tok.CategoryID
	if pag := f.paginationRow(pagBase, tok.Page, maxPage); len(pag) > 0 {
		rows = append(rows, pag)
	}
	rows = append(rows, backRow)

	return &View{Text: f.texts.Text("choose_subcategory"), Rows: rows}, nil
}
