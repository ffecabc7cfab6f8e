package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/shopbot/internal/localization"
	"github.com/m3rciful/shopbot/internal/models"
)

// fixture is an in-memory backend implementing Catalog, Wallet,
// Transactor and Notifier. InTx works on a deep copy of the mutable
// state and publishes it only on success, so rollback behaviour is
// observable from tests.
type fixture struct {
	categories []models.Category
	subs       []models.Subcategory
	prices     map[int64]decimal.Decimal
	descs      map[int64]string

	items    map[int64][]models.Item
	balances map[int64]decimal.Decimal

	orders     []models.Order
	orderItems map[int64][]int64
	nextOrder  int64

	// failCreateOrder makes CreateOrder fail mid-transaction.
	failCreateOrder bool
	// stealStock removes that many items from stealFrom when a
	// transaction begins, simulating a concurrent purchase that
	// committed between the pre-check and the allocation.
	stealStock int
	stealFrom  int64
	// drainBalanceOf zeroes that user's balance when a transaction
	// begins, simulating a concurrent spend.
	drainBalanceOf int64

	notices []PurchaseNotice
}

func newFixture() *fixture {
	return &fixture{
		prices:     map[int64]decimal.Decimal{},
		descs:      map[int64]string{},
		items:      map[int64][]models.Item{},
		balances:   map[int64]decimal.Decimal{},
		orderItems: map[int64][]int64{},
	}
}

func (f *fixture) addCategory(id int64, name string) {
	f.categories = append(f.categories, models.Category{ID: id, Name: name})
}

func (f *fixture) addSubcategory(id, categoryID int64, name, price, desc string) {
	f.subs = append(f.subs, models.Subcategory{ID: id, CategoryID: categoryID, Name: name})
	f.prices[id] = decimal.RequireFromString(price)
	f.descs[id] = desc
}

func (f *fixture) addStock(subcategoryID int64, count int) {
	for i := 0; i < count; i++ {
		id := int64(len(f.items[subcategoryID])+1)*1000 + subcategoryID
		f.items[subcategoryID] = append(f.items[subcategoryID], models.Item{
			ID:            id,
			SubcategoryID: subcategoryID,
			Price:         f.prices[subcategoryID],
			Description:   f.descs[subcategoryID],
			PrivateData:   fmt.Sprintf("payload-%d-%d", subcategoryID, i+1),
		})
	}
}

// Catalog

func (f *fixture) stockedCategories() []models.Category {
	var out []models.Category
	for _, c := range f.categories {
		for _, s := range f.subs {
			if s.CategoryID == c.ID && len(f.items[s.ID]) > 0 {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func pageOf[T any](all []T, page, perPage int) []T {
	lo := page * perPage
	if lo >= len(all) {
		return nil
	}
	hi := lo + perPage
	if hi > len(all) {
		hi = len(all)
	}
	return all[lo:hi]
}

func lastPage(count, perPage int) int {
	if count <= 0 {
		return 0
	}
	return (count - 1) / perPage
}

func (f *fixture) UnsoldCategories(_ context.Context, page, perPage int) ([]models.Category, error) {
	return pageOf(f.stockedCategories(), page, perPage), nil
}

func (f *fixture) CategoryMaxPage(_ context.Context, perPage int) (int, error) {
	return lastPage(len(f.stockedCategories()), perPage), nil
}

func (f *fixture) stockedSubcategories(categoryID int64) []models.Subcategory {
	var out []models.Subcategory
	for _, s := range f.subs {
		if s.CategoryID == categoryID && len(f.items[s.ID]) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (f *fixture) UnsoldSubcategories(_ context.Context, categoryID int64, page, perPage int) ([]models.Subcategory, error) {
	return pageOf(f.stockedSubcategories(categoryID), page, perPage), nil
}

func (f *fixture) SubcategoryMaxPage(_ context.Context, categoryID int64, perPage int) (int, error) {
	return lastPage(len(f.stockedSubcategories(categoryID)), perPage), nil
}

func (f *fixture) Subcategory(_ context.Context, subcategoryID int64) (models.Subcategory, error) {
	for _, s := range f.subs {
		if s.ID == subcategoryID {
			return s, nil
		}
	}
	return models.Subcategory{}, fmt.Errorf("no subcategory %d", subcategoryID)
}

func (f *fixture) Price(_ context.Context, subcategoryID int64) (decimal.Decimal, error) {
	return f.prices[subcategoryID], nil
}

func (f *fixture) AvailableQuantity(_ context.Context, subcategoryID int64) (int, error) {
	return len(f.items[subcategoryID]), nil
}

func (f *fixture) Description(_ context.Context, subcategoryID int64) (string, error) {
	return f.descs[subcategoryID], nil
}

// Wallet

func (f *fixture) CanAfford(_ context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	return f.balances[userID].GreaterThanOrEqual(amount), nil
}

// Transactor

type fixtureTx struct {
	f *fixture

	balances   map[int64]decimal.Decimal
	items      map[int64][]models.Item
	orders     []models.Order
	orderItems map[int64][]int64
	nextOrder  int64
}

func (f *fixture) InTx(_ context.Context, fn func(tx Tx) error) error {
	// Concurrent-writer simulation happens against the committed state
	// before this transaction takes its snapshot.
	if f.stealStock > 0 {
		stock := f.items[f.stealFrom]
		if f.stealStock < len(stock) {
			f.items[f.stealFrom] = stock[:len(stock)-f.stealStock]
		} else {
			f.items[f.stealFrom] = nil
		}
		f.stealStock = 0
	}
	if f.drainBalanceOf != 0 {
		f.balances[f.drainBalanceOf] = decimal.Zero
		f.drainBalanceOf = 0
	}

	tx := &fixtureTx{
		f:          f,
		balances:   map[int64]decimal.Decimal{},
		items:      map[int64][]models.Item{},
		orderItems: map[int64][]int64{},
		orders:     append([]models.Order(nil), f.orders...),
		nextOrder:  f.nextOrder,
	}
	for k, v := range f.balances {
		tx.balances[k] = v
	}
	for k, v := range f.items {
		tx.items[k] = append([]models.Item(nil), v...)
	}
	for k, v := range f.orderItems {
		tx.orderItems[k] = append([]int64(nil), v...)
	}

	if err := fn(tx); err != nil {
		return err
	}

	f.balances = tx.balances
	f.items = tx.items
	f.orders = tx.orders
	f.orderItems = tx.orderItems
	f.nextOrder = tx.nextOrder
	return nil
}

func (t *fixtureTx) DebitBalance(_ context.Context, userID int64, amount decimal.Decimal) error {
	balance := t.balances[userID]
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	t.balances[userID] = balance.Sub(amount)
	return nil
}

func (t *fixtureTx) AllocateUnsold(_ context.Context, subcategoryID int64, quantity int) ([]models.Item, error) {
	stock := t.items[subcategoryID]
	if len(stock) < quantity {
		return nil, ErrAllocationRace
	}
	return append([]models.Item(nil), stock[:quantity]...), nil
}

func (t *fixtureTx) CreateOrder(_ context.Context, userID int64, quantity int, total decimal.Decimal) (models.Order, error) {
	if t.f.failCreateOrder {
		return models.Order{}, errors.New("orders table unavailable")
	}
	t.nextOrder++
	order := models.Order{
		ID:        t.nextOrder,
		Reference: fmt.Sprintf("ref-%d", t.nextOrder),
		UserID:    userID,
		Quantity:  quantity,
		Total:     total,
	}
	t.orders = append(t.orders, order)
	return order, nil
}

func (t *fixtureTx) AddOrderItems(_ context.Context, orderID int64, items []models.Item) error {
	for _, it := range items {
		t.orderItems[orderID] = append(t.orderItems[orderID], it.ID)
	}
	return nil
}

func (t *fixtureTx) MarkSold(_ context.Context, items []models.Item) error {
	sold := map[int64]bool{}
	for _, it := range items {
		sold[it.ID] = true
	}
	for sub, stock := range t.items {
		var left []models.Item
		for _, it := range stock {
			if !sold[it.ID] {
				left = append(left, it)
			}
		}
		t.items[sub] = left
	}
	return nil
}

// Notifier

func (f *fixture) NotifyPurchase(_ context.Context, n PurchaseNotice) {
	f.notices = append(f.notices, n)
}

func newTestFlow(t *testing.T, fx *fixture, perPage int) *Flow {
	t.Helper()
	texts, err := localization.New()
	if err != nil {
		t.Fatalf("localization: %v", err)
	}
	return NewFlow(Deps{
		Catalog:              fx,
		Wallet:               fx,
		Transactor:           fx,
		Notifier:             fx,
		Texts:                texts,
		CategoriesPerPage:    perPage,
		SubcategoriesPerPage: perPage,
	})
}

func testUser() models.User {
	return models.User{ID: 1, TelegramID: 555000111, Username: "buyer"}
}

func flatButtons(v *View) []Button {
	var out []Button
	for _, row := range v.Rows {
		out = append(out, row...)
	}
	return out
}

func TestBrowseListsCategories(t *testing.T) {
	fx := newFixture()
	fx.addCategory(1, "Accounts")
	fx.addCategory(2, "Keys")
	fx.addSubcategory(10, 1, "Mail", "1.00", "mail account")
	fx.addSubcategory(20, 2, "VPN", "2.00", "vpn key")
	fx.addStock(10, 3)
	fx.addStock(20, 3)

	flow := newTestFlow(t, fx, 10)
	view, err := flow.Dispatch(context.Background(), testUser(), NewToken(StepBrowse))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	buttons := flatButtons(view)
	if len(buttons) != 2 {
		t.Fatalf("got %d buttons, want 2", len(buttons))
	}
	for i, want := range []int64{1, 2} {
		tok := buttons[i].Token
		if tok.Step != StepSubcategoryList {
			t.Errorf("button %d step = %v, want subcategories", i, tok.Step)
		}
		if tok.CategoryID != want {
			t.Errorf("button %d category = %d, want %d", i, tok.CategoryID, want)
		}
		if tok.SubcategoryID != unset {
			t.Errorf("button %d subcategory = %d, want unset", i, tok.SubcategoryID)
		}
	}
}

func TestBrowseHidesSoldOutCategories(t *testing.T) {
	fx := newFixture()
	fx.addCategory(1, "Stocked")
	fx.addCategory(2, "Empty")
	fx.addSubcategory(10, 1, "A", "1.00", "")
	fx.addSubcategory(20, 2, "B", "1.00", "")
	fx.addStock(10, 1)
	// category 2 has no stock at all

	flow := newTestFlow(t, fx, 10)
	view, err := flow.Entry(context.Background())
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	buttons := flatButtons(view)
	if len(buttons) != 1 || buttons[0].Label != "Stocked" {
		t.Fatalf("buttons = %+v, want only the stocked category", buttons)
	}
}

func TestBrowsePagination(t *testing.T) {
	fx := newFixture()
	for i := int64(1); i <= 3; i++ {
		fx.addCategory(i, fmt.Sprintf("Cat %d", i))
		fx.addSubcategory(i*10, i, "Sub", "1.00", "")
		fx.addStock(i*10, 1)
	}

	flow := newTestFlow(t, fx, 1)
	tok := NewToken(StepBrowse)
	tok.Page = 1
	view, err := flow.Dispatch(context.Background(), testUser(), tok)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	last := view.Rows[len(view.Rows)-1]
	if len(last) != 2 {
		t.Fatalf("pagination row has %d buttons, want prev and next", len(last))
	}
	if last[0].Token.Page != 0 || last[0].Token.Step != StepBrowse {
		t.Errorf("prev token = %+v", last[0].Token)
	}
	if last[1].Token.Page != 2 || last[1].Token.Step != StepBrowse {
		t.Errorf("next token = %+v", last[1].Token)
	}

	// First page offers no prev, last page no next.
	first, _ := flow.Entry(context.Background())
	fr := first.Rows[len(first.Rows)-1]
	if len(fr) != 1 || fr[0].Token.Page != 1 {
		t.Errorf("first page pagination = %+v, want single next to page 1", fr)
	}
}

func TestBrowseEmptyCatalog(t *testing.T) {
	fx := newFixture()
	flow := newTestFlow(t, fx, 10)
	view, err := flow.Entry(context.Background())
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if len(view.Rows) != 0 {
		t.Errorf("empty catalog should have no keyboard, got %d rows", len(view.Rows))
	}
	if view.Text == "" {
		t.Error("empty catalog view has no text")
	}
}

func TestSubcategoriesSnapshotPrice(t *testing.T) {
	fx := newFixture()
	fx.addCategory(1, "Keys")
	fx.addSubcategory(42, 1, "VPN", "9.90", "fast vpn")
	fx.addStock(42, 12)

	flow := newTestFlow(t, fx, 10)
	tok := NewToken(StepSubcategoryList)
	tok.CategoryID = 1
	view, err := flow.Dispatch(context.Background(), testUser(), tok)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	btn := view.Rows[0][0]
	if btn.Label != "VPN | $9.90 | 12 pcs" {
		t.Errorf("label = %q", btn.Label)
	}
	want := btn.Token
	if want.Step != StepQuantitySelect || want.CategoryID != 1 || want.SubcategoryID != 42 {
		t.Errorf("token = %+v", want)
	}
	if !want.UnitPrice.Equal(decimal.RequireFromString("9.90")) {
		t.Errorf("snapshot price = %s, want 9.90", want.UnitPrice)
	}

	// The token must survive the wire unchanged.
	decoded, err := Decode(want.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !tokensEqual(decoded, want) {
		t.Errorf("wire round trip changed token: %+v", decoded)
	}
}

func TestQuantityCandidatesFixedSet(t *testing.T) {
	fx := newFixture()
	fx.addCategory(1, "Keys")
	fx.addSubcategory(42, 1, "VPN", "2.50", "fast vpn")
	// Stock is far below the larger candidates on purpose: the keyboard
	// still offers the whole fixed set, fulfillment enforces stock.
	fx.addStock(42, 5)

	flow := newTestFlow(t, fx, 10)
	tok := NewToken(StepQuantitySelect)
	tok.CategoryID = 1
	tok.SubcategoryID = 42
	tok.UnitPrice = decimal.RequireFromString("2.50")
	tok.Page = 1

	view, err := flow.Dispatch(context.Background(), testUser(), tok)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var qtys []int
	for _, btn := range flatButtons(view) {
		if btn.Token.Step == StepConfirm {
			qtys = append(qtys, btn.Token.Quantity)
			wantTotal := tok.UnitPrice.Mul(decimal.NewFromInt(int64(btn.Token.Quantity)))
			if !btn.Token.TotalPrice.Equal(wantTotal) {
				t.Errorf("qty %d total = %s, want %s", btn.Token.Quantity, btn.Token.TotalPrice, wantTotal)
			}
		}
	}
	want := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 20, 50, 100}
	if len(qtys) != len(want) {
		t.Fatalf("quantities = %v, want the full fixed set %v", qtys, want)
	}
	for i := range want {
		if qtys[i] != want[i] {
			t.Fatalf("quantities = %v, want %v", qtys, want)
		}
	}

	// Back button re-enters the listing at the same page with position
	// and price dropped.
	back := flatButtons(view)[len(flatButtons(view))-1].Token
	if back.Step != StepSubcategoryList || back.CategoryID != 1 {
		t.Errorf("back token = %+v", back)
	}
	if back.Page != 1 {
		t.Errorf("back token lost the listing page: %+v", back)
	}
	if back.SubcategoryID != unset || !back.UnitPrice.IsZero() {
		t.Errorf("back token leaks selection: %+v", back)
	}
}

func TestConfirmTokensAndBackReset(t *testing.T) {
	fx := newFixture()
	fx.addCategory(1, "Keys")
	fx.addSubcategory(42, 1, "VPN", "2.50", "fast vpn")
	fx.addStock(42, 10)

	flow := newTestFlow(t, fx, 10)
	tok := Token{
		Step:          StepConfirm,
		CategoryID:    1,
		SubcategoryID: 42,
		UnitPrice:     decimal.RequireFromString("2.50"),
		Quantity:      4,
		TotalPrice:    decimal.RequireFromString("10.00"),
		Page:          2,
	}

	view, err := flow.Dispatch(context.Background(), testUser(), tok)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	confirm := view.Rows[0][0].Token
	decline := view.Rows[0][1].Token
	back := view.Rows[1][0].Token

	if confirm.Step != StepFulfill || !confirm.Confirmed {
		t.Errorf("confirm token = %+v", confirm)
	}
	if decline.Step != StepFulfill || decline.Confirmed {
		t.Errorf("decline token = %+v", decline)
	}
	if confirm.Quantity != 4 || !confirm.TotalPrice.Equal(tok.TotalPrice) {
		t.Errorf("confirm token lost the order: %+v", confirm)
	}

	if back.Step != StepQuantitySelect {
		t.Errorf("back step = %v", back.Step)
	}
	if back.Quantity != 0 || !back.TotalPrice.IsZero() {
		t.Errorf("back token keeps stale quantity: %+v", back)
	}
	if back.SubcategoryID != 42 || !back.UnitPrice.Equal(tok.UnitPrice) {
		t.Errorf("back token dropped position context: %+v", back)
	}
	if back.Page != 2 || confirm.Page != 2 {
		t.Errorf("listing page dropped: back %+v, confirm %+v", back, confirm)
	}

	if !strings.Contains(view.Text, "fast vpn") {
		t.Errorf("confirmation text misses the description: %q", view.Text)
	}
}

func TestSubcategoryButtonsCarryListingPage(t *testing.T) {
	fx := newFixture()
	fx.addCategory(1, "Keys")
	for i := int64(1); i <= 3; i++ {
		fx.addSubcategory(40+i, 1, fmt.Sprintf("Sub %d", i), "1.00", "")
		fx.addStock(40+i, 1)
	}

	flow := newTestFlow(t, fx, 1)
	tok := NewToken(StepSubcategoryList)
	tok.CategoryID = 1
	tok.Page = 2

	view, err := flow.Dispatch(context.Background(), testUser(), tok)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	btn := view.Rows[0][0].Token
	if btn.Step != StepQuantitySelect || btn.Page != 2 {
		t.Errorf("position token = %+v, want the listing page carried", btn)
	}
}

func TestDispatchUnknownStep(t *testing.T) {
	fx := newFixture()
	flow := newTestFlow(t, fx, 10)

	tok := NewToken(Step(9))
	_, err := flow.Dispatch(context.Background(), testUser(), tok)
	var unknown *UnknownStepError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want *UnknownStepError", err)
	}
}

func TestDispatchRevalidatesStepFields(t *testing.T) {
	fx := newFixture()
	flow := newTestFlow(t, fx, 10)

	cases := []Token{
		NewToken(StepSubcategoryList),                         // no category chosen
		NewToken(StepQuantitySelect),                          // no position chosen
		NewToken(StepConfirm),                                 // no quantity
		{Step: StepFulfill, CategoryID: 1, SubcategoryID: -1}, // no position
	}
	for _, tok := range cases {
		_, err := flow.Dispatch(context.Background(), testUser(), tok)
		var malformed *MalformedTokenError
		if !errors.As(err, &malformed) {
			t.Errorf("Dispatch(%+v) err = %v, want *MalformedTokenError", tok, err)
		}
	}
}

func TestHandleCallbackRejectsGarbage(t *testing.T) {
	fx := newFixture()
	flow := newTestFlow(t, fx, 10)

	_, err := flow.HandleCallback(context.Background(), testUser(), "definitely|not|a|token")
	var malformed *MalformedTokenError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want *MalformedTokenError", err)
	}
}
