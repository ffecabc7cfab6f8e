package storefront

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func purchaseToken(qty int, unit string) Token {
	u := decimal.RequireFromString(unit)
	return Token{
		Step:          StepFulfill,
		CategoryID:    1,
		SubcategoryID: 42,
		UnitPrice:     u,
		Quantity:      qty,
		TotalPrice:    u.Mul(decimal.NewFromInt(int64(qty))),
		Confirmed:     true,
	}
}

// wantBrowseBack fails the test when a failure view has no button
// leading back to the category listing.
func wantBrowseBack(t *testing.T, view *View) {
	t.Helper()
	for _, btn := range flatButtons(view) {
		if btn.Token.Step == StepBrowse {
			return
		}
	}
	t.Errorf("view has no return-to-browse button: %+v", view.Rows)
}

func purchaseFixture(stock int, balance string) *fixture {
	fx := newFixture()
	fx.addCategory(1, "Keys")
	fx.addSubcategory(42, 1, "VPN", "2.50", "fast vpn")
	fx.addStock(42, stock)
	fx.balances[1] = decimal.RequireFromString(balance)
	return fx
}

func TestFulfillDeclined(t *testing.T) {
	fx := purchaseFixture(5, "100.00")
	flow := newTestFlow(t, fx, 10)

	tok := purchaseToken(2, "2.50")
	tok.Confirmed = false

	view, err := flow.Dispatch(context.Background(), testUser(), tok)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(view.Text, "cancelled") {
		t.Errorf("text = %q, want cancellation notice", view.Text)
	}
	wantBrowseBack(t, view)
	if len(fx.orders) != 0 {
		t.Errorf("declined purchase created %d orders", len(fx.orders))
	}
	if !fx.balances[1].Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("declined purchase touched balance: %s", fx.balances[1])
	}
	if len(fx.notices) != 0 {
		t.Errorf("declined purchase sent %d notices", len(fx.notices))
	}
}

func TestFulfillSingleItem(t *testing.T) {
	fx := purchaseFixture(5, "100.00")
	flow := newTestFlow(t, fx, 10)

	view, err := flow.Dispatch(context.Background(), testUser(), purchaseToken(1, "2.50"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if view.Document != nil {
		t.Fatal("single item should be delivered inline, not as a document")
	}
	if !strings.Contains(view.Text, "payload-42-1") {
		t.Errorf("receipt %q misses the private payload", view.Text)
	}

	if got := fx.balances[1]; !got.Equal(decimal.RequireFromString("97.50")) {
		t.Errorf("balance = %s, want 97.50", got)
	}
	if got := len(fx.items[42]); got != 4 {
		t.Errorf("stock left = %d, want 4", got)
	}
	if len(fx.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(fx.orders))
	}
	order := fx.orders[0]
	if order.Quantity != 1 || !order.Total.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("order = %+v", order)
	}
	if len(fx.orderItems[order.ID]) != 1 {
		t.Errorf("order items = %v", fx.orderItems[order.ID])
	}

	if len(fx.notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(fx.notices))
	}
	n := fx.notices[0]
	if n.Subcategory != "VPN" || n.Quantity != 1 || !n.Total.Equal(order.Total) {
		t.Errorf("notice = %+v", n)
	}
	if n.BuyerID != testUser().TelegramID {
		t.Errorf("notice buyer = %d", n.BuyerID)
	}
}

func TestFulfillMultiItemDocument(t *testing.T) {
	fx := purchaseFixture(5, "100.00")
	flow := newTestFlow(t, fx, 10)

	view, err := flow.Dispatch(context.Background(), testUser(), purchaseToken(3, "2.50"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if view.Document == nil {
		t.Fatal("multi-item purchase should produce a document")
	}
	if !view.DeleteMessage {
		t.Error("document delivery should replace the wizard message")
	}

	content := string(view.Document.Content)
	for i := 1; i <= 3; i++ {
		line := fmt.Sprintf("%d. payload-42-%d", i, i)
		if !strings.Contains(content, line) {
			t.Errorf("document misses line %q:\n%s", line, content)
		}
	}
	if view.Document.Caption == "" {
		t.Error("document has no caption")
	}
	if !strings.Contains(view.Document.Name, "555000111") || !strings.HasSuffix(view.Document.Name, ".txt") {
		t.Errorf("document name = %q", view.Document.Name)
	}

	// Allocation is injective: three distinct items, all off the shelf.
	order := fx.orders[0]
	ids := fx.orderItems[order.ID]
	seen := map[int64]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("item %d allocated twice", id)
		}
		seen[id] = true
		for _, left := range fx.items[42] {
			if left.ID == id {
				t.Errorf("item %d sold but still on the shelf", id)
			}
		}
	}
	if len(ids) != 3 {
		t.Errorf("order items = %v, want 3", ids)
	}
}

func TestFulfillOutOfStockPrecheck(t *testing.T) {
	fx := purchaseFixture(2, "100.00")
	flow := newTestFlow(t, fx, 10)

	view, err := flow.Dispatch(context.Background(), testUser(), purchaseToken(5, "2.50"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(view.Text, "Out of stock") {
		t.Errorf("text = %q", view.Text)
	}
	wantBrowseBack(t, view)
	if !fx.balances[1].Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("balance touched: %s", fx.balances[1])
	}
	if len(fx.orders) != 0 {
		t.Errorf("orders = %d", len(fx.orders))
	}
}

func TestFulfillInsufficientFundsPrecheck(t *testing.T) {
	fx := purchaseFixture(5, "1.00")
	flow := newTestFlow(t, fx, 10)

	view, err := flow.Dispatch(context.Background(), testUser(), purchaseToken(2, "2.50"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(view.Text, "Insufficient funds") {
		t.Errorf("text = %q", view.Text)
	}
	wantBrowseBack(t, view)
	if len(fx.orders) != 0 {
		t.Errorf("orders = %d", len(fx.orders))
	}
}

func TestFulfillAllocationRaceRollsBack(t *testing.T) {
	fx := purchaseFixture(5, "100.00")
	// A concurrent purchase commits between the stock pre-check and the
	// allocation, leaving only 2 items.
	fx.stealStock = 3
	fx.stealFrom = 42
	flow := newTestFlow(t, fx, 10)

	view, err := flow.Dispatch(context.Background(), testUser(), purchaseToken(5, "2.50"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(view.Text, "Out of stock") {
		t.Errorf("text = %q", view.Text)
	}
	wantBrowseBack(t, view)

	// The staged debit must have been rolled back with the transaction.
	if !fx.balances[1].Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("balance = %s, want untouched 100.00", fx.balances[1])
	}
	if len(fx.orders) != 0 {
		t.Errorf("orders = %d", len(fx.orders))
	}
	if len(fx.notices) != 0 {
		t.Errorf("notices = %d", len(fx.notices))
	}
}

func TestFulfillFundsRaceRollsBack(t *testing.T) {
	fx := purchaseFixture(5, "100.00")
	// Balance disappears after the pre-check passed.
	fx.drainBalanceOf = 1
	flow := newTestFlow(t, fx, 10)

	view, err := flow.Dispatch(context.Background(), testUser(), purchaseToken(2, "2.50"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(view.Text, "Insufficient funds") {
		t.Errorf("text = %q", view.Text)
	}
	wantBrowseBack(t, view)
	if got := len(fx.items[42]); got != 5 {
		t.Errorf("stock = %d, want untouched 5", got)
	}
	if len(fx.orders) != 0 {
		t.Errorf("orders = %d", len(fx.orders))
	}
}

func TestFulfillMidTransactionFailureRestoresEverything(t *testing.T) {
	fx := purchaseFixture(5, "100.00")
	fx.failCreateOrder = true
	flow := newTestFlow(t, fx, 10)

	_, err := flow.Dispatch(context.Background(), testUser(), purchaseToken(2, "2.50"))
	if err == nil {
		t.Fatal("expected an error from the failed transaction")
	}

	if !fx.balances[1].Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("balance = %s, want untouched 100.00", fx.balances[1])
	}
	if got := len(fx.items[42]); got != 5 {
		t.Errorf("stock = %d, want untouched 5", got)
	}
	if len(fx.orders) != 0 {
		t.Errorf("orders = %d", len(fx.orders))
	}
	if len(fx.notices) != 0 {
		t.Errorf("failure still notified: %d", len(fx.notices))
	}
}

func TestFulfillChargesSnapshotPrice(t *testing.T) {
	fx := purchaseFixture(5, "100.00")
	// Catalog price moved after the buyer saw the listing.
	fx.prices[42] = decimal.RequireFromString("99.00")
	flow := newTestFlow(t, fx, 10)

	tok := purchaseToken(2, "2.50") // snapshot from the listing
	view, err := flow.Dispatch(context.Background(), testUser(), tok)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if view.Document != nil {
		t.Log("document receipt")
	}
	if !fx.balances[1].Equal(decimal.RequireFromString("95.00")) {
		t.Errorf("balance = %s, want 95.00 (charged the snapshot)", fx.balances[1])
	}
	if !fx.orders[0].Total.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("order total = %s, want the snapshot total", fx.orders[0].Total)
	}
}
