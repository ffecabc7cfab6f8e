package localization

import (
	"strings"
	"testing"
)

func TestEmbeddedTextsParse(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, key := range []string{
		"all_categories", "subcategory_button", "select_quantity",
		"buy_confirmation", "out_of_stock", "insufficient_funds",
		"purchase_caption", "purchased_item", "admin_purchase_notice",
	} {
		if !l.Has(key) {
			t.Errorf("missing embedded text %q", key)
		}
	}
}

func TestTextFormatting(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := l.Text("subcategory_button", "VPN key", "9.99", 12)
	want := "VPN key | $9.99 | 12 pcs"
	if got != want {
		t.Errorf("subcategory_button = %q, want %q", got, want)
	}

	got = l.Text("purchased_item", 3, "secret")
	if !strings.Contains(got, "3.") || !strings.Contains(got, "secret") {
		t.Errorf("purchased_item = %q, want index and payload present", got)
	}
}

func TestTextUnknownKeyReturnsKey(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := l.Text("definitely_missing_key"); got != "definitely_missing_key" {
		t.Errorf("unknown key = %q, want the key itself", got)
	}
}
