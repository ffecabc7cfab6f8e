package storefront

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func tokensEqual(a, b Token) bool {
	return a.Step == b.Step &&
		a.CategoryID == b.CategoryID &&
		a.SubcategoryID == b.SubcategoryID &&
		a.UnitPrice.Equal(b.UnitPrice) &&
		a.Quantity == b.Quantity &&
		a.TotalPrice.Equal(b.TotalPrice) &&
		a.Confirmed == b.Confirmed &&
		a.Page == b.Page
}

func TestTokenRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		tok  Token
	}{
		{"fresh browse", NewToken(StepBrowse)},
		{"browse page 3", func() Token {
			tok := NewToken(StepBrowse)
			tok.Page = 3
			return tok
		}()},
		{"subcategory listing", func() Token {
			tok := NewToken(StepSubcategoryList)
			tok.CategoryID = 7
			return tok
		}()},
		{"full fulfill token", Token{
			Step:          StepFulfill,
			CategoryID:    7,
			SubcategoryID: 42,
			UnitPrice:     decimal.RequireFromString("9.99"),
			Quantity:      20,
			TotalPrice:    decimal.RequireFromString("199.80"),
			Confirmed:     true,
		}},
		{"declined fulfill token", Token{
			Step:          StepFulfill,
			CategoryID:    1,
			SubcategoryID: 2,
			UnitPrice:     decimal.RequireFromString("0.01"),
			Quantity:      1,
			TotalPrice:    decimal.RequireFromString("0.01"),
			Confirmed:     false,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := tc.tok.Encode()
			got, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode(%q): %v", raw, err)
			}
			if !tokensEqual(got, tc.tok) {
				t.Errorf("round trip changed token: %q -> %+v, want %+v", raw, got, tc.tok)
			}
			if again := got.Encode(); again != raw {
				t.Errorf("re-encode = %q, want %q", again, raw)
			}
		})
	}
}

func TestTokenEncodeFitsCallbackDataLimit(t *testing.T) {
	// Telegram caps callback_data at 64 bytes; leave room for the
	// framing prefix added by the transport.
	tok := Token{
		Step:          StepFulfill,
		CategoryID:    999999,
		SubcategoryID: 999999,
		UnitPrice:     mustDecimal(t, "99999.99"),
		Quantity:      100,
		TotalPrice:    mustDecimal(t, "9999999.00"),
		Confirmed:     true,
		Page:          99,
	}
	if n := len(tok.Encode()); n > 58 {
		t.Errorf("encoded token is %d bytes, exceeds callback data budget", n)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"too few fields", "0|1|2"},
		{"too many fields", "0|-1|-1|0|0|0|0|0|extra"},
		{"step not integer", "x|-1|-1|0|0|0|0|0"},
		{"category not integer", "0|abc|-1|0|0|0|0|0"},
		{"price not decimal", "2|1|2|cheap|0|0|0|0"},
		{"confirmation not flag", "4|1|2|1|1|1|yes|0"},
		{"confirmation out of range", "4|1|2|1|1|1|2|0"},
		{"negative quantity", "3|1|2|1|-5|5|0|0"},
		{"negative page", "0|-1|-1|0|0|0|0|-1"},
		{"negative price", "2|1|2|-1.50|0|0|0|0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.raw)
			if err == nil {
				t.Fatalf("Decode(%q) accepted malformed input", tc.raw)
			}
			var malformed *MalformedTokenError
			if !errors.As(err, &malformed) {
				t.Fatalf("Decode(%q) error = %T, want *MalformedTokenError", tc.raw, err)
			}
			if malformed.Code() != "MALFORMED_TOKEN" {
				t.Errorf("error code = %q", malformed.Code())
			}
		})
	}
}

func TestDecodeKeepsPriceScale(t *testing.T) {
	raw := "3|7|42|9.90|2|19.80|0|0"
	tok, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := tok.UnitPrice.StringFixed(2); got != "9.90" {
		t.Errorf("unit price = %s, want 9.90", got)
	}
	if got := tok.TotalPrice.StringFixed(2); got != "19.80" {
		t.Errorf("total = %s, want 19.80", got)
	}
	if !strings.Contains(tok.Encode(), "9.9") {
		t.Errorf("re-encode lost price: %q", tok.Encode())
	}
}

func TestUnknownStepHasCode(t *testing.T) {
	err := &UnknownStepError{Step: Step(9)}
	if err.Code() != "UNKNOWN_STEP" {
		t.Errorf("code = %q", err.Code())
	}
	if !strings.Contains(err.Error(), "9") {
		t.Errorf("message should carry the step value: %q", err.Error())
	}
}
