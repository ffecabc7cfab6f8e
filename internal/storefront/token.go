package storefront

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Step identifies a stage of the purchase wizard. The value travels
// inside every callback token and selects the handler on the way back.
type Step int

const (
	// StepBrowse lists categories that still have unsold items.
	StepBrowse Step = iota
	// StepSubcategoryList lists subcategories of the chosen category.
	StepSubcategoryList
	// StepQuantitySelect offers the fixed quantity candidates.
	StepQuantitySelect
	// StepConfirm shows the confirm/decline prompt.
	StepConfirm
	// StepFulfill executes the purchase transaction.
	StepFulfill
)

// String returns a short name for logs.
func (s Step) String() string {
	switch s {
	case StepBrowse:
		return "browse"
	case StepSubcategoryList:
		return "subcategories"
	case StepQuantitySelect:
		return "quantity"
	case StepConfirm:
		return "confirm"
	case StepFulfill:
		return "fulfill"
	default:
		return "step(" + strconv.Itoa(int(s)) + ")"
	}
}

// Token is the full wizard state carried by a callback button. It is the
// only session there is: every button mints a fresh token and the server
// keeps nothing between interactions.
//
// UnitPrice and TotalPrice are snapshots taken when the subcategory and
// quantity were chosen. Fulfillment deliberately charges the snapshot,
// not a re-read price, so the amount cannot change between the confirm
// screen and the debit.
type Token struct {
	Step          Step
	CategoryID    int64
	SubcategoryID int64
	UnitPrice     decimal.Decimal
	Quantity      int
	TotalPrice    decimal.Decimal
	Confirmed     bool
	Page          int
}

// unset marks category/subcategory identifiers that are not chosen yet.
const unset = -1

const tokenFieldCount = 8

// NewToken returns a token for the given step with identifier fields unset.
func NewToken(step Step) Token {
	return Token{Step: step, CategoryID: unset, SubcategoryID: unset}
}

// Encode packs the token into a compact pipe-separated string suitable
// for Telegram callback data. Encoding is deterministic: equal tokens
// produce equal strings.
func (t Token) Encode() string {
	conf := "0"
	if t.Confirmed {
		conf = "1"
	}
	fields := [tokenFieldCount]string{
		strconv.Itoa(int(t.Step)),
		strconv.FormatInt(t.CategoryID, 10),
		strconv.FormatInt(t.SubcategoryID, 10),
		t.UnitPrice.String(),
		strconv.Itoa(t.Quantity),
		t.TotalPrice.String(),
		conf,
		strconv.Itoa(t.Page),
	}
	return strings.Join(fields[:], "|")
}

// Decode parses a wire token. It is pure: no service lookups, no
// defaults for missing fields. Any deviation from the schema yields
// *MalformedTokenError.
func Decode(raw string) (Token, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != tokenFieldCount {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "field count mismatch"}
	}

	step, err := strconv.Atoi(parts[0])
	if err != nil {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "step is not an integer"}
	}
	categoryID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "category id is not an integer"}
	}
	subcategoryID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "subcategory id is not an integer"}
	}
	unitPrice, err := decimal.NewFromString(parts[3])
	if err != nil {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "unit price is not a decimal"}
	}
	quantity, err := strconv.Atoi(parts[4])
	if err != nil {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "quantity is not an integer"}
	}
	totalPrice, err := decimal.NewFromString(parts[5])
	if err != nil {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "total price is not a decimal"}
	}
	var confirmed bool
	switch parts[6] {
	case "0":
		confirmed = false
	case "1":
		confirmed = true
	default:
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "confirmation flag is not 0/1"}
	}
	page, err := strconv.Atoi(parts[7])
	if err != nil {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "page is not an integer"}
	}

	if quantity < 0 {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "negative quantity"}
	}
	if page < 0 {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "negative page"}
	}
	if unitPrice.IsNegative() || totalPrice.IsNegative() {
		return Token{}, &MalformedTokenError{Raw: raw, Reason: "negative price"}
	}

	return Token{
		Step:          Step(step),
		CategoryID:    categoryID,
		SubcategoryID: subcategoryID,
		UnitPrice:     unitPrice,
		Quantity:      quantity,
		TotalPrice:    totalPrice,
		Confirmed:     confirmed,
		Page:          page,
	}, nil
}
