package storefront

import (
	"context"

	"github.com/m3rciful/shopbot/internal/models"
)

// Dispatch routes a decoded token to its step handler. The switch is the
// single place step values are interpreted; every other component treats
// Step as opaque.
func (f *Flow) Dispatch(ctx context.Context, user models.User, tok Token) (*View, error) {
	switch tok.Step {
	case StepBrowse:
		return f.browse(ctx, tok)
	case StepSubcategoryList:
		return f.subcategories(ctx, tok)
	case StepQuantitySelect:
		return f.selectQuantity(ctx, tok)
	case StepConfirm:
		return f.confirm(ctx, tok)
	case StepFulfill:
		return f.fulfill(ctx, user, tok)
	default:
		return nil, &UnknownStepError{Step: tok.Step}
	}
}

// HandleCallback decodes raw callback data and dispatches it.
func (f *Flow) HandleCallback(ctx context.Context, user models.User, raw string) (*View, error) {
	tok, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return f.Dispatch(ctx, user, tok)
}

// Entry returns the view that opens the wizard, used by the catalog
// command and as the reset target after malformed callbacks.
func (f *Flow) Entry(ctx context.Context) (*View, error) {
	return f.browse(ctx, NewToken(StepBrowse))
}
