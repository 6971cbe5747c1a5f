package crawler

import (
	"context"
	"errors"
	"log/slog"

	"pricepipe/internal/browser"
	apperrors "pricepipe/internal/errors"
	"pricepipe/internal/wait"
)

// ItemSelector picks the commodity from the sheet's plain item dropdown. It
// has no search box and no confirm button, unlike the list filters.
type ItemSelector struct {
	page *page
}

func NewItemSelector(session browser.Session, policy wait.Policy, delays Delays, logger *slog.Logger) *ItemSelector {
	return &ItemSelector{page: newPage(session, policy, delays, logger)}
}

// Select chooses item by its visible label.
func (s *ItemSelector) Select(ctx context.Context, item string) error {
	el, err := s.page.present(ctx, selItemSelect)
	if err != nil {
		return apperrors.NewElementNotFoundError("item select", err).WithContext("selector", selItemSelect)
	}
	if err := el.SelectByVisibleText(ctx, item); err != nil {
		if errors.Is(err, browser.ErrOptionNotFound) {
			return apperrors.NewOptionNotFoundError("item", item, err)
		}
		return apperrors.NewBrowserError("select item", err)
	}
	s.page.settle(s.page.delays.Item)

	s.page.logger.InfoContext(ctx, "Item selected", slog.String("item", item))
	return nil
}
