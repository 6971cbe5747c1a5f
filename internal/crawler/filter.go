package crawler

import (
	"context"
	"log/slog"

	"pricepipe/internal/browser"
	apperrors "pricepipe/internal/errors"
	"pricepipe/internal/wait"
)

// FilterSelection is one step of a query: pick OptionText in the list filter
// titled Title. RequiresSearch is set for long lists whose option is only
// rendered after typing into the popover's search box.
type FilterSelection struct {
	Title          string `yaml:"title"`
	OptionText     string `yaml:"option"`
	RequiresSearch bool   `yaml:"search"`
}

// ListFilterSelector applies one FilterSelection through the collapsed
// listbox protocol: open, optionally search, pick, confirm.
type ListFilterSelector struct {
	page *page
}

func NewListFilterSelector(session browser.Session, policy wait.Policy, delays Delays, logger *slog.Logger) *ListFilterSelector {
	return &ListFilterSelector{page: newPage(session, policy, delays, logger)}
}

func (s *ListFilterSelector) Select(ctx context.Context, f FilterSelection) error {
	logger := s.page.logger.With(slog.String("filter", f.Title), slog.String("option", f.OptionText))

	header := filterHeader(f.Title)
	if err := s.page.clickWhenReady(ctx, header); err != nil {
		return apperrors.NewFilterNotClickableError(f.Title, err).WithContext("selector", header)
	}
	s.page.settle(s.page.delays.FilterOpen)
	logger.DebugContext(ctx, "Filter opened")

	if f.RequiresSearch {
		input, err := s.page.present(ctx, selSearchInput)
		if err != nil {
			return apperrors.NewElementNotFoundError(f.Title+" search input", err).WithContext("selector", selSearchInput)
		}
		if err := input.SendKeys(ctx, f.OptionText); err != nil {
			return apperrors.NewBrowserError("type filter search", err)
		}
		s.page.settle(s.page.delays.FilterSearch)
		logger.DebugContext(ctx, "Filter searched")
	}

	option := filterOption(f.OptionText)
	if err := s.page.clickWhenReady(ctx, option); err != nil {
		return apperrors.NewOptionNotFoundError(f.Title, f.OptionText, err).WithContext("selector", option)
	}
	s.page.settle(s.page.delays.FilterOption)

	if err := s.page.clickWhenReady(ctx, selFilterOK); err != nil {
		return apperrors.NewConfirmNotClickableError(f.Title, err).WithContext("selector", selFilterOK)
	}
	s.page.settle(s.page.delays.FilterOK)

	logger.InfoContext(ctx, "Filter applied")
	return nil
}
