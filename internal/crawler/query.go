package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v2"

	"pricepipe/internal/browser"
	apperrors "pricepipe/internal/errors"
	"pricepipe/internal/wait"
)

// QuerySpec is the fixed selection a run requests. Filters are applied in
// order; later filters offer options that depend on earlier ones.
type QuerySpec struct {
	Item    string            `yaml:"item"`
	Filters []FilterSelection `yaml:"filters"`
}

// DefaultQuerySpec is highland napa cabbage, 10kg net bags, Seoul Garak
// market, grown in Gangwon, grades 상 and 특.
func DefaultQuerySpec() QuerySpec {
	return QuerySpec{
		Item: "배추",
		Filters: []FilterSelection{
			{Title: "품종", OptionText: "고냉지배추"},
			{Title: "거래단위", OptionText: "10kg그물망", RequiresSearch: true},
			{Title: "도매시장", OptionText: "서울가락도매"},
			{Title: "산지-광역시도", OptionText: "강원도"},
			{Title: "등급", OptionText: "상"},
			{Title: "등급", OptionText: "특"},
		},
	}
}

// Validate reports whether the spec can be executed.
func (q QuerySpec) Validate() error {
	if q.Item == "" {
		return apperrors.NewConfigError("query item is empty", nil)
	}
	for i, f := range q.Filters {
		if f.Title == "" || f.OptionText == "" {
			return apperrors.NewConfigError(fmt.Sprintf("query filter %d needs a title and an option", i), nil)
		}
	}
	return nil
}

// LoadQuerySpec reads a query spec from a YAML file:
//
//	item: 배추
//	filters:
//	  - title: 거래단위
//	    option: 10kg그물망
//	    search: true
func LoadQuerySpec(path string) (QuerySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QuerySpec{}, apperrors.NewConfigError("read query file", err).WithContext("path", path)
	}
	var spec QuerySpec
	if err := yaml.UnmarshalStrict(data, &spec); err != nil {
		return QuerySpec{}, apperrors.NewConfigError("parse query file", err).WithContext("path", path)
	}
	if err := spec.Validate(); err != nil {
		return QuerySpec{}, err
	}
	return spec, nil
}

// QueryExecutor sets the date range, item and filters, then confirms the
// query. The first failing step aborts the rest.
type QueryExecutor struct {
	page    *page
	dates   *DateFieldSetter
	item    *ItemSelector
	filters *ListFilterSelector
}

func NewQueryExecutor(session browser.Session, policy wait.Policy, delays Delays, logger *slog.Logger) *QueryExecutor {
	return &QueryExecutor{
		page:    newPage(session, policy, delays, logger),
		dates:   NewDateFieldSetter(session, policy, delays, logger),
		item:    NewItemSelector(session, policy, delays, logger),
		filters: NewListFilterSelector(session, policy, delays, logger),
	}
}

func (e *QueryExecutor) Execute(ctx context.Context, dates DateRange, spec QuerySpec) error {
	e.page.logger.InfoContext(ctx, "Executing query",
		slog.String("range", dates.String()),
		slog.String("item", spec.Item),
		slog.Int("filters", len(spec.Filters)))

	if err := e.dates.SetDate(ctx, DateStart, dates.Start); err != nil {
		return err
	}
	if err := e.dates.SetDate(ctx, DateEnd, dates.End); err != nil {
		return err
	}
	if err := e.item.Select(ctx, spec.Item); err != nil {
		return err
	}
	for _, f := range spec.Filters {
		if err := e.filters.Select(ctx, f); err != nil {
			return err
		}
	}

	if err := e.page.scriptClickWhenReady(ctx, selQueryConfirm); err != nil {
		return apperrors.NewConfirmNotClickableError("query", err).WithContext("selector", selQueryConfirm)
	}
	e.page.logger.InfoContext(ctx, "Query confirmed, waiting for data to load",
		slog.Duration("delay", e.page.delays.DataLoad))
	e.page.settle(e.page.delays.DataLoad)
	return nil
}
