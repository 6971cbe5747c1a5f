package crawler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pricepipe/internal/browser"
	"pricepipe/internal/wait"
)

// Settle delays applied after UI actions that expose no completion signal.
type Delays struct {
	DatePart     time.Duration // between year and month, month and day
	DateDone     time.Duration // after the day select
	Item         time.Duration
	FilterOpen   time.Duration
	FilterSearch time.Duration
	FilterOption time.Duration
	FilterOK     time.Duration
	DataLoad     time.Duration // after the final query confirmation
	Close        time.Duration // before closing the browser after a download
}

// DefaultDelays returns the delays the sheet needs in practice.
func DefaultDelays() Delays {
	return Delays{
		DatePart:     500 * time.Millisecond,
		DateDone:     time.Second,
		Item:         2 * time.Second,
		FilterOpen:   time.Second,
		FilterSearch: time.Second,
		FilterOption: time.Second,
		FilterOK:     2 * time.Second,
		DataLoad:     15 * time.Second,
		Close:        5 * time.Second,
	}
}

// page bundles what every interaction needs: the session, the element wait
// budget and the clock used for settle delays.
type page struct {
	session browser.Session
	policy  wait.Policy
	delays  Delays
	logger  *slog.Logger
}

func newPage(session browser.Session, policy wait.Policy, delays Delays, logger *slog.Logger) *page {
	if logger == nil {
		logger = slog.Default()
	}
	return &page{session: session, policy: policy, delays: delays, logger: logger}
}

func (p *page) clock() wait.Clock {
	if p.policy.Clock == nil {
		return wait.RealClock()
	}
	return p.policy.Clock
}

func (p *page) settle(d time.Duration) {
	wait.Settle(p.clock(), d)
}

// present polls until selector matches a node.
func (p *page) present(ctx context.Context, selector string) (browser.Element, error) {
	return wait.For(ctx, p.policy, func(ctx context.Context) (browser.Element, bool, error) {
		el, err := p.session.Locate(ctx, selector)
		if errors.Is(err, browser.ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return el, true, nil
	})
}

// clickable polls until selector matches a visible, enabled node.
func (p *page) clickable(ctx context.Context, selector string) (browser.Element, error) {
	return wait.For(ctx, p.policy, func(ctx context.Context) (browser.Element, bool, error) {
		el, err := p.session.Locate(ctx, selector)
		if errors.Is(err, browser.ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		ok, err := el.Interactable(ctx)
		if err != nil {
			return nil, false, err
		}
		return el, ok, nil
	})
}

// clickWhenReady waits for selector to become clickable and clicks it.
func (p *page) clickWhenReady(ctx context.Context, selector string) error {
	el, err := p.clickable(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

// scriptClickWhenReady waits for selector to become clickable and clicks it
// from inside the page.
func (p *page) scriptClickWhenReady(ctx context.Context, selector string) error {
	el, err := p.clickable(ctx, selector)
	if err != nil {
		return err
	}
	return p.session.ExecuteScript(ctx, browser.ScriptClick, el)
}
