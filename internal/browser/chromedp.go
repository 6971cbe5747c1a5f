package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// DefaultUserAgent is presented by headless sessions so the dashboard serves
// the same layout a desktop browser gets.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.102 Safari/537.36"

// LaunchOptions configures a Chrome instance.
type LaunchOptions struct {
	Headless        bool
	WindowWidth     int
	WindowHeight    int
	UserAgent       string
	Lang            string
	DownloadDir     string
	PageLoadTimeout time.Duration
	// ActionTimeout bounds a single input action (click, typing) so that a
	// node disappearing mid-action cannot hang the run.
	ActionTimeout time.Duration
}

// ProductionOptions returns the server profile: headless with a fixed window.
func ProductionOptions(downloadDir string) LaunchOptions {
	return LaunchOptions{
		Headless:        true,
		WindowWidth:     1920,
		WindowHeight:    1080,
		UserAgent:       DefaultUserAgent,
		Lang:            "ko_KR",
		DownloadDir:     downloadDir,
		PageLoadTimeout: 60 * time.Second,
		ActionTimeout:   10 * time.Second,
	}
}

// LocalOptions returns the workstation profile: a visible, maximized window.
func LocalOptions(downloadDir string) LaunchOptions {
	return LaunchOptions{
		Headless:        false,
		DownloadDir:     downloadDir,
		PageLoadTimeout: 60 * time.Second,
		ActionTimeout:   10 * time.Second,
	}
}

// ChromeLauncher launches Chrome through chromedp.
type ChromeLauncher struct {
	opts   LaunchOptions
	logger *slog.Logger
}

// NewChromeLauncher creates a launcher for the given options.
func NewChromeLauncher(opts LaunchOptions, logger *slog.Logger) *ChromeLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeLauncher{opts: opts, logger: logger}
}

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if l.opts.Headless {
		opts = append(opts,
			chromedp.Flag("headless", true),
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.DisableGPU,
		)
		if l.opts.WindowWidth > 0 && l.opts.WindowHeight > 0 {
			opts = append(opts, chromedp.WindowSize(l.opts.WindowWidth, l.opts.WindowHeight))
		}
	} else {
		opts = append(opts,
			chromedp.Flag("headless", false),
			chromedp.Flag("start-maximized", true),
		)
	}
	if l.opts.Lang != "" {
		opts = append(opts, chromedp.Flag("lang", l.opts.Lang))
	}
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	return opts
}

// Launch starts Chrome and opens a tab whose downloads land in DownloadDir
// without prompting.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	if l.opts.DownloadDir != "" {
		if err := os.MkdirAll(l.opts.DownloadDir, 0o755); err != nil {
			return nil, fmt.Errorf("create download dir: %w", err)
		}
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			l.logger.Debug("chromedp", slog.String("message", fmt.Sprintf(format, args...)))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			l.logger.Warn("chromedp error", slog.String("message", fmt.Sprintf(format, args...)))
		}),
	)

	s := &chromeSession{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		opts:   l.opts,
		logger: l.logger,
	}

	// The first Run allocates the browser and the tab.
	startup := []chromedp.Action{}
	if l.opts.DownloadDir != "" {
		startup = append(startup, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(l.opts.DownloadDir).
			WithEventsEnabled(true))
	}
	if err := s.run(ctx, 0, startup...); err != nil {
		s.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	l.logger.InfoContext(ctx, "Browser started",
		slog.Bool("headless", l.opts.Headless),
		slog.String("download_dir", l.opts.DownloadDir))
	return s, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel func()
	opts   LaunchOptions
	logger *slog.Logger
}

// run executes actions on the tab, bounded by timeout when positive and by
// the caller's ctx.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	start := time.Now()
	if err := s.run(ctx, s.opts.PageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	s.logger.DebugContext(ctx, "Navigation complete",
		slog.String("url", url),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (s *chromeSession) Locate(ctx context.Context, selector string) (Element, error) {
	var found bool
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(locateScript(selector), &found)); err != nil {
		return nil, fmt.Errorf("locate %s: %w", selector, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return &chromeElement{session: s, selector: selector}, nil
}

func (s *chromeSession) ExecuteScript(ctx context.Context, script string, el Element) error {
	var ok bool
	if err := s.run(ctx, s.opts.ActionTimeout, chromedp.Evaluate(elementScript(el.Selector(), script), &ok)); err != nil {
		return fmt.Errorf("execute script on %s: %w", el.Selector(), err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *chromeSession) Close() error {
	// Cancel gives Chrome a chance to shut down cleanly before the allocator
	// context is torn down.
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	return err
}

type chromeElement struct {
	session  *chromeSession
	selector string
}

func (e *chromeElement) Selector() string { return e.selector }

func (e *chromeElement) Interactable(ctx context.Context) (bool, error) {
	var ok bool
	err := e.session.run(ctx, e.session.opts.ActionTimeout, chromedp.Evaluate(interactableScript(e.selector), &ok))
	return ok, err
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.session.run(ctx, e.session.opts.ActionTimeout, chromedp.Click(e.selector, chromedp.BySearch))
}

func (e *chromeElement) SendKeys(ctx context.Context, text string) error {
	return e.session.run(ctx, e.session.opts.ActionTimeout, chromedp.SendKeys(e.selector, text, chromedp.BySearch))
}

func (e *chromeElement) SelectByVisibleText(ctx context.Context, text string) error {
	return e.selectOption(ctx, "text", text)
}

func (e *chromeElement) SelectByValue(ctx context.Context, value string) error {
	return e.selectOption(ctx, "value", value)
}

func (e *chromeElement) selectOption(ctx context.Context, by, want string) error {
	var ok bool
	if err := e.session.run(ctx, e.session.opts.ActionTimeout, chromedp.Evaluate(selectScript(e.selector, by, want), &ok)); err != nil {
		return fmt.Errorf("select %s=%q on %s: %w", by, want, e.selector, err)
	}
	if !ok {
		return ErrOptionNotFound
	}
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// resolveJS evaluates to the first node matching the XPath literal xp, or null.
func resolveJS(xp string) string {
	return fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue", jsString(xp))
}

func locateScript(xp string) string {
	return fmt.Sprintf("(%s) !== null", resolveJS(xp))
}

func interactableScript(xp string) string {
	return fmt.Sprintf(`(function() {
	const el = %s;
	if (el === null) return false;
	if (el.disabled) return false;
	const style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none') return false;
	return el.getClientRects().length > 0;
})()`, resolveJS(xp))
}

func elementScript(xp, body string) string {
	return fmt.Sprintf(`(function() {
	const el = %s;
	if (el === null) return false;
	(function() { %s }).call(null, el);
	return true;
})()`, resolveJS(xp), body)
}

func selectScript(xp, by, want string) string {
	return fmt.Sprintf(`(function() {
	const sel = %s;
	if (sel === null || !sel.options) return false;
	const want = %s;
	const opt = Array.from(sel.options).find(o => %s === want);
	if (!opt) return false;
	sel.value = opt.value;
	sel.dispatchEvent(new Event('input', { bubbles: true }));
	sel.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})()`, resolveJS(xp), jsString(want), optionAccessor(by))
}

func optionAccessor(by string) string {
	if by == "value" {
		return "o.value"
	}
	return "o.text.trim()"
}
