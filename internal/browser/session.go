// Package browser defines the capability the crawler needs from a controlled
// browser and provides a chromedp-backed implementation.
//
// Elements are addressed by XPath. Locate never blocks: it reports ErrNotFound
// when nothing matches right now, and callers poll through wait.Policy.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Locate when no node matches the selector.
	ErrNotFound = errors.New("browser: element not found")

	// ErrOptionNotFound is returned by the select helpers when no option matches.
	ErrOptionNotFound = errors.New("browser: option not found")
)

// Element is a handle to a located node.
type Element interface {
	// Selector returns the XPath this element was located with.
	Selector() string

	// Interactable reports whether the node is visible and enabled.
	Interactable(ctx context.Context) (bool, error)

	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error

	// SelectByVisibleText picks the <option> whose trimmed label equals text.
	SelectByVisibleText(ctx context.Context, text string) error

	// SelectByValue picks the <option> whose value attribute equals value.
	SelectByValue(ctx context.Context, value string) error
}

// Session is one controlled browser tab.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Locate(ctx context.Context, selector string) (Element, error)

	// ExecuteScript runs script as a function body in the page with the
	// element bound to arguments[0]. It is used to click controls that do not
	// react reliably to synthesized input.
	ExecuteScript(ctx context.Context, script string, el Element) error

	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// ScriptClick is the script used to click elements from inside the page.
const ScriptClick = "arguments[0].click();"
