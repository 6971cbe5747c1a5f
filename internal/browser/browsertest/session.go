// Package browsertest provides an in-memory browser.Session that records every
// interaction, for exercising crawler logic without Chrome.
package browsertest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"pricepipe/internal/browser"
)

// Call is one recorded interaction.
type Call struct {
	Op       string
	Selector string
	Arg      string
}

func (c Call) String() string {
	if c.Selector == "" {
		return c.Op
	}
	if c.Arg == "" {
		return fmt.Sprintf("%s %s", c.Op, c.Selector)
	}
	return fmt.Sprintf("%s %s %q", c.Op, c.Selector, c.Arg)
}

// Node describes how a fake element behaves.
type Node struct {
	// Missing makes Locate report not found forever.
	Missing bool
	// AppearAfter is the number of Locate calls that report not found before
	// the node shows up.
	AppearAfter int
	// ClickableAfter is the number of Interactable calls that report false
	// before the node becomes interactable.
	ClickableAfter int
	// NeverClickable keeps Interactable false forever.
	NeverClickable bool

	// Options and Values list the <option> labels and values of a select.
	Options []string
	Values  []string

	ClickErr  error
	ScriptErr error

	// OnClick runs after a successful click or script execution.
	OnClick func()

	locates  int
	probes   int
	selected string
	typed    string
}

// Session is a recording fake of browser.Session.
type Session struct {
	mu    sync.Mutex
	nodes map[string]*Node
	calls []Call

	NavigateErr error
	Closed      bool
	CloseCount  int
}

// NewSession returns an empty session. Nodes not registered with Add are
// missing.
func NewSession() *Session {
	return &Session{nodes: make(map[string]*Node)}
}

// Add registers a node under selector and returns it for further tweaking.
func (s *Session) Add(selector string, n *Node) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == nil {
		n = &Node{}
	}
	s.nodes[selector] = n
	return n
}

// Calls returns a copy of the recorded interactions.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Ops returns the recorded interactions as strings, omitting Locate and
// Interactable probes.
func (s *Session) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if c.Op == "locate" || c.Op == "probe" {
			continue
		}
		out = append(out, c.String())
	}
	return out
}

// Selected returns the value last chosen on the select at selector.
func (s *Session) Selected(selector string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[selector]; ok {
		return n.selected
	}
	return ""
}

// Typed returns the text last typed into selector.
func (s *Session) Typed(selector string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[selector]; ok {
		return n.typed
	}
	return ""
}

func (s *Session) record(op, selector, arg string) {
	s.calls = append(s.calls, Call{Op: op, Selector: selector, Arg: arg})
}

func (s *Session) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("navigate", url, "")
	return s.NavigateErr
}

func (s *Session) Locate(_ context.Context, selector string) (browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("locate", selector, "")

	n, ok := s.nodes[selector]
	if !ok || n.Missing {
		return nil, browser.ErrNotFound
	}
	n.locates++
	if n.locates <= n.AppearAfter {
		return nil, browser.ErrNotFound
	}
	return &element{session: s, selector: selector, node: n}, nil
}

func (s *Session) ExecuteScript(_ context.Context, script string, el browser.Element) error {
	s.mu.Lock()
	s.record("script", el.Selector(), script)
	n, ok := s.nodes[el.Selector()]
	s.mu.Unlock()

	if !ok {
		return browser.ErrNotFound
	}
	if n.ScriptErr != nil {
		return n.ScriptErr
	}
	if n.OnClick != nil {
		n.OnClick()
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	s.CloseCount++
	s.record("close", "", "")
	return nil
}

type element struct {
	session  *Session
	selector string
	node     *Node
}

func (e *element) Selector() string { return e.selector }

func (e *element) Interactable(context.Context) (bool, error) {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	e.session.record("probe", e.selector, "")
	if e.node.NeverClickable {
		return false, nil
	}
	e.node.probes++
	return e.node.probes > e.node.ClickableAfter, nil
}

func (e *element) Click(context.Context) error {
	e.session.mu.Lock()
	e.session.record("click", e.selector, "")
	err := e.node.ClickErr
	hook := e.node.OnClick
	e.session.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook()
	}
	return nil
}

func (e *element) SendKeys(_ context.Context, text string) error {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	e.session.record("type", e.selector, text)
	e.node.typed = text
	return nil
}

func (e *element) SelectByVisibleText(_ context.Context, text string) error {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	e.session.record("select-text", e.selector, text)
	if !slices.Contains(e.node.Options, text) {
		return browser.ErrOptionNotFound
	}
	e.node.selected = text
	return nil
}

func (e *element) SelectByValue(_ context.Context, value string) error {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	e.session.record("select-value", e.selector, value)
	if !slices.Contains(e.node.Values, value) {
		return browser.ErrOptionNotFound
	}
	e.node.selected = value
	return nil
}

// Launcher hands out a prepared Session.
type Launcher struct {
	Session  *Session
	Err      error
	Launches int
}

func (l *Launcher) Launch(context.Context) (browser.Session, error) {
	l.Launches++
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Session, nil
}
