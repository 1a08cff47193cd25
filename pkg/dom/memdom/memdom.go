// Package memdom provides an in-memory dom.Page backed by an HTML document
// parsed with golang.org/x/net/html. It exists for tests and dry runs: form
// controls behave like their browser counterparts (radio exclusivity,
// checkbox toggling, select option commits) and click behavior can be bound
// per element so multi-step fixtures can swap their own content.
package memdom

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/formpilot/formpilot/pkg/dom"
)

var errBadExpr = dom.ErrBadExpression

// Page is an in-memory implementation of dom.Page.
type Page struct {
	mu       sync.Mutex
	root     *html.Node
	refs     map[*html.Node]string
	nextRef  int
	onClick  map[string]func(*Page)
	detached map[*html.Node]bool
}

// Parse builds a Page from an HTML fragment or document.
func Parse(src string) (*Page, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("memdom: parse: %w", err)
	}
	return &Page{
		root:     root,
		refs:     make(map[*html.Node]string),
		onClick:  make(map[string]func(*Page)),
		detached: make(map[*html.Node]bool),
	}, nil
}

// MustParse is Parse for fixtures known to be well-formed.
func MustParse(src string) *Page {
	p, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return p
}

// Load replaces the whole document, leaving click bindings in place. Handles
// obtained before the call go stale.
func (p *Page) Load(src string) error {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("memdom: parse: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markDetached(p.root)
	p.root = root
	return nil
}

// OnClick binds fn to clicks on the element with the given id attribute.
// The binding survives Load, so a fixture can model step transitions.
func (p *Page) OnClick(id string, fn func(*Page)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[id] = fn
}

func (p *Page) markDetached(n *html.Node) {
	if n == nil {
		return
	}
	p.detached[n] = true
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.markDetached(c)
	}
}

func (p *Page) refFor(n *html.Node) string {
	if r, ok := p.refs[n]; ok {
		return r
	}
	p.nextRef++
	r := fmt.Sprintf("mem-%d", p.nextRef)
	p.refs[n] = r
	return r
}

// Query implements dom.Page.
func (p *Page) Query(_ context.Context, expr string, scope dom.Node) ([]dom.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	groups, err := parseSelector(expr)
	if err != nil {
		return nil, err
	}
	start := p.root
	if scope != nil {
		start = scope.(*node).n
	}
	var out []dom.Node
	walkElements(start, func(el *html.Node) {
		for _, g := range groups {
			if g.matches(el) {
				out = append(out, &node{page: p, n: el})
				return
			}
		}
	})
	return out, nil
}

// FindByText implements dom.Page.
func (p *Page) FindByText(_ context.Context, tag, text string, scope dom.Node) ([]dom.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := p.root
	if scope != nil {
		start = scope.(*node).n
	}
	want := strings.ToLower(strings.TrimSpace(text))
	var out []dom.Node
	walkElements(start, func(el *html.Node) {
		if !strings.EqualFold(el.Data, tag) {
			return
		}
		if strings.Contains(strings.ToLower(collapseText(el)), want) {
			out = append(out, &node{page: p, n: el})
		}
	})
	return out, nil
}

// ContentSize implements dom.Page.
func (p *Page) ContentSize(_ context.Context, scope dom.Node) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := p.root
	if scope != nil {
		start = scope.(*node).n
	}
	return len(collapseText(start)), nil
}

func walkElements(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
}

func collapseText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(m *html.Node) {
		if m.Type == html.TextNode {
			sb.WriteString(m.Data)
			sb.WriteByte(' ')
		}
		for c := m.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// node implements dom.Node over one element.
type node struct {
	page *Page
	n    *html.Node
}

func (e *node) alive() error {
	if e.page.detached[e.n] {
		return dom.ErrStaleNode
	}
	return nil
}

func (e *node) Ref() string {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.refFor(e.n)
}

func (e *node) Tag() string { return strings.ToLower(e.n.Data) }

func (e *node) Attr(name string) string {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return attrValue(e.n, name)
}

func (e *node) HasAttr(name string) bool {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	_, ok := lookupAttr(e.n, name)
	return ok
}

func (e *node) Text(context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.alive(); err != nil {
		return "", err
	}
	return collapseText(e.n), nil
}

func (e *node) Value(ctx context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.alive(); err != nil {
		return "", err
	}
	switch strings.ToLower(e.n.Data) {
	case "select":
		for _, opt := range optionNodes(e.n) {
			if _, sel := lookupAttr(opt, "selected"); sel {
				return optionValue(opt), nil
			}
		}
		return "", nil
	case "textarea":
		if v, ok := lookupAttr(e.n, "value"); ok {
			return v, nil
		}
		return collapseText(e.n), nil
	default:
		return attrValue(e.n, "value"), nil
	}
}

func (e *node) Visible(context.Context) (bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.alive(); err != nil {
		return false, err
	}
	for n := e.n; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if _, hidden := lookupAttr(n, "hidden"); hidden {
			return false, nil
		}
		if attrValue(n, "aria-hidden") == "true" {
			return false, nil
		}
		style := strings.ReplaceAll(attrValue(n, "style"), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false, nil
		}
	}
	return true, nil
}

func (e *node) Checked(context.Context) (bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.alive(); err != nil {
		return false, err
	}
	_, ok := lookupAttr(e.n, "checked")
	return ok, nil
}

func (e *node) Closest(_ context.Context, expr string) (dom.Node, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	groups, err := parseSelector(expr)
	if err != nil {
		return nil, err
	}
	for n := e.n; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		for _, g := range groups {
			if g.matches(n) {
				return &node{page: e.page, n: n}, nil
			}
		}
	}
	return nil, nil
}

func (e *node) SetValue(_ context.Context, value string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	setAttr(e.n, "value", value)
	return nil
}

func (e *node) SetChecked(_ context.Context, checked bool) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	if checked {
		e.check()
	} else {
		removeAttr(e.n, "checked")
	}
	return nil
}

// check marks the input checked, clearing radio group siblings first.
func (e *node) check() {
	if strings.EqualFold(attrValue(e.n, "type"), "radio") {
		if name := attrValue(e.n, "name"); name != "" {
			walkElements(e.page.root, func(el *html.Node) {
				if strings.EqualFold(el.Data, "input") &&
					strings.EqualFold(attrValue(el, "type"), "radio") &&
					attrValue(el, "name") == name {
					removeAttr(el, "checked")
				}
			})
		}
	}
	setAttr(e.n, "checked", "checked")
}

func (e *node) SelectOption(_ context.Context, value string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	if !strings.EqualFold(e.n.Data, "select") {
		return fmt.Errorf("memdom: SelectOption on <%s>", e.n.Data)
	}
	found := false
	for _, opt := range optionNodes(e.n) {
		if optionValue(opt) == value {
			setAttr(opt, "selected", "selected")
			found = true
		} else {
			removeAttr(opt, "selected")
		}
	}
	if !found {
		return fmt.Errorf("memdom: no option with value %q", value)
	}
	return nil
}

func (e *node) Options(context.Context) ([]dom.Option, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.alive(); err != nil {
		return nil, err
	}
	var out []dom.Option
	for _, opt := range optionNodes(e.n) {
		_, sel := lookupAttr(opt, "selected")
		out = append(out, dom.Option{
			Value:    optionValue(opt),
			Label:    collapseText(opt),
			Selected: sel,
		})
	}
	return out, nil
}

func (e *node) Click(context.Context) error {
	e.page.mu.Lock()
	if err := e.alive(); err != nil {
		e.page.mu.Unlock()
		return err
	}
	switch {
	case strings.EqualFold(e.n.Data, "input") && strings.EqualFold(attrValue(e.n, "type"), "checkbox"):
		if _, ok := lookupAttr(e.n, "checked"); ok {
			removeAttr(e.n, "checked")
		} else {
			setAttr(e.n, "checked", "checked")
		}
	case strings.EqualFold(e.n.Data, "input") && strings.EqualFold(attrValue(e.n, "type"), "radio"):
		e.check()
	}
	fn := e.page.onClick[attrValue(e.n, "id")]
	e.page.mu.Unlock()
	// Run bindings unlocked so they can reload the page.
	if fn != nil {
		fn(e.page)
	}
	return nil
}

func optionNodes(sel *html.Node) []*html.Node {
	var out []*html.Node
	walkElements(sel, func(el *html.Node) {
		if strings.EqualFold(el.Data, "option") {
			out = append(out, el)
		}
	})
	return out
}

func optionValue(opt *html.Node) string {
	if v, ok := lookupAttr(opt, "value"); ok {
		return v
	}
	return collapseText(opt)
}

func setAttr(n *html.Node, name, val string) {
	for i := range n.Attr {
		if strings.EqualFold(n.Attr[i].Key, name) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

func removeAttr(n *html.Node, name string) {
	for i := range n.Attr {
		if strings.EqualFold(n.Attr[i].Key, name) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
