// Package cdp implements dom.Page against a live Chrome tab over the
// DevTools protocol. Node handles wrap cdproto DOM nodes and go stale
// whenever the host UI replaces its tree; callers re-query per pass.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/dom"
)

// Page is a dom.Page over one chromedp tab context. Methods take the tab
// context (or a context derived from it) on every call.
type Page struct {
	logger *zap.Logger
}

// NewPage wraps a tab.
func NewPage(logger *zap.Logger) *Page {
	return &Page{logger: logger.Named("cdp")}
}

// Query implements dom.Page.
func (p *Page) Query(ctx context.Context, expr string, scope dom.Node) ([]dom.Node, error) {
	var nodes []*cdp.Node
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if scope != nil {
		opts = append(opts, chromedp.FromNode(scope.(*node).n))
	}
	if err := chromedp.Run(ctx, chromedp.Nodes(expr, &nodes, opts...)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The protocol reports unparsable selectors as a DOM error; treat
		// every query failure as a bad expression so lookup stays total.
		return nil, fmt.Errorf("%w: %q: %v", dom.ErrBadExpression, expr, err)
	}
	out := make([]dom.Node, len(nodes))
	for i, n := range nodes {
		out[i] = &node{page: p, n: n}
	}
	return out, nil
}

// FindByText implements dom.Page. Matching elements are tagged with a
// temporary attribute so they can be re-queried as real node handles, then
// the attribute is removed.
func (p *Page) FindByText(ctx context.Context, tag, text string, scope dom.Node) ([]dom.Node, error) {
	marker := fmt.Sprintf("data-formpilot-match-%d", time.Now().UnixNano())

	script := fmt.Sprintf(`(() => {
		const want = %q.toLowerCase();
		let count = 0;
		for (const el of document.querySelectorAll(%q)) {
			const t = (el.innerText || el.textContent || '').toLowerCase();
			if (t.includes(want)) { el.setAttribute(%q, ''); count++; }
		}
		return count;
	})()`, text, tag, marker)

	var count int
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &count)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("text match script failed: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	nodes, err := p.Query(ctx, fmt.Sprintf("[%s]", marker), scope)

	cleanup := fmt.Sprintf(`(() => {
		for (const el of document.querySelectorAll('[%s]')) el.removeAttribute('%s');
		return true;
	})()`, marker, marker)
	var ok bool
	_ = chromedp.Run(ctx, chromedp.Evaluate(cleanup, &ok))

	return nodes, err
}

// ContentSize implements dom.Page.
func (p *Page) ContentSize(ctx context.Context, scope dom.Node) (int, error) {
	if scope != nil {
		var size int
		err := p.callOnNode(ctx, scope.(*node).n,
			`function() { return (this.innerText || this.textContent || '').length; }`, &size)
		return size, err
	}
	var size int
	err := chromedp.Run(ctx, chromedp.Evaluate(
		`(document.body && (document.body.innerText || '').length) || 0`, &size))
	return size, err
}

// callOnNode resolves a DOM node to a runtime object and invokes fnDecl with
// `this` bound to the element, unmarshalling the by-value result into res.
// Arguments are inlined into the declaration as JSON literals.
func (p *Page) callOnNode(ctx context.Context, n *cdp.Node, fnDecl string, res any, args ...any) error {
	decl, err := bindArgs(fnDecl, args)
	if err != nil {
		return err
	}
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := cdpdom.ResolveNode().WithNodeID(n.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: resolve: %v", dom.ErrStaleNode, err)
		}

		ro, exc, err := runtime.CallFunctionOn(decl).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("call on node failed: %w", err)
		}
		if exc != nil {
			return fmt.Errorf("node script threw: %s", exc.Text)
		}
		if res == nil || ro == nil || ro.Value == nil {
			return nil
		}
		return json.Unmarshal(ro.Value, res)
	}))
}

// bindArgs wraps fnDecl so its arguments arrive as JSON literals, avoiding
// the protocol's call-argument plumbing.
func bindArgs(fnDecl string, args []any) (string, error) {
	if len(args) == 0 {
		return fnDecl, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to marshal call arguments: %w", err)
	}
	return fmt.Sprintf("function() { return (%s).apply(this, %s); }", fnDecl, raw), nil
}

// node implements dom.Node over one cdproto DOM node.
type node struct {
	page *Page
	n    *cdp.Node
}

func (e *node) Ref() string { return fmt.Sprintf("cdp-%d", e.n.NodeID) }

func (e *node) Tag() string { return strings.ToLower(e.n.NodeName) }

func (e *node) Attr(name string) string { return e.n.AttributeValue(name) }

func (e *node) HasAttr(name string) bool {
	attrs := e.n.Attributes
	for i := 0; i+1 < len(attrs); i += 2 {
		if strings.EqualFold(attrs[i], name) {
			return true
		}
	}
	return false
}

func (e *node) Text(ctx context.Context) (string, error) {
	var text string
	err := e.page.callOnNode(ctx, e.n,
		`function() { return (this.innerText || this.textContent || '').trim(); }`, &text)
	return text, err
}

func (e *node) Value(ctx context.Context) (string, error) {
	var value string
	err := e.page.callOnNode(ctx, e.n,
		`function() { return String(this.value ?? ''); }`, &value)
	return value, err
}

func (e *node) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.page.callOnNode(ctx, e.n, `function() {
		for (let el = this; el; el = el.parentElement) {
			const s = window.getComputedStyle(el);
			if (s.display === 'none' || s.visibility === 'hidden') return false;
		}
		const r = this.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	}`, &visible)
	return visible, err
}

func (e *node) Checked(ctx context.Context) (bool, error) {
	var checked bool
	err := e.page.callOnNode(ctx, e.n,
		`function() { return this.checked === true; }`, &checked)
	return checked, err
}

func (e *node) Closest(ctx context.Context, expr string) (dom.Node, error) {
	found := false
	err := e.page.callOnNode(ctx, e.n, `function(sel) {
		try { return this.closest(sel) !== null; } catch (err) { return false; }
	}`, &found, expr)
	if err != nil || !found {
		return nil, err
	}

	var out dom.Node
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := cdpdom.ResolveNode().WithNodeID(e.n.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: resolve: %v", dom.ErrStaleNode, err)
		}
		decl, err := bindArgs(`function(sel) { return this.closest(sel); }`, []any{expr})
		if err != nil {
			return err
		}
		ro, exc, err := runtime.CallFunctionOn(decl).
			WithObjectID(obj.ObjectID).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil || ro == nil || ro.ObjectID == "" {
			return nil
		}
		nodeID, err := cdpdom.RequestNode(ro.ObjectID).Do(ctx)
		if err != nil {
			return err
		}
		desc, err := cdpdom.DescribeNode().WithNodeID(nodeID).Do(ctx)
		if err != nil {
			return err
		}
		desc.NodeID = nodeID
		out = &node{page: e.page, n: desc}
		return nil
	}))
	return out, err
}

func (e *node) SetValue(ctx context.Context, value string) error {
	return e.page.callOnNode(ctx, e.n, `function(v) {
		this.focus && this.focus();
		this.value = v;
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	}`, nil, value)
}

func (e *node) SetChecked(ctx context.Context, checked bool) error {
	return e.page.callOnNode(ctx, e.n, `function(v) {
		this.checked = v;
		this.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	}`, nil, checked)
}

func (e *node) SelectOption(ctx context.Context, value string) error {
	var found bool
	err := e.page.callOnNode(ctx, e.n, `function(v) {
		for (const opt of this.options || []) {
			if (opt.value === v) {
				this.value = v;
				this.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	}`, &found, value)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no option with value %q", value)
	}
	return nil
}

func (e *node) Options(ctx context.Context) ([]dom.Option, error) {
	var opts []dom.Option
	err := e.page.callOnNode(ctx, e.n, `function() {
		return Array.from(this.options || []).map(o => ({
			Value: o.value, Label: (o.label || o.textContent || '').trim(), Selected: o.selected,
		}));
	}`, &opts)
	return opts, err
}

func (e *node) Click(ctx context.Context) error {
	if err := chromedp.Run(ctx, chromedp.MouseClickNode(e.n)); err != nil {
		// Obscured or detached elements fail the synthesized mouse path;
		// fall back to a direct DOM click.
		return e.page.callOnNode(ctx, e.n,
			`function() { this.click(); return true; }`, nil)
	}
	return nil
}
