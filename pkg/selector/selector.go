// Package selector implements resilient element lookup. A Strategy carries
// several candidate query expressions ordered by preference plus an optional
// textual fallback; the engine tries them in order against a live subtree and
// returns the first visible hit. Because the host UI tree replaces nodes
// freely between polls, nothing resolved here is ever cached.
package selector

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/dom"
)

// Strategy is an ordered list of query expressions for one logical element,
// defined in static configuration and consumed on every lookup.
type Strategy struct {
	// Name identifies the strategy in logs.
	Name string
	// Queries are tried in order; earlier entries are preferred structures.
	Queries []string
	// TextTag and Text enable a textual-match fallback: elements of TextTag
	// whose visible text contains Text (case-insensitive). Empty disables it.
	TextTag string
	Text    string
}

// Empty reports whether the strategy has nothing to try.
func (s Strategy) Empty() bool {
	return len(s.Queries) == 0 && s.Text == ""
}

// Engine resolves strategies against a dom.Page. It is read-only and does no
// waiting; callers compose polling around it.
type Engine struct {
	page   dom.Page
	logger *zap.Logger
}

// NewEngine creates an engine bound to one page.
func NewEngine(page dom.Page, logger *zap.Logger) *Engine {
	return &Engine{
		page:   page,
		logger: logger.Named("selector"),
	}
}

// Resolve returns the first visible node matched by the strategy within
// scope, or nil when nothing matches. Invalid expressions are skipped, not
// propagated; a miss is not an error.
func (e *Engine) Resolve(ctx context.Context, st Strategy, scope dom.Node) (dom.Node, error) {
	for _, expr := range st.Queries {
		nodes, err := e.page.Query(ctx, expr, scope)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Debug("query expression skipped",
				zap.String("strategy", st.Name), zap.String("expr", expr), zap.Error(err))
			continue
		}
		if n := firstVisible(ctx, nodes); n != nil {
			return n, nil
		}
	}
	if st.Text != "" {
		nodes, err := e.page.FindByText(ctx, textTag(st), st.Text, scope)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Debug("text fallback failed",
				zap.String("strategy", st.Name), zap.Error(err))
			return nil, nil
		}
		if n := firstVisible(ctx, nodes); n != nil {
			return n, nil
		}
	}
	return nil, nil
}

// ResolveAll returns every node matched by any expression of the strategy,
// deduplicated by node ref with first-discovery order preserved. Visibility
// is not filtered here; callers that want visible nodes only filter
// themselves, since some (stuck-detection) also care about hidden matches.
func (e *Engine) ResolveAll(ctx context.Context, st Strategy, scope dom.Node) ([]dom.Node, error) {
	seen := make(map[string]bool)
	var out []dom.Node
	collect := func(nodes []dom.Node) {
		for _, n := range nodes {
			if ref := n.Ref(); !seen[ref] {
				seen[ref] = true
				out = append(out, n)
			}
		}
	}
	for _, expr := range st.Queries {
		nodes, err := e.page.Query(ctx, expr, scope)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Debug("query expression skipped",
				zap.String("strategy", st.Name), zap.String("expr", expr), zap.Error(err))
			continue
		}
		collect(nodes)
	}
	if st.Text != "" {
		nodes, err := e.page.FindByText(ctx, textTag(st), st.Text, scope)
		if err == nil {
			collect(nodes)
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return out, nil
}

// ResolveVisible is ResolveAll filtered to currently visible nodes.
func (e *Engine) ResolveVisible(ctx context.Context, st Strategy, scope dom.Node) ([]dom.Node, error) {
	nodes, err := e.ResolveAll(ctx, st, scope)
	if err != nil {
		return nil, err
	}
	var out []dom.Node
	for _, n := range nodes {
		if ok, err := n.Visible(ctx); err == nil && ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func firstVisible(ctx context.Context, nodes []dom.Node) dom.Node {
	for _, n := range nodes {
		ok, err := n.Visible(ctx)
		if err != nil {
			continue
		}
		if ok {
			return n
		}
	}
	return nil
}

func textTag(st Strategy) string {
	if st.TextTag != "" {
		return strings.ToLower(st.TextTag)
	}
	return "button"
}
