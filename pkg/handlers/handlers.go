// Package handlers commits resolved values into form controls. Each control
// family has one handler; the chain consults them in a fixed priority order
// so the specific ones (composite fieldsets, autocompletes) shadow the
// generic ones (plain text, toggles). A handler that fails or declines never
// aborts the step: the field is skipped and the orchestrator moves on.
package handlers

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/dom"
	"github.com/formpilot/formpilot/pkg/poll"
	"github.com/formpilot/formpilot/pkg/resolve"
	"github.com/formpilot/formpilot/pkg/selector"
)

// Handler is one type-specific filling strategy.
type Handler interface {
	Name() string
	// CanHandle reports whether this handler claims the field.
	CanHandle(node dom.Node, cls classifier.Classification) bool
	// Apply resolves a value and commits it. false means the handler ran
	// but could not commit anything useful.
	Apply(ctx context.Context, node dom.Node, label string, cls classifier.Classification) (bool, error)
}

// Deps bundles what every handler needs.
type Deps struct {
	Page       dom.Page
	Engine     *selector.Engine
	Resolver   *resolve.Resolver
	Strategies selector.Set
	// Settle is how long to wait after each commit so dependent UI can
	// react before the next field is touched.
	Settle time.Duration
	Logger *zap.Logger
}

// Chain is the closed, ordered set of handlers.
type Chain struct {
	handlers []Handler
	settle   time.Duration
	logger   *zap.Logger
}

// NewChain wires the handlers in their fixed priority order.
func NewChain(d Deps) *Chain {
	log := d.Logger.Named("handlers")
	d.Logger = log
	return &Chain{
		handlers: []Handler{
			&fieldsetHandler{d},
			&autocompleteHandler{d},
			&textHandler{d},
			&selectHandler{d},
			&radioHandler{d},
			&toggleHandler{d},
		},
		settle: d.Settle,
		logger: log,
	}
}

// Dispatch routes one field to the first handler that claims it and waits
// the settle delay after a successful commit. A field no handler claims is
// skipped with a false return.
func (c *Chain) Dispatch(ctx context.Context, node dom.Node, label string, cls classifier.Classification) (bool, error) {
	for _, h := range c.handlers {
		if !h.CanHandle(node, cls) {
			continue
		}
		ok, err := h.Apply(ctx, node, label, cls)
		if err != nil {
			c.logger.Warn("handler failed, skipping field",
				zap.String("handler", h.Name()),
				zap.String("label", label),
				zap.Error(err))
			return false, err
		}
		if ok && c.settle > 0 {
			poll.Sleep(ctx, c.settle)
		}
		return ok, nil
	}
	c.logger.Debug("no handler for field",
		zap.String("label", label), zap.String("kind", cls.Kind.String()))
	return false, nil
}

// isAffirmative reports whether an answer reads as a yes.
func isAffirmative(answer string) bool {
	lo := strings.ToLower(strings.TrimSpace(answer))
	switch lo {
	case "yes", "y", "true", "agree", "accept", "ok":
		return true
	}
	return strings.HasPrefix(lo, "yes,") || strings.HasPrefix(lo, "yes ")
}

// matchLabel finds the option whose label matches answer, exact first, then
// partial in either direction. Returns -1 on no match.
func matchLabel(answer string, labels []string) int {
	ans := strings.ToLower(strings.TrimSpace(answer))
	if ans == "" {
		return -1
	}
	for i, l := range labels {
		if strings.ToLower(strings.TrimSpace(l)) == ans {
			return i
		}
	}
	for i, l := range labels {
		lo := strings.ToLower(strings.TrimSpace(l))
		if lo == "" {
			continue
		}
		if strings.Contains(lo, ans) || strings.Contains(ans, lo) {
			return i
		}
	}
	return -1
}

// isPlaceholder recognizes the "Select an option" style first entries.
func isPlaceholder(opt dom.Option) bool {
	if strings.TrimSpace(opt.Value) == "" {
		return true
	}
	lo := strings.ToLower(opt.Label)
	return strings.Contains(lo, "select") || strings.Contains(lo, "choose") ||
		strings.Contains(lo, "please")
}
