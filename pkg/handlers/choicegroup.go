package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/dom"
	"github.com/formpilot/formpilot/pkg/resolve"
)

// radioHandler fills an individual grouped single-choice input: it widens
// the single radio it was handed to the whole name group, then commits one
// member.
type radioHandler struct {
	d Deps
}

func (h *radioHandler) Name() string { return "choice-group" }

func (h *radioHandler) CanHandle(_ dom.Node, cls classifier.Classification) bool {
	return cls.Kind == classifier.KindRadio
}

func (h *radioHandler) Apply(ctx context.Context, node dom.Node, label string, cls classifier.Classification) (bool, error) {
	group := []dom.Node{node}
	if name := node.Attr("name"); name != "" {
		expr := fmt.Sprintf("input[type='radio'][name='%s']", name)
		if nodes, err := h.d.Page.Query(ctx, expr, nil); err == nil && len(nodes) > 0 {
			group = nodes
		}
	}

	labels := make([]string, len(group))
	for i, n := range group {
		labels[i] = optionLabel(ctx, h.d.Page, n)
	}

	answer := h.d.Resolver.Resolve(ctx, label, resolve.Options{
		Class:   cls,
		Choices: labels,
	})

	idx := matchLabel(answer, labels)
	if idx < 0 && cls.IsConsent {
		for i, l := range labels {
			if isAffirmative(l) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		idx = 0
	}

	if err := group[idx].Click(ctx); err != nil {
		return false, err
	}
	h.d.Logger.Debug("choice committed",
		zap.String("label", label), zap.String("option", labels[idx]))
	return true, nil
}

// optionLabel finds the human label of one grouped input: an explicit
// label[for=...], the enclosing label element, or the input's own value.
func optionLabel(ctx context.Context, page dom.Page, input dom.Node) string {
	if id := input.Attr("id"); id != "" {
		expr := fmt.Sprintf("label[for='%s']", id)
		if nodes, err := page.Query(ctx, expr, nil); err == nil && len(nodes) > 0 {
			if text, err := nodes[0].Text(ctx); err == nil && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	}
	if wrap, err := input.Closest(ctx, "label"); err == nil && wrap != nil {
		if text, err := wrap.Text(ctx); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	if v := input.Attr("value"); v != "" {
		return v
	}
	return input.Attr("aria-label")
}
