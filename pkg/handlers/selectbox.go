package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/dom"
	"github.com/formpilot/formpilot/pkg/resolve"
)

// selectHandler commits a value on a native single-select control.
type selectHandler struct {
	d Deps
}

func (h *selectHandler) Name() string { return "select" }

func (h *selectHandler) CanHandle(_ dom.Node, cls classifier.Classification) bool {
	return cls.Kind == classifier.KindSelect
}

func (h *selectHandler) Apply(ctx context.Context, node dom.Node, label string, cls classifier.Classification) (bool, error) {
	opts, err := node.Options(ctx)
	if err != nil {
		return false, err
	}
	if len(opts) == 0 {
		return false, nil
	}

	labels := make([]string, len(opts))
	for i, o := range opts {
		labels[i] = o.Label
	}

	answer := h.d.Resolver.Resolve(ctx, label, resolve.Options{
		Class:   cls,
		Choices: selectable(opts),
	})

	idx := matchLabel(answer, labels)
	if idx >= 0 && isPlaceholder(opts[idx]) {
		idx = -1
	}
	if idx < 0 {
		// First real option is the deterministic fallback.
		for i, o := range opts {
			if !isPlaceholder(o) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return false, nil
	}

	if err := node.SelectOption(ctx, opts[idx].Value); err != nil {
		return false, err
	}
	h.d.Logger.Debug("option selected",
		zap.String("label", label), zap.String("option", opts[idx].Label))
	return true, nil
}

// selectable strips placeholder entries before the option list is sent to
// the answer service.
func selectable(opts []dom.Option) []string {
	var out []string
	for _, o := range opts {
		if !isPlaceholder(o) {
			out = append(out, o.Label)
		}
	}
	return out
}
