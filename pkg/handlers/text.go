package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/dom"
	"github.com/formpilot/formpilot/pkg/resolve"
)

// textHandler fills plain text inputs and textareas.
type textHandler struct {
	d Deps
}

func (h *textHandler) Name() string { return "text" }

func (h *textHandler) CanHandle(_ dom.Node, cls classifier.Classification) bool {
	return cls.Kind == classifier.KindText || cls.Kind == classifier.KindTextarea
}

func (h *textHandler) Apply(ctx context.Context, node dom.Node, label string, cls classifier.Classification) (bool, error) {
	value := h.d.Resolver.Resolve(ctx, label, resolve.Options{
		Class:       cls,
		NumericOnly: cls.IsExperience,
	})
	if value == "" {
		return false, nil
	}
	if err := node.SetValue(ctx, value); err != nil {
		return false, err
	}
	h.d.Logger.Debug("text committed",
		zap.String("label", label), zap.Int("len", len(value)))
	return true, nil
}
