package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/dom"
	"github.com/formpilot/formpilot/pkg/resolve"
)

// toggleHandler commits boolean checkboxes. Consent boxes resolve straight
// to the affirmative default and get checked; anything else follows the
// resolved answer's polarity.
type toggleHandler struct {
	d Deps
}

func (h *toggleHandler) Name() string { return "toggle" }

func (h *toggleHandler) CanHandle(_ dom.Node, cls classifier.Classification) bool {
	return cls.Kind == classifier.KindToggle
}

func (h *toggleHandler) Apply(ctx context.Context, node dom.Node, label string, cls classifier.Classification) (bool, error) {
	answer := h.d.Resolver.Resolve(ctx, label, resolve.Options{Class: cls})
	want := cls.IsConsent || isAffirmative(answer)

	current, err := node.Checked(ctx)
	if err != nil {
		return false, err
	}
	if current == want {
		return true, nil
	}
	if err := node.SetChecked(ctx, want); err != nil {
		return false, err
	}
	h.d.Logger.Debug("toggle committed",
		zap.String("label", label), zap.Bool("checked", want))
	return true, nil
}
