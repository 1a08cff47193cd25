package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/dom"
	"github.com/formpilot/formpilot/pkg/poll"
	"github.com/formpilot/formpilot/pkg/resolve"
)

// autocompleteHandler types into a typeahead control, waits for its listbox
// to open, and commits the best suggestion. When no suggestions appear the
// typed text is left in place, which most variants accept as a free value.
type autocompleteHandler struct {
	d Deps
}

func (h *autocompleteHandler) Name() string { return "autocomplete" }

func (h *autocompleteHandler) CanHandle(_ dom.Node, cls classifier.Classification) bool {
	return cls.Kind == classifier.KindAutocomplete
}

func (h *autocompleteHandler) Apply(ctx context.Context, node dom.Node, label string, cls classifier.Classification) (bool, error) {
	value := h.d.Resolver.Resolve(ctx, label, resolve.Options{Class: cls})
	if value == "" {
		return false, nil
	}
	if err := node.SetValue(ctx, value); err != nil {
		return false, err
	}

	// Give the suggestion list a moment to populate.
	if h.d.Settle > 0 && !poll.Sleep(ctx, h.d.Settle) {
		return false, ctx.Err()
	}

	suggestions, err := h.d.Engine.ResolveVisible(ctx, h.d.Strategies.ListboxOptions, nil)
	if err != nil || len(suggestions) == 0 {
		// Typed value stands on its own.
		return true, nil
	}

	want := strings.ToLower(value)
	chosen := suggestions[0]
	for _, s := range suggestions {
		text, err := s.Text(ctx)
		if err != nil {
			continue
		}
		lo := strings.ToLower(strings.TrimSpace(text))
		if lo == want {
			chosen = s
			break
		}
		if strings.Contains(lo, want) {
			chosen = s
		}
	}
	if err := chosen.Click(ctx); err != nil {
		return false, err
	}
	h.d.Logger.Debug("suggestion committed", zap.String("label", label))
	return true, nil
}
