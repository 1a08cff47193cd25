package navigator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/dom"
)

// FieldDescriptor is the ephemeral view of one fillable field, derived fresh
// on every discovery pass and never persisted: the underlying node may be
// replaced by the host UI at any time.
type FieldDescriptor struct {
	Node  dom.Node
	Label string
	Class classifier.Classification
	Blank bool
}

// discoverFields collects the currently visible, interactive fields of the
// step in fill-priority order: country fields first (they often repopulate
// dependent fields), then other required fields, then the rest.
func (n *Navigator) discoverFields(ctx context.Context, scope dom.Node) []FieldDescriptor {
	var out []FieldDescriptor

	fieldsets, err := n.engine.ResolveVisible(ctx, n.strategies.Fieldsets, scope)
	if err == nil {
		for _, fs := range fieldsets {
			if ctx.Err() != nil {
				return out
			}
			label := n.legendText(ctx, fs)
			cls := n.cls.Classify(ctx, fs, label)
			out = append(out, FieldDescriptor{
				Node:  fs,
				Label: label,
				Class: cls,
				Blank: n.fieldsetBlank(ctx, fs),
			})
		}
	}

	controls, err := n.engine.ResolveAll(ctx, n.strategies.Fields, scope)
	if err != nil {
		return out
	}
	for _, node := range controls {
		if ctx.Err() != nil {
			return out
		}
		if skipControl(node) {
			continue
		}
		if visible, err := node.Visible(ctx); err != nil || !visible {
			continue
		}
		// Fieldset members are handled through their fieldset.
		if fs, err := node.Closest(ctx, "fieldset"); err == nil && fs != nil {
			continue
		}
		label := n.inferLabel(ctx, node)
		cls := n.cls.Classify(ctx, node, label)
		out = append(out, FieldDescriptor{
			Node:  node,
			Label: label,
			Class: cls,
			Blank: controlBlank(ctx, node, cls),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return fillPriority(out[i]) < fillPriority(out[j])
	})
	return out
}

// fillFields dispatches every blank field to the handler chain. Handler
// failures are logged and skipped; the step always continues.
func (n *Navigator) fillFields(ctx context.Context, scope dom.Node, log *zap.Logger) {
	fields := n.discoverFields(ctx, scope)
	log.Debug("fields discovered", zap.Int("count", len(fields)))

	for _, f := range fields {
		if ctx.Err() != nil {
			return
		}
		if !f.Blank {
			continue
		}
		handled, err := n.chain.Dispatch(ctx, f.Node, f.Label, f.Class)
		if err != nil {
			log.Warn("field interaction failed, continuing",
				zap.String("label", f.Label), zap.Error(err))
			continue
		}
		if !handled {
			log.Debug("field skipped", zap.String("label", f.Label),
				zap.String("kind", f.Class.Kind.String()))
		}
	}
}

func fillPriority(f FieldDescriptor) int {
	switch {
	case f.Class.IsCountry:
		return 0
	case f.Class.Required:
		return 1
	default:
		return 2
	}
}

// skipControl filters out controls that are not fillable form fields.
func skipControl(node dom.Node) bool {
	if node.Tag() != "input" {
		return false
	}
	switch strings.ToLower(node.Attr("type")) {
	case "hidden", "submit", "button", "reset", "image", "file":
		return true
	}
	return node.HasAttr("disabled")
}

// controlBlank reports whether a control still needs a value.
func controlBlank(ctx context.Context, node dom.Node, cls classifier.Classification) bool {
	switch cls.Kind {
	case classifier.KindToggle, classifier.KindRadio:
		checked, err := node.Checked(ctx)
		return err == nil && !checked
	default:
		v, err := node.Value(ctx)
		return err == nil && strings.TrimSpace(v) == ""
	}
}

// fieldsetBlank reports whether no member choice is committed yet.
func (n *Navigator) fieldsetBlank(ctx context.Context, fs dom.Node) bool {
	inputs, err := n.page.Query(ctx, "input[type='radio'], input[type='checkbox']", fs)
	if err != nil {
		return false
	}
	for _, in := range inputs {
		if checked, err := in.Checked(ctx); err == nil && checked {
			return false
		}
	}
	return len(inputs) > 0
}

// legendText reads a fieldset's question.
func (n *Navigator) legendText(ctx context.Context, fs dom.Node) string {
	legends, err := n.page.Query(ctx, "legend", fs)
	if err == nil && len(legends) > 0 {
		if text, err := legends[0].Text(ctx); err == nil {
			return strings.TrimSpace(text)
		}
	}
	return fs.Attr("aria-label")
}

// inferLabel derives the question text for a control, trying the explicit
// associations first and degrading to whatever hint the markup offers.
func (n *Navigator) inferLabel(ctx context.Context, node dom.Node) string {
	if v := strings.TrimSpace(node.Attr("aria-label")); v != "" {
		return v
	}
	if id := node.Attr("id"); id != "" {
		expr := fmt.Sprintf("label[for='%s']", id)
		if labels, err := n.page.Query(ctx, expr, nil); err == nil && len(labels) > 0 {
			if text, err := labels[0].Text(ctx); err == nil && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	}
	if wrap, err := node.Closest(ctx, "label"); err == nil && wrap != nil {
		if text, err := wrap.Text(ctx); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	if v := strings.TrimSpace(node.Attr("placeholder")); v != "" {
		return v
	}
	return node.Attr("name")
}
