package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/dom"
	"github.com/formpilot/formpilot/pkg/resolve"
)

// fieldsetHandler fills a composite choice fieldset: grouped radio or
// checkbox inputs under one legend. It runs before every other handler so
// that member inputs are committed in the context of their question, not as
// stray radios. Three question families get a ranked fallback when the
// resolved answer matches no option: skill level, years of experience, and
// language proficiency all pick the highest-ranked option.
type fieldsetHandler struct {
	d Deps
}

func (h *fieldsetHandler) Name() string { return "choice-fieldset" }

func (h *fieldsetHandler) CanHandle(_ dom.Node, cls classifier.Classification) bool {
	return cls.Kind == classifier.KindFieldset
}

func (h *fieldsetHandler) Apply(ctx context.Context, node dom.Node, label string, cls classifier.Classification) (bool, error) {
	inputs, err := h.d.Page.Query(ctx, "input[type='radio'], input[type='checkbox']", node)
	if err != nil {
		return false, err
	}
	if len(inputs) == 0 {
		return false, nil
	}

	labels := make([]string, len(inputs))
	for i, in := range inputs {
		labels[i] = optionLabel(ctx, h.d.Page, in)
	}

	answer := h.d.Resolver.Resolve(ctx, label, resolve.Options{
		Class:   cls,
		Choices: labels,
	})

	idx := matchLabel(answer, labels)
	if idx < 0 {
		idx = h.rankedFallback(label, cls, labels)
	}
	if idx < 0 {
		if cls.IsConsent {
			for i, l := range labels {
				if isAffirmative(l) {
					idx = i
					break
				}
			}
		}
	}
	if idx < 0 {
		idx = 0
	}

	if err := inputs[idx].Click(ctx); err != nil {
		return false, err
	}
	h.d.Logger.Debug("fieldset choice committed",
		zap.String("legend", label), zap.String("option", labels[idx]))
	return true, nil
}

// rankedFallback picks the option for the three special families, or -1.
func (h *fieldsetHandler) rankedFallback(label string, cls classifier.Classification, labels []string) int {
	lower := strings.ToLower(label)
	switch {
	case cls.IsLanguage || strings.Contains(lower, "proficiency"):
		return pickHighest(labels, languageLadder)
	case cls.IsSkill || strings.Contains(lower, "level"):
		return pickHighest(labels, skillLadder)
	case cls.IsExperience || strings.Contains(lower, "years"):
		// Pure numeric family: the ladder is empty so only the numeric
		// tiebreak applies.
		return pickHighest(labels, nil)
	default:
		return -1
	}
}
