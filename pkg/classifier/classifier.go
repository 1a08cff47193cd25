// Package classifier derives the semantic purpose of a form control from its
// inferred label and node attributes. Classification is a pure function of
// (node, label) and is recomputed on every discovery pass: the host UI
// replaces nodes freely, so nothing here may be cached across steps.
package classifier

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/config"
	"github.com/formpilot/formpilot/pkg/dom"
)

// ControlKind is the interaction family of a control, derived from structure
// rather than label text.
type ControlKind int

const (
	KindUnknown ControlKind = iota
	KindText
	KindTextarea
	KindSelect
	KindRadio
	KindToggle
	KindAutocomplete
	KindFieldset
)

func (k ControlKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTextarea:
		return "textarea"
	case KindSelect:
		return "select"
	case KindRadio:
		return "radio"
	case KindToggle:
		return "toggle"
	case KindAutocomplete:
		return "autocomplete"
	case KindFieldset:
		return "fieldset"
	default:
		return "unknown"
	}
}

// Classification is the tag set for one field. Multiple tags may be true at
// once; the all-false result is valid and routes the field to generic text
// handling.
type Classification struct {
	Kind ControlKind

	IsCountry    bool
	IsCity       bool
	IsPhone      bool
	IsEmail      bool
	IsExperience bool
	IsSummary    bool
	IsCover      bool
	IsConsent    bool
	IsLanguage   bool
	IsSkill      bool

	Required bool
}

// Category returns the cache category slot this field maps to, or "".
func (c Classification) Category() string {
	switch {
	case c.IsCountry:
		return "country"
	case c.IsCity:
		return "city"
	case c.IsPhone:
		return "phone"
	default:
		return ""
	}
}

// Classifier applies the configured keyword tables. It never fails: a field
// that matches nothing comes back with zeroed tags.
type Classifier struct {
	cfg    config.ClassifierConfig
	logger *zap.Logger
}

// New creates a classifier from the keyword tables in cfg.
func New(cfg config.ClassifierConfig, logger *zap.Logger) *Classifier {
	return &Classifier{cfg: cfg, logger: logger.Named("classifier")}
}

// Classify derives the tag set for one control.
func (c *Classifier) Classify(ctx context.Context, node dom.Node, label string) Classification {
	out := Classification{Kind: kindOf(node)}
	needle := strings.ToLower(label)

	out.IsCountry = matchAny(needle, c.cfg.CountryKeywords) || c.hasAttrHint(node, "country")
	out.IsCity = matchAny(needle, c.cfg.CityKeywords)
	out.IsPhone = matchAny(needle, c.cfg.PhoneKeywords) ||
		strings.EqualFold(node.Attr("type"), "tel") || c.hasAttrHint(node, "phone")
	out.IsEmail = matchAny(needle, c.cfg.EmailKeywords) ||
		strings.EqualFold(node.Attr("type"), "email")
	out.IsExperience = matchAny(needle, c.cfg.ExperienceKeywords)
	out.IsSummary = matchAny(needle, c.cfg.SummaryKeywords) || out.Kind == KindTextarea
	out.IsCover = matchAny(needle, c.cfg.CoverKeywords)
	out.IsConsent = matchAny(needle, c.cfg.ConsentKeywords)
	out.IsLanguage = matchAny(needle, c.cfg.LanguageKeywords)
	out.IsSkill = matchAny(needle, c.cfg.SkillKeywords)
	out.Required = required(node, label)

	// Label heuristics can be inconclusive for selects whose label is just
	// "please choose". Sample the option text for known-country density.
	if !out.IsCountry && out.Kind == KindSelect {
		out.IsCountry = c.countryByOptions(ctx, node)
	}

	return out
}

func kindOf(node dom.Node) ControlKind {
	switch node.Tag() {
	case "fieldset":
		return KindFieldset
	case "select":
		return KindSelect
	case "textarea":
		return KindTextarea
	case "input":
		if node.Attr("role") == "combobox" || node.HasAttr("aria-autocomplete") ||
			node.HasAttr("list") {
			return KindAutocomplete
		}
		switch strings.ToLower(node.Attr("type")) {
		case "checkbox":
			return KindToggle
		case "radio":
			return KindRadio
		default:
			return KindText
		}
	default:
		return KindUnknown
	}
}

func required(node dom.Node, label string) bool {
	if node.HasAttr("required") || node.Attr("aria-required") == "true" {
		return true
	}
	return strings.HasSuffix(strings.TrimSpace(label), "*")
}

func (c *Classifier) hasAttrHint(node dom.Node, hint string) bool {
	for _, attr := range []string{"id", "name", "autocomplete"} {
		if strings.Contains(strings.ToLower(node.Attr(attr)), hint) {
			return true
		}
	}
	return false
}

// countryByOptions reports whether enough of the first few options of a
// select look like country names.
func (c *Classifier) countryByOptions(ctx context.Context, node dom.Node) bool {
	opts, err := node.Options(ctx)
	if err != nil || len(opts) == 0 {
		return false
	}
	sample := c.cfg.CountryOptionSample
	if sample <= 0 {
		sample = 20
	}
	need := c.cfg.CountryOptionHits
	if need <= 0 {
		need = 3
	}
	if len(opts) > sample {
		opts = opts[:sample]
	}
	hits := 0
	for _, opt := range opts {
		label := strings.ToLower(strings.TrimSpace(opt.Label))
		for _, country := range c.cfg.KnownCountries {
			if label == country {
				hits++
				break
			}
		}
		if hits >= need {
			return true
		}
	}
	return false
}

func matchAny(needle string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(needle, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
