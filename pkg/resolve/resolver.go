// Package resolve orchestrates where a field's value comes from. Precedence
// is fixed: explicit override, then the answer cache, then the external
// answer service, then the static default table. A value obtained from the
// service or supplied explicitly is written back into the cache so the next
// occurrence of the question is free.
package resolve

import (
	"context"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/config"
	"github.com/formpilot/formpilot/pkg/answercache"
	"github.com/formpilot/formpilot/pkg/answersvc"
	"github.com/formpilot/formpilot/pkg/classifier"
)

// AnswerService is the slice of the external client the pipeline needs.
type AnswerService interface {
	Answer(ctx context.Context, req answersvc.Request) (string, error)
}

// Options steers a single resolution.
type Options struct {
	// Explicit short-circuits everything when non-empty.
	Explicit string
	// Class carries the field's classification hints.
	Class classifier.Classification
	// Choices is the option list of choice-bearing controls, forwarded to
	// the service so the answer can be mapped to an exact option.
	Choices []string
	// NumericOnly asks for a bare integer answer.
	NumericOnly bool
}

// Resolver is the value-resolution pipeline.
type Resolver struct {
	cache   *answercache.Cache
	svc     AnswerService // nil when the service is disabled
	profile config.ProfileConfig
	logger  *zap.Logger
}

// New creates a resolver. svc may be nil; the pipeline then skips straight
// from cache misses to defaults.
func New(cache *answercache.Cache, svc AnswerService, profile config.ProfileConfig, logger *zap.Logger) *Resolver {
	return &Resolver{
		cache:   cache,
		svc:     svc,
		profile: profile,
		logger:  logger.Named("resolve"),
	}
}

// Resolve produces the value to commit for a field, or "" when even the
// default table has nothing. Service failures are logged and absorbed; they
// are never the caller's problem.
func (r *Resolver) Resolve(ctx context.Context, label string, opts Options) string {
	if opts.Explicit != "" {
		r.cache.Set(ctx, label, opts.Explicit, r.hints(opts))
		return opts.Explicit
	}

	// Consent fields never consult the cache or the service: the only
	// sensible commit is the affirmative one.
	if opts.Class.IsConsent {
		return r.defaultFor(opts)
	}

	if answer, ok := r.cache.Get(label, r.hints(opts)); ok {
		return answer
	}

	if r.svc != nil {
		req := answersvc.Request{
			Question:    label,
			ProfileText: r.profile.FreeText,
			Options:     opts.Choices,
			NumericOnly: opts.NumericOnly || opts.Class.IsExperience,
			IsSummary:   opts.Class.IsSummary,
			IsCover:     opts.Class.IsCover,
		}
		answer, err := r.svc.Answer(ctx, req)
		if err == nil && answer != "" {
			r.cache.Set(ctx, label, answer, r.hints(opts))
			return answer
		}
		if err != nil && ctx.Err() == nil {
			r.logger.Warn("answer service unavailable, falling back to defaults",
				zap.String("question", label), zap.Error(err))
		}
	}

	return r.defaultFor(opts)
}

func (r *Resolver) hints(opts Options) answercache.Hints {
	return answercache.Hints{Category: opts.Class.Category()}
}

// defaultFor is the static default table, keyed by classification.
func (r *Resolver) defaultFor(opts Options) string {
	cls := opts.Class
	switch {
	case cls.IsConsent:
		if len(opts.Choices) > 0 {
			return answersvc.AffirmativeOption(opts.Choices)
		}
		return "Yes"
	case cls.IsCountry:
		return r.profile.Country
	case cls.IsCity:
		return r.profile.City
	case cls.IsPhone:
		return r.profile.Phone
	case cls.IsEmail:
		return r.profile.Email
	case cls.IsExperience:
		return r.profile.ExperienceYears
	case cls.IsSummary || cls.IsCover:
		return cannedSummary
	default:
		return "Yes"
	}
}

// cannedSummary is the deterministic fallback for free-text prompts when no
// better answer exists. Bland on purpose.
const cannedSummary = "I believe my background and experience make me a strong fit for this role, and I would welcome the opportunity to contribute to your team."
