// Package navigator is the top-level form-filling orchestrator: a bounded
// state machine that, per wizard step, discovers fields, dispatches them to
// the handler chain, decides between advancing, reviewing and submitting
// from button availability and progress state, and loops until a terminal
// outcome. It owns the only working state of an attempt and discards it when
// the attempt ends.
package navigator

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/config"
	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/dom"
	"github.com/formpilot/formpilot/pkg/handlers"
	"github.com/formpilot/formpilot/pkg/poll"
	"github.com/formpilot/formpilot/pkg/progress"
	"github.com/formpilot/formpilot/pkg/selector"
)

// Outcome is the terminal state of one attempt.
type Outcome int

const (
	// OutcomeSubmitted means the application was committed and confirmed.
	OutcomeSubmitted Outcome = iota
	// OutcomeBlocked means no viable action remained before the budget ran out.
	OutcomeBlocked
	// OutcomeExhausted means the step budget was spent without a terminal state.
	OutcomeExhausted
	// OutcomeAborted means cancellation was observed at a polling point.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeExhausted:
		return "steps-exhausted"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// attemptState is the working state for one form instance. It never outlives
// the attempt.
type attemptState struct {
	id              string
	step            int
	nextClicked     bool
	reviewClicked   bool
	lastFingerprint int
	refillUsed      bool
}

// Navigator drives one page through its wizard.
type Navigator struct {
	page       dom.Page
	engine     *selector.Engine
	chain      *handlers.Chain
	cls        *classifier.Classifier
	tracker    *progress.Tracker
	strategies selector.Set
	cfg        config.NavigatorConfig
	logger     *zap.Logger
}

// New wires a navigator. The tracker is owned by the navigator and reset at
// the start of every attempt.
func New(
	page dom.Page,
	engine *selector.Engine,
	chain *handlers.Chain,
	cls *classifier.Classifier,
	tracker *progress.Tracker,
	strategies selector.Set,
	cfg config.NavigatorConfig,
	logger *zap.Logger,
) *Navigator {
	return &Navigator{
		page:       page,
		engine:     engine,
		chain:      chain,
		cls:        cls,
		tracker:    tracker,
		strategies: strategies,
		cfg:        cfg,
		logger:     logger.Named("navigator"),
	}
}

// RunAttempt processes one application to a terminal outcome. Cancellation
// at any polling point yields OutcomeAborted with a nil error; errors are
// reserved for conditions the caller could act on, which per the error
// design is nothing below budget exhaustion.
func (n *Navigator) RunAttempt(ctx context.Context) (Outcome, error) {
	st := &attemptState{id: uuid.NewString()}
	n.tracker.Reset()
	log := n.logger.With(zap.String("attempt", st.id))
	log.Info("attempt started", zap.Int("max_steps", n.cfg.MaxSteps))

	for st.step = 1; st.step <= n.cfg.MaxSteps; st.step++ {
		if ctx.Err() != nil {
			log.Info("attempt aborted", zap.Int("step", st.step))
			return OutcomeAborted, nil
		}

		outcome, terminal := n.iterate(ctx, st, log)
		if terminal {
			log.Info("attempt finished",
				zap.String("outcome", outcome.String()), zap.Int("steps", st.step))
			return outcome, nil
		}
	}

	log.Warn("step budget exhausted")
	return OutcomeExhausted, nil
}

// iterate runs one pass of the step loop. terminal is true when outcome is
// final.
func (n *Navigator) iterate(ctx context.Context, st *attemptState, log *zap.Logger) (Outcome, bool) {
	scope := n.stepScope(ctx)

	value, known := n.scrapeProgress(ctx, scope)
	n.tracker.Observe(value, known)
	log.Debug("step begin",
		zap.Int("step", st.step),
		zap.Int("progress", value),
		zap.Bool("progress_known", known),
		zap.String("tracker", n.tracker.State().String()))

	// Stuck remediation: the bar stopped moving and the step shows
	// structural reasons why. Refill before deciding anything.
	if n.tracker.IsStuck() && n.hasStuckIndicators(ctx, scope) {
		log.Info("stalled with stuck indicators, re-running field filling")
		n.fillFields(ctx, scope, log)
	}

	// An unchanged structural fingerprint usually means the UI is still
	// transitioning; wait once more before acting against it.
	if size, err := n.page.ContentSize(ctx, scope); err == nil {
		if st.lastFingerprint != 0 && size == st.lastFingerprint {
			log.Debug("step fingerprint unchanged, extending settle wait")
			poll.Sleep(ctx, n.cfg.StalledPollExtra)
		}
		st.lastFingerprint = size
	}

	if ctx.Err() != nil {
		return OutcomeAborted, true
	}

	n.fillFields(ctx, scope, log)

	return n.decideAction(ctx, st, scope, log)
}

// stepScope locates the wizard's container; a nil scope falls back to the
// whole document, which keeps single-page variants working.
func (n *Navigator) stepScope(ctx context.Context) dom.Node {
	scope, err := n.engine.Resolve(ctx, n.strategies.StepContainer, nil)
	if err != nil {
		return nil
	}
	return scope
}

// scrapeProgress reads the completion percentage off the progress element.
func (n *Navigator) scrapeProgress(ctx context.Context, scope dom.Node) (int, bool) {
	bar, err := n.engine.Resolve(ctx, n.strategies.ProgressBar, scope)
	if err != nil || bar == nil {
		return 0, false
	}
	for _, attr := range []string{"value", "aria-valuenow"} {
		if v := bar.Attr(attr); v != "" {
			if pct, ok := parsePercent(v); ok {
				return pct, true
			}
		}
	}
	return 0, false
}

// hasStuckIndicators looks for structural evidence that the step is waiting
// on us: visible validation errors or required fields still blank.
func (n *Navigator) hasStuckIndicators(ctx context.Context, scope dom.Node) bool {
	markers, err := n.engine.ResolveVisible(ctx, n.strategies.ErrorMarker, scope)
	if err == nil && len(markers) > 0 {
		return true
	}
	for _, f := range n.discoverFields(ctx, scope) {
		if f.Class.Required && f.Blank {
			return true
		}
	}
	return false
}

func parsePercent(s string) (int, bool) {
	n := 0
	seen := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			seen = true
			continue
		}
		if seen {
			break
		}
	}
	if !seen || n > 100 {
		return 0, false
	}
	return n, true
}
