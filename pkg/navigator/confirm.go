package navigator

import (
	"context"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/poll"
)

// awaitConfirmation watches for evidence that the submit landed. A visible
// success banner confirms immediately. Weaker signals (the step container
// vanishing, the submit and progress elements going away) accumulate across
// polls and confirm once enough distinct ones have been seen, since no
// single one is trustworthy on its own. As a last resort, a vanished
// container at the deadline is treated as assumed success when configured.
// This is best-effort policy over an unreliable signal, not verified truth.
func (n *Navigator) awaitConfirmation(ctx context.Context, log *zap.Logger) bool {
	weak := make(map[string]bool)

	confirmed := poll.Until(ctx, n.cfg.ConfirmPollInterval, n.cfg.ConfirmTimeout, func(ctx context.Context) bool {
		if banner, err := n.engine.Resolve(ctx, n.strategies.SuccessBanner, nil); err == nil && banner != nil {
			log.Info("submit confirmed by success banner")
			return true
		}

		if container, err := n.engine.Resolve(ctx, n.strategies.StepContainer, nil); err == nil && container == nil {
			weak["container-gone"] = true
		}
		if btn, err := n.engine.Resolve(ctx, n.strategies.SubmitButton, nil); err == nil && btn == nil {
			weak["submit-gone"] = true
		}
		if bar, err := n.engine.Resolve(ctx, n.strategies.ProgressBar, nil); err == nil && bar == nil {
			weak["progress-gone"] = true
		}
		if len(weak) >= n.cfg.WeakSignalThreshold {
			log.Info("submit confirmed by corroborating signals",
				zap.Int("signals", len(weak)))
			return true
		}
		return false
	})

	if confirmed {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	if n.cfg.AssumeSuccessOnVanish && weak["container-gone"] {
		log.Warn("confirmation timed out with step container gone, assuming success")
		return true
	}
	return false
}

// dismissAcknowledgment closes the post-submit dialog when one is present.
// Failure here is cosmetic.
func (n *Navigator) dismissAcknowledgment(ctx context.Context, log *zap.Logger) {
	btn, err := n.engine.Resolve(ctx, n.strategies.DismissButton, nil)
	if err != nil || btn == nil {
		return
	}
	if err := btn.Click(ctx); err != nil {
		log.Debug("acknowledgment dismiss failed", zap.Error(err))
	}
}
