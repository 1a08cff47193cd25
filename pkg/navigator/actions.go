package navigator

import (
	"context"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/pkg/dom"
	"github.com/formpilot/formpilot/pkg/poll"
	"github.com/formpilot/formpilot/pkg/selector"
)

// decideAction picks and performs the control action for this iteration.
// Priority: submit when progress is complete or review already happened;
// review when progress is nearly complete or the flow advanced past next;
// otherwise advance. A form with no controls at all gets one single-step
// submit attempt before the loop is declared blocked.
func (n *Navigator) decideAction(ctx context.Context, st *attemptState, scope dom.Node, log *zap.Logger) (Outcome, bool) {
	if n.tracker.IsComplete() || st.reviewClicked {
		if n.clickControl(ctx, n.strategies.SubmitButton, scope, log) {
			return n.afterSubmit(ctx, st, log)
		}
	}

	if n.tracker.Value() >= 90 || st.nextClicked {
		if n.clickControl(ctx, n.strategies.ReviewButton, scope, log) {
			st.reviewClicked = true
			return 0, false
		}
	}

	if n.clickControl(ctx, n.strategies.NextButton, scope, log) {
		st.nextClicked = true
		return 0, false
	}

	// Nothing to advance or review. A single-step form goes straight to
	// submit, but only before any navigation has happened.
	if !st.nextClicked && !st.reviewClicked {
		if n.clickControl(ctx, n.strategies.SubmitButton, scope, log) {
			return n.afterSubmit(ctx, st, log)
		}
	}

	// Late-stage stall: when the form is nearly done, one more fill pass is
	// cheaper than giving up.
	if !st.refillUsed && n.tracker.IsStuck() && n.tracker.Value() >= 80 {
		st.refillUsed = true
		log.Info("no action available near completion, retrying field filling")
		n.fillFields(ctx, scope, log)
		return 0, false
	}

	log.Warn("no viable control action", zap.Int("step", st.step))
	return OutcomeBlocked, true
}

// afterSubmit waits for the bounded confirmation signal and dismisses the
// acknowledgment when one arrives.
func (n *Navigator) afterSubmit(ctx context.Context, st *attemptState, log *zap.Logger) (Outcome, bool) {
	if ctx.Err() != nil {
		return OutcomeAborted, true
	}
	if n.awaitConfirmation(ctx, log) {
		n.dismissAcknowledgment(ctx, log)
		return OutcomeSubmitted, true
	}
	if ctx.Err() != nil {
		return OutcomeAborted, true
	}
	// Unconfirmed submit: keep looping, the remaining budget may surface a
	// validation error to remediate.
	log.Warn("submit not confirmed, continuing", zap.Int("step", st.step))
	return 0, false
}

// clickControl resolves and clicks one control, then lets the UI settle.
// A miss is an absence, not an error.
func (n *Navigator) clickControl(ctx context.Context, st selector.Strategy, scope dom.Node, log *zap.Logger) bool {
	node, err := n.engine.Resolve(ctx, st, scope)
	if err != nil || node == nil {
		return false
	}
	if node.HasAttr("disabled") {
		return false
	}
	if err := node.Click(ctx); err != nil {
		log.Warn("control click failed",
			zap.String("control", st.Name), zap.Error(err))
		return false
	}
	log.Info("control clicked", zap.String("control", st.Name))
	poll.Sleep(ctx, n.cfg.SettleDelay)
	return true
}
