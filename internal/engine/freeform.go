package engine

import (
	"context"
	"strconv"
	"strings"

	"gramnerd/internal/accounts"
	"gramnerd/internal/advisory"
	"gramnerd/internal/logging"
	"gramnerd/internal/quota"
	"gramnerd/internal/store"
)

const (
	// freeformIterations bounds how many advisory decisions one
	// freeform run may take. Failed proposals consume an iteration so
	// a wedged model cannot loop forever.
	freeformIterations = 30

	// freeformWaitMin and freeformWaitMax clamp the wait action.
	freeformWaitMin = 1
	freeformWaitMax = 30
)

// runFreeform hands the browser to the advisory model one decision at
// a time: screenshot and element digest go up, one action comes back,
// until the model says done or the iteration budget runs out.
func (s *Supervisor) runFreeform(ctx context.Context, params Params) error {
	rotation := s.rotation()
	if len(rotation) == 0 {
		return ErrNoAccounts
	}
	account := rotation[0]

	return s.withSession(ctx, account, func(br Browser) error {
		s.markUsed(account.Username)
		s.feed.Action("Freeform task on @%s: %s", account.Username, params.Instruction)

		for i := 1; i <= freeformIterations; i++ {
			if !s.shouldContinue() {
				return nil
			}

			action, err := s.proposeNext(ctx, br, params.Instruction)
			if err != nil {
				s.feed.Warning("Step %d/%d: model gave no usable action: %v", i, freeformIterations, err)
				logging.EngineWarn("Freeform step %d: %v", i, err)
				continue
			}

			logging.Engine("Freeform step %d/%d: %s %q (%s)",
				i, freeformIterations, action.Action, action.Target, action.Reason)
			s.feed.Action("Step %d/%d: %s %s", i, freeformIterations, action.Action, action.Target)

			done, err := s.applyAction(ctx, br, account, action)
			if err != nil {
				s.feed.Warning("Step %d failed: %v", i, err)
				logging.EngineWarn("Freeform step %d apply: %v", i, err)
			}
			if done {
				s.feed.Success("Task reported complete after %d steps", i)
				return nil
			}

			// Short settle delay; the model drives the cadence here,
			// not the outreach pacing windows.
			if !s.pause(quota.Window{Min: 2, Max: 5}) {
				return nil
			}
		}
		s.feed.Warning("Iteration budget exhausted without completion")
		return nil
	})
}

// proposeNext gathers page state and asks the model for one action.
func (s *Supervisor) proposeNext(ctx context.Context, br Browser, instruction string) (*advisory.Action, error) {
	screenshot, err := br.Screenshot(ctx)
	if err != nil {
		screenshot = nil
	}
	elements, err := br.ElementDigest(ctx)
	if err != nil {
		elements = ""
	}
	return s.advisor.ProposeAction(ctx, screenshot, br.CurrentURL(), elements, instruction)
}

// applyAction executes one proposed action. done is true when the
// model declared the task complete. Unknown actions are skipped.
func (s *Supervisor) applyAction(ctx context.Context, br Browser, account accounts.Account, action *advisory.Action) (done bool, err error) {
	switch strings.ToLower(strings.TrimSpace(action.Action)) {
	case "click":
		return false, br.ClickText(ctx, action.Target)
	case "type":
		return false, br.TypeText(ctx, action.Target)
	case "scroll":
		return false, br.Scroll(ctx)
	case "goto":
		return false, br.Navigate(ctx, action.Target)
	case "wait":
		s.pause(quota.Window{Min: clampWait(action.Target), Max: clampWait(action.Target)})
		return false, nil
	case "comment":
		return false, s.freeformComment(ctx, br, account, action.Target)
	case "done":
		return true, nil
	default:
		logging.EngineWarn("Unknown freeform action %q, skipping", action.Action)
		return false, nil
	}
}

// freeformComment posts the model's comment text on the current post,
// honoring the same quota, dedup, and content rules as the comment
// modes.
func (s *Supervisor) freeformComment(ctx context.Context, br Browser, account accounts.Account, text string) error {
	counters, err := s.ledger.TodayCounters(account.Username)
	if err != nil {
		return err
	}
	if !quota.WithinQuota(counters.Comments, s.cfg.Quotas.MaxCommentsPerDay) {
		s.feed.Warning("Comment quota reached, ignoring comment action")
		return nil
	}

	postURL := br.CurrentURL()
	commented, err := s.ledger.Commented(postURL)
	if err != nil {
		return err
	}
	if commented {
		s.feed.Info("Already commented on %s, skipping", postURL)
		return nil
	}

	if advisory.IsPromotional(text) {
		text = PickComment()
	}
	text = advisory.ClampComment(text)

	if err := br.PostComment(ctx, postURL, text); err != nil {
		return err
	}
	if err := s.ledger.RecordComment(store.Comment{
		PostURL: postURL,
		Text:    text,
		Account: account.Username,
	}); err != nil {
		return err
	}
	return s.ledger.Increment(account.Username, store.CounterComments)
}

// clampWait parses the wait target as seconds and clamps it.
func clampWait(target string) int {
	n, err := strconv.Atoi(strings.TrimSpace(target))
	if err != nil {
		return 3
	}
	if n < freeformWaitMin {
		return freeformWaitMin
	}
	if n > freeformWaitMax {
		return freeformWaitMax
	}
	return n
}
