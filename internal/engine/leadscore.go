package engine

import (
	"context"
	"errors"

	"gramnerd/internal/accounts"
	"gramnerd/internal/browser"
	"gramnerd/internal/logging"
	"gramnerd/internal/store"
)

const (
	// leadScorePosts is how many saved posts one lead-scoring pass
	// works through.
	leadScorePosts = 5

	// leadScoreCommenters caps how many commenters per post are
	// examined.
	leadScoreCommenters = 10
)

// runLeadScore mines the commenters of saved posts: people who comment
// on business content are warmer leads than hashtag strangers. Each
// commenter is examined, scored by the advisory model, and DMed with a
// personalized opener when the score clears the bar.
func (s *Supervisor) runLeadScore(ctx context.Context, params Params) error {
	name := params.CollectionName
	if name == "" {
		name = s.cfg.Targeting.SavedCollectionName
	}
	sentThisRun := 0

	pool := accounts.Eligible(s.rotation(), s.dmsUsedToday, s.cfg.Quotas.MaxDMsPerDay)
	if len(pool) == 0 {
		s.feed.Info("Every account is at its daily DM ceiling")
		return nil
	}

	for _, account := range pool {
		if !s.shouldContinue() {
			return nil
		}

		budget, err := s.dmBudget(account.Username, params.MaxDMs, sentThisRun)
		if err != nil {
			return err
		}
		if budget == 0 {
			continue
		}

		err = s.withSession(ctx, account, func(br Browser) error {
			sent, err := s.leadScoreWithAccount(ctx, br, account, name, params.CollectionURL, budget)
			sentThisRun += sent
			return err
		})
		if err != nil {
			if errors.Is(err, browser.ErrAuthentication) {
				s.feed.Error("@%s could not log in, skipping account", account.Username)
				continue
			}
			s.feed.Error("@%s session error: %v", account.Username, err)
			logging.EngineError("Account @%s: %v", account.Username, err)
			continue
		}
		s.markUsed(account.Username)

		if params.MaxDMs > 0 && sentThisRun >= params.MaxDMs {
			return nil
		}
	}
	return nil
}

func (s *Supervisor) leadScoreWithAccount(ctx context.Context, br Browser, account accounts.Account, collectionName, collectionURL string, budget int) (int, error) {
	posts, err := br.SavedPosts(ctx, collectionName, collectionURL, leadScorePosts)
	if err != nil {
		return 0, err
	}
	if len(posts) == 0 {
		s.feed.Warning("No saved posts found for @%s", account.Username)
		return 0, nil
	}

	sent := 0
	for _, post := range posts {
		if sent >= budget || !s.shouldContinue() {
			return sent, nil
		}

		commenters, err := br.Commenters(ctx, post, leadScoreCommenters)
		if err != nil {
			logging.EngineWarn("Commenters on %s: %v", post, err)
			continue
		}
		s.feed.Action("Examining %d commenters on %s", len(commenters), post)

		for _, handle := range commenters {
			if sent >= budget || !s.shouldContinue() {
				return sent, nil
			}
			contacted, err := s.ledger.Contacted(handle)
			if err != nil {
				return sent, err
			}
			if contacted {
				continue
			}
			if s.scoreAndContact(ctx, br, account, handle) {
				sent++
				if !s.pause(s.dmWindow()) {
					return sent, nil
				}
			} else if !s.pause(s.actionWindow()) {
				return sent, nil
			}
		}
	}
	return sent, nil
}

// scoreAndContact examines one commenter, scores them, and sends a
// personalized DM when they clear the acceptance bar. Returns true
// when a DM went out.
func (s *Supervisor) scoreAndContact(ctx context.Context, br Browser, account accounts.Account, handle string) bool {
	if !s.underViewQuota(account.Username) {
		return false
	}
	profile, err := br.ExamineProfile(ctx, handle)
	if err != nil {
		logging.EngineWarn("Examine @%s: %v", handle, err)
		return false
	}

	if accept, reason := DecideTarget(profile, s.cfg.Targeting); !accept {
		s.feed.Info("Skipped @%s: %s", handle, reason)
		return false
	}

	analysis := s.scoreCurrentProfile(ctx, br, profile)
	if analysis == nil {
		return false
	}

	if err := s.ledger.RecordProspect(store.Prospect{
		Username:   profile.Username,
		Bio:        profile.Bio,
		Followers:  profile.Followers,
		HasWebsite: profile.HasWebsite,
		FoundVia:   "saved_post_commenters",
	}); err != nil {
		logging.EngineError("Record prospect @%s: %v", handle, err)
	}

	if !analysis.Accepted() {
		s.feed.Info("@%s scored %d (%s), not contacting", handle, analysis.Score, analysis.BusinessType)
		return false
	}

	message := ComposeDM(analysis.PersonalizedMessage, analysis.HasWebsite)
	if err := br.SendDM(ctx, profile.Username, message); err != nil {
		logging.EngineWarn("DM @%s: %v", handle, err)
		return false
	}
	if err := s.ledger.RecordContact(store.Contact{
		Username:   profile.Username,
		ProfileURL: "https://www.instagram.com/" + profile.Username + "/",
		HasWebsite: analysis.HasWebsite,
		Template:   templateLabel(analysis.PersonalizedMessage, analysis.HasWebsite),
		Account:    account.Username,
	}); err != nil {
		logging.EngineError("Record contact @%s: %v", handle, err)
	}
	if err := s.ledger.Increment(account.Username, store.CounterDMs); err != nil {
		logging.EngineError("Count DM for %s: %v", account.Username, err)
	}
	s.feed.Success("Lead @%s (score %d, %s) contacted via @%s",
		handle, analysis.Score, analysis.BusinessType, account.Username)
	return true
}
