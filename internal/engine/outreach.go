package engine

import (
	"context"
	"errors"
	"strings"

	"gramnerd/internal/accounts"
	"gramnerd/internal/advisory"
	"gramnerd/internal/browser"
	"gramnerd/internal/logging"
	"gramnerd/internal/store"
)

// runOutreach discovers prospects through hashtag search and sends
// personalized DMs, rotating across accounts until quotas or the
// per-run cap are exhausted. Prospects queued by earlier runs are
// drained first.
func (s *Supervisor) runOutreach(ctx context.Context, params Params) error {
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
			sent, err := s.outreachWithAccount(ctx, br, account, params, budget)
			sentThisRun += sent
			return err
		})
		if err != nil {
			if errors.Is(err, browser.ErrAuthentication) {
				s.feed.Error("@%s could not log in, skipping account", account.Username)
				logging.EngineWarn("Skipping @%s: %v", account.Username, err)
				continue
			}
			s.feed.Error("@%s session error: %v", account.Username, err)
			logging.EngineError("Account @%s: %v", account.Username, err)
			continue
		}
		s.markUsed(account.Username)

		if params.MaxDMs > 0 && sentThisRun >= params.MaxDMs {
			s.feed.Info("Run DM cap reached (%d)", params.MaxDMs)
			return nil
		}
	}
	return nil
}

// outreachWithAccount drives one logged-in account: pending prospects
// first, then fresh hashtag discovery. Returns the number of DMs sent.
func (s *Supervisor) outreachWithAccount(ctx context.Context, br Browser, account accounts.Account, params Params, budget int) (int, error) {
	sent := 0

	// Drain prospects queued by earlier runs before discovering more.
	pending, err := s.ledger.PendingProspects(budget)
	if err != nil {
		return sent, err
	}
	for _, p := range pending {
		if sent >= budget || !s.shouldContinue() {
			return sent, nil
		}
		// The queue holds every examined profile, rejected ones
		// included, so the follower thresholds apply here too.
		accept, _ := DecideTarget(&browser.Profile{
			Username:   p.Username,
			Bio:        p.Bio,
			Followers:  p.Followers,
			HasWebsite: p.HasWebsite,
		}, s.cfg.Targeting)
		if !accept {
			continue
		}
		if s.contactProspect(ctx, br, account, p) {
			sent++
			if !s.pause(s.dmWindow()) {
				return sent, nil
			}
		}
	}

	for _, tag := range s.hashtagsFor(params) {
		if sent >= budget || !s.shouldContinue() {
			return sent, nil
		}
		if !s.underSearchQuota(account.Username) {
			s.feed.Info("@%s hit the daily search quota", account.Username)
			return sent, nil
		}

		posts, err := br.SearchHashtag(ctx, tag, 9)
		if err != nil {
			logging.EngineWarn("Search #%s failed: %v", tag, err)
			continue
		}
		s.feed.Action("Searched #%s: %d posts", tag, len(posts))

		for _, post := range posts {
			if sent >= budget || !s.shouldContinue() {
				return sent, nil
			}
			n, err := s.outreachFromPost(ctx, br, account, post, tag)
			if err != nil {
				logging.EngineWarn("Post %s: %v", post, err)
			}
			sent += n
			// The long contact window applies between sent DMs; a post
			// that produced no DM only needs the generic action delay.
			window := s.actionWindow()
			if n > 0 {
				window = s.dmWindow()
			}
			if !s.pause(window) {
				return sent, nil
			}
		}
	}
	return sent, nil
}

// outreachFromPost examines one discovered post's author and DMs them
// when they pass targeting. Returns 1 when a DM went out.
func (s *Supervisor) outreachFromPost(ctx context.Context, br Browser, account accounts.Account, postURL, tag string) (int, error) {
	visited, err := s.ledger.Visited(postURL)
	if err != nil {
		return 0, err
	}
	if visited {
		return 0, nil
	}

	author, err := br.AuthorFromPost(ctx, postURL)
	if err != nil {
		return 0, err
	}
	if err := s.ledger.RecordVisit(postURL, author); err != nil {
		return 0, err
	}

	contacted, err := s.ledger.Contacted(author)
	if err != nil {
		return 0, err
	}
	if contacted {
		logging.EngineDebug("@%s already contacted, skipping", author)
		return 0, nil
	}

	if !s.underViewQuota(account.Username) {
		return 0, nil
	}
	profile, err := br.ExamineProfile(ctx, author)
	if err != nil {
		return 0, err
	}

	// Every examined profile becomes a prospect, accepted or not, so a
	// later run can resume without re-discovery.
	prospect := store.Prospect{
		Username:   profile.Username,
		Bio:        profile.Bio,
		Followers:  profile.Followers,
		HasWebsite: profile.HasWebsite,
		FoundVia:   "#" + strings.TrimPrefix(tag, "#"),
	}
	if err := s.ledger.RecordProspect(prospect); err != nil {
		return 0, err
	}

	accept, reason := DecideTarget(profile, s.cfg.Targeting)
	if !accept {
		s.feed.Info("Skipped @%s: %s", author, reason)
		return 0, nil
	}
	s.feed.Info("Targeting @%s: %s", author, reason)

	// The follower thresholds alone decide who gets contacted. The
	// advisory model only personalizes the opener; when it is missing
	// or fails, the target still gets a template.
	intro := ""
	if s.advisor.Available() {
		if analysis := s.scoreCurrentProfile(ctx, br, profile); analysis != nil {
			intro = analysis.PersonalizedMessage
		}
	}

	message := ComposeDM(intro, profile.HasWebsite)
	if err := br.SendDM(ctx, profile.Username, message); err != nil {
		return 0, err
	}
	if err := s.ledger.RecordContact(store.Contact{
		Username:   profile.Username,
		ProfileURL: "https://www.instagram.com/" + profile.Username + "/",
		HasWebsite: profile.HasWebsite,
		Template:   templateLabel(intro, profile.HasWebsite),
		Account:    account.Username,
	}); err != nil {
		return 1, err
	}
	if err := s.ledger.Increment(account.Username, store.CounterDMs); err != nil {
		return 1, err
	}
	s.feed.Success("DM sent to @%s via @%s", profile.Username, account.Username)
	return 1, nil
}

// contactProspect DMs an already-vetted prospect from the queue.
func (s *Supervisor) contactProspect(ctx context.Context, br Browser, account accounts.Account, p store.Prospect) bool {
	message := ComposeDM("", p.HasWebsite)
	if err := br.SendDM(ctx, p.Username, message); err != nil {
		logging.EngineWarn("DM @%s from queue failed: %v", p.Username, err)
		return false
	}
	if err := s.ledger.RecordContact(store.Contact{
		Username:   p.Username,
		FullName:   p.FullName,
		ProfileURL: "https://www.instagram.com/" + p.Username + "/",
		HasWebsite: p.HasWebsite,
		Template:   templateLabel("", p.HasWebsite),
		Account:    account.Username,
	}); err != nil {
		logging.EngineError("Record contact @%s: %v", p.Username, err)
	}
	if err := s.ledger.Increment(account.Username, store.CounterDMs); err != nil {
		logging.EngineError("Count DM for %s: %v", account.Username, err)
	}
	s.feed.Success("DM sent to queued prospect @%s via @%s", p.Username, account.Username)
	return true
}

// scoreCurrentProfile runs advisory lead scoring on the profile the
// browser is currently showing. A nil result means scoring failed and
// the caller should fall through to templates.
func (s *Supervisor) scoreCurrentProfile(ctx context.Context, br Browser, profile *browser.Profile) *advisory.ProfileAnalysis {
	screenshot, err := br.Screenshot(ctx)
	if err != nil {
		logging.EngineWarn("Screenshot for scoring @%s: %v", profile.Username, err)
		screenshot = nil
	}
	analysis, err := s.advisor.ScoreProfile(ctx, screenshot, profile.Username, profile.Bio)
	if err != nil {
		logging.EngineWarn("Advisory scoring @%s failed: %v", profile.Username, err)
		return nil
	}
	return analysis
}

// templateLabel records which kind of message went out.
func templateLabel(intro string, hasWebsite bool) string {
	if intro != "" {
		return "personalized"
	}
	if hasWebsite {
		return "with_website"
	}
	return "no_website"
}
