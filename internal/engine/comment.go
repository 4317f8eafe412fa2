package engine

import (
	"context"
	"errors"

	"gramnerd/internal/accounts"
	"gramnerd/internal/advisory"
	"gramnerd/internal/browser"
	"gramnerd/internal/logging"
	"gramnerd/internal/store"
)

// runCommentHashtag leaves contextual comments on posts found through
// hashtag search.
func (s *Supervisor) runCommentHashtag(ctx context.Context, params Params) error {
	return s.runCommenting(ctx, params, func(ctx context.Context, br Browser, account accounts.Account) ([]string, error) {
		var posts []string
		for _, tag := range s.hashtagsFor(params) {
			if !s.shouldContinue() {
				break
			}
			if !s.underSearchQuota(account.Username) {
				s.feed.Info("@%s hit the daily search quota", account.Username)
				break
			}
			found, err := br.SearchHashtag(ctx, tag, 9)
			if err != nil {
				logging.EngineWarn("Search #%s failed: %v", tag, err)
				continue
			}
			s.feed.Action("Searched #%s: %d posts", tag, len(found))
			posts = append(posts, found...)
		}
		return posts, nil
	})
}

// runCommentSaved leaves comments on posts from a saved collection.
// The collection comes from params, then the account, then config; a
// collection that cannot be found falls back to all saved posts.
func (s *Supervisor) runCommentSaved(ctx context.Context, params Params) error {
	name := params.CollectionName
	if name == "" {
		name = s.cfg.Targeting.SavedCollectionName
	}
	return s.runCommenting(ctx, params, func(ctx context.Context, br Browser, account accounts.Account) ([]string, error) {
		return br.SavedPosts(ctx, name, params.CollectionURL, 30)
	})
}

// runCommenting is the shared loop for both comment modes: a source
// yields post URLs, and each new post gets one comment.
func (s *Supervisor) runCommenting(ctx context.Context, params Params, source func(ctx context.Context, br Browser, account accounts.Account) ([]string, error)) error {
	postedThisRun := 0

	pool := accounts.Eligible(s.rotation(), s.commentsUsedToday, s.cfg.Quotas.MaxCommentsPerDay)
	if len(pool) == 0 {
		s.feed.Info("Every account is at its daily comment ceiling")
		return nil
	}

	for _, account := range pool {
		if !s.shouldContinue() {
			return nil
		}

		budget, err := s.commentBudget(account.Username, params.MaxComments, postedThisRun)
		if err != nil {
			return err
		}
		if budget == 0 {
			continue
		}

		// budget already folds in the run cap, so the per-account count
		// is the right thing to compare against it.
		postedThisAccount := 0
		err = s.withSession(ctx, account, func(br Browser) error {
			posts, err := source(ctx, br, account)
			if err != nil {
				return err
			}
			for _, post := range posts {
				if postedThisAccount >= budget || !s.shouldContinue() {
					return nil
				}
				posted, err := s.commentOnPost(ctx, br, account, post)
				if err != nil {
					logging.EngineWarn("Comment on %s: %v", post, err)
					continue
				}
				if posted {
					postedThisAccount++
					postedThisRun++
					if !s.pause(s.commentWindow()) {
						return nil
					}
				}
			}
			return nil
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

		if params.MaxComments > 0 && postedThisRun >= params.MaxComments {
			s.feed.Info("Run comment cap reached (%d)", params.MaxComments)
			return nil
		}
	}
	return nil
}

// commentOnPost posts one comment on a post that is neither commented
// on nor previously visited by any mode. Comment text comes from the
// advisory model when available and clean; otherwise from the template
// set. Returns true when a comment went out.
func (s *Supervisor) commentOnPost(ctx context.Context, br Browser, account accounts.Account, postURL string) (bool, error) {
	commented, err := s.ledger.Commented(postURL)
	if err != nil {
		return false, err
	}
	if commented {
		logging.EngineDebug("Already commented on %s", postURL)
		return false, nil
	}
	visited, err := s.ledger.Visited(postURL)
	if err != nil {
		return false, err
	}
	if visited {
		logging.EngineDebug("Already visited %s, not commenting", postURL)
		return false, nil
	}

	author, err := br.AuthorFromPost(ctx, postURL)
	if err != nil {
		logging.EngineDebug("No author for %s: %v", postURL, err)
		author = ""
	}
	if err := s.ledger.RecordVisit(postURL, author); err != nil {
		return false, err
	}

	text := s.draftComment(ctx, br)
	if err := br.PostComment(ctx, postURL, text); err != nil {
		return false, err
	}
	if err := s.ledger.RecordComment(store.Comment{
		PostURL: postURL,
		Author:  author,
		Text:    text,
		Account: account.Username,
	}); err != nil {
		return true, err
	}
	if err := s.ledger.Increment(account.Username, store.CounterComments); err != nil {
		return true, err
	}
	s.feed.Success("Commented on %s via @%s", postURL, account.Username)
	return true, nil
}

// draftComment asks the advisory model for a contextual comment on the
// current post, falling back to a template when the model is missing,
// fails, returns nothing, or returns something promotional. The result
// is always within the length cap.
func (s *Supervisor) draftComment(ctx context.Context, br Browser) string {
	if !s.advisor.Available() {
		return PickComment()
	}

	caption, err := br.CaptionText(ctx)
	if err != nil {
		caption = ""
	}
	screenshot, err := br.Screenshot(ctx)
	if err != nil {
		screenshot = nil
	}

	text, err := s.advisor.SuggestComment(ctx, screenshot, caption)
	if err != nil {
		logging.EngineWarn("Advisory comment failed, using template: %v", err)
		return PickComment()
	}
	if advisory.IsPromotional(text) {
		logging.EngineWarn("Advisory comment was promotional, using template: %q", text)
		return PickComment()
	}
	return advisory.ClampComment(text)
}
