package engine

import (
	"fmt"
	"sync"
	"testing"

	"gramnerd/internal/accounts"
	"gramnerd/internal/advisory"
	"gramnerd/internal/browser"
	"gramnerd/internal/config"
	"gramnerd/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(n int) string {
	return fmt.Sprintf("https://www.instagram.com/p/post%d/", n)
}

func contactFor(username string) store.Contact {
	return store.Contact{Username: username, Account: "acct_a"}
}

func TestOutreachTargetsAndDedupes(t *testing.T) {
	fb := newFakeBrowser()
	fb.posts["webdesign"] = []string{post(1), post(2), post(3), post(4)}
	fb.authors[post(1)] = "bakery_jo"      // accepted
	fb.authors[post(2)] = "already_done"   // contacted before this run
	fb.authors[post(3)] = "tiny_account"   // too few followers
	fb.authors[post(4)] = "mega_brand"     // too many followers
	fb.profiles["bakery_jo"] = &browser.Profile{Username: "bakery_jo", Followers: 5000, IsBusiness: true}
	fb.profiles["tiny_account"] = &browser.Profile{Username: "tiny_account", Followers: 50}
	fb.profiles["mega_brand"] = &browser.Profile{Username: "mega_brand", Followers: 600000}

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, ledger := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{}, factory)

	require.NoError(t, ledger.RecordContact(contactFor("already_done")))

	_, err := s.Start(ModeOutreach, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	// Only the in-range, not-yet-contacted author got a DM.
	assert.Contains(t, fb.dms, "bakery_jo")
	assert.NotContains(t, fb.dms, "already_done")
	assert.NotContains(t, fb.dms, "tiny_account")
	assert.NotContains(t, fb.dms, "mega_brand")

	contacted, err := ledger.Contacted("bakery_jo")
	require.NoError(t, err)
	assert.True(t, contacted)

	counters, err := ledger.TodayCounters("acct_a")
	require.NoError(t, err)
	assert.Equal(t, 1, counters.DMs)
	assert.Equal(t, 1, counters.Searches)
	assert.Equal(t, 3, counters.ProfileViews)

	// A second run sees all posts as visited and sends nothing new.
	_, err = s.Start(ModeOutreach, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	counters, err = ledger.TodayCounters("acct_a")
	require.NoError(t, err)
	assert.Equal(t, 1, counters.DMs)
}

func TestOutreachRecordsRejectedProspects(t *testing.T) {
	fb := newFakeBrowser()
	fb.posts["webdesign"] = []string{post(1)}
	fb.authors[post(1)] = "tiny_account"
	fb.profiles["tiny_account"] = &browser.Profile{Username: "tiny_account", Followers: 50, Bio: "crafts"}

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, ledger := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{}, factory)

	_, err := s.Start(ModeOutreach, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	// The rejected profile got no DM but is on record for later runs.
	assert.Empty(t, fb.dms)
	n, err := ledger.ProspectCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A later run drains the prospect queue through the same follower
	// thresholds and still leaves the out-of-range handle alone.
	_, err = s.Start(ModeOutreach, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)
	assert.Empty(t, fb.dms)
}

func TestOutreachPacesContactsWithLongWindow(t *testing.T) {
	fb := newFakeBrowser()
	fb.posts["webdesign"] = []string{post(1), post(2)}
	fb.authors[post(1)] = "bakery_jo"
	fb.authors[post(2)] = "tiny_account"
	fb.profiles["bakery_jo"] = &browser.Profile{Username: "bakery_jo", Followers: 5000}
	fb.profiles["tiny_account"] = &browser.Profile{Username: "tiny_account", Followers: 50}

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, _ := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{}, factory)

	var mu sync.Mutex
	var waits []int
	s.wait = func(seconds int, shouldContinue func() bool) bool {
		mu.Lock()
		waits = append(waits, seconds)
		mu.Unlock()
		return shouldContinue()
	}

	_, err := s.Start(ModeOutreach, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	// Post-login settle, then the contact window after the sent DM,
	// then only the short action delay after the rejected profile.
	require.Len(t, waits, 3)
	assert.GreaterOrEqual(t, waits[1], s.cfg.Delays.DMMin)
	assert.LessOrEqual(t, waits[1], s.cfg.Delays.DMMax)
	assert.GreaterOrEqual(t, waits[2], s.cfg.Delays.ActionMin)
	assert.LessOrEqual(t, waits[2], s.cfg.Delays.ActionMax)
}

func TestOutreachSendsDespiteLowAdvisoryScore(t *testing.T) {
	fb := newFakeBrowser()
	fb.posts["webdesign"] = []string{post(1)}
	fb.authors[post(1)] = "bakery_jo"
	fb.profiles["bakery_jo"] = &browser.Profile{Username: "bakery_jo", Followers: 5000, IsBusiness: true}

	adv := &fakeAdvisor{
		available: true,
		score: func(handle, bio string) (*advisory.ProfileAnalysis, error) {
			return &advisory.ProfileAnalysis{
				Score: 2, PotentialClient: false,
				PersonalizedMessage: "Hi! Loved the croissant reel",
			}, nil
		},
	}

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, _ := newTestSupervisor(t, []string{"acct_a"}, adv, factory)

	_, err := s.Start(ModeOutreach, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	// Follower thresholds alone decide who gets contacted; the model
	// only shapes the opener.
	require.Contains(t, fb.dms, "bakery_jo")
	assert.Contains(t, fb.dms["bakery_jo"], "Hi! Loved the croissant reel")
}

func TestOutreachStopsUnderDailyCeiling(t *testing.T) {
	fb := newFakeBrowser()
	var posts []string
	for i := 1; i <= 5; i++ {
		p := post(i)
		posts = append(posts, p)
		handle := fmt.Sprintf("biz_%d", i)
		fb.authors[p] = handle
		fb.profiles[handle] = &browser.Profile{Username: handle, Followers: 5000}
	}
	fb.posts["webdesign"] = posts

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, ledger := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{}, factory)
	s.cfg.Quotas.MaxDMsPerDay = 2

	_, err := s.Start(ModeOutreach, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	assert.Len(t, fb.dms, 2)
	counters, err := ledger.TodayCounters("acct_a")
	require.NoError(t, err)
	assert.Equal(t, 2, counters.DMs)
}

func TestOutreachUsesOnlyAccountsUnderCeiling(t *testing.T) {
	script := func() *fakeBrowser {
		fb := newFakeBrowser()
		fb.posts["webdesign"] = []string{post(1), post(2)}
		fb.authors[post(1)] = "fresh_lead"
		fb.authors[post(2)] = "old_friend" // already contacted
		fb.profiles["fresh_lead"] = &browser.Profile{Username: "fresh_lead", Followers: 5000}
		fb.profiles["old_friend"] = &browser.Profile{Username: "old_friend", Followers: 5000}
		return fb
	}
	browsers := map[string]*fakeBrowser{
		"acct_a": script(),
		"acct_b": script(),
	}
	factory := func(a accounts.Account) (Browser, error) { return browsers[a.Username], nil }

	s, ledger := newTestSupervisor(t, []string{"acct_a", "acct_b"}, &fakeAdvisor{}, factory)
	s.cfg.Quotas.MaxDMsPerDay = 2

	// acct_a is at its daily ceiling before the run starts.
	require.NoError(t, ledger.Increment("acct_a", store.CounterDMs))
	require.NoError(t, ledger.Increment("acct_a", store.CounterDMs))
	require.NoError(t, ledger.RecordContact(contactFor("old_friend")))

	_, err := s.Start(ModeOutreach, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	// acct_a never even logged in; acct_b sent the one permitted DM.
	assert.Empty(t, browsers["acct_a"].callLog())
	assert.Contains(t, browsers["acct_b"].dms, "fresh_lead")
	assert.NotContains(t, browsers["acct_b"].dms, "old_friend")

	counters, err := ledger.TodayCounters("acct_b")
	require.NoError(t, err)
	assert.Equal(t, 1, counters.DMs)
}

func TestCommentModeFallsBackToTemplates(t *testing.T) {
	fb := newFakeBrowser()
	fb.posts["webdesign"] = []string{post(1), post(2)}
	fb.authors[post(1)] = "author_one"
	fb.authors[post(2)] = "author_two"

	// The model fails on the first post and turns promotional on the
	// second; both comments must come from the template set.
	calls := 0
	var mu sync.Mutex
	adv := &fakeAdvisor{
		available: true,
		suggest: func(caption string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return "", fmt.Errorf("model overloaded")
			}
			return "Amazing! DM me for a free website", nil
		},
	}

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, ledger := newTestSupervisor(t, []string{"acct_a"}, adv, factory)

	_, err := s.Start(ModeCommentHashtag, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	require.Len(t, fb.comments, 2)
	for url, text := range fb.comments {
		assert.Contains(t, commentTemplates, text, "comment on %s", url)
		assert.False(t, advisory.IsPromotional(text))
	}

	counters, err := ledger.TodayCounters("acct_a")
	require.NoError(t, err)
	assert.Equal(t, 2, counters.Comments)
}

func TestCommentModeSkipsCommentedPosts(t *testing.T) {
	fb := newFakeBrowser()
	fb.posts["webdesign"] = []string{post(1), post(1), post(2)}
	fb.authors[post(1)] = "author_one"
	fb.authors[post(2)] = "author_two"

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, ledger := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{}, factory)

	_, err := s.Start(ModeCommentHashtag, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	assert.Len(t, fb.comments, 2)
	n, err := ledger.CommentCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCommentModeSkipsVisitedPosts(t *testing.T) {
	fb := newFakeBrowser()
	fb.posts["webdesign"] = []string{post(1), post(2)}
	fb.authors[post(1)] = "author_one"
	fb.authors[post(2)] = "author_two"

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, ledger := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{}, factory)

	// An earlier outreach pass already touched the first post.
	require.NoError(t, ledger.RecordVisit(post(1), "author_one"))

	_, err := s.Start(ModeCommentHashtag, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	assert.NotContains(t, fb.comments, post(1))
	assert.Contains(t, fb.comments, post(2))
}

func TestCommentRunUsesEachAccountsDailyAllowance(t *testing.T) {
	script := func() *fakeBrowser {
		fb := newFakeBrowser()
		fb.posts["webdesign"] = []string{post(1), post(2), post(3), post(4)}
		for i := 1; i <= 4; i++ {
			fb.authors[post(i)] = fmt.Sprintf("author_%d", i)
		}
		return fb
	}
	browsers := map[string]*fakeBrowser{"acct_a": script(), "acct_b": script()}
	factory := func(a accounts.Account) (Browser, error) { return browsers[a.Username], nil }

	s, ledger := newTestSupervisor(t, []string{"acct_a", "acct_b"}, &fakeAdvisor{}, factory)
	s.cfg.Quotas.MaxCommentsPerDay = 2

	_, err := s.Start(ModeCommentHashtag, Params{Hashtags: []string{"webdesign"}})
	require.NoError(t, err)
	waitForIdle(t, s)

	// Each account spends its own daily allowance; the first account's
	// progress must not cap the second one.
	a, err := ledger.TodayCounters("acct_a")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Comments)
	b, err := ledger.TodayCounters("acct_b")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Comments)
	assert.Equal(t, 4, len(browsers["acct_a"].comments)+len(browsers["acct_b"].comments))
}

func TestCommentSavedUsesCollection(t *testing.T) {
	fb := newFakeBrowser()
	fb.saved = []string{post(1)}
	fb.authors[post(1)] = "author_one"

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, _ := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{}, factory)

	_, err := s.Start(ModeCommentSaved, Params{})
	require.NoError(t, err)
	waitForIdle(t, s)

	assert.Contains(t, fb.callLog(), "saved")
	assert.Len(t, fb.comments, 1)
}

func TestLeadScoreContactsAcceptedOnly(t *testing.T) {
	fb := newFakeBrowser()
	fb.saved = []string{post(1)}
	fb.commenters[post(1)] = []string{"hot_lead", "cold_lead", "was_contacted"}
	fb.profiles["hot_lead"] = &browser.Profile{Username: "hot_lead", Followers: 3000, Bio: "Bakery, orders open"}
	fb.profiles["cold_lead"] = &browser.Profile{Username: "cold_lead", Followers: 3000, Bio: "travel photos"}

	adv := &fakeAdvisor{
		available: true,
		score: func(handle, bio string) (*advisory.ProfileAnalysis, error) {
			if handle == "hot_lead" {
				return &advisory.ProfileAnalysis{
					Score: 9, PotentialClient: true, IsBusiness: true,
					BusinessType:        "bakery",
					PersonalizedMessage: "Hi! Your bakery looks amazing",
				}, nil
			}
			return &advisory.ProfileAnalysis{Score: 3, PotentialClient: false}, nil
		},
	}

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, ledger := newTestSupervisor(t, []string{"acct_a"}, adv, factory)
	require.NoError(t, ledger.RecordContact(contactFor("was_contacted")))

	_, err := s.Start(ModeLeadScore, Params{})
	require.NoError(t, err)
	waitForIdle(t, s)

	require.Contains(t, fb.dms, "hot_lead")
	assert.Contains(t, fb.dms["hot_lead"], "Hi! Your bakery looks amazing")
	assert.NotContains(t, fb.dms, "cold_lead")
	assert.NotContains(t, fb.dms, "was_contacted")

	// The declined commenter is still recorded as a prospect.
	n, err := ledger.ProspectCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFreeformFollowsActionsUntilDone(t *testing.T) {
	fb := newFakeBrowser()

	steps := []*advisory.Action{
		nil, // scripted failure, consumes an iteration
		{Action: "goto", Target: "https://www.instagram.com/explore/"},
		{Action: "click", Target: "Search"},
		{Action: "teleport", Target: "nowhere"}, // unknown, skipped
		{Action: "type", Target: "webdesign"},
		{Action: "done", Reason: "finished"},
	}
	var mu sync.Mutex
	idx := 0
	adv := &fakeAdvisor{
		available: true,
		propose: func(pageURL, elements, instruction string) (*advisory.Action, error) {
			mu.Lock()
			defer mu.Unlock()
			step := steps[idx]
			idx++
			if step == nil {
				return nil, fmt.Errorf("unparseable response")
			}
			return step, nil
		},
	}

	factory := func(a accounts.Account) (Browser, error) { return fb, nil }
	s, _ := newTestSupervisor(t, []string{"acct_a"}, adv, factory)

	_, err := s.Start(ModeFreeform, Params{Instruction: "find web design posts"})
	require.NoError(t, err)
	waitForIdle(t, s)

	log := fb.callLog()
	assert.Contains(t, log, "navigate:https://www.instagram.com/explore/")
	assert.Contains(t, log, "click:Search")
	assert.Contains(t, log, "type:webdesign")
	// Stopped at done, well before the iteration budget.
	assert.Equal(t, len(steps), adv.proposeCalls)
}

func TestClampWait(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"5", 5},
		{"0", 1},
		{"-3", 1},
		{"120", 30},
		{"soon", 3},
		{"", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampWait(tt.target), "target=%q", tt.target)
	}
}

func TestDecideTarget(t *testing.T) {
	cfg := config.Default().Targeting

	tests := []struct {
		followers int
		want      bool
	}{
		{50, false},
		{99, false},
		{100, true},
		{5000, true},
		{500000, true},
		{500001, false},
		{600000, false},
	}
	for _, tt := range tests {
		got, reason := DecideTarget(&browser.Profile{Followers: tt.followers}, cfg)
		assert.Equal(t, tt.want, got, "followers=%d (%s)", tt.followers, reason)
		assert.NotEmpty(t, reason)
	}
}
