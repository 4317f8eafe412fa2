package engine

import (
	"testing"
	"time"

	"gramnerd/internal/accounts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForIdle(t *testing.T, s *Supervisor) {
	t.Helper()
	require.Eventually(t, func() bool { return !s.Running() },
		5*time.Second, 10*time.Millisecond, "run did not finish")
}

func TestStartRejectsSecondRun(t *testing.T) {
	gate := make(chan struct{})
	factory := func(a accounts.Account) (Browser, error) {
		fb := newFakeBrowser()
		fb.loginGate = gate
		return fb, nil
	}
	s, _ := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{}, factory)

	runID, err := s.Start(ModeOutreach, Params{})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.True(t, s.Running())

	_, err = s.Start(ModeOutreach, Params{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = s.Start(ModeCommentHashtag, Params{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(gate)
	waitForIdle(t, s)

	// A finished run frees the slot.
	secondID, err := s.Start(ModeOutreach, Params{})
	require.NoError(t, err)
	assert.NotEmpty(t, secondID)
	waitForIdle(t, s)
}

func TestStartPreconditions(t *testing.T) {
	factory := func(a accounts.Account) (Browser, error) { return newFakeBrowser(), nil }

	t.Run("unknown mode", func(t *testing.T) {
		s, _ := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{}, factory)
		_, err := s.Start(Mode("bogus"), Params{})
		assert.Error(t, err)
	})

	t.Run("no accounts", func(t *testing.T) {
		s, _ := newTestSupervisor(t, nil, &fakeAdvisor{}, factory)
		_, err := s.Start(ModeOutreach, Params{})
		assert.ErrorIs(t, err, ErrNoAccounts)
	})

	t.Run("lead scoring needs the advisory model", func(t *testing.T) {
		s, _ := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{available: false}, factory)
		_, err := s.Start(ModeLeadScore, Params{})
		assert.ErrorIs(t, err, ErrAdvisoryRequired)
	})

	t.Run("freeform needs an instruction", func(t *testing.T) {
		s, _ := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{available: true}, factory)
		_, err := s.Start(ModeFreeform, Params{})
		assert.ErrorIs(t, err, ErrInstructionRequired)
	})
}

func TestStopEndsRun(t *testing.T) {
	factory := func(a accounts.Account) (Browser, error) {
		fb := newFakeBrowser()
		fb.posts["webdesign"] = []string{"https://www.instagram.com/p/x1/"}
		fb.authors["https://www.instagram.com/p/x1/"] = "someone"
		return fb, nil
	}
	s, _ := newTestSupervisor(t, []string{"acct_a"}, &fakeAdvisor{}, factory)

	// Real pacing but with cancellation checked every second.
	s.wait = func(seconds int, shouldContinue func() bool) bool {
		for i := 0; i < seconds; i++ {
			if !shouldContinue() {
				return false
			}
			time.Sleep(10 * time.Millisecond)
		}
		return shouldContinue()
	}

	_, err := s.Start(ModeOutreach, Params{})
	require.NoError(t, err)
	s.Stop()
	waitForIdle(t, s)
}

func TestStatusReportsQuotaProgress(t *testing.T) {
	factory := func(a accounts.Account) (Browser, error) { return newFakeBrowser(), nil }
	s, ledger := newTestSupervisor(t, []string{"acct_a", "acct_b"}, &fakeAdvisor{}, factory)

	for i := 0; i < 5; i++ {
		require.NoError(t, ledger.Increment("acct_a", "dms_sent"))
	}
	require.NoError(t, ledger.Increment("acct_b", "comments_sent"))

	st := s.Status()
	assert.False(t, st.Running)
	require.Len(t, st.Accounts, 2)

	a := st.Accounts[0]
	assert.Equal(t, "acct_a", a.Username)
	assert.Equal(t, 5, a.DMsToday)
	assert.Equal(t, 25, a.DMsLimit)
	assert.Equal(t, 20, a.DMsRemaining)
	assert.InDelta(t, 20.0, a.DMsPercent, 0.01)

	b := st.Accounts[1]
	assert.Equal(t, 1, b.CommentsToday)
	assert.Equal(t, 49, b.CommentsRemaining)
}

func TestRotationStartsAfterLastUsed(t *testing.T) {
	factory := func(a accounts.Account) (Browser, error) { return newFakeBrowser(), nil }
	s, _ := newTestSupervisor(t, []string{"acct_a", "acct_b", "acct_c"}, &fakeAdvisor{}, factory)

	order := func() []string {
		var out []string
		for _, a := range s.rotation() {
			out = append(out, a.Username)
		}
		return out
	}

	assert.Equal(t, []string{"acct_a", "acct_b", "acct_c"}, order())

	s.markUsed("acct_b")
	assert.Equal(t, []string{"acct_c", "acct_a", "acct_b"}, order())

	s.markUsed("acct_c")
	assert.Equal(t, []string{"acct_a", "acct_b", "acct_c"}, order())

	// Unknown last-used falls back to the start of the list.
	s.markUsed("gone")
	assert.Equal(t, []string{"acct_a", "acct_b", "acct_c"}, order())
}
