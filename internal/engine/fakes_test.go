package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gramnerd/internal/accounts"
	"gramnerd/internal/activity"
	"gramnerd/internal/advisory"
	"gramnerd/internal/browser"
	"gramnerd/internal/config"
	"gramnerd/internal/store"

	"github.com/stretchr/testify/require"
)

// fakeBrowser is a scriptable Browser. Zero value works; populate the
// maps to script discovery.
type fakeBrowser struct {
	mu    sync.Mutex
	calls []string

	loginErr   error
	loginGate  chan struct{}
	posts      map[string][]string
	authors    map[string]string
	profiles   map[string]*browser.Profile
	saved      []string
	commenters map[string][]string
	captions   map[string]string
	url        string

	dms      map[string]string
	comments map[string]string
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		posts:      map[string][]string{},
		authors:    map[string]string{},
		profiles:   map[string]*browser.Profile{},
		commenters: map[string][]string{},
		captions:   map[string]string{},
		dms:        map[string]string{},
		comments:   map[string]string{},
	}
}

func (f *fakeBrowser) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBrowser) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeBrowser) Start(ctx context.Context) error { f.record("start"); return nil }

func (f *fakeBrowser) Login(ctx context.Context) error {
	f.record("login")
	if f.loginGate != nil {
		<-f.loginGate
	}
	return f.loginErr
}

func (f *fakeBrowser) Close() error { f.record("close"); return nil }

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error {
	f.record("navigate:" + url)
	f.mu.Lock()
	f.url = url
	f.mu.Unlock()
	return nil
}

func (f *fakeBrowser) Scroll(ctx context.Context) error { f.record("scroll"); return nil }

func (f *fakeBrowser) ClickText(ctx context.Context, target string) error {
	f.record("click:" + target)
	return nil
}

func (f *fakeBrowser) TypeText(ctx context.Context, text string) error {
	f.record("type:" + text)
	return nil
}

func (f *fakeBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (f *fakeBrowser) CaptionText(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captions[f.url], nil
}

func (f *fakeBrowser) ElementDigest(ctx context.Context) (string, error) {
	return `[{"type":"button","text":"Search"}]`, nil
}

func (f *fakeBrowser) CurrentURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

func (f *fakeBrowser) SearchHashtag(ctx context.Context, tag string, limit int) ([]string, error) {
	f.record("search:" + tag)
	return f.posts[tag], nil
}

func (f *fakeBrowser) AuthorFromPost(ctx context.Context, postURL string) (string, error) {
	f.mu.Lock()
	f.url = postURL
	f.mu.Unlock()
	author, ok := f.authors[postURL]
	if !ok {
		return "", fmt.Errorf("no author for %s", postURL)
	}
	return author, nil
}

func (f *fakeBrowser) ExamineProfile(ctx context.Context, username string) (*browser.Profile, error) {
	f.record("examine:" + username)
	p, ok := f.profiles[username]
	if !ok {
		return nil, fmt.Errorf("no profile for %s", username)
	}
	return p, nil
}

func (f *fakeBrowser) SendDM(ctx context.Context, username, message string) error {
	f.record("dm:" + username)
	f.mu.Lock()
	f.dms[username] = message
	f.mu.Unlock()
	return nil
}

func (f *fakeBrowser) PostComment(ctx context.Context, postURL, text string) error {
	f.record("comment:" + postURL)
	f.mu.Lock()
	f.comments[postURL] = text
	f.mu.Unlock()
	return nil
}

func (f *fakeBrowser) Commenters(ctx context.Context, postURL string, limit int) ([]string, error) {
	out := f.commenters[postURL]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeBrowser) SavedPosts(ctx context.Context, collectionName, collectionURL string, limit int) ([]string, error) {
	f.record("saved")
	out := f.saved
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeAdvisor is a scriptable Advisor.
type fakeAdvisor struct {
	available bool
	suggest   func(caption string) (string, error)
	score     func(handle, bio string) (*advisory.ProfileAnalysis, error)
	propose   func(pageURL, elements, instruction string) (*advisory.Action, error)

	mu           sync.Mutex
	proposeCalls int
}

func (f *fakeAdvisor) Available() bool { return f.available }

func (f *fakeAdvisor) SuggestComment(ctx context.Context, screenshot []byte, caption string) (string, error) {
	if f.suggest == nil {
		return "", fmt.Errorf("no suggestion scripted")
	}
	return f.suggest(caption)
}

func (f *fakeAdvisor) ScoreProfile(ctx context.Context, screenshot []byte, handle, bio string) (*advisory.ProfileAnalysis, error) {
	if f.score == nil {
		return nil, fmt.Errorf("no scoring scripted")
	}
	return f.score(handle, bio)
}

func (f *fakeAdvisor) ProposeAction(ctx context.Context, screenshot []byte, pageURL, elements, instruction string) (*advisory.Action, error) {
	f.mu.Lock()
	f.proposeCalls++
	n := f.proposeCalls
	f.mu.Unlock()
	if f.propose == nil {
		return nil, fmt.Errorf("no action scripted (call %d)", n)
	}
	return f.propose(pageURL, elements, instruction)
}

// newTestSupervisor wires a supervisor with an in-memory ledger, the
// given enabled accounts, and instant pacing.
func newTestSupervisor(t *testing.T, usernames []string, advisor Advisor, factory BrowserFactory) (*Supervisor, *store.Ledger) {
	t.Helper()

	cfg := config.Default()
	cfg.Targeting.Hashtags = []string{"webdesign"}

	ledger, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	var list []accounts.Account
	for _, u := range usernames {
		list = append(list, accounts.Account{Username: u, Password: "pw", Enabled: true})
	}
	path := filepath.Join(t.TempDir(), "accounts.json")
	data := "["
	for i, a := range list {
		if i > 0 {
			data += ","
		}
		data += fmt.Sprintf(`{"username":%q,"password":"pw","enabled":true}`, a.Username)
	}
	data += "]"
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	mgr := accounts.NewManager(path)
	require.NoError(t, mgr.Load())

	s := NewSupervisor(cfg, ledger, mgr, advisor, activity.NewFeed(), factory)
	s.wait = func(seconds int, shouldContinue func() bool) bool { return shouldContinue() }
	return s, ledger
}
