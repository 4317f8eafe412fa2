package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gramnerd/internal/accounts"
	"gramnerd/internal/activity"
	"gramnerd/internal/config"
	"gramnerd/internal/logging"
	"gramnerd/internal/pace"
	"gramnerd/internal/quota"
	"gramnerd/internal/store"

	"github.com/google/uuid"
)

// BrowserFactory creates a browser for one account. Production wires
// this to browser.NewSession; tests inject fakes.
type BrowserFactory func(account accounts.Account) (Browser, error)

// Supervisor owns the single-run lifecycle: at most one mode runs at a
// time, and Stop requests cooperative cancellation that takes effect at
// the next pacing checkpoint.
type Supervisor struct {
	cfg        *config.Config
	ledger     *store.Ledger
	accounts   *accounts.Manager
	advisor    Advisor
	feed       *activity.Feed
	newBrowser BrowserFactory

	// wait is the pacing primitive. Tests replace it to skip real
	// sleeps.
	wait func(seconds int, shouldContinue func() bool) bool

	mu          sync.Mutex
	running     bool
	stopRequest bool
	cancel      context.CancelFunc
	mode        Mode
	runID       string
	startedAt   time.Time
	lastAccount string
}

// NewSupervisor wires a supervisor. advisor may be a client with no
// API key; modes degrade or refuse to start accordingly.
func NewSupervisor(cfg *config.Config, ledger *store.Ledger, mgr *accounts.Manager, advisor Advisor, feed *activity.Feed, factory BrowserFactory) *Supervisor {
	return &Supervisor{
		cfg:        cfg,
		ledger:     ledger,
		accounts:   mgr,
		advisor:    advisor,
		feed:       feed,
		newBrowser: factory,
		wait:       pace.Wait,
	}
}

// Running reports whether a run is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins a run in the given mode. It returns the run ID, or an
// error when a run is already active or the mode's preconditions are
// not met. The run itself executes on a background goroutine.
func (s *Supervisor) Start(mode Mode, params Params) (string, error) {
	if !mode.Valid() {
		return "", fmt.Errorf("unknown mode %q", mode)
	}
	if len(s.accounts.Enabled()) == 0 {
		return "", ErrNoAccounts
	}
	switch mode {
	case ModeLeadScore, ModeFreeform:
		if !s.advisor.Available() {
			return "", ErrAdvisoryRequired
		}
	}
	if mode == ModeFreeform && params.Instruction == "" {
		return "", ErrInstructionRequired
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.stopRequest = false
	s.cancel = cancel
	s.mode = mode
	s.runID = uuid.NewString()
	s.startedAt = time.Now()
	runID := s.runID
	s.mu.Unlock()

	s.feed.Action("Starting %s run", mode)
	logging.Engine("Run %s started: mode=%s params=%+v", runID, mode, params)

	go s.run(ctx, mode, params)
	return runID, nil
}

// Stop requests cancellation. It returns immediately; the run winds
// down at its next checkpoint.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.stopRequest = true
	if s.cancel != nil {
		s.cancel()
	}
	s.feed.Warning("Stop requested")
	logging.Engine("Run %s: stop requested", s.runID)
}

// shouldContinue is the cooperative cancellation predicate threaded
// through every pacing wait and loop.
func (s *Supervisor) shouldContinue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && !s.stopRequest
}

// pause sleeps for a sample of the window, checking for cancellation
// every second. Returns false when the run should wind down.
func (s *Supervisor) pause(w quota.Window) bool {
	return s.wait(w.Sample(), s.shouldContinue)
}

func (s *Supervisor) actionWindow() quota.Window {
	return quota.Window{Min: s.cfg.Delays.ActionMin, Max: s.cfg.Delays.ActionMax}
}

func (s *Supervisor) dmWindow() quota.Window {
	return quota.Window{Min: s.cfg.Delays.DMMin, Max: s.cfg.Delays.DMMax}
}

func (s *Supervisor) commentWindow() quota.Window {
	return quota.Window{Min: s.cfg.Delays.CommentMin, Max: s.cfg.Delays.CommentMax}
}

func (s *Supervisor) postLoginWindow() quota.Window {
	return quota.Window{Min: s.cfg.Delays.PostLoginMin, Max: s.cfg.Delays.PostLoginMax}
}

// run executes one mode and always clears the running flag on exit.
func (s *Supervisor) run(ctx context.Context, mode Mode, params Params) {
	defer func() {
		if r := recover(); r != nil {
			logging.EngineError("Run %s panicked: %v", s.runID, r)
			s.feed.Error("Run crashed: %v", r)
		}
		s.mu.Lock()
		s.running = false
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.mu.Unlock()
		s.feed.Info("Run finished")
		logging.Engine("Run %s finished", s.runID)
	}()

	var err error
	switch mode {
	case ModeOutreach:
		err = s.runOutreach(ctx, params)
	case ModeCommentHashtag:
		err = s.runCommentHashtag(ctx, params)
	case ModeCommentSaved:
		err = s.runCommentSaved(ctx, params)
	case ModeLeadScore:
		err = s.runLeadScore(ctx, params)
	case ModeFreeform:
		err = s.runFreeform(ctx, params)
	}
	if err != nil {
		logging.EngineError("Run %s: %v", s.runID, err)
		s.feed.Error("Run error: %v", err)
	}
}

// withSession runs fn inside a started, logged-in session for the
// account, always closing the browser. Authentication failures are
// reported but do not abort the whole run.
func (s *Supervisor) withSession(ctx context.Context, account accounts.Account, fn func(br Browser) error) error {
	br, err := s.newBrowser(account)
	if err != nil {
		return fmt.Errorf("create browser for @%s: %w", account.Username, err)
	}
	defer br.Close()

	if err := br.Start(ctx); err != nil {
		return fmt.Errorf("start browser for @%s: %w", account.Username, err)
	}
	if err := br.Login(ctx); err != nil {
		return fmt.Errorf("login @%s: %w", account.Username, err)
	}
	s.feed.Success("Logged in as @%s", account.Username)
	if !s.pause(s.postLoginWindow()) {
		return nil
	}
	return fn(br)
}

// rotation returns the enabled accounts ordered so the account after
// the last used one goes first.
func (s *Supervisor) rotation() []accounts.Account {
	enabled := s.accounts.Enabled()
	if len(enabled) == 0 {
		return nil
	}
	s.mu.Lock()
	last := s.lastAccount
	s.mu.Unlock()

	first := accounts.NextAfter(enabled, last)
	var out []accounts.Account
	start := 0
	for i, a := range enabled {
		if a.Username == first.Username {
			start = i
			break
		}
	}
	for i := range enabled {
		out = append(out, enabled[(start+i)%len(enabled)])
	}
	return out
}

// markUsed records the account that most recently did work, for the
// next run's rotation.
func (s *Supervisor) markUsed(username string) {
	s.mu.Lock()
	s.lastAccount = username
	s.mu.Unlock()
}

// dmsUsedToday is the usage lookup the rotator's eligibility filter
// needs. Read failures count as zero so a flaky ledger read does not
// silently bench an account.
func (s *Supervisor) dmsUsedToday(username string) int {
	counters, err := s.ledger.TodayCounters(username)
	if err != nil {
		logging.EngineError("DM usage for %s: %v", username, err)
		return 0
	}
	return counters.DMs
}

// commentsUsedToday mirrors dmsUsedToday for comments.
func (s *Supervisor) commentsUsedToday(username string) int {
	counters, err := s.ledger.TodayCounters(username)
	if err != nil {
		logging.EngineError("Comment usage for %s: %v", username, err)
		return 0
	}
	return counters.Comments
}

// dmBudget returns how many DMs the account may still send today,
// optionally capped by a per-run maximum.
func (s *Supervisor) dmBudget(account string, runCap, sentThisRun int) (int, error) {
	counters, err := s.ledger.TodayCounters(account)
	if err != nil {
		return 0, err
	}
	budget := quota.Remaining(counters.DMs, s.cfg.Quotas.MaxDMsPerDay)
	if runCap > 0 {
		if left := runCap - sentThisRun; left < budget {
			budget = left
		}
	}
	if budget < 0 {
		budget = 0
	}
	return budget, nil
}

// commentBudget mirrors dmBudget for comments.
func (s *Supervisor) commentBudget(account string, runCap, postedThisRun int) (int, error) {
	counters, err := s.ledger.TodayCounters(account)
	if err != nil {
		return 0, err
	}
	budget := quota.Remaining(counters.Comments, s.cfg.Quotas.MaxCommentsPerDay)
	if runCap > 0 {
		if left := runCap - postedThisRun; left < budget {
			budget = left
		}
	}
	if budget < 0 {
		budget = 0
	}
	return budget, nil
}

// underSearchQuota reports whether the account may run another hashtag
// search today, and counts one if so.
func (s *Supervisor) underSearchQuota(account string) bool {
	counters, err := s.ledger.TodayCounters(account)
	if err != nil {
		logging.EngineError("Search quota check for %s: %v", account, err)
		return false
	}
	if !quota.WithinQuota(counters.Searches, s.cfg.Quotas.MaxSearchesPerDay) {
		return false
	}
	if err := s.ledger.Increment(account, store.CounterSearches); err != nil {
		logging.EngineError("Count search for %s: %v", account, err)
	}
	return true
}

// underViewQuota reports whether the account may view another profile
// today, and counts one if so.
func (s *Supervisor) underViewQuota(account string) bool {
	counters, err := s.ledger.TodayCounters(account)
	if err != nil {
		logging.EngineError("View quota check for %s: %v", account, err)
		return false
	}
	if !quota.WithinQuota(counters.ProfileViews, s.cfg.Quotas.MaxProfileViewsPerDay) {
		return false
	}
	if err := s.ledger.Increment(account, store.CounterProfileViews); err != nil {
		logging.EngineError("Count profile view for %s: %v", account, err)
	}
	return true
}

// hashtagsFor resolves the hashtag list for a run.
func (s *Supervisor) hashtagsFor(params Params) []string {
	if len(params.Hashtags) > 0 {
		return params.Hashtags
	}
	return s.cfg.Targeting.Hashtags
}

// AccountStatus is one account's daily progress against its quotas.
type AccountStatus struct {
	Username         string  `json:"username"`
	DMsToday         int     `json:"dms_today"`
	DMsLimit         int     `json:"dms_limit"`
	DMsRemaining     int     `json:"dms_remaining"`
	DMsPercent       float64 `json:"dms_percent"`
	CommentsToday    int     `json:"comments_today"`
	CommentsLimit    int     `json:"comments_limit"`
	CommentsRemaining int    `json:"comments_remaining"`
	CommentsPercent  float64 `json:"comments_percent"`
}

// Status is the dashboard snapshot.
type Status struct {
	Running        bool             `json:"running"`
	Mode           string           `json:"mode,omitempty"`
	RunID          string           `json:"run_id,omitempty"`
	StartedAt      string           `json:"started_at,omitempty"`
	Accounts       []AccountStatus  `json:"accounts"`
	TotalContacts  int              `json:"total_contacts"`
	TotalComments  int              `json:"total_comments"`
	TotalProspects int              `json:"total_prospects"`
	Activity       []activity.Entry `json:"activity"`
}

// Status assembles the current snapshot: run state, per-account quota
// progress, lifetime totals, and recent activity.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	st := Status{
		Running: s.running,
	}
	if s.running {
		st.Mode = string(s.mode)
		st.RunID = s.runID
		st.StartedAt = s.startedAt.Format(time.RFC3339)
	}
	s.mu.Unlock()

	for _, a := range s.accounts.Enabled() {
		counters, err := s.ledger.TodayCounters(a.Username)
		if err != nil {
			logging.EngineError("Status counters for %s: %v", a.Username, err)
			continue
		}
		as := AccountStatus{
			Username:          a.Username,
			DMsToday:          counters.DMs,
			DMsLimit:          s.cfg.Quotas.MaxDMsPerDay,
			DMsRemaining:      quota.Remaining(counters.DMs, s.cfg.Quotas.MaxDMsPerDay),
			CommentsToday:     counters.Comments,
			CommentsLimit:     s.cfg.Quotas.MaxCommentsPerDay,
			CommentsRemaining: quota.Remaining(counters.Comments, s.cfg.Quotas.MaxCommentsPerDay),
		}
		as.DMsPercent = percent(counters.DMs, s.cfg.Quotas.MaxDMsPerDay)
		as.CommentsPercent = percent(counters.Comments, s.cfg.Quotas.MaxCommentsPerDay)
		st.Accounts = append(st.Accounts, as)
	}

	if n, err := s.ledger.ContactCount(); err == nil {
		st.TotalContacts = n
	}
	if n, err := s.ledger.CommentCount(); err == nil {
		st.TotalComments = n
	}
	if n, err := s.ledger.ProspectCount(); err == nil {
		st.TotalProspects = n
	}
	st.Activity = s.feed.Recent(50)
	return st
}

func percent(used, ceiling int) float64 {
	if ceiling <= 0 {
		return 0
	}
	p := float64(used) / float64(ceiling) * 100
	if p > 100 {
		p = 100
	}
	return p
}
