// Package engine runs the outreach modes: hashtag outreach, hashtag
// and saved-post commenting, lead scoring, and freeform instruction
// following. One run at a time; the supervisor owns the lifecycle.
package engine

import (
	"context"
	"errors"

	"gramnerd/internal/advisory"
	"gramnerd/internal/browser"
)

// Mode names one of the run modes.
type Mode string

const (
	ModeOutreach       Mode = "outreach"
	ModeCommentHashtag Mode = "comment_hashtag"
	ModeCommentSaved   Mode = "comment_saved"
	ModeLeadScore      Mode = "lead_score"
	ModeFreeform       Mode = "freeform"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeOutreach, ModeCommentHashtag, ModeCommentSaved, ModeLeadScore, ModeFreeform:
		return true
	}
	return false
}

// Params are the per-run options. Zero values fall back to config.
type Params struct {
	Hashtags       []string `json:"hashtags,omitempty"`
	MaxDMs         int      `json:"max_dms,omitempty"`
	MaxComments    int      `json:"max_comments,omitempty"`
	CollectionName string   `json:"collection_name,omitempty"`
	CollectionURL  string   `json:"collection_url,omitempty"`
	Instruction    string   `json:"instruction,omitempty"`
}

var (
	// ErrAlreadyRunning is returned when Start is called while a run
	// is active.
	ErrAlreadyRunning = errors.New("a run is already active")

	// ErrAdvisoryRequired is returned when a mode that cannot work
	// without the advisory model is started with no API key.
	ErrAdvisoryRequired = errors.New("advisory model not configured")

	// ErrNoAccounts is returned when no enabled accounts exist.
	ErrNoAccounts = errors.New("no enabled accounts")

	// ErrInstructionRequired is returned when freeform mode is started
	// without an instruction.
	ErrInstructionRequired = errors.New("freeform mode needs an instruction")
)

// Browser is the per-account automation surface engines drive. The
// production implementation is browser.Session.
type Browser interface {
	Start(ctx context.Context) error
	Login(ctx context.Context) error
	Close() error

	Navigate(ctx context.Context, url string) error
	Scroll(ctx context.Context) error
	ClickText(ctx context.Context, target string) error
	TypeText(ctx context.Context, text string) error
	Screenshot(ctx context.Context) ([]byte, error)
	CaptionText(ctx context.Context) (string, error)
	ElementDigest(ctx context.Context) (string, error)
	CurrentURL() string

	SearchHashtag(ctx context.Context, tag string, limit int) ([]string, error)
	AuthorFromPost(ctx context.Context, postURL string) (string, error)
	ExamineProfile(ctx context.Context, username string) (*browser.Profile, error)
	SendDM(ctx context.Context, username, message string) error
	PostComment(ctx context.Context, postURL, text string) error
	Commenters(ctx context.Context, postURL string, limit int) ([]string, error)
	SavedPosts(ctx context.Context, collectionName, collectionURL string, limit int) ([]string, error)
}

// Advisor is the advisory model surface. The production implementation
// is advisory.Client. Modes degrade to templates when it is
// unavailable, except lead scoring and freeform which require it.
type Advisor interface {
	Available() bool
	SuggestComment(ctx context.Context, screenshot []byte, caption string) (string, error)
	ScoreProfile(ctx context.Context, screenshot []byte, handle, bio string) (*advisory.ProfileAnalysis, error)
	ProposeAction(ctx context.Context, screenshot []byte, pageURL, elements, instruction string) (*advisory.Action, error)
}
