package browser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gramnerd/internal/logging"
)

// Profile is what a visit to a profile page can tell us without any
// model involvement.
type Profile struct {
	Username    string
	Bio         string
	Followers   int
	HasWebsite  bool
	IsBusiness  bool
	ProfileText string
}

// followerPattern pulls the count out of strings like "1,234 followers"
// or "12.5K followers".
var followerPattern = regexp.MustCompile(`([\d.,]+[KkMm]?)\s*[Ff]ollowers`)

// ParseFollowerCount converts Instagram's display format to an integer.
// Supports plain numbers, comma grouping, and K/M suffixes.
func ParseFollowerCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty follower count")
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(raw, "K"), strings.HasSuffix(raw, "k"):
		multiplier = 1_000
		raw = raw[:len(raw)-1]
	case strings.HasSuffix(raw, "M"), strings.HasSuffix(raw, "m"):
		multiplier = 1_000_000
		raw = raw[:len(raw)-1]
	}
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse follower count %q: %w", raw, err)
	}
	return int(n * multiplier), nil
}

// businessSignals are bio keywords that suggest a commercial account.
var businessSignals = []string{
	"shop", "store", "business", "order", "booking", "book now", "appointment",
	"salon", "bakery", "cafe", "restaurant", "boutique", "studio", "services",
	"contact", "dm for", "owner", "founder", "ceo", "entrepreneur", "coach",
	"whatsapp", "delivery", "handmade", "custom",
}

// linkPatterns detect an external website mentioned in bio text when no
// explicit link element is present.
var linkPatterns = []string{
	".com", ".net", ".org", ".shop", ".store", ".io", "www.", "http",
}

// ExamineProfile visits a profile and extracts follower count, bio,
// website presence, and business signals.
func (s *Session) ExamineProfile(ctx context.Context, username string) (*Profile, error) {
	username = strings.ToLower(strings.TrimPrefix(username, "@"))
	logging.Browser("Examining profile @%s", username)

	if err := s.Navigate(ctx, fmt.Sprintf("%s/%s/", baseURL, username)); err != nil {
		return nil, err
	}
	time.Sleep(2 * time.Second)

	p := &Profile{Username: username}

	// Header text covers the follower count and usually the bio.
	headerText := ""
	if res, err := s.pg(ctx).Eval(`() => {
		const header = document.querySelector('header');
		return header ? header.innerText.substring(0, 2000) : document.body.innerText.substring(0, 2000);
	}`); err == nil {
		headerText = res.Value.Str()
	}
	p.ProfileText = headerText

	if m := followerPattern.FindStringSubmatch(headerText); m != nil {
		if n, err := ParseFollowerCount(m[1]); err == nil {
			p.Followers = n
		}
	}

	// Bio lives in a dedicated section when present.
	if el, err := s.firstElement(ctx, 4*time.Second,
		`header section > div:last-child`, `header section h1 ~ span`, `header section span[dir="auto"]`); err == nil {
		if text, err := el.Text(); err == nil {
			p.Bio = strings.TrimSpace(text)
		}
	}
	if p.Bio == "" {
		p.Bio = headerText
	}

	// Instagram wraps external links through l.instagram.com.
	if res, err := s.pg(ctx).Eval(`() => {
		return document.querySelector('a[href*="l.instagram.com"], header a[rel*="nofollow"]') ? "yes" : "";
	}`); err == nil && res.Value.Str() == "yes" {
		p.HasWebsite = true
	}
	if !p.HasWebsite {
		lower := strings.ToLower(p.Bio)
		for _, pat := range linkPatterns {
			if strings.Contains(lower, pat) {
				p.HasWebsite = true
				break
			}
		}
	}

	lower := strings.ToLower(headerText)
	for _, kw := range businessSignals {
		if strings.Contains(lower, kw) {
			p.IsBusiness = true
			break
		}
	}

	logging.Browser("@%s: %d followers, website=%v, business=%v",
		username, p.Followers, p.HasWebsite, p.IsBusiness)
	return p, nil
}
