package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"gramnerd/internal/logging"

	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// Navigate opens a URL and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	pg := s.pg(ctx)
	if err := pg.Timeout(s.cfg.PageLoadTimeout()).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	pg.WaitLoad()
	time.Sleep(2 * time.Second)
	return nil
}

// navigateIfNeeded skips navigation when the page is already there.
func (s *Session) navigateIfNeeded(ctx context.Context, url string) error {
	if strings.Contains(s.CurrentURL(), url) {
		return nil
	}
	return s.Navigate(ctx, url)
}

// Scroll scrolls the page down by a small random amount, like a human
// skimming the feed.
func (s *Session) Scroll(ctx context.Context) error {
	amount := 100 + rand.Intn(400)
	if _, err := s.pg(ctx).Eval(fmt.Sprintf(`() => window.scrollBy(0, %d)`, amount)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	time.Sleep(time.Duration(500+rand.Intn(1000)) * time.Millisecond)
	return nil
}

// ClickText clicks an element by visible text, falling back to
// aria-label match and then a raw CSS selector.
func (s *Session) ClickText(ctx context.Context, target string) error {
	pg := s.pg(ctx)

	el, err := pg.Timeout(3*time.Second).ElementR(
		`button, [role="button"], a, span, div`,
		"/^"+regexp.QuoteMeta(target)+"$/i")
	if err != nil {
		el, err = pg.Timeout(3*time.Second).Element(fmt.Sprintf(`[aria-label*=%q]`, target))
	}
	if err != nil {
		el, err = pg.Timeout(3 * time.Second).Element(target)
	}
	if err != nil {
		return fmt.Errorf("click %q: no matching element: %w", target, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", target, err)
	}
	logging.BrowserDebug("Clicked %q", target)
	return nil
}

// TypeText types into the focused element.
func (s *Session) TypeText(ctx context.Context, text string) error {
	if err := s.pg(ctx).InsertText(text); err != nil {
		return fmt.Errorf("type text: %w", err)
	}
	return nil
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.pg(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

// evalJSON runs a JS function that returns JSON.stringify output and
// decodes it into out.
func (s *Session) evalJSON(ctx context.Context, js string, out interface{}) error {
	res, err := s.pg(ctx).Eval(js)
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	raw := res.Value.Str()
	if raw == "" {
		return fmt.Errorf("eval: empty result")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("eval: decode result: %w", err)
	}
	return nil
}

// CaptionText returns the visible caption of the current post, best
// effort.
func (s *Session) CaptionText(ctx context.Context) (string, error) {
	res, err := s.pg(ctx).Eval(`() => {
		const caption = document.querySelector('h1, [class*="Caption"], span[dir="auto"]');
		return caption ? caption.innerText.substring(0, 500) : '';
	}`)
	if err != nil {
		return "", fmt.Errorf("caption: %w", err)
	}
	return res.Value.Str(), nil
}

// ElementDigest summarizes the interactable elements on the current
// page for the advisory model: buttons, links, and inputs with their
// labels.
func (s *Session) ElementDigest(ctx context.Context) (string, error) {
	res, err := s.pg(ctx).Eval(`() => {
		const elements = [];
		document.querySelectorAll('button, [role="button"]').forEach(el => {
			const text = el.textContent?.trim().substring(0, 50);
			const label = el.getAttribute('aria-label');
			if (text || label) elements.push({type: 'button', text: text, label: label});
		});
		document.querySelectorAll('a[href]').forEach(el => {
			const text = el.textContent?.trim().substring(0, 50);
			const href = el.getAttribute('href');
			if (text) elements.push({type: 'link', text: text, href: href?.substring(0, 50)});
		});
		document.querySelectorAll('input, textarea').forEach(el => {
			elements.push({type: 'input', placeholder: el.getAttribute('placeholder'), label: el.getAttribute('aria-label')});
		});
		return JSON.stringify(elements.slice(0, 20));
	}`)
	if err != nil {
		return "", fmt.Errorf("element digest: %w", err)
	}
	return res.Value.Str(), nil
}

// postLinkPattern matches post and reel paths.
var postLinkPattern = regexp.MustCompile(`^/(p|reel|reels)/[^/]+/?`)

// collectPostLinks gathers post/reel URLs from the current page, up to
// limit, deduplicated and absolutized.
func (s *Session) collectPostLinks(ctx context.Context, limit int) ([]string, error) {
	var hrefs []string
	err := s.evalJSON(ctx, `() => {
		const out = [];
		document.querySelectorAll('a[href*="/p/"], a[href*="/reel"]').forEach(a => {
			const href = a.getAttribute('href');
			if (href) out.push(href);
		});
		return JSON.stringify(out);
	}`, &hrefs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, h := range hrefs {
		if !postLinkPattern.MatchString(h) {
			continue
		}
		full := baseURL + h
		if seen[full] {
			continue
		}
		seen[full] = true
		out = append(out, full)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SearchHashtag opens the hashtag explore page and returns up to limit
// fresh post URLs.
func (s *Session) SearchHashtag(ctx context.Context, tag string, limit int) ([]string, error) {
	tag = strings.TrimPrefix(tag, "#")
	logging.Browser("Searching #%s", tag)

	if err := s.Navigate(ctx, fmt.Sprintf("%s/explore/tags/%s/", baseURL, tag)); err != nil {
		return nil, err
	}
	// Load a second screenful.
	_ = s.Scroll(ctx)

	links, err := s.collectPostLinks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("search #%s: %w", tag, err)
	}
	logging.Browser("Found %d posts for #%s", len(links), tag)
	return links, nil
}

// AuthorFromPost opens a post and returns the author's handle.
func (s *Session) AuthorFromPost(ctx context.Context, postURL string) (string, error) {
	if err := s.navigateIfNeeded(ctx, postURL); err != nil {
		return "", err
	}

	res, err := s.pg(ctx).Eval(`() => {
		const a = document.querySelector('article header a[href^="/"], header a[href^="/"]');
		return a ? (a.getAttribute('href') || '') : '';
	}`)
	if err != nil {
		return "", fmt.Errorf("author from post: %w", err)
	}
	handle := strings.Trim(res.Value.Str(), "/")
	if handle == "" || strings.Contains(handle, "/") {
		return "", fmt.Errorf("author from post: no author link on %s", postURL)
	}
	return strings.ToLower(handle), nil
}

// SendDM opens the target's profile, starts a message thread, and
// sends the text. Success is verified by the input clearing after the
// send.
func (s *Session) SendDM(ctx context.Context, username, message string) error {
	logging.Browser("Sending DM to @%s", username)

	if err := s.Navigate(ctx, fmt.Sprintf("%s/%s/", baseURL, username)); err != nil {
		return err
	}

	msgBtn, err := s.pg(ctx).Timeout(8 * time.Second).ElementR(`div[role="button"], button, a`, "/^message$/i")
	if err != nil {
		return fmt.Errorf("send dm @%s: message button not found: %w", username, err)
	}
	if err := msgBtn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("send dm @%s: open thread: %w", username, err)
	}
	time.Sleep(3 * time.Second)

	// "Not now" notification prompt sometimes interposes.
	if notNow, err := s.pg(ctx).Timeout(2*time.Second).ElementR(`button`, "/not now/i"); err == nil {
		_ = notNow.Click(proto.InputMouseButtonLeft, 1)
		time.Sleep(time.Second)
	}

	box, err := s.firstElement(ctx, 9*time.Second,
		`textarea[placeholder="Message..."]`,
		`div[aria-label="Message"]`,
		`div[contenteditable="true"]`)
	if err != nil {
		return fmt.Errorf("send dm @%s: message box not found: %w", username, err)
	}
	if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("send dm @%s: focus box: %w", username, err)
	}
	if err := s.pg(ctx).InsertText(message); err != nil {
		return fmt.Errorf("send dm @%s: type message: %w", username, err)
	}
	time.Sleep(time.Second)
	if err := s.pg(ctx).Keyboard.Type(input.Enter); err != nil {
		return fmt.Errorf("send dm @%s: send: %w", username, err)
	}
	time.Sleep(3 * time.Second)

	// Input cleared means the message left the box.
	if left, err := box.Text(); err == nil && len(strings.TrimSpace(left)) >= 10 {
		return fmt.Errorf("send dm @%s: message may not have sent (input not cleared)", username)
	}
	logging.Browser("DM sent to @%s", username)
	return nil
}

// PostComment opens the post and submits a comment.
func (s *Session) PostComment(ctx context.Context, postURL, text string) error {
	logging.Browser("Commenting on %s", postURL)

	if err := s.navigateIfNeeded(ctx, postURL); err != nil {
		return err
	}

	box, err := s.firstElement(ctx, 12*time.Second,
		`textarea[aria-label="Add a comment…"]`,
		`textarea[placeholder*="comment"]`,
		`form textarea`,
		`div[contenteditable="true"]`)
	if err != nil {
		return fmt.Errorf("comment on %s: input not found: %w", postURL, err)
	}
	if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("comment on %s: focus input: %w", postURL, err)
	}
	if err := s.pg(ctx).InsertText(text); err != nil {
		return fmt.Errorf("comment on %s: type: %w", postURL, err)
	}
	time.Sleep(time.Second)
	if err := s.pg(ctx).Keyboard.Type(input.Enter); err != nil {
		return fmt.Errorf("comment on %s: submit: %w", postURL, err)
	}
	time.Sleep(2 * time.Second)
	logging.Browser("Comment posted on %s", postURL)
	return nil
}

// handlePattern matches a bare profile path.
var handlePattern = regexp.MustCompile(`^/([A-Za-z0-9._]+)/?$`)

// Commenters opens a post and returns up to limit commenter handles,
// excluding the post author's own replies when detectable.
func (s *Session) Commenters(ctx context.Context, postURL string, limit int) ([]string, error) {
	if err := s.navigateIfNeeded(ctx, postURL); err != nil {
		return nil, err
	}

	var hrefs []string
	err := s.evalJSON(ctx, `() => {
		const out = [];
		document.querySelectorAll('ul a[href^="/"], article a[href^="/"]').forEach(a => {
			const href = a.getAttribute('href');
			if (href) out.push(href);
		});
		return JSON.stringify(out);
	}`, &hrefs)
	if err != nil {
		return nil, fmt.Errorf("commenters on %s: %w", postURL, err)
	}

	author, _ := s.AuthorFromPost(ctx, postURL)
	seen := make(map[string]bool)
	var out []string
	for _, h := range hrefs {
		m := handlePattern.FindStringSubmatch(h)
		if m == nil {
			continue
		}
		handle := strings.ToLower(m[1])
		if handle == author || seen[handle] {
			continue
		}
		seen[handle] = true
		out = append(out, handle)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SavedPosts returns up to limit post URLs from a saved collection.
// collectionURL takes precedence; otherwise collectionName is looked
// up on the account's saved page. A collection that cannot be found
// falls back to all saved posts.
func (s *Session) SavedPosts(ctx context.Context, collectionName, collectionURL string, limit int) ([]string, error) {
	if collectionURL == "" && s.account.SavedCollectionURL != "" {
		collectionURL = s.account.SavedCollectionURL
	}

	if collectionURL != "" {
		if err := s.Navigate(ctx, collectionURL); err != nil {
			return nil, err
		}
	} else {
		savedURL := fmt.Sprintf("%s/%s/saved/", baseURL, s.account.Username)
		if err := s.Navigate(ctx, savedURL); err != nil {
			return nil, err
		}
		if collectionName != "" {
			link, err := s.pg(ctx).Timeout(5*time.Second).ElementR(`a, span, div`,
				"/"+regexp.QuoteMeta(collectionName)+"/i")
			if err != nil {
				logging.BrowserWarn("Saved collection %q not found, using all saved posts", collectionName)
			} else if err := link.Click(proto.InputMouseButtonLeft, 1); err == nil {
				time.Sleep(3 * time.Second)
			}
		}
	}

	_ = s.Scroll(ctx)
	links, err := s.collectPostLinks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("saved posts: %w", err)
	}
	logging.Browser("Found %d saved posts", len(links))
	return links, nil
}
