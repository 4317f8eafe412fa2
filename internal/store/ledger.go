// Package store implements the outreach ledger on SQLite.
//
// The ledger is the single source of truth for who was contacted, what
// was visited or commented on, which candidates are pending, and how
// many actions each account performed today. All handle writes are
// canonicalized to lower case and all record inserts are idempotent:
// re-recording an existing key is a silent no-op that preserves the
// original row.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gramnerd/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Ledger wraps the SQLite database.
type Ledger struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	// now is swappable so tests can pin the date.
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS sent_dms (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	full_name TEXT,
	profile_url TEXT,
	has_website INTEGER,
	dm_template TEXT,
	account_used TEXT,
	sent_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	status TEXT DEFAULT 'sent'
);

CREATE TABLE IF NOT EXISTS replies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	message TEXT,
	received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	is_interested INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS visited_posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_url TEXT UNIQUE NOT NULL,
	username TEXT,
	visited_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sent_comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_url TEXT UNIQUE NOT NULL,
	username TEXT,
	comment_text TEXT,
	account_used TEXT,
	sent_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS prospects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	full_name TEXT,
	bio TEXT,
	followers INTEGER,
	has_website INTEGER,
	found_via TEXT,
	added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	status TEXT DEFAULT 'pending'
);

CREATE TABLE IF NOT EXISTS daily_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	account TEXT NOT NULL,
	dms_sent INTEGER DEFAULT 0,
	comments_sent INTEGER DEFAULT 0,
	profiles_viewed INTEGER DEFAULT 0,
	searches_done INTEGER DEFAULT 0,
	UNIQUE(date, account)
);

CREATE INDEX IF NOT EXISTS idx_sent_dms_username ON sent_dms(username);
CREATE INDEX IF NOT EXISTS idx_prospects_status ON prospects(status);
CREATE INDEX IF NOT EXISTS idx_daily_stats_date ON daily_stats(date, account);
`

// Open initializes the ledger at the given path, creating the parent
// directory and schema as needed. ":memory:" is valid for tests.
func Open(path string) (*Ledger, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening ledger at %s", path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.StoreDebug("Ledger schema ready")
	return &Ledger{db: db, path: path, now: time.Now}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// today returns the process-local date key for counters.
func (l *Ledger) today() string {
	return l.now().Format("2006-01-02")
}

// canonical lower-cases a handle so case variants dedupe to one row.
func canonical(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// Contact is a recorded direct-message recipient.
type Contact struct {
	Username   string
	FullName   string
	ProfileURL string
	HasWebsite bool
	Template   string
	Account    string
}

// RecordContact stores a contacted target. Re-recording the same handle
// in any case variation is a no-op; the first write wins.
func (l *Ledger) RecordContact(c Contact) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`
		INSERT OR IGNORE INTO sent_dms (username, full_name, profile_url, has_website, dm_template, account_used)
		VALUES (?, ?, ?, ?, ?, ?)`,
		canonical(c.Username), c.FullName, c.ProfileURL, boolInt(c.HasWebsite), c.Template, c.Account)
	if err != nil {
		return fmt.Errorf("record contact: %w", err)
	}
	logging.StoreDebug("Recorded contact @%s via %s", canonical(c.Username), c.Account)
	return nil
}

// Contacted reports whether the handle has already been messaged,
// regardless of case.
func (l *Ledger) Contacted(username string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var one int
	err := l.db.QueryRow(`SELECT 1 FROM sent_dms WHERE username = ?`, canonical(username)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check contacted: %w", err)
	}
	return true, nil
}

// ContactCount returns the number of contacts recorded overall.
func (l *Ledger) ContactCount() (int, error) {
	return l.count(`SELECT COUNT(*) FROM sent_dms`)
}

// RecordVisit marks content as visited. Idempotent on the URL.
func (l *Ledger) RecordVisit(postURL, username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`INSERT OR IGNORE INTO visited_posts (post_url, username) VALUES (?, ?)`,
		postURL, canonical(username))
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// Visited reports whether the content URL was already visited.
func (l *Ledger) Visited(postURL string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var one int
	err := l.db.QueryRow(`SELECT 1 FROM visited_posts WHERE post_url = ?`, postURL).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check visited: %w", err)
	}
	return true, nil
}

// Comment is a recorded posted comment.
type Comment struct {
	PostURL string
	Author  string
	Text    string
	Account string
}

// RecordComment stores a posted comment. The post URL is unique; a
// second write for the same URL keeps the first comment's text.
func (l *Ledger) RecordComment(c Comment) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`
		INSERT OR IGNORE INTO sent_comments (post_url, username, comment_text, account_used)
		VALUES (?, ?, ?, ?)`,
		c.PostURL, canonical(c.Author), c.Text, c.Account)
	if err != nil {
		return fmt.Errorf("record comment: %w", err)
	}
	return nil
}

// Commented reports whether a comment was already posted on the URL.
func (l *Ledger) Commented(postURL string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var one int
	err := l.db.QueryRow(`SELECT 1 FROM sent_comments WHERE post_url = ?`, postURL).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check commented: %w", err)
	}
	return true, nil
}

// CommentText returns the stored comment for a URL, or "" if none.
func (l *Ledger) CommentText(postURL string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var text string
	err := l.db.QueryRow(`SELECT comment_text FROM sent_comments WHERE post_url = ?`, postURL).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("comment text: %w", err)
	}
	return text, nil
}

// CommentCount returns the number of comments recorded overall.
func (l *Ledger) CommentCount() (int, error) {
	return l.count(`SELECT COUNT(*) FROM sent_comments`)
}

// Prospect is a candidate target discovered during a run.
type Prospect struct {
	Username   string
	FullName   string
	Bio        string
	Followers  int
	HasWebsite bool
	FoundVia   string
}

// RecordProspect stores a candidate target. Idempotent on the handle.
func (l *Ledger) RecordProspect(p Prospect) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`
		INSERT OR IGNORE INTO prospects (username, full_name, bio, followers, has_website, found_via)
		VALUES (?, ?, ?, ?, ?, ?)`,
		canonical(p.Username), p.FullName, p.Bio, p.Followers, boolInt(p.HasWebsite), p.FoundVia)
	if err != nil {
		return fmt.Errorf("record prospect: %w", err)
	}
	return nil
}

// PendingProspects returns prospects that have not yet been contacted,
// up to limit. The set difference is computed in SQL.
func (l *Ledger) PendingProspects(limit int) ([]Prospect, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.Query(`
		SELECT username, full_name, bio, followers, has_website, found_via FROM prospects
		WHERE status = 'pending' AND username NOT IN (SELECT username FROM sent_dms)
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending prospects: %w", err)
	}
	defer rows.Close()

	var out []Prospect
	for rows.Next() {
		var p Prospect
		var hasWebsite int
		if err := rows.Scan(&p.Username, &p.FullName, &p.Bio, &p.Followers, &hasWebsite, &p.FoundVia); err != nil {
			return nil, fmt.Errorf("scan prospect: %w", err)
		}
		p.HasWebsite = hasWebsite != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProspectCount returns the number of prospects recorded overall.
func (l *Ledger) ProspectCount() (int, error) {
	return l.count(`SELECT COUNT(*) FROM prospects`)
}

// RecordReply stores an inbound reply from a contacted target.
func (l *Ledger) RecordReply(username, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`INSERT INTO replies (username, message) VALUES (?, ?)`,
		canonical(username), message)
	if err != nil {
		return fmt.Errorf("record reply: %w", err)
	}
	return nil
}

func (l *Ledger) count(query string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int
	if err := l.db.QueryRow(query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
