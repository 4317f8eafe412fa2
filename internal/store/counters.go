package store

import (
	"database/sql"
	"fmt"
)

// Counter names one of the per-account daily counters. The value is
// the daily_stats column it maps to.
type Counter string

const (
	CounterDMs          Counter = "dms_sent"
	CounterComments     Counter = "comments_sent"
	CounterProfileViews Counter = "profiles_viewed"
	CounterSearches     Counter = "searches_done"
)

// Counters is a snapshot of one account's activity for one day.
// A day with no activity reads as all zeros.
type Counters struct {
	DMs          int `json:"dms_sent"`
	Comments     int `json:"comments_sent"`
	ProfileViews int `json:"profiles_viewed"`
	Searches     int `json:"searches_done"`
}

// Increment bumps one counter for the account for today, creating the
// day row on first use.
func (l *Ledger) Increment(account string, c Counter) error {
	switch c {
	case CounterDMs, CounterComments, CounterProfileViews, CounterSearches:
	default:
		return fmt.Errorf("unknown counter %q", c)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Column name is constrained to the constants above.
	query := fmt.Sprintf(`
		INSERT INTO daily_stats (date, account, %[1]s) VALUES (?, ?, 1)
		ON CONFLICT(date, account) DO UPDATE SET %[1]s = %[1]s + 1`, string(c))
	if _, err := l.db.Exec(query, l.today(), account); err != nil {
		return fmt.Errorf("increment %s: %w", c, err)
	}
	return nil
}

// TodayCounters returns today's counters for an account. Accounts with
// no activity today get a zero-valued snapshot.
func (l *Ledger) TodayCounters(account string) (Counters, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var c Counters
	err := l.db.QueryRow(`
		SELECT dms_sent, comments_sent, profiles_viewed, searches_done
		FROM daily_stats WHERE date = ? AND account = ?`, l.today(), account).
		Scan(&c.DMs, &c.Comments, &c.ProfileViews, &c.Searches)
	if err == sql.ErrNoRows {
		// No activity recorded yet today.
		return Counters{}, nil
	}
	if err != nil {
		return Counters{}, fmt.Errorf("today counters: %w", err)
	}
	return c, nil
}
