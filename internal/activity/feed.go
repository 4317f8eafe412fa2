// Package activity keeps a bounded in-memory feed of operator-visible
// events. The dashboard polls it; engines write every step to it.
package activity

import (
	"fmt"
	"sync"
	"time"
)

// Type classifies a feed entry for dashboard rendering.
type Type string

const (
	Info    Type = "info"
	Success Type = "success"
	Error   Type = "error"
	Warning Type = "warning"
	Action  Type = "action"
)

// Entry is one feed item, newest first in the feed.
type Entry struct {
	Time    string `json:"time"`
	Message string `json:"message"`
	Type    Type   `json:"type"`
}

const maxEntries = 200

// Feed is a fixed-capacity, newest-first event list.
type Feed struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{now: time.Now}
}

// Add records an entry at the head of the feed, dropping the oldest
// entry once the feed is full.
func (f *Feed) Add(t Type, format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := Entry{
		Time:    f.now().Format("15:04:05"),
		Message: fmt.Sprintf(format, args...),
		Type:    t,
	}
	f.entries = append([]Entry{entry}, f.entries...)
	if len(f.entries) > maxEntries {
		f.entries = f.entries[:maxEntries]
	}
}

// Info adds an informational entry.
func (f *Feed) Info(format string, args ...interface{}) { f.Add(Info, format, args...) }

// Success adds a success entry.
func (f *Feed) Success(format string, args ...interface{}) { f.Add(Success, format, args...) }

// Error adds an error entry.
func (f *Feed) Error(format string, args ...interface{}) { f.Add(Error, format, args...) }

// Warning adds a warning entry.
func (f *Feed) Warning(format string, args ...interface{}) { f.Add(Warning, format, args...) }

// Action adds an action entry.
func (f *Feed) Action(format string, args ...interface{}) { f.Add(Action, format, args...) }

// Recent returns up to n entries, newest first.
func (f *Feed) Recent(n int) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n > len(f.entries) {
		n = len(f.entries)
	}
	out := make([]Entry, n)
	copy(out, f.entries[:n])
	return out
}

// Len returns the number of entries currently held.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
