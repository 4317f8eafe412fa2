// Package accounts manages the Instagram account pool: a JSON file of
// credentials plus the rotation and eligibility rules engines use to
// spread work across accounts.
package accounts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gramnerd/internal/logging"
)

// Account is one configured Instagram login.
type Account struct {
	Username           string `json:"username"`
	Password           string `json:"password"`
	Enabled            bool   `json:"enabled"`
	SavedCollectionURL string `json:"saved_collection_url,omitempty"`
	Added              string `json:"added,omitempty"`
}

// Manager loads and persists the accounts file.
type Manager struct {
	path string
	mu   sync.RWMutex
	all  []Account
}

// NewManager creates a manager for the given accounts file path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads the accounts file. If it does not exist a disabled sample
// entry is written so the operator has a template to edit.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read accounts file: %w", err)
		}
		sample := []Account{{
			Username: "your_instagram_username",
			Password: "your_password",
			Enabled:  false,
		}}
		if err := m.writeLocked(sample); err != nil {
			return err
		}
		m.all = sample
		logging.Boot("Created sample accounts file at %s; edit it to add real accounts", m.path)
		return nil
	}

	var accounts []Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return fmt.Errorf("parse accounts file: %w", err)
	}
	m.all = accounts
	logging.Boot("Loaded %d accounts (%d enabled)", len(accounts), countEnabled(accounts))
	return nil
}

// Enabled returns the enabled accounts in file order.
func (m *Manager) Enabled() []Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Account
	for _, a := range m.all {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

// All returns every configured account in file order.
func (m *Manager) All() []Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Account, len(m.all))
	copy(out, m.all)
	return out
}

// Add appends a new enabled account and persists the file. The handle
// is normalized (lower case, leading @ stripped) and duplicates are
// rejected.
func (m *Manager) Add(username, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	username = strings.TrimPrefix(username, "@")
	if username == "" || password == "" {
		return fmt.Errorf("username and password required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.all {
		if strings.EqualFold(a.Username, username) {
			return fmt.Errorf("account %q already exists", username)
		}
	}

	updated := append(append([]Account{}, m.all...), Account{
		Username: username,
		Password: password,
		Enabled:  true,
		Added:    time.Now().Format(time.RFC3339),
	})
	if err := m.writeLocked(updated); err != nil {
		return err
	}
	m.all = updated
	return nil
}

func (m *Manager) writeLocked(accounts []Account) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create accounts directory: %w", err)
	}
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("write accounts file: %w", err)
	}
	return nil
}

func countEnabled(accounts []Account) int {
	n := 0
	for _, a := range accounts {
		if a.Enabled {
			n++
		}
	}
	return n
}

// NextAfter returns the circular successor of lastUsed in the list.
// An empty or unknown lastUsed falls back to the first account. A nil
// result means the list is empty.
func NextAfter(accounts []Account, lastUsed string) *Account {
	if len(accounts) == 0 {
		return nil
	}
	if lastUsed != "" {
		for i, a := range accounts {
			// Handles are case-insensitive identifiers.
			if strings.EqualFold(a.Username, lastUsed) {
				next := accounts[(i+1)%len(accounts)]
				return &next
			}
		}
	}
	first := accounts[0]
	return &first
}

// Eligible filters to accounts whose used contact count is still under
// the ceiling, preserving order.
func Eligible(accounts []Account, used func(username string) int, ceiling int) []Account {
	var out []Account
	for _, a := range accounts {
		if used(a.Username) < ceiling {
			out = append(out, a)
		}
	}
	return out
}
