package handlers

import "sync"

// Prefs holds per-user result-count limits for the process lifetime,
// mirroring the chat session state of the original bot. Entries are created
// on first use and never expire.
type Prefs struct {
	defaultLimit int

	mu     sync.RWMutex
	limits map[int64]int
}

// NewPrefs creates a preference store returning defaultLimit for unknown users.
func NewPrefs(defaultLimit int) *Prefs {
	return &Prefs{
		defaultLimit: defaultLimit,
		limits:       make(map[int64]int),
	}
}

// Get returns the user's limit, or the default when none was set.
func (p *Prefs) Get(userID int64) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if limit, ok := p.limits[userID]; ok {
		return limit
	}
	return p.defaultLimit
}

// Set stores the user's limit. Callers clamp before calling.
func (p *Prefs) Set(userID int64, limit int) {
	p.mu.Lock()
	p.limits[userID] = limit
	p.mu.Unlock()
}
