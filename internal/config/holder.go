package config

import "sync"

// Holder shares the live configuration between the MCP server's Drive
// factory and the reload loop. The file path never changes.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

func NewHolder(cfg *Config, path string) *Holder {
	return &Holder{cfg: cfg, path: path}
}

// Config returns the current snapshot. Snapshots are never mutated after
// they are published, so callers may keep one for the length of a request.
func (h *Holder) Config() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cfg
}

func (h *Holder) Path() string {
	return h.path
}

// Update publishes cfg and returns the snapshot it replaced.
func (h *Holder) Update(cfg *Config) (prev *Config) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, h.cfg = h.cfg, cfg

	return prev
}
