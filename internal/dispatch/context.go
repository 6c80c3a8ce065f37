package dispatch

import (
	"sync"
	"time"

	"github.com/serverledge-faas/gpu-dispatch/internal/compute"
)

// ContextEntry records the most recent dispatch outcome for one function.
type ContextEntry struct {
	Device compute.Compute `json:"device"`
	Time   time.Time       `json:"time"`
}

// Context is the shared record of each function's last dispatch decision.
// Entries are created lazily on first decision and never deleted; the map is
// bounded by the number of distinct registered functions.
type Context struct {
	mu      sync.RWMutex
	entries map[string]ContextEntry
}

func NewContext() *Context {
	return &Context{entries: make(map[string]ContextEntry)}
}

// SharedContext is written by the active policy and read by observability.
var SharedContext = NewContext()

// SelectDeviceForFunction upserts the last-chosen device for a function.
func (c *Context) SelectDeviceForFunction(fqdn string, device compute.Compute, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fqdn] = ContextEntry{Device: device, Time: t}
}

// Get returns the last recorded decision for a function, if any.
func (c *Context) Get(fqdn string) (ContextEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, found := c.entries[fqdn]
	return entry, found
}
