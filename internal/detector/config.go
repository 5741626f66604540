package detector

import (
	"sync"
	"sync/atomic"
)

// Config is the process-wide detector configuration: the enable toggles and
// the whitelist. Detectors read it live at checkpoint and again when flags
// are read, so a change made mid unit of work is visible immediately.
type Config struct {
	enabled   atomic.Bool
	nPlusOne  atomic.Bool
	unused    atomic.Bool
	callSites atomic.Bool

	// writeMu serializes whitelist writers; readers load the snapshot.
	writeMu   sync.Mutex
	whitelist atomic.Pointer[Whitelist]
}

// NewConfig returns a configuration with both detectors enabled, call site
// capture on and an empty whitelist.
func NewConfig() *Config {
	c := &Config{}
	c.enabled.Store(true)
	c.nPlusOne.Store(true)
	c.unused.Store(true)
	c.callSites.Store(true)
	c.whitelist.Store(NewWhitelist())
	return c
}

var defaultConfig = NewConfig()

// DefaultConfig returns the shared process-wide configuration used by
// detectors created without WithConfig.
func DefaultConfig() *Config {
	return defaultConfig
}

// SetEnabled turns all bookkeeping on or off. A disabled detector ignores
// registrations.
func (c *Config) SetEnabled(v bool) { c.enabled.Store(v) }

// Enabled reports the master toggle.
func (c *Config) Enabled() bool { return c.enabled.Load() }

// SetNPlusOneEnabled toggles the N+1 checker.
func (c *Config) SetNPlusOneEnabled(v bool) { c.nPlusOne.Store(v) }

// NPlusOneEnabled reports whether the N+1 checker runs.
func (c *Config) NPlusOneEnabled() bool { return c.nPlusOne.Load() }

// SetUnusedEagerLoadEnabled toggles the unused eager load checker.
func (c *Config) SetUnusedEagerLoadEnabled(v bool) { c.unused.Store(v) }

// UnusedEagerLoadEnabled reports whether the unused eager load checker runs.
func (c *Config) UnusedEagerLoadEnabled() bool { return c.unused.Load() }

// SetCallSitesEnabled toggles stack capture for notices.
func (c *Config) SetCallSitesEnabled(v bool) { c.callSites.Store(v) }

// CallSitesEnabled reports whether registrations capture their call site.
func (c *Config) CallSitesEnabled() bool { return c.callSites.Load() }

// SetWhitelist replaces the whitelist. Nothing changes if any entry is invalid.
func (c *Config) SetWhitelist(entries []WhitelistEntry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.whitelist.Store(NewWhitelist(entries...))
	return nil
}

// AddWhitelist appends one entry.
func (c *Config) AddWhitelist(entry WhitelistEntry) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	next := c.whitelist.Load().clone()
	if err := next.Suppress(entry); err != nil {
		return err
	}
	c.whitelist.Store(next)
	return nil
}

// ClearWhitelist removes every entry.
func (c *Config) ClearWhitelist() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.whitelist.Store(NewWhitelist())
}

// Whitelist returns the current snapshot. Callers must not mutate it.
func (c *Config) Whitelist() *Whitelist {
	return c.whitelist.Load()
}

// kindEnabled reports the toggle for one kind.
func (c *Config) kindEnabled(k Kind) bool {
	switch k {
	case KindUnpreloaded:
		return c.NPlusOneEnabled()
	case KindUnusedPreload:
		return c.UnusedEagerLoadEnabled()
	default:
		return false
	}
}

// reportable applies the toggles and the whitelist to one finding.
func (c *Config) reportable(class, association string, k Kind) bool {
	return c.kindEnabled(k) && !c.Whitelist().IsSuppressed(class, association, k)
}
