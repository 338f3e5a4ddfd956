package cachecontrol

import (
	"fmt"
	"os"

	"github.com/alecthomas/units"
	"github.com/pbnjay/memory"
	"gopkg.in/yaml.v3"
)

// memberBytesEstimate is the rough per-entry footprint used to turn a
// byte budget into an entry count for the member cache.
const memberBytesEstimate = 256

// Config tunes the cache layer.  The zero value is usable: the member
// cache budget defaults to a fraction of physical memory and eviction
// is enabled.
type Config struct {
	// MemberCacheSize is a human-readable byte budget for the member
	// cache, e.g. "64MiB".  Empty means the default budget.
	MemberCacheSize string `yaml:"member_cache_size"`
	// DisableEviction pins every entry, for tests that must observe
	// exact cache contents.
	DisableEviction bool `yaml:"disable_eviction"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := c.memberCacheEntries(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// memberCacheEntries converts the configured byte budget into an entry
// count.  The default budget is 1/64 of physical memory.
func (c Config) memberCacheEntries() (int, error) {
	var budget int64
	if c.MemberCacheSize == "" {
		budget = int64(memory.TotalMemory() / 64)
		if budget == 0 {
			budget = int64(64 * units.MiB)
		}
	} else {
		parsed, err := units.ParseBase2Bytes(c.MemberCacheSize)
		if err != nil {
			return 0, fmt.Errorf("member_cache_size: %w", err)
		}
		budget = int64(parsed)
	}
	entries := int(budget / memberBytesEstimate)
	if entries < 1 {
		entries = 1
	}
	return entries, nil
}
