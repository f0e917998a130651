package offline

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/toolshelf/cache"
)

// Config describes one cache version.
type Config struct {
	// Name prefixes both cache names.
	Name string

	// Version suffixes both cache names. Changing it makes Activate purge
	// the previous version's caches.
	Version string

	// Origin resolves relative manifest entries.
	Origin string

	// Manifest lists the assets precached on install.
	Manifest []string

	// DynamicSuffixes are path suffixes served stale-while-revalidate.
	// Default: ["/tools.json"]
	DynamicSuffixes []string

	// InstallConcurrency bounds parallel manifest downloads.
	// Default: 4
	InstallConcurrency int

	// FetchTimeout bounds each manifest download and each background
	// revalidation.
	// Default: 15s
	FetchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.DynamicSuffixes) == 0 {
		c.DynamicSuffixes = []string{cache.DefaultDynamicSuffix}
	}
	if c.InstallConcurrency <= 0 {
		c.InstallConcurrency = 4
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	return c
}

// StaticCache is the name of the precache: "<name>-static-<version>".
func (c Config) StaticCache() string {
	return c.Name + "-static-" + c.Version
}

// DynamicCache is the name of the tool list cache: "<name>-dynamic-<version>".
func (c Config) DynamicCache() string {
	return c.Name + "-dynamic-" + c.Version
}

// Whitelist returns the cache names Activate keeps.
func (c Config) Whitelist() []string {
	return []string{c.StaticCache(), c.DynamicCache()}
}

// Validate checks names and that every manifest entry resolves.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("%w: name and version are required", ErrInvalidConfig)
	}
	for _, name := range c.Whitelist() {
		if err := cache.ValidateName(name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	_, err := c.resolveManifest()
	return err
}

// resolveManifest returns the manifest as absolute URLs, in order.
func (c Config) resolveManifest() ([]string, error) {
	var base *url.URL
	if c.Origin != "" {
		u, err := url.Parse(c.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: origin %q is not an absolute URL", ErrInvalidConfig, c.Origin)
		}
		base = u
	}

	out := make([]string, 0, len(c.Manifest))
	for _, raw := range c.Manifest {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: manifest entry %q: %w", ErrInvalidConfig, raw, err)
		}
		if !u.IsAbs() {
			if base == nil {
				return nil, fmt.Errorf("%w: manifest entry %q needs an origin", ErrInvalidConfig, raw)
			}
			u = base.ResolveReference(u)
		}
		out = append(out, u.String())
	}
	return out, nil
}
