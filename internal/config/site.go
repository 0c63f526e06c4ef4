package config

// SiteConfig holds request settings for a single host.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty" toml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty"`

	// Depth overrides the default maximum depth when this host is the seed.
	// If zero, or if the operator chose a depth, the global depth is used.
	Depth int `yaml:"depth,omitempty" toml:"depth,omitempty"`

	// UserAgent overrides the global User-Agent for this host.
	UserAgent string `yaml:"userAgent,omitempty" toml:"userAgent,omitempty"`
}

// File represents the structure of the .ferrumweb configuration file.
type File struct {
	// Sites maps host names (e.g., "example.com") to their configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty" toml:"sites,omitempty"`

	// Defaults applies to all hosts unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty" toml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	// Copy so that merging never mutates Defaults.Headers.
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}

	return result
}
