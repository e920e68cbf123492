// Package platform maps page hostnames to the selector configuration used to
// locate user messages on each supported chat site.
//
// The table is an ordered list of immutable records. Identification is a
// case-insensitive substring match of the hostname against each record's
// HostnameMatch; the first match wins. Within a record, Selectors are tried
// in listed order by the scanner and the first selector that matches anything
// is the only one used.
//
// Records come from the built-in Defaults, a YAML file (LoadFile, WatchFile)
// or the platforms table of an SQLite database (LoadDB, WatchDB). Adding a
// site needs a new record only.
package platform

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Platform identifies a chat site.
type Platform string

const (
	Unknown    Platform = "unknown"
	ChatGPT    Platform = "chatgpt"
	Claude     Platform = "claude"
	Gemini     Platform = "gemini"
	DeepSeek   Platform = "deepseek"
	Grok       Platform = "grok"
	Perplexity Platform = "perplexity"
)

// ErrInvalidConfig is wrapped by validation failures.
var ErrInvalidConfig = errors.New("platform: invalid config")

// Config is the selector configuration for one platform.
type Config struct {
	Name              Platform `yaml:"name" json:"name"`
	HostnameMatch     string   `yaml:"hostname_match" json:"hostname_match"`
	Selectors         []string `yaml:"selectors" json:"selectors"`
	ContainerSelector string   `yaml:"container_selector,omitempty" json:"container_selector,omitempty"`
}

func (c Config) clone() Config {
	c.Selectors = slices.Clone(c.Selectors)
	return c
}

func (c Config) validate() error {
	if c.Name == "" || c.Name == Unknown {
		return fmt.Errorf("%w: name %q", ErrInvalidConfig, c.Name)
	}
	if strings.TrimSpace(c.HostnameMatch) == "" {
		return fmt.Errorf("%w: %s: empty hostname_match", ErrInvalidConfig, c.Name)
	}
	if len(c.Selectors) == 0 {
		return fmt.Errorf("%w: %s: no selectors", ErrInvalidConfig, c.Name)
	}
	for i, s := range c.Selectors {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %s: blank selector at %d", ErrInvalidConfig, c.Name, i)
		}
	}
	return nil
}

// Defaults returns the built-in table.
func Defaults() []Config {
	return []Config{
		{
			Name:          ChatGPT,
			HostnameMatch: "chatgpt.com",
			Selectors: []string{
				`[data-message-author-role="user"]`,
				`div[data-testid^="conversation-turn"] .whitespace-pre-wrap`,
			},
			ContainerSelector: "main",
		},
		{
			Name:          ChatGPT,
			HostnameMatch: "chat.openai.com",
			Selectors: []string{
				`[data-message-author-role="user"]`,
			},
			ContainerSelector: "main",
		},
		{
			Name:          Claude,
			HostnameMatch: "claude.ai",
			Selectors: []string{
				`[data-testid="user-message"]`,
				`.font-user-message`,
			},
			ContainerSelector: "main",
		},
		{
			Name:          Gemini,
			HostnameMatch: "gemini.google.com",
			Selectors: []string{
				`user-query .query-text`,
				`.user-query-bubble-with-background`,
				`user-query`,
			},
			ContainerSelector: "chat-window",
		},
		{
			Name:          DeepSeek,
			HostnameMatch: "chat.deepseek.com",
			Selectors: []string{
				`div._9663006`,
				`div[class*="fbb737a4"]`,
			},
		},
		{
			Name:          Grok,
			HostnameMatch: "grok.com",
			Selectors: []string{
				`div.items-end .message-bubble`,
				`[data-testid="user-message"]`,
			},
			ContainerSelector: "main",
		},
		{
			Name:          Perplexity,
			HostnameMatch: "perplexity.ai",
			Selectors: []string{
				`[data-testid="user-query"]`,
				`h1.group\/query`,
			},
			ContainerSelector: "main",
		},
	}
}

// Registry holds the ordered platform table. It is safe for concurrent use;
// Replace swaps the whole table at once.
type Registry struct {
	mu      sync.RWMutex
	configs []Config
}

// NewRegistry creates a Registry over configs, or over Defaults when none
// are given. Invalid records are rejected.
func NewRegistry(configs ...Config) (*Registry, error) {
	if len(configs) == 0 {
		configs = Defaults()
	}
	r := &Registry{}
	if err := r.Replace(configs); err != nil {
		return nil, err
	}
	return r, nil
}

// Identify returns the platform whose HostnameMatch is contained in
// hostname, or Unknown.
func (r *Registry) Identify(hostname string) Platform {
	if c, ok := r.Match(hostname); ok {
		return c.Name
	}
	return Unknown
}

// Match returns a copy of the first record whose HostnameMatch is contained
// in hostname. Several hostnames may share a platform name with different
// selectors; Match is how each keeps its own record.
func (r *Registry) Match(hostname string) (Config, bool) {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if host == "" {
		return Config{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.configs {
		if strings.Contains(host, strings.ToLower(c.HostnameMatch)) {
			return c.clone(), true
		}
	}
	return Config{}, false
}

// ConfigFor returns a copy of the first record for p. It reports false for
// Unknown and for platforms absent from the table. Use Match when the
// hostname is known.
func (r *Registry) ConfigFor(p Platform) (Config, bool) {
	if p == Unknown || p == "" {
		return Config{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.configs {
		if c.Name == p {
			return c.clone(), true
		}
	}
	return Config{}, false
}

// Configs returns a copy of the table in match order.
func (r *Registry) Configs() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Config, len(r.configs))
	for i, c := range r.configs {
		out[i] = c.clone()
	}
	return out
}

// Replace validates configs and swaps them in. On error the current table
// is kept.
func (r *Registry) Replace(configs []Config) error {
	next := make([]Config, 0, len(configs))
	for _, c := range configs {
		if err := c.validate(); err != nil {
			return err
		}
		next = append(next, c.clone())
	}
	if len(next) == 0 {
		return fmt.Errorf("%w: empty table", ErrInvalidConfig)
	}

	r.mu.Lock()
	r.configs = next
	r.mu.Unlock()
	return nil
}
