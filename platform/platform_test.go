package platform

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testRegistry(t *testing.T, configs ...Config) *Registry {
	t.Helper()
	r, err := NewRegistry(configs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestIdentify_Defaults(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		host string
		want Platform
	}{
		{"chatgpt.com", ChatGPT},
		{"www.chatgpt.com", ChatGPT},
		{"chat.openai.com", ChatGPT},
		{"claude.ai", Claude},
		{"CLAUDE.AI", Claude},
		{"gemini.google.com", Gemini},
		{"chat.deepseek.com", DeepSeek},
		{"grok.com", Grok},
		{"www.perplexity.ai", Perplexity},
		{"example.com", Unknown},
		{"google.com", Unknown},
		{"", Unknown},
	}
	for _, tt := range tests {
		if got := r.Identify(tt.host); got != tt.want {
			t.Errorf("Identify(%q): got %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestIdentify_FirstMatchWins(t *testing.T) {
	r := testRegistry(t,
		Config{Name: "alpha", HostnameMatch: "example", Selectors: []string{".a"}},
		Config{Name: "beta", HostnameMatch: "chat.example.com", Selectors: []string{".b"}},
	)
	if got := r.Identify("chat.example.com"); got != "alpha" {
		t.Errorf("Identify: got %q, want alpha (earlier record)", got)
	}
}

func TestIdentify_EveryRecordMatchesItsOwnHostname(t *testing.T) {
	r := testRegistry(t)
	for _, c := range r.Configs() {
		got := r.Identify("www." + c.HostnameMatch)
		if got != c.Name {
			t.Errorf("Identify(www.%s): got %q, want %q", c.HostnameMatch, got, c.Name)
		}
	}
}

func TestConfigFor(t *testing.T) {
	r := testRegistry(t)

	c, ok := r.ConfigFor(Claude)
	if !ok {
		t.Fatal("ConfigFor(claude): not found")
	}
	if c.HostnameMatch != "claude.ai" {
		t.Errorf("HostnameMatch: got %q", c.HostnameMatch)
	}
	if len(c.Selectors) == 0 {
		t.Error("Selectors: empty")
	}

	if _, ok := r.ConfigFor(Unknown); ok {
		t.Error("ConfigFor(unknown): want false")
	}
	if _, ok := r.ConfigFor("nonexistent"); ok {
		t.Error("ConfigFor(nonexistent): want false")
	}
}

func TestConfigFor_ReturnsCopy(t *testing.T) {
	r := testRegistry(t)

	c, _ := r.ConfigFor(ChatGPT)
	want := c.Selectors[0]
	c.Selectors[0] = "mutated"

	again, _ := r.ConfigFor(ChatGPT)
	if again.Selectors[0] != want {
		t.Errorf("registry mutated through copy: got %q, want %q", again.Selectors[0], want)
	}
}

func TestReplace_InvalidKeepsTable(t *testing.T) {
	r := testRegistry(t)
	before := r.Configs()

	bad := []Config{
		{Name: "x", HostnameMatch: "x.com", Selectors: []string{".ok"}},
		{Name: "y", HostnameMatch: "y.com"},
	}
	err := r.Replace(bad)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Replace: got %v, want ErrInvalidConfig", err)
	}
	if diff := cmp.Diff(before, r.Configs()); diff != "" {
		t.Errorf("table changed after rejected Replace (-before +after):\n%s", diff)
	}
}

func TestReplace_Validation(t *testing.T) {
	cases := map[string]Config{
		"empty name":     {HostnameMatch: "a.com", Selectors: []string{".a"}},
		"unknown name":   {Name: Unknown, HostnameMatch: "a.com", Selectors: []string{".a"}},
		"no hostname":    {Name: "a", Selectors: []string{".a"}},
		"blank selector": {Name: "a", HostnameMatch: "a.com", Selectors: []string{".a", "  "}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			r := testRegistry(t)
			if err := r.Replace([]Config{c}); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("got %v, want ErrInvalidConfig", err)
			}
		})
	}

	r := testRegistry(t)
	if err := r.Replace(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("empty table: got %v, want ErrInvalidConfig", err)
	}
}

func TestMatch_SharedNameKeepsOwnRecord(t *testing.T) {
	r := testRegistry(t)

	c, ok := r.Match("chat.openai.com")
	if !ok {
		t.Fatal("Match(chat.openai.com): no record")
	}
	if c.Name != ChatGPT || c.HostnameMatch != "chat.openai.com" {
		t.Errorf("Match(chat.openai.com): got %s/%s", c.Name, c.HostnameMatch)
	}
	if c, _ := r.Match("chatgpt.com"); c.HostnameMatch != "chatgpt.com" {
		t.Errorf("Match(chatgpt.com): got %s", c.HostnameMatch)
	}
	if _, ok := r.Match("example.com"); ok {
		t.Error("Match(example.com): want no record")
	}

	c.Selectors[0] = "mutated"
	if again, _ := r.Match("chat.openai.com"); again.Selectors[0] == "mutated" {
		t.Error("Match returned shared selectors")
	}
}
