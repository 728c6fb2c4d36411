package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinPresets []byte

// Preset sizes one seeding run.
type Preset struct {
	Users                   int     `yaml:"users"`
	Posts                   int     `yaml:"posts"`
	FollowsPerUser          int     `yaml:"follows_per_user"`
	LikesPerPost            int     `yaml:"likes_per_post"`
	CommentsPerPost         int     `yaml:"comments_per_post"`
	ReplyRatio              float64 `yaml:"reply_ratio"`
	Conversations           int     `yaml:"conversations"`
	MessagesPerConversation int     `yaml:"messages_per_conversation"`
}

// Validate rejects presets that cannot produce a consistent graph.
func (p Preset) Validate() error {
	switch {
	case p.Users < 1:
		return fmt.Errorf("users must be at least 1")
	case p.Posts < 0, p.FollowsPerUser < 0, p.LikesPerPost < 0, p.CommentsPerPost < 0,
		p.Conversations < 0, p.MessagesPerConversation < 0:
		return fmt.Errorf("counts must not be negative")
	case p.ReplyRatio < 0 || p.ReplyRatio > 1:
		return fmt.Errorf("reply_ratio must be within [0,1]")
	}
	return nil
}

// Presets maps preset names to their sizes.
type Presets map[string]Preset

// Names returns the preset names sorted.
func (ps Presets) Names() []string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named preset.
func (ps Presets) Lookup(name string) (Preset, error) {
	p, ok := ps[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (available: %v)", name, ps.Names())
	}
	return p, nil
}

// ParsePresets decodes a YAML preset document and validates every entry.
func ParsePresets(r io.Reader) (Presets, error) {
	var ps Presets
	if err := yaml.NewDecoder(r).Decode(&ps); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	for name, p := range ps {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return ps, nil
}

// LoadPresets returns the built-in presets, overlaid with the entries of
// path when it is non-empty.
func LoadPresets(path string) (Presets, error) {
	ps, err := ParsePresets(bytes.NewReader(builtinPresets))
	if err != nil {
		return nil, err
	}
	if path == "" {
		return ps, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open presets: %w", err)
	}
	defer func() { _ = f.Close() }()

	custom, err := ParsePresets(f)
	if err != nil {
		return nil, err
	}
	for name, p := range custom {
		ps[name] = p
	}
	return ps, nil
}
