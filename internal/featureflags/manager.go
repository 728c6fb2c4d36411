// Package featureflags evaluates runtime switches configured through
// FEATURE_FLAGS, e.g. "presence_events=on,suggested_users=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags known to the server. Unknown names in FEATURE_FLAGS are kept and
// reported but nothing consults them.
const (
	// PresenceEvents pushes user:online and user:offline to online followers.
	PresenceEvents = "presence_events"
	// SuggestedUsers enables GET /api/users/suggested.
	SuggestedUsers = "suggested_users"
)

var known = []string{PresenceEvents, SuggestedUsers}

// Manager holds the parsed flag values. A nil Manager reports every flag off.
type Manager struct {
	values map[string]string
}

// NewManager parses a comma separated list of name=value pairs. Malformed
// pairs are skipped.
func NewManager(raw string) *Manager {
	values := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return &Manager{values: values}
}

// Enabled reports whether name is on for userID. Values are on/true/1,
// off/false/0, or "N%" for a rollout that is stable per user. Rollouts never
// include anonymous callers.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	value, ok := m.values[normalize(name)]
	if !ok {
		return false
	}
	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pct, ok := parsePercent(value)
	switch {
	case !ok || pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < pct
}

// Raw returns a copy of the configured values.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Snapshot evaluates every known and configured flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(known))
	for _, name := range m.Names() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

// Names lists the known flags plus any configured ones, sorted.
func (m *Manager) Names() []string {
	seen := make(map[string]struct{}, len(known))
	names := make([]string, 0, len(known))
	add := func(name string) {
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	for _, name := range known {
		add(name)
	}
	if m != nil {
		for name := range m.values {
			add(name)
		}
	}
	sort.Strings(names)
	return names
}

func parsePercent(value string) (int, bool) {
	raw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, false
	}
	pct, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
