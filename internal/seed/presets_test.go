package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPresets_Builtin(t *testing.T) {
	ps, err := LoadPresets("")
	require.NoError(t, err)
	assert.Equal(t, []string{"busy", "demo", "tiny"}, ps.Names())

	tiny, err := ps.Lookup("tiny")
	require.NoError(t, err)
	assert.Equal(t, 8, tiny.Users)
	assert.InDelta(t, 0.3, tiny.ReplyRatio, 1e-9)

	_, err = ps.Lookup("missing")
	assert.ErrorContains(t, err, "unknown preset")
}

func TestLoadPresets_FileOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiny:\n  users: 2\n  posts: 1\ncustom:\n  users: 3\n"), 0o600))

	ps, err := LoadPresets(path)
	require.NoError(t, err)
	assert.Equal(t, 2, ps["tiny"].Users)
	assert.Equal(t, 3, ps["custom"].Users)
	assert.Equal(t, 50, ps["demo"].Users)
}

func TestParsePresets_Rejects(t *testing.T) {
	cases := map[string]string{
		"no users":       "x:\n  users: 0\n",
		"negative posts": "x:\n  users: 1\n  posts: -1\n",
		"ratio":          "x:\n  users: 1\n  reply_ratio: 1.5\n",
		"not yaml":       "x: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePresets(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}
