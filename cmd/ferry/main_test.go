package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrydl/ferry"
)

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.pdf"), []byte("b"), 0o600))

	t.Run("single file", func(t *testing.T) {
		entries, err := collectFiles(filepath.Join(dir, "a.zip"), false, "/releases")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "releases/a.zip", entries[0].destPath)
	})

	t.Run("directory needs recursive", func(t *testing.T) {
		_, err := collectFiles(dir, false, "")
		assert.ErrorContains(t, err, "use -r")
	})

	t.Run("recursive", func(t *testing.T) {
		entries, err := collectFiles(dir, true, "")
		require.NoError(t, err)

		var dests []string
		for _, e := range entries {
			dests = append(dests, e.destPath)
		}
		sort.Strings(dests)
		assert.Equal(t, []string{"a.zip", "sub/b.pdf"}, dests)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := collectFiles(filepath.Join(dir, "nope"), false, "")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path", func(t *testing.T) {
		rules, err := loadRules("")
		require.NoError(t, err)
		assert.False(t, rules.Enabled)
	})

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
enabled: true
action: allow
type: any
rules:
  - type: user_role
    condition: is
    value: member
`), 0o600))

		rules, err := loadRules(path)
		require.NoError(t, err)
		assert.True(t, rules.Enabled)
		assert.Equal(t, ferry.LogicAction("allow"), rules.Action)
		require.Len(t, rules.Rules, 1)
		assert.Equal(t, "member", rules.Rules[0].Value)
	})

	t.Run("enabled without action", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("enabled: true\n"), 0o600))

		_, err := loadRules(path)
		assert.ErrorIs(t, err, ferry.ErrInvalidInput)
	})
}

func TestNewGate(t *testing.T) {
	gate := newGate(slog.New(slog.DiscardHandler))
	ctx := context.Background()

	members := &ferry.Download{ID: 1, Name: "members", FileURL: "members.zip", Rules: ferry.ConditionalLogic{
		Enabled: true,
		Action:  ferry.ActionAllow,
		Type:    ferry.LogicAll,
		Rules:   []ferry.Rule{{Type: ferry.RuleUserRole, Condition: ferry.ConditionIs, Value: "member"}},
	}}
	blocked := &ferry.Download{ID: 2, Name: "blocked", FileURL: "blocked.zip", Rules: ferry.ConditionalLogic{
		Enabled: true,
		Action:  ferry.ActionPrevent,
		Type:    ferry.LogicAny,
		Rules: []ferry.Rule{
			{Type: ferry.RuleIPAddress, Condition: ferry.ConditionIs, Value: "203.0.113.0/24"},
			{Type: ferry.RuleUserID, Condition: ferry.ConditionIs, Value: "42"},
		},
	}}

	tests := []struct {
		name     string
		download *ferry.Download
		req      ferry.RequestContext
		wantErr  error
	}{
		{
			name:     "member role admitted",
			download: members,
			req:      ferry.RequestContext{User: &ferry.User{ID: "3", Roles: []string{"member"}}},
		},
		{
			name:     "anonymous refused by allow rule",
			download: members,
			wantErr:  ferry.ErrUnauthorized,
		},
		{
			name:     "address in prevented range",
			download: blocked,
			req:      ferry.RequestContext{IP: "203.0.113.7"},
			wantErr:  ferry.ErrUnauthorized,
		},
		{
			name:     "prevented user",
			download: blocked,
			req:      ferry.RequestContext{IP: "198.51.100.1", User: &ferry.User{ID: "42"}},
			wantErr:  ferry.ErrUnauthorized,
		},
		{
			name:     "other address admitted",
			download: blocked,
			req:      ferry.RequestContext{IP: "198.51.100.1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Check(ctx, tt.download, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" warning "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("whatever"))
}

func TestRenderDownloads(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(file, make([]byte, 2048), 0o600))

	var buf bytes.Buffer
	renderDownloads(&buf, []ferry.Download{
		{ID: 1, Name: "a", FileURL: file, DownloadCount: 1500, Password: "x"},
		{ID: 2, Name: "remote", FileURL: "https://cdn.example.com/b.zip", DownloadCount: 2},
	})

	out := buf.String()
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "1,502")
	assert.Contains(t, out, "password")
	assert.Contains(t, out, "remote")
}
