package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	b, err := json.Marshal(data)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestParseJson_NoConfigFlag(t *testing.T) {
	var c Config
	c.LoadDefaults()
	want := c

	require.NoError(t, parseJson(&c, []string{"-a", ":1"}))
	assert.Equal(t, want, c)
}

func TestParseJson_OverlaysPresentFields(t *testing.T) {
	path := writeTempJSON(t, "", "config.json", map[string]any{
		"endpoint_addr_http":   ":4000",
		"access_token_expiry":  "30m",
		"refresh_token_expiry": "14d",
		"smtp_port":            2525,
		"cookie_secure":        false,
	})

	var c Config
	c.LoadDefaults()

	require.NoError(t, parseJson(&c, []string{"-config", path}))

	assert.Equal(t, ":4000", c.EndpointAddrHTTP)
	assert.Equal(t, 30*time.Minute, c.AccessTokenExpiry)
	assert.Equal(t, 14*24*time.Hour, c.RefreshTokenExpiry)
	assert.Equal(t, 2525, c.SMTPPort)
	assert.False(t, c.CookieSecure)
	// untouched
	assert.Equal(t, "accessSecret", c.AccessTokenSecret)
	assert.Equal(t, "smtp.gmail.com", c.SMTPHost)
}

func TestParseJson_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		var c Config
		err := parseJson(&c, []string{"-c", filepath.Join(t.TempDir(), "nope.json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

		var c Config
		err := parseJson(&c, []string{"-c", path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config file")
	})
}
