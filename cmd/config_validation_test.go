package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidateStartupConfigWithGetterEmpty verifies empty configuration passes validation.
func TestValidateStartupConfigWithGetterEmpty(t *testing.T) {
	err := validateStartupConfigWithGetter(newMapConfigGetter(map[string]any{}))
	require.NoError(t, err)
}

func TestValidateStartupConfigWithGetterNil(t *testing.T) {
	require.Error(t, validateStartupConfigWithGetter(nil))
}

// TestValidateStartupConfigWithGetterInvalidWorkspace verifies autosave and preview settings are checked.
func TestValidateStartupConfigWithGetterInvalidWorkspace(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"workspace": map[string]any{
				"autosave": map[string]any{
					"debounce_ms": 0,
					"timeout_ms":  "soon",
				},
				"preview": map[string]any{
					"policy": "random",
					"file":   " ",
				},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	for _, key := range []string{
		"settings.workspace.autosave.debounce_ms",
		"settings.workspace.autosave.timeout_ms",
		"settings.workspace.preview.policy",
		"settings.workspace.preview.file",
	} {
		require.Contains(t, err.Error(), key)
	}
}

// TestValidateStartupConfigWithGetterUnknownBackend verifies the backend enum.
func TestValidateStartupConfigWithGetterUnknownBackend(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"store": map[string]any{"backend": "cassandra"},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.store.backend")
}

// TestValidateStartupConfigWithGetterRemoteNeedsURL verifies backend specific requirements.
func TestValidateStartupConfigWithGetterRemoteNeedsURL(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"store": map[string]any{"backend": "Remote"},
		},
	}
	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.store.remote.url is required")

	cfg["settings"].(map[string]any)["store"] = map[string]any{
		"backend": "remote",
		"remote":  map[string]any{"url": "ftp://files.example.com"},
	}
	err = validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.store.remote.url must be a valid http(s) URL")

	cfg = map[string]any{
		"settings": map[string]any{
			"store": map[string]any{"backend": "postgres"},
		},
	}
	err = validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.db.postgres.addr is required")
}

// TestValidateStartupConfigWithGetterInvalidWeb verifies jwt secret length and cors origins.
func TestValidateStartupConfigWithGetterInvalidWeb(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"web": map[string]any{
				"jwt_secret":   "short",
				"cors_origins": 42,
				"mcp":          map[string]any{"enabled": "maybe"},
				"throttle":     map[string]any{"each_burst": -1},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.web.jwt_secret")
	require.Contains(t, err.Error(), "settings.web.cors_origins")
	require.Contains(t, err.Error(), "settings.web.mcp.enabled")
	require.Contains(t, err.Error(), "settings.web.throttle.each_burst")
}

// TestValidateStartupConfigWithGetterValidConfig verifies a complete configuration passes.
func TestValidateStartupConfigWithGetterValidConfig(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"workspace": map[string]any{
				"autosave": map[string]any{"debounce_ms": 900, "timeout_ms": "10000"},
				"preview":  map[string]any{"policy": "Active", "file": "main.tex"},
			},
			"store": map[string]any{
				"backend": "remote",
				"remote":  map[string]any{"url": "https://texpad.example.com", "timeout_ms": 5000},
				"cache":   map[string]any{"ttl_seconds": 60},
				"mirror":  map[string]any{"endpoint": "s3.example.com", "bucket": "texpad", "secure": "yes"},
			},
			"db": map[string]any{
				"redis": map[string]any{"db": 0},
			},
			"web": map[string]any{
				"jwt_secret":   "0123456789abcdef",
				"cors_origins": []any{".example.com", "localhost"},
				"mcp":          map[string]any{"enabled": true},
				"throttle":     map[string]any{"total_per_sec": 100, "total_burst": 200},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.NoError(t, err)
}

func TestParseStrictStringSlice(t *testing.T) {
	got, err := parseStrictStringSlice(" a.com, ,b.com ")
	require.NoError(t, err)
	require.Equal(t, []string{"a.com", "b.com"}, got)

	_, err = parseStrictStringSlice([]any{"a", 1})
	require.Error(t, err)
}

// newMapConfigGetter builds a dotted-path getter for nested map-based test configuration.
func newMapConfigGetter(root map[string]any) configGetter {
	return func(key string) any {
		if key == "" {
			return nil
		}

		parts := strings.Split(key, ".")
		var current any = root
		for _, part := range parts {
			nextMap, ok := current.(map[string]any)
			if !ok {
				return nil
			}

			next, exists := nextMap[part]
			if !exists {
				return nil
			}
			current = next
		}

		return current
	}
}
