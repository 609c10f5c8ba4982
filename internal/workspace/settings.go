package workspace

import (
	"strconv"
	"strings"
	"time"

	gconfig "github.com/Laisky/go-config/v2"

	"github.com/Laisky/texpad/internal/project"
)

const (
	// PreviewPolicyPinned always previews one well-known file.
	PreviewPolicyPinned = "pinned"
	// PreviewPolicyActive previews the active tab.
	PreviewPolicyActive = "active"
)

// Settings captures runtime configuration of a workspace.
type Settings struct {
	Debounce      time.Duration
	SaveTimeout   time.Duration
	PreviewPolicy string
	PreviewFile   string
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Debounce:      DefaultDebounce,
		SaveTimeout:   DefaultSaveTimeout,
		PreviewPolicy: PreviewPolicyPinned,
		PreviewFile:   project.MainFileName,
	}
}

// LoadSettingsFromConfig reads configuration and applies safe defaults.
func LoadSettingsFromConfig() Settings {
	settings := Settings{
		Debounce:      time.Duration(intFromConfig("settings.workspace.autosave.debounce_ms", 900)) * time.Millisecond,
		SaveTimeout:   time.Duration(intFromConfig("settings.workspace.autosave.timeout_ms", 10000)) * time.Millisecond,
		PreviewPolicy: strings.ToLower(strings.TrimSpace(gconfig.S.GetString("settings.workspace.preview.policy"))),
		PreviewFile:   strings.TrimSpace(gconfig.S.GetString("settings.workspace.preview.file")),
	}

	return settings.normalized()
}

func (s Settings) normalized() Settings {
	def := DefaultSettings()
	if s.Debounce <= 0 {
		s.Debounce = def.Debounce
	}
	if s.SaveTimeout <= 0 {
		s.SaveTimeout = def.SaveTimeout
	}
	if s.PreviewPolicy != PreviewPolicyActive {
		s.PreviewPolicy = PreviewPolicyPinned
	}
	if s.PreviewFile == "" {
		s.PreviewFile = def.PreviewFile
	}
	return s
}

// intFromConfig reads an int configuration value with a default fallback.
// Strings must be plain integers, so "900ms" falls back to def.
func intFromConfig(key string, def int) int {
	switch v := gconfig.S.Get(key).(type) {
	case nil:
		return def
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return def
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}
