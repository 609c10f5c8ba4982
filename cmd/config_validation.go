package cmd

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
)

// minJWTSecretLen matches the signer's minimum.
const minJWTSecretLen = 16

// configGetter retrieves raw configuration values by dotted key path.
type configGetter func(key string) any

// validateStartupConfig validates startup configuration from the shared config source.
func validateStartupConfig() error {
	return validateStartupConfigWithGetter(func(key string) any {
		return gconfig.S.Get(key)
	})
}

// validateStartupConfigWithGetter validates startup configuration via a key-value getter.
// Unset keys are valid, they fall back to defaults.
func validateStartupConfigWithGetter(get configGetter) error {
	if get == nil {
		return errors.New("config getter is nil")
	}

	validationErrs := make([]string, 0)

	validateWorkspaceConfig(get, &validationErrs)
	validateStoreConfig(get, &validationErrs)
	validateDBConfig(get, &validationErrs)
	validateWebConfig(get, &validationErrs)

	if len(validationErrs) == 0 {
		return nil
	}

	return errors.Errorf("invalid configuration:\n - %s", strings.Join(validationErrs, "\n - "))
}

func validateWorkspaceConfig(get configGetter, errs *[]string) {
	validateOptionalIntMin(get, "settings.workspace.autosave.debounce_ms", 1, errs)
	validateOptionalIntMin(get, "settings.workspace.autosave.timeout_ms", 1, errs)
	validateOptionalOneOf(get, "settings.workspace.preview.policy", []string{"pinned", "active"}, errs)
	validateOptionalStringNonEmpty(get, "settings.workspace.preview.file", errs)
}

// validateStoreConfig validates the backend choice and the settings it needs.
func validateStoreConfig(get configGetter, errs *[]string) {
	validateOptionalOneOf(get, "settings.store.backend", storeBackends, errs)

	backend := backendSQLite
	if raw, err := parseStrictString(get("settings.store.backend")); err == nil && strings.TrimSpace(raw) != "" {
		backend = strings.ToLower(strings.TrimSpace(raw))
	}

	switch backend {
	case backendRemote:
		validateRequiredURL(get, "settings.store.remote.url", errs)
		validateOptionalIntMin(get, "settings.store.remote.timeout_ms", 1, errs)
	case backendDir:
		validateOptionalStringNonEmpty(get, "settings.store.dir.root", errs)
	case backendSQLite:
		validateOptionalStringNonEmpty(get, "settings.store.sqlite.dsn", errs)
	case backendPostgres:
		validateRequiredString(get, "settings.db.postgres.addr", errs)
		validateRequiredString(get, "settings.db.postgres.db", errs)
	case backendMongo:
		validateRequiredString(get, "settings.db.mongo.addr", errs)
		validateRequiredString(get, "settings.db.mongo.db", errs)
	}

	validateOptionalIntMin(get, "settings.store.cache.ttl_seconds", 1, errs)
	if get("settings.store.mirror.endpoint") != nil {
		validateRequiredString(get, "settings.store.mirror.bucket", errs)
		validateOptionalBool(get, "settings.store.mirror.secure", errs)
	}
}

func validateDBConfig(get configGetter, errs *[]string) {
	validateOptionalIntMin(get, "settings.db.redis.db", 0, errs)
	validateOptionalIntMin(get, "settings.db.postgres.port", 1, errs)
}

func validateWebConfig(get configGetter, errs *[]string) {
	if raw := get("settings.web.jwt_secret"); raw != nil {
		secret, err := parseStrictString(raw)
		if err != nil || len(secret) < minJWTSecretLen {
			appendValidationError(errs, "settings.web.jwt_secret must be a string of at least %d bytes", minJWTSecretLen)
		}
	}

	validateOptionalBool(get, "settings.web.mcp.enabled", errs)
	for _, key := range []string{
		"settings.web.throttle.total_per_sec",
		"settings.web.throttle.total_burst",
		"settings.web.throttle.each_per_sec",
		"settings.web.throttle.each_burst",
	} {
		validateOptionalIntMin(get, key, 0, errs)
	}

	if raw := get("settings.web.cors_origins"); raw != nil {
		if _, err := parseStrictStringSlice(raw); err != nil {
			appendValidationError(errs, "settings.web.cors_origins must be a list of strings")
		}
	}
}

// validateOptionalBool validates an optionally configured boolean key.
func validateOptionalBool(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if _, ok := parseStrictBool(raw); !ok {
		appendValidationError(errs, "%s must be a boolean", key)
	}
}

// validateOptionalIntMin validates an optionally configured integer key with a minimum constraint.
func validateOptionalIntMin(get configGetter, key string, min int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalOneOf validates a case-insensitive enumerated string key.
func validateOptionalOneOf(get configGetter, key string, allowed []string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil || !slices.Contains(allowed, strings.ToLower(strings.TrimSpace(value))) {
		appendValidationError(errs, "%s must be one of %s", key, strings.Join(allowed, "|"))
	}
}

// validateRequiredURL validates a mandatory absolute http(s) URL key.
func validateRequiredURL(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		appendValidationError(errs, "%s is required", key)
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string URL", key)
		return
	}

	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		appendValidationError(errs, "%s must be a valid http(s) URL", key)
	}
}

// validateRequiredString validates a mandatory non-empty string key.
func validateRequiredString(get configGetter, key string, errs *[]string) {
	if get(key) == nil {
		appendValidationError(errs, "%s is required", key)
		return
	}
	validateOptionalStringNonEmpty(get, key, errs)
}

// validateOptionalStringNonEmpty validates an optionally configured non-empty string key.
func validateOptionalStringNonEmpty(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	if strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must not be empty", key)
	}
}

// parseStrictBool parses a value as boolean using strict conversion rules.
func parseStrictBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		if math.Trunc(v) != v {
			return false, false
		}
		return int64(v) != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

// parseStrictInt parses a value as a strict integer.
func parseStrictInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty integer string")
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, errors.Wrap(err, "atoi")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported int type %T", value)
	}
}

// parseStrictString parses a value as a strict string.
func parseStrictString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.Errorf("unsupported string type %T", value)
	}
}

// parseStrictStringSlice accepts a YAML list of strings or one comma separated string.
func parseStrictStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := parseStrictString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.Errorf("unsupported list type %T", value)
	}
}

// appendValidationError appends a formatted validation error to the collector.
func appendValidationError(errs *[]string, format string, args ...any) {
	if errs == nil {
		return
	}
	*errs = append(*errs, fmt.Sprintf(format, args...))
}
