package startup

import (
	"os"
	"strconv"
	"strings"
	"time"

	"photo-kiosk/internal/logging"
)

// envValue parses key with parse, returning def when the variable is unset
// or when the parsed value fails ok. Rejected values are logged.
func envValue[T any](key string, def T, parse func(string) (T, error), ok func(T) bool) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil || (ok != nil && !ok(v)) {
		logging.Warn("Ignoring %s=%q, using default %v", key, raw, def)
		return def
	}
	return v
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	return envValue(key, def, strconv.ParseBool, nil)
}

func getEnvInt(key string, def int) int {
	return envValue(key, def, strconv.Atoi, nil)
}

// getEnvDuration only accepts positive durations.
func getEnvDuration(key string, def time.Duration) time.Duration {
	return envValue(key, def, time.ParseDuration, func(d time.Duration) bool { return d > 0 })
}

// getEnvList splits a comma separated variable, dropping blank items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
