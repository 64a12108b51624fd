package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"photo-kiosk/internal/logging"
)

// LoggingConfig controls which requests reach the access log.
type LoggingConfig struct {
	// SkipPaths are never logged.
	SkipPaths []string
	// FilePrefixes are the image download routes. A slideshow fetches
	// them constantly, so they are only logged when LogFileRequests is set.
	FilePrefixes    []string
	LogFileRequests bool
	LogHealthChecks bool
}

// DefaultLoggingConfig skips image downloads and probes.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:    []string{},
		FilePrefixes: []string{"/api/library/files/", "/api/remote/photos/"},
	}
}

var probePaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

func (c LoggingConfig) skips(path string) bool {
	switch {
	case !c.LogHealthChecks && probePaths[path]:
		return true
	case hasAnyPrefix(path, c.SkipPaths):
		return true
	case !c.LogFileRequests && hasAnyPrefix(path, c.FilePrefixes):
		return true
	}
	return false
}

// Logger writes one W3C Extended Log Format line per request:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken sc(Content-Type) cs(User-Agent) cs(Referer)
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			logging.Printf("%s", accessLine(r, rec, time.Now().UTC(), time.Since(start)))
		})
	}
}

// accessLine renders the log entry. Every client supplied value goes
// through cleanField first so a request cannot forge extra log lines.
func accessLine(r *http.Request, rec *statusRecorder, at time.Time, took time.Duration) string {
	fields := []string{
		at.Format("2006-01-02"),
		at.Format("15:04:05"),
		cleanField(clientIP(r)),
		cleanField(r.Method),
		cleanField(r.URL.Path),
		orDash(cleanField(r.URL.RawQuery)),
		strconv.Itoa(rec.status),
		strconv.FormatInt(rec.written, 10),
		strconv.FormatInt(took.Milliseconds(), 10),
		orDash(quoteField(rec.Header().Get("Content-Type"))),
		orDash(quoteField(cleanField(r.Header.Get("User-Agent")))),
		orDash(cleanField(r.Header.Get("Referer"))),
	}
	return strings.Join(fields, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// cleanField turns line breaks into spaces and drops other control
// characters, including ESC, but keeps tabs.
func cleanField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20:
			return -1
		}
		return r
	}, s)
}

// quoteField wraps values containing blanks or quotes in double quotes,
// doubling any embedded quote.
func quoteField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i != -1 {
		host = host[:i]
	}
	return host
}
