package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"photo-kiosk/internal/metrics"
)

// MetricsConfig selects which requests the metrics middleware records.
type MetricsConfig struct {
	// SkipPaths are path prefixes left out of the request metrics.
	SkipPaths []string
}

// DefaultMetricsConfig leaves the scrape endpoint and probes unrecorded.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics counts and times requests. Requests are labelled with the mux
// route template when one matched, so install it with Router.Use.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasAnyPrefix(r.URL.Path, config.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.HTTPRequestsInFlight.Inc()
			start := time.Now()
			rec := record(w)
			defer func() {
				metrics.HTTPRequestsInFlight.Dec()
				route := routeTemplate(r)
				metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
				metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return normalizePath(r.URL.Path)
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return normalizePath(r.URL.Path)
	}
	return tpl
}

// Hex ids of eight or more characters, UUIDs and plain numbers.
var idSegment = regexp.MustCompile(`^([0-9a-fA-F-]{8,}|[0-9]+)$`)

// normalizePath collapses id-like segments of an unrouted path to {id}.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i := range segments {
		if idSegment.MatchString(segments[i]) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
