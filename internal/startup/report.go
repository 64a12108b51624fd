package startup

import (
	"cmp"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"photo-kiosk/internal/logging"
)

const rule = "------------------------------------------------------------"

// section starts a titled block of the startup log.
func section(title string, args ...interface{}) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(title, args...)
	logging.Info(rule)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func printBanner() {
	fmt.Println(rule + `
        __          __              __   _              __
   ___ / /  ___  / /____  ___ ____/ /__(_)__  ___ __ __/ /__
  / _ \/ _ \/ _ \/ __/ _ \/___/ '_/ / _ \(_-</ '_/ // /  '_/
 / .__/_//_/\___/\__/\___/   /_/\_\/_/\___/___/_/\_\\_, /_/\_\
/_/                                                /___/
` + rule)
	logging.Info("  Version:    %s (%s, built %s)", Version, Commit, BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	procs := runtime.GOMAXPROCS(0)
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs:            %d (GOMAXPROCS %d)", runtime.NumCPU(), procs)
	if procs < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if host, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", host)
		}
	}
}

func logConfig(c *Config) {
	workers := "auto"
	if c.DerivativeWorkers > 0 {
		workers = fmt.Sprint(c.DerivativeWorkers)
	}
	rows := [][2]string{
		{"DATA_DIR", c.DataDir},
		{"LIBRARY_DIR", c.LibraryDir},
		{"CACHE_DIR", c.CacheDir},
		{"DATABASE_DIR", c.DatabaseDir},
		{"LEGACY_ALBUMS_DIR", c.LegacyAlbumsDir},
		{"LEGACY_ACTIVE_ALBUMS", strings.Join(c.LegacyActiveAlbums, ",")},
		{"PORT", c.Port},
		{"METRICS_PORT", c.MetricsPort},
		{"METRICS_ENABLED", fmt.Sprint(c.MetricsEnabled)},
		{"STORAGE_BACKEND", c.StorageBackend},
		{"WEB_MAX_EDGE", fmt.Sprint(c.WebMaxEdge)},
		{"SLIDESHOW_ORDER", c.SlideshowOrder},
		{"CACHE_QUOTA_MB", fmt.Sprint(c.CacheQuotaBytes >> 20)},
		{"SYNC_INTERVAL", c.SyncInterval.String()},
		{"GEOCODER_ENABLED", fmt.Sprint(c.GeocoderEnabled)},
		{"GEOCODER_URL", c.GeocoderURL},
		{"GEOCODER_LANGUAGE", c.GeocoderLanguage},
		{"PHOTOPRISM_URL", c.PhotoPrism.URL},
		{"PHOTOPRISM_ALBUM", c.PhotoPrism.Album},
		{"DERIVATIVE_WORKERS", workers},
		{"LOG_LEVEL", logging.GetLevel().String()},
	}
	for _, row := range rows {
		if row[1] != "" {
			logging.Info("  %-21s %s", row[0]+":", row[1])
		}
	}
}

// LogDatabaseInit reports how long opening the document store took.
func LogDatabaseInit(backend string, took time.Duration) {
	section("DOCUMENT STORE INITIALIZATION")
	logging.Info("  [OK] %s backend initialized in %v", backend, took)
}

func LogStoresLoaded(photos, albums, cached int) {
	section("STORES LOADED")
	logging.Info("  Library photos:  %d", photos)
	logging.Info("  Albums:          %d", albums)
	logging.Info("  Remote cached:   %d", cached)
}

func LogSyncInit(enabled bool, interval time.Duration) {
	section("REMOTE SYNC")
	if !enabled {
		logging.Info("  Remote sync disabled (set PHOTOPRISM_URL and PHOTOPRISM_ALBUM to enable)")
		return
	}
	logging.Info("  Sync interval: %v", interval)
}

// RouteInfo is one method and path pair registered on a router.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes lists every route on router. Routes without a method
// restriction are reported with method "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})
	return routes, err
}

// LogHTTPRoutes prints the route table, grouped by API area, at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		slices.SortStableFunc(routes, func(a, b RouteInfo) int {
			return cmp.Compare(getRouteGroup(a.Path), getRouteGroup(b.Path))
		})
		logging.Debug("  Registered routes (%d total):", len(routes))
		group := "\x00"
		for _, r := range routes {
			if g := getRouteGroup(r.Path); g != group {
				group = g
				logging.Debug("  [%s]", cmp.Or(g, "root"))
			}
			logging.Debug("    %-6s %s", r.Method, r.Path)
		}
	}

	state := "OFF (set LOG_HEALTH_CHECKS=true to enable)"
	if logHealthChecks {
		state = "ON"
	}
	logging.Info("  HTTP logging enabled")
	logging.Info("    Health check logging: %s", state)
}

// getRouteGroup returns the first path segment, or "api/<area>" under /api.
func getRouteGroup(path string) string {
	first, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == "api" && rest != "" {
		area, _, _ := strings.Cut(rest, "/")
		return "api/" + area
	}
	return first
}

// ServerConfig is what LogServerStarted reports.
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Application:     http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info(rule)
}

func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received %s)", signal)
}

func LogShutdownStep(step string) { logging.Debug("  %s...", step) }

func LogShutdownStepComplete(step string) { logging.Info("  [OK] %s", step) }

func LogShutdownComplete() { logging.Info("  [OK] Shutdown complete") }

// LogFatal logs and exits with status 1.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}
