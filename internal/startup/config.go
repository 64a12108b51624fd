package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"photo-kiosk/internal/logging"
)

// Document store backends.
const (
	StorageSQLite = "sqlite"
	StorageJSON   = "json"
)

const (
	defaultWebMaxEdge = 1280
	defaultOrder      = "shuffle"
)

// PhotoPrismConfig points at the remote album mirrored into the cache.
type PhotoPrismConfig struct {
	URL   string
	User  string
	Pass  string
	Album string
}

// Enabled reports whether both the server URL and the album are set.
func (p PhotoPrismConfig) Enabled() bool {
	return p.URL != "" && p.Album != ""
}

// Config is the kiosk configuration read from the environment.
type Config struct {
	DataDir         string
	LibraryDir      string
	CacheDir        string
	DatabaseDir     string
	LegacyAlbumsDir string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	StorageBackend    string
	WebMaxEdge        int
	SlideshowOrder    string
	CacheQuotaBytes   int64
	SyncInterval      time.Duration
	DerivativeWorkers int

	GeocoderEnabled  bool
	GeocoderURL      string
	GeocoderLanguage string

	PhotoPrism PhotoPrismConfig

	// LegacyActiveAlbums names the legacy album directories that were
	// shown in the slideshow before migration.
	LegacyActiveAlbums []string

	// Derived from the directories above.
	DatabasePath        string
	DocumentsDir        string
	ThumbnailDir        string
	WebDir              string
	RemoteCacheDir      string
	LegacyThumbnailsDir string
	LegacyWebDir        string
}

// LoadConfig reads the configuration for the server, logging it along
// with the system it runs on, and prepares the data directories. Values in
// a .env file fill in variables the environment leaves unset.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	loadDotEnv(true)

	section("CONFIGURATION")
	config, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	logConfig(config)

	section("DIRECTORY SETUP")
	if err := setupDirectories(config); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Geocoding:   %s", enabledString(config.GeocoderEnabled))
	logging.Info("    Remote sync: %s", enabledString(config.PhotoPrism.Enabled()))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))
	return config, nil
}

// LoadToolConfig is LoadConfig without the startup report, for command
// line tools working on the server's data.
func LoadToolConfig() (*Config, error) {
	loadDotEnv(false)
	config, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	if err := setupDirectories(config); err != nil {
		return nil, err
	}
	return config, nil
}

func loadDotEnv(announce bool) {
	err := godotenv.Load()
	switch {
	case err == nil && announce:
		logging.Info("Loaded environment from .env")
	case err != nil && !errors.Is(err, os.ErrNotExist):
		logging.Warn("Failed to read .env: %v", err)
	}
}

func configFromEnv() (*Config, error) {
	dataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("resolve DATA_DIR: %w", err)
	}

	c := &Config{
		DataDir:           dataDir,
		Port:              getEnv("PORT", "8080"),
		MetricsPort:       getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:   getEnvBool("LOG_HEALTH_CHECKS", false),
		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", StorageSQLite)),
		WebMaxEdge:        getEnvInt("WEB_MAX_EDGE", defaultWebMaxEdge),
		SlideshowOrder:    strings.ToLower(getEnv("SLIDESHOW_ORDER", defaultOrder)),
		CacheQuotaBytes:   max(int64(getEnvInt("CACHE_QUOTA_MB", 2048)), 0) << 20,
		SyncInterval:      getEnvDuration("SYNC_INTERVAL", time.Hour),
		DerivativeWorkers: getEnvInt("DERIVATIVE_WORKERS", 0),
		GeocoderEnabled:   getEnvBool("GEOCODER_ENABLED", true),
		GeocoderURL:       getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderLanguage:  getEnv("GEOCODER_LANGUAGE", "zh-CN"),
		PhotoPrism: PhotoPrismConfig{
			URL:   os.Getenv("PHOTOPRISM_URL"),
			User:  os.Getenv("PHOTOPRISM_USER"),
			Pass:  os.Getenv("PHOTOPRISM_PASS"),
			Album: os.Getenv("PHOTOPRISM_ALBUM"),
		},
		LegacyActiveAlbums: getEnvList("LEGACY_ACTIVE_ALBUMS"),
	}

	for key, dir := range map[string]*string{
		"LIBRARY_DIR":       &c.LibraryDir,
		"CACHE_DIR":         &c.CacheDir,
		"DATABASE_DIR":      &c.DatabaseDir,
		"LEGACY_ALBUMS_DIR": &c.LegacyAlbumsDir,
	} {
		def := filepath.Join(dataDir, defaultSubdirs[key])
		if *dir, err = filepath.Abs(getEnv(key, def)); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", key, err)
		}
	}

	if c.StorageBackend != StorageSQLite && c.StorageBackend != StorageJSON {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (want %s or %s)", c.StorageBackend, StorageSQLite, StorageJSON)
	}
	if c.SlideshowOrder != "shuffle" && c.SlideshowOrder != "date" {
		logging.Warn("  Invalid SLIDESHOW_ORDER %q, using %s", c.SlideshowOrder, defaultOrder)
		c.SlideshowOrder = defaultOrder
	}
	if c.WebMaxEdge <= 0 {
		logging.Warn("  Invalid WEB_MAX_EDGE %d, using %d", c.WebMaxEdge, defaultWebMaxEdge)
		c.WebMaxEdge = defaultWebMaxEdge
	}

	c.DatabasePath = filepath.Join(c.DatabaseDir, "photo-kiosk.db")
	c.DocumentsDir = filepath.Join(dataDir, "documents")
	c.ThumbnailDir = filepath.Join(dataDir, "thumbnails")
	c.WebDir = filepath.Join(dataDir, "web_images")
	c.RemoteCacheDir = filepath.Join(c.CacheDir, "remote")
	// The legacy layout kept derivatives where the library keeps them now.
	c.LegacyThumbnailsDir = c.ThumbnailDir
	c.LegacyWebDir = c.WebDir
	return c, nil
}

var defaultSubdirs = map[string]string{
	"LIBRARY_DIR":       "library",
	"CACHE_DIR":         "cache",
	"DATABASE_DIR":      "database",
	"LEGACY_ALBUMS_DIR": "albums",
}

// setupDirectories creates every writable directory and checks that it
// accepts writes. The legacy album directory is only read, so it is left
// alone.
func setupDirectories(c *Config) error {
	dirs := [][2]string{
		{"data", c.DataDir},
		{"library", c.LibraryDir},
		{"database", c.DatabaseDir},
		{"thumbnails", c.ThumbnailDir},
		{"web images", c.WebDir},
		{"remote cache", c.RemoteCacheDir},
	}
	if c.StorageBackend == StorageJSON {
		dirs = append(dirs, [2]string{"documents", c.DocumentsDir})
	}

	for _, d := range dirs {
		name, path := d[0], d[1]
		if err := prepareDir(path); err != nil {
			return fmt.Errorf("%s directory %s: %w", name, path, err)
		}
		logging.Info("  [OK] %s directory: %s", name, path)
	}

	if info, err := os.Stat(c.LegacyAlbumsDir); err == nil && info.IsDir() {
		logging.Info("  Legacy album directory found: %s", c.LegacyAlbumsDir)
	}
	return nil
}

// prepareDir creates path if needed and proves it is writable by creating
// and removing a probe file.
func prepareDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("    creating %s", path)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}
	case err != nil:
		return err
	case !info.IsDir():
		return errors.New("exists and is not a directory")
	}

	probe, err := os.CreateTemp(path, ".write-test-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		logging.Warn("failed to remove write probe %s: %v", probe.Name(), err)
	}
	return nil
}
