package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"photo-kiosk/internal/logging"
)

var errVipsUnavailable = errors.New("libvips not available")

// vipsState guards libvips startup. libvips cannot be started again after
// Shutdown in the same process.
var vipsState struct {
	sync.Mutex
	running bool
}

// vipsThreshold keeps libvips one step quieter than the application, so
// its info chatter only shows up at debug level.
func vipsThreshold(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelWarn:
		return vips.LogLevelError
	case logging.LevelError:
		return vips.LogLevelCritical
	}
	return vips.LogLevelWarning
}

// vipsLog forwards a libvips message to the logging package.
func vipsLog(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips starts libvips. Until it is called, and after ShutdownVips,
// large originals are shrunk with imaging instead.
func InitVips() error {
	vipsState.Lock()
	defer vipsState.Unlock()
	if vipsState.running {
		return nil
	}

	vips.LoggingSettings(vipsLog, vipsThreshold(logging.GetLevel()))
	vips.Startup(&vips.Config{
		// The worker pool provides the parallelism.
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 << 20,
		MaxCacheSize:     100,
	})
	vipsState.running = true
	logging.Info("libvips %s initialized", vips.Version)
	return nil
}

// ShutdownVips releases libvips.
func ShutdownVips() {
	vipsState.Lock()
	defer vipsState.Unlock()
	if !vipsState.running {
		return
	}
	vips.Shutdown()
	vipsState.running = false
	logging.Info("libvips shutdown complete")
}

// IsVipsAvailable reports whether InitVips has run and ShutdownVips has not.
func IsVipsAvailable() bool {
	vipsState.Lock()
	defer vipsState.Unlock()
	return vipsState.running
}

// LoadImageWithVips decodes path upright and no larger than maxEdge on its
// long side. JPEGs are shrunk during decode, which keeps huge originals
// from being fully expanded in memory.
func LoadImageWithVips(path string, maxEdge int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, errVipsUnavailable
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips load %s: %w", filepath.Base(path), err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips auto-rotate: %w", err)
	}
	if err := ref.Thumbnail(maxEdge, maxEdge, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("vips shrink: %w", err)
	}

	// High quality intermediate; derivatives are encoded again later.
	buf, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode vips output: %w", err)
	}
	logging.Debug("vips decoded %s at %dx%d", filepath.Base(path), img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}
