package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-kiosk/internal/album"
	"photo-kiosk/internal/database"
	"photo-kiosk/internal/docstore"
	"photo-kiosk/internal/exifmeta"
	"photo-kiosk/internal/filesystem"
	"photo-kiosk/internal/geocode"
	"photo-kiosk/internal/handlers"
	"photo-kiosk/internal/library"
	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/media"
	"photo-kiosk/internal/memory"
	"photo-kiosk/internal/metrics"
	"photo-kiosk/internal/middleware"
	"photo-kiosk/internal/migration"
	"photo-kiosk/internal/remotecache"
	"photo-kiosk/internal/remotesync"
	"photo-kiosk/internal/startup"
	"photo-kiosk/internal/workers"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Must run before large allocations.
	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics()
	filesystem.Instrument(metrics.FilesystemObserver{}, filesystem.NewVolumeResolver(map[string]string{
		"data":     config.DataDir,
		"library":  config.LibraryDir,
		"cache":    config.CacheDir,
		"database": config.DatabaseDir,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	memConfig := memory.DefaultConfig()
	memConfig.MemoryLimitBytes = memResult.GoMemLimit
	memMonitor := memory.NewMonitor(memConfig)
	memMonitor.Start()

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, falling back to pure Go decoding: %v", err)
	}

	// Document store
	dbStart := time.Now()
	backend, db, err := openBackend(ctx, config)
	if err != nil {
		startup.LogFatal("Failed to initialize document store: %v", err)
	}
	if db != nil {
		defer db.Close()
	}
	startup.LogDatabaseInit(config.StorageBackend, time.Since(dbStart))

	gen, err := media.NewGenerator(media.Config{
		ThumbnailDir: config.ThumbnailDir,
		WebDir:       config.WebDir,
		WebMaxEdge:   config.WebMaxEdge,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize derivative generator: %v", err)
	}

	var resolver exifmeta.Resolver
	if config.GeocoderEnabled {
		resolver = geocode.New(geocode.Config{
			BaseURL:  config.GeocoderURL,
			Language: config.GeocoderLanguage,
		})
	}

	poolSize := config.DerivativeWorkers
	if poolSize <= 0 {
		poolSize = workers.ForMixed(0)
	}
	pool := workers.NewPool(poolSize, memMonitor)

	lib, err := library.Open(ctx, library.Config{
		Dir:       config.LibraryDir,
		Backend:   backend,
		Generator: gen,
		Metadata:  exifmeta.NewExtractor(resolver),
		Pool:      pool,
	})
	if err != nil {
		startup.LogFatal("Failed to open library: %v", err)
	}
	albums := album.New(album.Config{
		Backend: backend,
		Photos:  lib,
		Order:   album.ParseOrder(config.SlideshowOrder),
	})
	cache, err := remotecache.Open(ctx, config.RemoteCacheDir, backend)
	if err != nil {
		startup.LogFatal("Failed to open remote cache: %v", err)
	}

	albumCount, _, err := albums.Counts(ctx)
	if err != nil {
		logging.Warn("Failed to count albums: %v", err)
	}
	startup.LogStoresLoaded(lib.Len(), albumCount, len(cache.List()))

	// Remote sync
	var scheduler *remotesync.Scheduler
	hcfg := handlers.Config{Library: lib, Albums: albums, Cache: cache}
	if config.PhotoPrism.Enabled() {
		syncCfg := remotesync.Config{
			Source: remotesync.NewPhotoPrismSource(remotesync.PhotoPrismConfig{
				URL:      config.PhotoPrism.URL,
				User:     config.PhotoPrism.User,
				Pass:     config.PhotoPrism.Pass,
				AlbumUID: config.PhotoPrism.Album,
			}),
			Cache:      cache,
			Pool:       workers.NewPool(workers.ForIO(4), memMonitor),
			QuotaBytes: config.CacheQuotaBytes,
		}
		if db != nil {
			syncCfg.Recorder = db
		}
		scheduler = remotesync.NewScheduler(remotesync.New(syncCfg), config.SyncInterval)
		hcfg.Sync = scheduler
	}
	startup.LogSyncInit(scheduler != nil, config.SyncInterval)

	h := handlers.New(hcfg)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	// Writes under /api are refused until migration has run; see RequireReady.
	go func() {
		runStartupJobs(ctx, config, lib, albums, db)
		h.SetReady(true)
		if scheduler != nil {
			scheduler.Start(ctx)
		}
	}()

	collector := metrics.NewCollector(metrics.StatsProviderFunc(func() metrics.Stats {
		if db != nil {
			db.UpdateDBMetrics()
		}
		return collectStats(ctx, lib, albums, cache)
	}), time.Minute)
	go collector.Run(ctx)

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Minute, // large multipart uploads
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, cancel, scheduler, memMonitor)
		close(shutdownDone)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownDone
	media.ShutdownVips()
}

// openBackend returns the document store selected by STORAGE_BACKEND. The
// database is nil for the JSON backend.
func openBackend(ctx context.Context, config *startup.Config) (docstore.Backend, *database.Database, error) {
	if config.StorageBackend == startup.StorageJSON {
		fb, err := docstore.NewFileBackend(config.DocumentsDir)
		if err != nil {
			return nil, nil, err
		}
		return docstore.Instrumented(fb, "json"), nil, nil
	}

	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return docstore.Instrumented(db, "sqlite"), db, nil
}

// runStartupJobs migrates legacy albums once. Failures are logged; the
// server keeps serving whatever was migrated.
func runStartupJobs(ctx context.Context, config *startup.Config, lib *library.Store, albums *album.Store, db *database.Database) {
	cfg := migration.Config{
		AlbumsDir:     config.LegacyAlbumsDir,
		ThumbnailsDir: config.LegacyThumbnailsDir,
		WebDir:        config.LegacyWebDir,
		Active:        config.LegacyActiveAlbums,
		Library:       lib,
		Albums:        albums,
	}
	if db != nil {
		cfg.Marker = db
	}

	start := time.Now()
	report, err := migration.Run(ctx, cfg)
	if err != nil {
		logging.Error("Migration failed: %v", err)
		return
	}
	if report.Skipped {
		return
	}
	logging.Info("Migration finished in %v: %d albums, %d photos migrated, %d duplicates, %d failed",
		time.Since(start).Round(time.Millisecond), report.Albums, report.Migrated, report.Duplicates, report.Failed)
	if report.PartialFailure() {
		logging.Warn("Migration completed with %d failures", report.Failed)
	}
}

func collectStats(ctx context.Context, lib *library.Store, albums *album.Store, cache *remotecache.Cache) metrics.Stats {
	libStats := lib.Stats()
	stats := metrics.Stats{
		TotalImages:  libStats.Images,
		TotalVideos:  libStats.Videos,
		LibraryBytes: libStats.Bytes,
	}
	if total, active, err := albums.Counts(ctx); err == nil {
		stats.TotalAlbums, stats.ActiveAlbums = total, active
	} else {
		logging.Warn("Failed to count albums: %v", err)
	}
	if cs, err := cache.Stats(); err == nil {
		stats.RemoteCacheEntries, stats.RemoteCacheBytes = cs.Entries, cs.Bytes
	} else {
		logging.Warn("Failed to measure remote cache: %v", err)
	}
	return stats
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Probes and version
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.RequireReady)

	// Library
	api.HandleFunc("/library/photos", h.ListPhotos).Methods("GET")
	api.HandleFunc("/library/photos", h.UploadPhotos).Methods("POST")
	api.HandleFunc("/library/photos/{id}", h.GetPhoto).Methods("GET")
	api.HandleFunc("/library/photos/{id}", h.UpdatePhoto).Methods("PUT")
	api.HandleFunc("/library/photos/{id}", h.DeletePhoto).Methods("DELETE")
	api.HandleFunc("/library/photos/{id}/rotate", h.RotatePhoto).Methods("POST")
	api.HandleFunc("/library/photos/{id}/crop", h.CropPhoto).Methods("POST")
	api.HandleFunc("/library/photos/{id}/reset", h.ResetPhoto).Methods("POST")
	api.HandleFunc("/library/files/{id}", h.ServeLibraryFile).Methods("GET", "HEAD")
	api.HandleFunc("/library/files/{id}/{variant}", h.ServeLibraryFile).Methods("GET", "HEAD")

	// Albums; the slideshow route must precede /albums/{id}
	api.HandleFunc("/albums/slideshow", h.Slideshow).Methods("GET")
	api.HandleFunc("/albums", h.ListAlbums).Methods("GET")
	api.HandleFunc("/albums", h.CreateAlbum).Methods("POST")
	api.HandleFunc("/albums/{id}", h.GetAlbum).Methods("GET")
	api.HandleFunc("/albums/{id}", h.UpdateAlbum).Methods("PUT")
	api.HandleFunc("/albums/{id}", h.DeleteAlbum).Methods("DELETE")
	api.HandleFunc("/albums/{id}/photos", h.GetAlbumPhotos).Methods("GET")
	api.HandleFunc("/albums/{id}/photos", h.AddAlbumPhotos).Methods("POST")
	api.HandleFunc("/albums/{id}/photos", h.RemoveAlbumPhotos).Methods("DELETE")

	// Remote cache
	api.HandleFunc("/remote/photos", h.ListRemotePhotos).Methods("GET")
	api.HandleFunc("/remote/photos/{id}/{variant}", h.ServeRemotePhoto).Methods("GET", "HEAD")
	api.HandleFunc("/remote/sync", h.TriggerSync).Methods("POST")
	api.HandleFunc("/remote/sync", h.GetSyncStatus).Methods("GET")
	api.HandleFunc("/remote/cache", h.ClearRemoteCache).Methods("DELETE")
	api.HandleFunc("/remote/cache/stats", h.RemoteCacheStats).Methods("GET")

	// Static files
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./static")))

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, cancel context.CancelFunc, scheduler *remotesync.Scheduler, memMonitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if scheduler != nil {
		startup.LogShutdownStep("Stopping remote sync")
		scheduler.Stop()
		startup.LogShutdownStepComplete("Remote sync stopped")
	}

	// Stops the collector and any in-flight startup migration.
	cancel()

	startup.LogShutdownStep("Stopping memory monitor")
	memMonitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
