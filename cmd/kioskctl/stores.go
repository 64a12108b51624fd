package main

import (
	"context"
	"fmt"

	"photo-kiosk/internal/album"
	"photo-kiosk/internal/database"
	"photo-kiosk/internal/docstore"
	"photo-kiosk/internal/exifmeta"
	"photo-kiosk/internal/geocode"
	"photo-kiosk/internal/library"
	"photo-kiosk/internal/media"
	"photo-kiosk/internal/remotecache"
	"photo-kiosk/internal/startup"
	"photo-kiosk/internal/workers"
)

// stores bundles the server's stores opened over the configured data
// directory.
type stores struct {
	config  *startup.Config
	db      *database.Database
	library *library.Store
	albums  *album.Store
	cache   *remotecache.Cache
}

func openStores(ctx context.Context, workerCount int) (_ *stores, err error) {
	config, err := startup.LoadToolConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	s := &stores{config: config}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var backend docstore.Backend
	if config.StorageBackend == startup.StorageJSON {
		fb, err := docstore.NewFileBackend(config.DocumentsDir)
		if err != nil {
			return nil, err
		}
		backend = fb
	} else {
		db, err := database.New(ctx, config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.db = db
		backend = db
	}

	gen, err := media.NewGenerator(media.Config{
		ThumbnailDir: config.ThumbnailDir,
		WebDir:       config.WebDir,
		WebMaxEdge:   config.WebMaxEdge,
	})
	if err != nil {
		return nil, err
	}

	var resolver exifmeta.Resolver
	if config.GeocoderEnabled {
		resolver = geocode.New(geocode.Config{BaseURL: config.GeocoderURL, Language: config.GeocoderLanguage})
	}

	if workerCount <= 0 {
		workerCount = config.DerivativeWorkers
	}
	if workerCount <= 0 {
		workerCount = workers.ForMixed(0)
	}

	s.library, err = library.Open(ctx, library.Config{
		Dir:       config.LibraryDir,
		Backend:   backend,
		Generator: gen,
		Metadata:  exifmeta.NewExtractor(resolver),
		Pool:      workers.NewPool(workerCount, nil),
	})
	if err != nil {
		return nil, err
	}
	s.albums = album.New(album.Config{Backend: backend, Photos: s.library, Order: album.ParseOrder(config.SlideshowOrder)})
	s.cache, err = remotecache.Open(ctx, config.RemoteCacheDir, backend)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *stores) Close() {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}
