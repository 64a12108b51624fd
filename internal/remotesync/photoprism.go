package remotesync

import (
	"context"
	"sync"

	"github.com/kris-nova/photoprism-client-go"
	api "github.com/kris-nova/photoprism-client-go/api/v1"

	"photo-kiosk/internal/apperr"
	"photo-kiosk/internal/logging"
)

const defaultPageSize = 500

// PhotoPrismConfig selects a PhotoPrism server and album.
type PhotoPrismConfig struct {
	URL      string
	User     string
	Pass     string
	AlbumUID string
	PageSize int
}

// PhotoPrismSource lists and downloads the photos of one PhotoPrism album.
type PhotoPrismSource struct {
	cfg    PhotoPrismConfig
	client *photoprism.Client

	mu     sync.Mutex
	authed bool
}

// NewPhotoPrismSource creates a source. The session is opened on first use.
func NewPhotoPrismSource(cfg PhotoPrismConfig) *PhotoPrismSource {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &PhotoPrismSource{
		cfg:    cfg,
		client: photoprism.New(cfg.URL),
	}
}

func (s *PhotoPrismSource) session() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authed {
		return nil
	}
	if err := s.client.Auth(photoprism.NewClientAuthLogin(s.cfg.User, s.cfg.Pass)); err != nil {
		return apperr.External("photoprism login failed", err)
	}
	s.authed = true
	logging.Debug("PhotoPrism session opened for %s", s.cfg.URL)
	return nil
}

// List returns every photo in the configured album.
func (s *PhotoPrismSource) List(ctx context.Context) ([]Item, error) {
	if err := s.session(); err != nil {
		return nil, err
	}

	var items []Item
	for offset := 0; ; offset += s.cfg.PageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		photos, err := s.client.V1().GetPhotos(&api.PhotoOptions{
			AlbumUID: s.cfg.AlbumUID,
			Count:    s.cfg.PageSize,
			Offset:   offset,
		})
		if err != nil {
			s.dropSession()
			return nil, apperr.External("photoprism photo listing failed", err)
		}
		for _, p := range photos {
			items = append(items, itemFromPhoto(p))
		}
		if len(photos) < s.cfg.PageSize {
			return items, nil
		}
	}
}

// Download fetches the original file of an item.
func (s *PhotoPrismSource) Download(ctx context.Context, item Item) ([]byte, error) {
	if err := s.session(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.client.V1().GetPhotoDownload(item.ID)
	if err != nil {
		s.dropSession()
		return nil, apperr.External("photoprism download of "+item.ID+" failed", err)
	}
	return data, nil
}

// dropSession forces a fresh login on the next call, so an expired session
// recovers on the following run.
func (s *PhotoPrismSource) dropSession() {
	s.mu.Lock()
	s.authed = false
	s.mu.Unlock()
}

func itemFromPhoto(p api.Photo) Item {
	item := Item{
		ID: p.PhotoUID,
		Metadata: remotecache.Metadata{
			Filename:    p.PhotoTitle,
			MimeType:    "image/jpeg",
			Description: p.PhotoDescription,
		},
	}
	if !p.TakenAt.IsZero() {
		item.Metadata.CaptureTime = p.TakenAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return item
}
