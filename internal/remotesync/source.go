package remotesync

import (
	"context"

	"photo-kiosk/internal/remotecache"
)

// Item is one photo offered by a Source.
type Item struct {
	ID       string
	Metadata remotecache.Metadata
}

// Source is an external photo collection.
type Source interface {
	List(ctx context.Context) ([]Item, error)
	Download(ctx context.Context, item Item) ([]byte, error)
}
