// Package remotecache stores photos synced from an external photo source,
// keyed by the source's media id, and keeps the cache within a byte quota.
//
// Files live under <dir>/photos/<md5(id)>_<variant>.jpg, except the
// thumbnail variant which is <dir>/thumbnails/<md5(id)>.jpg. The metadata
// map is one document in a docstore backend.
package remotecache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"photo-kiosk/internal/apperr"
	"photo-kiosk/internal/docstore"
	"photo-kiosk/internal/filesystem"
	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/metrics"
)

// Variant is a cached size of a remote photo.
type Variant string

const (
	VariantThumbnail Variant = "thumbnail"
	VariantSmall     Variant = "small"
	VariantMedium    Variant = "medium"
	VariantLarge     Variant = "large"
)

// Variants lists every variant.
var Variants = []Variant{VariantThumbnail, VariantSmall, VariantMedium, VariantLarge}

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, bool) {
	for _, v := range Variants {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// MaxEdge is the long edge a variant is rendered at.
func (v Variant) MaxEdge() int {
	switch v {
	case VariantThumbnail:
		return 200
	case VariantSmall:
		return 640
	case VariantLarge:
		return 2560
	default:
		return 1920
	}
}

// Metadata describes a remote photo.
type Metadata struct {
	Filename     string `json:"filename,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	CaptureTime  string `json:"captureTime,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Description  string `json:"description,omitempty"`
	LocationName string `json:"locationName,omitempty"`
}

// Entry is one cached remote photo.
type Entry struct {
	ExternalID string    `json:"externalId"`
	Metadata   Metadata  `json:"metadata"`
	CachedAt   time.Time `json:"cachedAt"`
	Variants   []Variant `json:"variants"`
}

func (e *Entry) has(v Variant) bool {
	for _, have := range e.Variants {
		if have == v {
			return true
		}
	}
	return false
}

// EvictionResult reports what an Evict pass removed.
type EvictionResult struct {
	Quota       int64    `json:"quota"`
	BytesBefore int64    `json:"bytesBefore"`
	BytesAfter  int64    `json:"bytesAfter"`
	Evicted     []string `json:"evicted"`
}

// Stats summarizes the cache.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Cache is the on-disk remote photo cache. All methods hold one lock, so a
// background sync and request handlers never interleave metadata updates.
type Cache struct {
	photosDir string
	thumbsDir string
	backend   docstore.Backend

	mu      sync.Mutex
	entries map[string]*Entry
}

// Open creates the cache directories and loads the metadata map.
func Open(ctx context.Context, dir string, backend docstore.Backend) (*Cache, error) {
	c := &Cache{
		photosDir: filepath.Join(dir, "photos"),
		thumbsDir: filepath.Join(dir, "thumbnails"),
		backend:   backend,
		entries:   make(map[string]*Entry),
	}
	for _, d := range []string{c.photosDir, c.thumbsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, apperr.IO("create cache directory", err)
		}
	}

	if _, err := docstore.LoadJSON(ctx, backend, docstore.KeyRemoteMetadata, &c.entries); err != nil {
		return nil, apperr.IO("load cache metadata", err)
	}
	if c.entries == nil {
		c.entries = make(map[string]*Entry)
	}
	for id, e := range c.entries {
		e.ExternalID = id
	}

	c.mu.Lock()
	c.updateMetricsLocked()
	c.mu.Unlock()
	return c, nil
}

func fileKey(externalID string) string {
	sum := md5.Sum([]byte(externalID))
	return hex.EncodeToString(sum[:])
}

// Path returns where variant v of externalID is stored.
func (c *Cache) Path(externalID string, v Variant) string {
	if v == VariantThumbnail {
		return filepath.Join(c.thumbsDir, fileKey(externalID)+".jpg")
	}
	return filepath.Join(c.photosDir, fileKey(externalID)+"_"+string(v)+".jpg")
}

// Save stores data as variant v of externalID. md, when non-nil, replaces
// the entry's metadata.
func (c *Cache) Save(ctx context.Context, externalID string, data []byte, v Variant, md *Metadata) error {
	if externalID == "" {
		return apperr.Invalid("external id is required")
	}
	if _, ok := ParseVariant(string(v)); !ok {
		return apperr.Invalid("unknown variant %q", v)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := filesystem.WriteFileAtomic(c.Path(externalID, v), data, 0o644); err != nil {
		return apperr.IO("write cached photo", err)
	}

	e, ok := c.entries[externalID]
	if !ok {
		e = &Entry{ExternalID: externalID}
		c.entries[externalID] = e
	}
	if !e.has(v) {
		e.Variants = append(e.Variants, v)
	}
	if md != nil {
		e.Metadata = *md
	}
	e.CachedAt = time.Now().UTC()

	if err := c.saveLocked(ctx); err != nil {
		return err
	}
	c.updateMetricsLocked()
	return nil
}

// Get returns the bytes of variant v of externalID.
func (c *Cache) Get(externalID string, v Variant) ([]byte, error) {
	data, err := os.ReadFile(c.Path(externalID, v))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("%s of %s not cached", v, externalID)
	}
	if err != nil {
		return nil, apperr.IO("read cached photo", err)
	}
	return data, nil
}

// Exists reports whether variant v of externalID is on disk.
func (c *Cache) Exists(externalID string, v Variant) bool {
	return filesystem.FileExists(c.Path(externalID, v))
}

// Metadata returns the entry for externalID.
func (c *Cache) Metadata(externalID string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[externalID]
	if !ok {
		return nil, apperr.NotFound("remote photo %s not cached", externalID)
	}
	out := *e
	out.Variants = append([]Variant(nil), e.Variants...)
	return &out, nil
}

// List returns every entry, most recently cached first.
func (c *Cache) List() []Entry {
	c.mu.Lock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		cp := *e
		cp.Variants = append([]Variant(nil), e.Variants...)
		out = append(out, cp)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CachedAt.Equal(out[j].CachedAt) {
			return out[i].CachedAt.After(out[j].CachedAt)
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out
}

// TotalBytes sums the size of every file in the cache directories.
func (c *Cache) TotalBytes() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytesLocked()
}

// Stats returns the entry count and byte total.
func (c *Cache) Stats() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total, err := c.totalBytesLocked()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Entries: len(c.entries), Bytes: total}, nil
}

func (c *Cache) totalBytesLocked() (int64, error) {
	var total int64
	for _, dir := range []string{c.photosDir, c.thumbsDir} {
		err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.Type().IsRegular() {
				info, err := d.Info()
				if err != nil {
					return nil
				}
				total += info.Size()
			}
			return nil
		})
		if err != nil {
			return 0, apperr.IO("measure cache", err)
		}
	}
	return total, nil
}

// ClearAll removes every cached file and the metadata map.
func (c *Cache) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, dir := range []string{c.photosDir, c.thumbsDir} {
		if err := os.RemoveAll(dir); err != nil {
			return apperr.IO("clear cache", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.IO("clear cache", err)
		}
	}
	c.entries = make(map[string]*Entry)
	if err := c.saveLocked(ctx); err != nil {
		return err
	}
	c.updateMetricsLocked()
	logging.Info("Remote cache cleared")
	return nil
}

// Evict brings the cache at or below quota bytes. Entries with a medium
// variant are removed oldest medium first, every variant at once together
// with the metadata entry. Entries without a medium variant are never
// evicted.
func (c *Cache) Evict(ctx context.Context, quota int64) (EvictionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total, err := c.totalBytesLocked()
	if err != nil {
		return EvictionResult{}, err
	}
	res := EvictionResult{Quota: quota, BytesBefore: total, BytesAfter: total, Evicted: []string{}}
	if total <= quota {
		return res, nil
	}

	type candidate struct {
		id    string
		mtime time.Time
	}
	var candidates []candidate
	for id := range c.entries {
		info, err := os.Stat(c.Path(id, VariantMedium))
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{id: id, mtime: info.ModTime()})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].mtime.Equal(candidates[j].mtime) {
			return candidates[i].mtime.Before(candidates[j].mtime)
		}
		return candidates[i].id < candidates[j].id
	})

	var freed int64
	for _, cand := range candidates {
		if total <= quota {
			break
		}
		for _, v := range Variants {
			p := c.Path(cand.id, v)
			info, err := os.Stat(p)
			if err != nil {
				continue
			}
			if err := os.Remove(p); err != nil {
				logging.Warn("Evicting %s: %v", p, err)
				continue
			}
			total -= info.Size()
			freed += info.Size()
		}
		delete(c.entries, cand.id)
		res.Evicted = append(res.Evicted, cand.id)
	}
	res.BytesAfter = total

	if len(res.Evicted) > 0 {
		if err := c.saveLocked(ctx); err != nil {
			return res, err
		}
		metrics.RemoteCacheEvictionsTotal.Add(float64(len(res.Evicted)))
		metrics.RemoteCacheEvictedBytesTotal.Add(float64(freed))
	}
	c.updateMetricsLocked()

	if total > quota {
		logging.Warn("Remote cache still over quota after eviction: %d > %d bytes", total, quota)
	}
	logging.Info("Evicted %d remote photos, cache %d -> %d bytes (quota %d)", len(res.Evicted), res.BytesBefore, res.BytesAfter, quota)
	return res, nil
}

func (c *Cache) saveLocked(ctx context.Context) error {
	if err := docstore.SaveJSON(ctx, c.backend, docstore.KeyRemoteMetadata, c.entries); err != nil {
		return apperr.IO("save cache metadata", err)
	}
	return nil
}

func (c *Cache) updateMetricsLocked() {
	metrics.RemoteCacheEntries.Set(float64(len(c.entries)))
	if total, err := c.totalBytesLocked(); err == nil {
		metrics.RemoteCacheBytes.Set(float64(total))
	}
}
