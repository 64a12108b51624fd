// Package geocode names GPS coordinates through a Nominatim-compatible
// reverse geocoding service. Lookups are memoized per exact coordinate
// pair and degrade to an empty name on any failure.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"photo-kiosk/internal/logging"
	"photo-kiosk/internal/metrics"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultTimeout   = 2 * time.Second
	DefaultUserAgent = "photo-kiosk"
)

// Config configures a Resolver.
type Config struct {
	BaseURL   string
	Language  string
	UserAgent string
	Timeout   time.Duration
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Resolver performs reverse lookups. It is safe for concurrent use.
type Resolver struct {
	baseURL   string
	language  string
	userAgent string
	timeout   time.Duration
	client    *http.Client
	names     *cache.Cache
}

// New returns a Resolver with defaults filled in.
func New(cfg Config) *Resolver {
	r := &Resolver{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		language:  cfg.Language,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		client:    cfg.Client,
		names:     cache.New(cache.NoExpiration, 0),
	}
	if r.baseURL == "" {
		r.baseURL = DefaultBaseURL
	}
	if r.userAgent == "" {
		r.userAgent = DefaultUserAgent
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.client == nil {
		r.client = &http.Client{}
	}
	return r
}

type reverseResponse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// errRateLimited marks a 429 response.
var errRateLimited = errors.New("rate limited")

// Resolve returns a place name for the coordinates, or "" when the service
// is unreachable, slow, rate limiting, or has no answer.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) string {
	key := cacheKey(lat, lon)
	if name, ok := r.names.Get(key); ok {
		metrics.GeocodeLookupsTotal.WithLabelValues("hit").Inc()
		return name.(string)
	}

	start := time.Now()
	name, err := r.lookup(ctx, lat, lon)
	metrics.GeocodeLookupDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if err == errRateLimited {
			metrics.GeocodeLookupsTotal.WithLabelValues("rate_limited").Inc()
		} else {
			metrics.GeocodeLookupsTotal.WithLabelValues("error").Inc()
		}
		// Failures are not memoized so a later upload can try again.
		logging.Debug("Reverse geocode %s failed: %v", key, err)
		return ""
	}

	metrics.GeocodeLookupsTotal.WithLabelValues("miss").Inc()
	r.names.Set(key, name, cache.NoExpiration)
	return name
}

func (r *Resolver) lookup(ctx context.Context, lat, lon float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	if r.language != "" {
		q.Set("accept-language", r.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", errRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if body.Error != "" {
		// Nominatim reports "Unable to geocode" for open water and the like.
		return "", nil
	}
	return placeName(body), nil
}

// placeName prefers the city, district and state components and falls back
// to the first segment of the display name.
func placeName(body reverseResponse) string {
	var parts []string
	for _, k := range []string{"city", "district", "state"} {
		if v := strings.TrimSpace(body.Address[k]); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	first, _, _ := strings.Cut(body.DisplayName, ",")
	return strings.TrimSpace(first)
}

func cacheKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'g', -1, 64) + "," + strconv.FormatFloat(lon, 'g', -1, 64)
}
