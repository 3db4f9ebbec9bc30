// Package geocode talks to an OpenStreetMap Nominatim instance.
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

	"leitstelle/api/internal/config"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrNoResult is returned by Search when nothing matched.
var ErrNoResult = errors.New("geocode: no result")

// Place is a reverse-geocoding result.
type Place struct {
	Address string
	City    string
	// Water is set when the coordinate lies on water or Nominatim found nothing to address.
	Water bool
}

// Client is a rate-limited, caching Nominatim client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache
	log        zerolog.Logger
}

// New builds a client from configuration.
func New(cfg config.GeocodeConfig, log zerolog.Logger) *Client {
	limit := rate.Limit(cfg.Rate)
	if cfg.Rate <= 0 {
		limit = rate.Inf
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		cache:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		log:        log.With().Str("component", "geocode").Logger(),
	}
}

type reverseResponse struct {
	Error       string            `json:"error"`
	Category    string            `json:"category"`
	Class       string            `json:"class"`
	Type        string            `json:"type"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

type searchHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Reverse resolves a coordinate to a street address.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	key := fmt.Sprintf("rev:%.4f,%.4f", lat, lon)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(Place), nil
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	var resp reverseResponse
	if err := c.get(ctx, "/reverse", q, &resp); err != nil {
		return Place{}, err
	}

	place := placeFrom(resp)
	c.cache.SetDefault(key, place)
	return place, nil
}

// Search returns the coordinates of the best match for a free-form query.
func (c *Client) Search(ctx context.Context, query string) (lat, lon float64, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, 0, ErrNoResult
	}
	key := "search:" + strings.ToLower(query)
	if cached, ok := c.cache.Get(key); ok {
		hit := cached.([2]float64)
		return hit[0], hit[1], nil
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("q", query)
	q.Set("limit", "1")

	var hits []searchHit
	if err := c.get(ctx, "/search", q, &hits); err != nil {
		return 0, 0, err
	}
	if len(hits) == 0 {
		return 0, 0, ErrNoResult
	}
	lat, err = strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode: parse lat: %w", err)
	}
	lon, err = strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode: parse lon: %w", err)
	}
	c.cache.SetDefault(key, [2]float64{lat, lon})
	return lat, lon, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("geocode: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geocode: %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("nominatim request")

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocode: %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("geocode: decode %s: %w", path, err)
	}
	return nil
}

var waterTypes = map[string]bool{
	"water":     true,
	"bay":       true,
	"strait":    true,
	"coastline": true,
	"river":     true,
	"lake":      true,
	"reservoir": true,
}

func isWater(resp reverseResponse) bool {
	class := resp.Category
	if class == "" {
		class = resp.Class
	}
	switch class {
	case "waterway", "water":
		return true
	case "natural":
		return waterTypes[resp.Type]
	}
	return resp.Type == "water"
}

func placeFrom(resp reverseResponse) Place {
	if resp.Error != "" || isWater(resp) {
		return Place{Water: true}
	}

	city := firstNonEmpty(resp.Address, "city", "town", "village", "municipality", "suburb")
	road := firstNonEmpty(resp.Address, "road", "pedestrian", "footway", "path")
	if road == "" {
		if resp.DisplayName == "" {
			return Place{City: city, Water: true}
		}
		return Place{Address: resp.DisplayName, City: city}
	}

	street := road
	if n := resp.Address["house_number"]; n != "" {
		street += " " + n
	}
	locality := strings.TrimSpace(resp.Address["postcode"] + " " + city)
	if locality == "" {
		return Place{Address: street, City: city}
	}
	return Place{Address: street + ", " + locality, City: city}
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}
