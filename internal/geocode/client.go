// Package geocode resolves place names to coordinates and back using a
// Nominatim-compatible endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/reclaim-app/reclaim/internal/model"
)

const (
	cacheTTL       = 15 * time.Minute
	defaultLimit   = 5
	requestTimeout = 10 * time.Second
)

// Place is a geocoding result: a named point with its bounding box.
type Place struct {
	Name string     `json:"name"`
	Lat  float64    `json:"lat"`
	Lng  float64    `json:"lng"`
	Box  *model.Box `json:"box,omitempty"`
}

// Address is a reverse geocoding result.
type Address struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type cachedPlaces struct {
	places []Place
	expiry time.Time
}

type Client struct {
	client  *http.Client
	baseURL string

	cacheMu   sync.RWMutex
	cacheData map[string]cachedPlaces
}

func NewClient(baseURL string) *Client {
	return &Client{
		client: &http.Client{
			Transport: &headerTransport{Base: http.DefaultTransport},
			Timeout:   requestTimeout,
		},
		baseURL:   baseURL,
		cacheData: make(map[string]cachedPlaces),
	}
}

// headerTransport adds the headers Nominatim's usage policy requires.
type headerTransport struct {
	Base http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "reclaim/1.0 (lost-and-found geocoder)")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")
	return t.Base.RoundTrip(req)
}

// nominatimPlace mirrors Nominatim's JSON: coordinates arrive as strings and
// the bounding box as [minLat, maxLat, minLon, maxLon].
type nominatimPlace struct {
	DisplayName string            `json:"display_name"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	BoundingBox []string          `json:"boundingbox"`
	Address     *nominatimAddress `json:"address,omitempty"`
}

type nominatimAddress struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
	Country      string `json:"country"`
}

// Search resolves a free-text location to candidate places. Results are
// cached per query so typing the same city twice costs one upstream call.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	c.cacheMu.RLock()
	data, ok := c.cacheData[query]
	if ok && time.Now().Before(data.expiry) {
		c.cacheMu.RUnlock()
		return data.places, nil
	}
	c.cacheMu.RUnlock()

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	// Double check: another goroutine may have filled the entry.
	data, ok = c.cacheData[query]
	if ok && time.Now().Before(data.expiry) {
		return data.places, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(defaultLimit))

	var raw []nominatimPlace
	if err := c.get(ctx, "/search", params, &raw); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(raw))
	for _, p := range raw {
		place, err := p.toPlace()
		if err != nil {
			continue
		}
		places = append(places, place)
	}

	c.cacheData[query] = cachedPlaces{places: places, expiry: time.Now().Add(cacheTTL)}
	return places, nil
}

// Reverse resolves coordinates to an address. Nominatim spreads the locality
// across city/town/village/municipality depending on place size, so the first
// non-empty one wins.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*Address, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("format", "json")

	var raw nominatimPlace
	if err := c.get(ctx, "/reverse", params, &raw); err != nil {
		return nil, err
	}
	if raw.Address == nil {
		return nil, nil
	}

	city := raw.Address.City
	for _, alt := range []string{raw.Address.Town, raw.Address.Village, raw.Address.Municipality} {
		if city != "" {
			break
		}
		city = alt
	}

	return &Address{
		City:    city,
		State:   raw.Address.State,
		Country: raw.Address.Country,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = params.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	if resp.Header.Get("Content-Encoding") == "br" {
		resp.Body = &readCloserWrapper{Reader: brotli.NewReader(resp.Body), Closer: resp.Body}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (p nominatimPlace) toPlace() (Place, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parsing latitude %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parsing longitude %q: %w", p.Lon, err)
	}

	place := Place{Name: p.DisplayName, Lat: lat, Lng: lng}
	if len(p.BoundingBox) == 4 {
		south, err1 := strconv.ParseFloat(p.BoundingBox[0], 64)
		north, err2 := strconv.ParseFloat(p.BoundingBox[1], 64)
		west, err3 := strconv.ParseFloat(p.BoundingBox[2], 64)
		east, err4 := strconv.ParseFloat(p.BoundingBox[3], 64)
		if err1 == nil && err2 == nil && err3 == nil && err4 == nil {
			place.Box = &model.Box{South: south, West: west, North: north, East: east}
		}
	}
	return place, nil
}

type readCloserWrapper struct {
	io.Reader
	io.Closer
}

func (r *readCloserWrapper) Read(p []byte) (n int, err error) {
	return r.Reader.Read(p)
}

func (r *readCloserWrapper) Close() error {
	return r.Closer.Close()
}
