package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Paris", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"display_name": "Paris, Île-de-France, France",
				"lat":          "48.8566",
				"lon":          "2.3522",
				// Nominatim order: minLat, maxLat, minLon, maxLon.
				"boundingbox": []string{"48.8155", "48.9021", "2.2241", "2.4699"},
			},
			{
				// Unparseable coordinates are skipped, not fatal.
				"display_name": "Broken",
				"lat":          "not-a-number",
				"lon":          "2.0",
			},
		})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	places, err := client.Search(context.Background(), "Paris")
	require.NoError(t, err)
	require.Len(t, places, 1)

	place := places[0]
	assert.Equal(t, "Paris, Île-de-France, France", place.Name)
	assert.InDelta(t, 48.8566, place.Lat, 0.0001)
	assert.InDelta(t, 2.3522, place.Lng, 0.0001)
	require.NotNil(t, place.Box)
	assert.InDelta(t, 48.8155, place.Box.South, 0.0001)
	assert.InDelta(t, 48.9021, place.Box.North, 0.0001)
	assert.InDelta(t, 2.2241, place.Box.West, 0.0001)
	assert.InDelta(t, 2.4699, place.Box.East, 0.0001)
}

func TestSearchCaches(t *testing.T) {
	requestCount := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	_, err := client.Search(context.Background(), "Lyon")
	require.NoError(t, err)
	assert.Equal(t, 1, requestCount)

	_, err = client.Search(context.Background(), "Lyon")
	require.NoError(t, err)
	assert.Equal(t, 1, requestCount, "repeat query should be served from cache")

	_, err = client.Search(context.Background(), "Marseille")
	require.NoError(t, err)
	assert.Equal(t, 2, requestCount, "different query should reach the server")
}

func TestSearchUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	_, err := client.Search(context.Background(), "Paris")
	assert.Error(t, err)
}

func TestReverse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		json.NewEncoder(w).Encode(map[string]any{
			"display_name": "Annecy, Haute-Savoie, France",
			"lat":          "45.8992",
			"lon":          "6.1294",
			"address": map[string]string{
				"town":    "Annecy",
				"state":   "Auvergne-Rhône-Alpes",
				"country": "France",
			},
		})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	addr, err := client.Reverse(context.Background(), 45.8992, 6.1294)
	require.NoError(t, err)
	require.NotNil(t, addr)

	// "town" stands in for city on smaller places.
	assert.Equal(t, "Annecy", addr.City)
	assert.Equal(t, "Auvergne-Rhône-Alpes", addr.State)
	assert.Equal(t, "France", addr.Country)
}

func TestReverseNoAddress(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "Unable to geocode"})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	addr, err := client.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Nil(t, addr)
}
