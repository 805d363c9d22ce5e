package routing

import (
	"context"
	"encoding/json"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memGeocodeCache struct {
	mu sync.Mutex
	m  map[string]domain.Coordinates
}

func (c *memGeocodeCache) GetMany(_ context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]domain.Coordinates)
	for _, a := range addresses {
		if v, ok := c.m[a]; ok {
			out[a] = v
		}
	}
	return out, nil
}

func (c *memGeocodeCache) PutMany(_ context.Context, results map[string]domain.Coordinates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]domain.Coordinates)
	}
	for k, v := range results {
		c.m[k] = v
	}
	return nil
}

type memLegCache struct {
	mu sync.Mutex
	m  map[string]ports.LegResult
}

func (c *memLegCache) GetMany(_ context.Context, origin string, destinations []string) (map[string]ports.LegResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]ports.LegResult)
	for _, d := range destinations {
		if v, ok := c.m[origin+"|"+d]; ok {
			out[d] = v
		}
	}
	return out, nil
}

func (c *memLegCache) PutMany(_ context.Context, origin string, results map[string]ports.LegResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]ports.LegResult)
	}
	for d, v := range results {
		c.m[origin+"|"+d] = v
	}
	return nil
}

var testGeocodes = map[string][]float64{
	"1 Home St": {-122.40, 37.70},
	"2 Oak Ave": {-122.41, 37.71},
	"3 Elm Rd":  {-122.42, 37.72},
}

type fakeORS struct {
	geocodes   atomic.Int32
	directions atomic.Int32
	matrix     atomic.Int32
	failFirst  atomic.Int32
	status     int
}

func (f *fakeORS) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /geocode/search", func(w http.ResponseWriter, r *http.Request) {
		f.geocodes.Add(1)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		c, ok := testGeocodes[r.URL.Query().Get("text")]
		features := []map[string]any{}
		if ok {
			features = append(features, map[string]any{
				"geometry": map[string]any{"coordinates": c},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"features": features})
	})
	mux.HandleFunc("POST /v2/directions/driving-car", func(w http.ResponseWriter, r *http.Request) {
		f.directions.Add(1)
		if f.failFirst.Add(-1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if f.status != 0 {
			http.Error(w, `{"error":"bad"}`, f.status)
			return
		}
		var body directionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		segments := make([]map[string]float64, 0, len(body.Coordinates)-1)
		for i := 1; i < len(body.Coordinates); i++ {
			segments = append(segments, map[string]float64{
				"distance": 1000.4 * float64(i),
				"duration": 600.6 * float64(i),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"routes": []any{map[string]any{"segments": segments}},
		})
	})
	mux.HandleFunc("POST /v2/matrix/driving-car", func(w http.ResponseWriter, r *http.Request) {
		f.matrix.Add(1)
		var body matrixRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []int{0}, body.Sources)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"distances": [][]float64{{2500}},
			"durations": [][]float64{{420}},
		})
	})
	return mux
}

func newTestProvider(t *testing.T, f *fakeORS, opts ORSOptions) *ORSRoutingProvider {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL
	p, err := NewORSRoutingProvider("test-key", opts)
	require.NoError(t, err)
	return p
}

func threeStopRequest() ports.RouteRequest {
	return ports.RouteRequest{
		Origin:      domain.AddressLocation("1 Home St"),
		Waypoints:   []domain.Location{domain.AddressLocation("2 Oak Ave")},
		Destination: domain.AddressLocation("3 Elm Rd"),
		Mode:        ports.ModeDriving,
	}
}

func TestNewORSRoutingProvider_RequiresKey(t *testing.T) {
	_, err := NewORSRoutingProvider("  ", ORSOptions{})
	require.Error(t, err)
}

func TestORSRoute_DirectionsLegsInOrder(t *testing.T) {
	f := &fakeORS{}
	p := newTestProvider(t, f, ORSOptions{})

	res, err := p.Route(context.Background(), threeStopRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, []ports.LegResult{
		{DistanceMeters: 1000, DurationSeconds: 601},
		{DistanceMeters: 2001, DurationSeconds: 1201},
	}, res.Legs)
	assert.EqualValues(t, 3, f.geocodes.Load())
	assert.EqualValues(t, 1, f.directions.Load())
	assert.EqualValues(t, 0, f.matrix.Load())
}

func TestORSRoute_PointToPointUsesMatrix(t *testing.T) {
	f := &fakeORS{}
	p := newTestProvider(t, f, ORSOptions{})

	res, err := p.Route(context.Background(), ports.RouteRequest{
		Origin:      domain.CoordinateLocation(37.705, -122.405),
		Destination: domain.AddressLocation("2 Oak Ave"),
		Mode:        ports.ModeDriving,
	})
	require.NoError(t, err)

	assert.Equal(t, []ports.LegResult{{DistanceMeters: 2500, DurationSeconds: 420}}, res.Legs)
	assert.EqualValues(t, 1, f.geocodes.Load())
	assert.EqualValues(t, 1, f.matrix.Load())
}

func TestORSRoute_CachesGeocodesAndLegs(t *testing.T) {
	f := &fakeORS{}
	gc := &memGeocodeCache{}
	lc := &memLegCache{}
	p := newTestProvider(t, f, ORSOptions{GeocodeCache: gc, LegCache: lc})

	first, err := p.Route(context.Background(), threeStopRequest())
	require.NoError(t, err)

	second, err := p.Route(context.Background(), threeStopRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusCached, second.Status)
	assert.Equal(t, first.Legs, second.Legs)
	assert.EqualValues(t, 3, f.geocodes.Load())
	assert.EqualValues(t, 1, f.directions.Load())
	assert.Len(t, gc.m, 3)
}

func TestORSRoute_RetriesTransientFailure(t *testing.T) {
	f := &fakeORS{}
	f.failFirst.Store(1)
	p := newTestProvider(t, f, ORSOptions{})

	res, err := p.Route(context.Background(), threeStopRequest())
	require.NoError(t, err)

	assert.Len(t, res.Legs, 2)
	assert.EqualValues(t, 2, f.directions.Load())
}

func TestORSRoute_ClientErrorIsRoutingError(t *testing.T) {
	f := &fakeORS{status: http.StatusBadRequest}
	p := newTestProvider(t, f, ORSOptions{})

	_, err := p.Route(context.Background(), threeStopRequest())

	var re *domain.RoutingError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "http_400", re.Status)
	assert.EqualValues(t, 1, f.directions.Load())
}

func TestORSRoute_UnknownAddress(t *testing.T) {
	f := &fakeORS{}
	p := newTestProvider(t, f, ORSOptions{})

	_, err := p.Route(context.Background(), ports.RouteRequest{
		Origin:      domain.AddressLocation("1 Home St"),
		Destination: domain.AddressLocation("99 Nowhere Ln"),
	})

	var re *domain.RoutingError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, StatusGeocodeFailed, re.Status)
}

func TestORSRoute_EmptyLocation(t *testing.T) {
	f := &fakeORS{}
	p := newTestProvider(t, f, ORSOptions{})

	_, err := p.Route(context.Background(), ports.RouteRequest{
		Origin:      domain.AddressLocation("1 Home St"),
		Destination: domain.AddressLocation(" "),
	})

	var re *domain.RoutingError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, StatusInvalidRequest, re.Status)
	assert.EqualValues(t, 0, f.geocodes.Load())
}
