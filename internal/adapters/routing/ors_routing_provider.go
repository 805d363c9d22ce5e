package routing

import (
	"context"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// GeocodeCache maps normalized addresses to coordinates.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}

// LegCache stores address-to-address leg metrics.
type LegCache interface {
	GetMany(ctx context.Context, origin string, destinations []string) (map[string]ports.LegResult, error)
	PutMany(ctx context.Context, origin string, results map[string]ports.LegResult) error
}

const (
	StatusOK             = "ok"
	StatusCached         = "cached"
	StatusInvalidRequest = "invalid_request"
	StatusGeocodeFailed  = "geocode_not_found"
	StatusBadResponse    = "bad_response"
)

type ORSOptions struct {
	BaseURL      string
	Profile      string
	Country      string
	HTTPClient   *http.Client
	LegCache     LegCache
	GeocodeCache GeocodeCache
}

// ORSRoutingProvider implements RoutingProvider using OpenRouteService.
//
// It coordinates:
//   - Address normalization and geocoding (deduplicated across callers)
//   - Persistent geocode and leg caching
//   - Directions for multi-stop paths, matrix for point-to-point requests
//   - External API calls with retry/backoff
//
// The provider is safe for concurrent use.
type ORSRoutingProvider struct {
	session      *http.Client
	apiKey       string
	baseURL      string
	profile      string
	country      string
	legCache     LegCache
	geocodeCache GeocodeCache
	geocodes     singleflight.Group
}

func NewORSRoutingProvider(apiKey string, opts ORSOptions) (*ORSRoutingProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	provider := &ORSRoutingProvider{
		session:      opts.HTTPClient,
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		profile:      opts.Profile,
		country:      opts.Country,
		legCache:     opts.LegCache,
		geocodeCache: opts.GeocodeCache,
	}
	if provider.session == nil {
		provider.session = &http.Client{Timeout: 10 * time.Second}
	}
	if provider.baseURL == "" {
		provider.baseURL = "https://api.openrouteservice.org"
	}
	if provider.profile == "" {
		provider.profile = "driving-car"
	}
	if provider.country == "" {
		provider.country = "US"
	}

	return provider, nil
}

// normalize ensures consistent cache keys by collapsing whitespace.
func (o *ORSRoutingProvider) normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Route returns one leg per consecutive pair of the request path, in order.
func (o *ORSRoutingProvider) Route(ctx context.Context, req ports.RouteRequest) (_ ports.RouteResult, err error) {
	defer obs.Time(ctx, "ors.Route")(&err)

	path := req.Path()
	for i, loc := range path {
		if loc.IsZero() {
			return ports.RouteResult{}, &domain.RoutingError{
				Status: StatusInvalidRequest,
				Err:    fmt.Errorf("location %d is empty", i),
			}
		}
	}

	if legs, ok := o.cachedLegs(ctx, path); ok {
		return ports.RouteResult{Legs: legs, Status: StatusCached}, nil
	}

	coords, err := o.resolve(ctx, path)
	if err != nil {
		return ports.RouteResult{}, err
	}

	var legs []ports.LegResult
	if len(path) == 2 {
		legs, err = o.fetchMatrixRow(ctx, coords[0], coords[1:])
	} else {
		legs, err = o.fetchDirections(ctx, coords)
	}
	if err != nil {
		return ports.RouteResult{}, toRoutingError(err)
	}

	if len(legs) != len(path)-1 {
		return ports.RouteResult{}, &domain.RoutingError{
			Status: StatusBadResponse,
			Err:    fmt.Errorf("ORS returned %d legs for %d locations", len(legs), len(path)),
		}
	}

	o.storeLegs(ctx, path, legs)

	return ports.RouteResult{Legs: legs, Status: StatusOK}, nil
}

// cachedLegs answers the whole path from the leg cache when every leg
// connects two addresses and all of them are cached.
func (o *ORSRoutingProvider) cachedLegs(ctx context.Context, path []domain.Location) ([]ports.LegResult, bool) {
	if o.legCache == nil {
		return nil, false
	}
	for _, loc := range path {
		if loc.Coordinates != nil {
			return nil, false
		}
	}

	legs := make([]ports.LegResult, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		from, to := o.normalize(path[i-1].Address), o.normalize(path[i].Address)
		if from == to {
			legs = append(legs, ports.LegResult{})
			continue
		}
		hits, err := o.legCache.GetMany(ctx, from, []string{to})
		if err != nil {
			log.Printf("leg cache read failed: %v", err)
			return nil, false
		}
		r, ok := hits[to]
		if !ok {
			return nil, false
		}
		legs = append(legs, r)
	}

	return legs, true
}

func (o *ORSRoutingProvider) storeLegs(ctx context.Context, path []domain.Location, legs []ports.LegResult) {
	if o.legCache == nil {
		return
	}

	byOrigin := make(map[string]map[string]ports.LegResult)
	for i := 1; i < len(path); i++ {
		if path[i-1].Coordinates != nil || path[i].Coordinates != nil {
			continue
		}
		from, to := o.normalize(path[i-1].Address), o.normalize(path[i].Address)
		if from == to {
			continue
		}
		if byOrigin[from] == nil {
			byOrigin[from] = make(map[string]ports.LegResult)
		}
		byOrigin[from][to] = legs[i-1]
	}

	for origin, results := range byOrigin {
		if err := o.legCache.PutMany(ctx, origin, results); err != nil {
			log.Printf("leg cache write failed: %v", err)
		}
	}
}

// resolve returns coordinates for every location in path, geocoding
// addresses through the persistent cache first.
func (o *ORSRoutingProvider) resolve(ctx context.Context, path []domain.Location) ([]domain.Coordinates, error) {
	needed := make([]string, 0, len(path))
	for _, loc := range path {
		if loc.Coordinates == nil {
			needed = append(needed, o.normalize(loc.Address))
		}
	}

	coords := make(map[string]domain.Coordinates, len(needed))
	if len(needed) > 0 {
		hits := make(map[string]domain.Coordinates)
		// Resolve coordinates via cache before calling ORS geocoding.
		if o.geocodeCache != nil {
			var err error
			hits, err = o.geocodeCache.GetMany(ctx, needed)
			if err != nil {
				log.Printf("geocode cache read failed: %v", err)
				hits = make(map[string]domain.Coordinates)
			}
		}

		misses := make([]string, 0, len(needed))
		for _, a := range needed {
			if _, ok := hits[a]; !ok {
				misses = append(misses, a)
			}
		}

		fresh, err := o.geocodeMany(ctx, misses)
		if err != nil {
			return nil, toRoutingError(fmt.Errorf("retrieving coordinates: %w", err))
		}

		if o.geocodeCache != nil && len(fresh) > 0 {
			if err := o.geocodeCache.PutMany(ctx, fresh); err != nil {
				log.Printf("geocode cache write failed: %v", err)
			}
		}

		for k, v := range hits {
			coords[k] = v
		}
		for k, v := range fresh {
			coords[k] = v
		}
	}

	out := make([]domain.Coordinates, 0, len(path))
	for _, loc := range path {
		if loc.Coordinates != nil {
			out = append(out, *loc.Coordinates)
			continue
		}
		c, ok := coords[o.normalize(loc.Address)]
		if !ok {
			return nil, &domain.RoutingError{
				Status: StatusGeocodeFailed,
				Err:    fmt.Errorf("missing coordinate for %q", loc.Address),
			}
		}
		out = append(out, c)
	}

	return out, nil
}

// toRoutingError carries the provider's HTTP status into the routing error.
func toRoutingError(err error) error {
	var re *domain.RoutingError
	if errors.As(err, &re) {
		return err
	}

	var he *httpStatusError
	if errors.As(err, &he) {
		return &domain.RoutingError{Status: fmt.Sprintf("http_%d", he.Code), Err: err}
	}
	if errors.Is(err, errNoGeocodeResult) {
		return &domain.RoutingError{Status: StatusGeocodeFailed, Err: err}
	}

	return &domain.RoutingError{Status: domain.RoutingStatusFailed, Err: err}
}
