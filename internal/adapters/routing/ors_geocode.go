package routing

import (
	"context"
	"encoding/json"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"fmt"
	"net/http"
)

var errNoGeocodeResult = errors.New("no geocode result")

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// geocodeMany resolves addresses individually using OpenRouteService (/geocode/search).
// Concurrent lookups of the same address share one request.
func (o *ORSRoutingProvider) geocodeMany(
	ctx context.Context,
	addresses []string,
) (_ map[string]domain.Coordinates, err error) {
	out := make(map[string]domain.Coordinates, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}
	defer obs.Time(ctx, "ors.geocodeMany")(&err)

	for _, a := range addresses {
		norm := o.normalize(a)
		if _, ok := out[norm]; ok {
			continue
		}

		v, err, _ := o.geocodes.Do(norm, func() (any, error) {
			return o.geocodeOne(ctx, norm)
		})
		if err != nil {
			return nil, fmt.Errorf("geocode %q: %w", norm, err)
		}
		out[norm] = v.(domain.Coordinates)
	}

	return out, nil
}

func (o *ORSRoutingProvider) geocodeOne(ctx context.Context, address string) (domain.Coordinates, error) {
	endpoint := o.baseURL + "/geocode/search"

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := o.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", address)
		q.Set("boundary.country", o.country)
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, errNoGeocodeResult
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) < 2 {
		return domain.Coordinates{}, fmt.Errorf("invalid coordinate format for %q", address)
	}

	return domain.Coordinates{Lon: coords[0], Lat: coords[1]}, nil
}
