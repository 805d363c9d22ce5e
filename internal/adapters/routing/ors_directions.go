package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"
	"math"
	"net/http"
)

type directionsRequest struct {
	Coordinates  [][]float64 `json:"coordinates"`
	Instructions bool        `json:"instructions"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Segments []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"segments"`
	} `json:"routes"`
}

// fetchDirections requests one route through every coordinate in order.
// ORS returns one segment per consecutive pair of waypoints.
func (o *ORSRoutingProvider) fetchDirections(
	ctx context.Context,
	coords []domain.Coordinates,
) (_ []ports.LegResult, err error) {
	defer obs.Time(ctx, "ors.fetchDirections")(&err)

	endpoint := fmt.Sprintf("%s/v2/directions/%s", o.baseURL, o.profile)

	body := directionsRequest{Coordinates: make([][]float64, 0, len(coords))}
	for _, c := range coords {
		body.Coordinates = append(body.Coordinates, c.CoordsToList())
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Routes) == 0 {
		return nil, fmt.Errorf("directions returned no routes")
	}

	segments := dr.Routes[0].Segments
	out := make([]ports.LegResult, 0, len(segments))
	for _, s := range segments {
		out = append(out, ports.LegResult{
			DistanceMeters:  int(math.Round(s.Distance)),
			DurationSeconds: int(math.Round(s.Duration)),
		})
	}

	return out, nil
}
