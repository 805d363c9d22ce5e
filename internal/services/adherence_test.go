package services

import (
	"context"
	"errors"
	"field-route-service/internal/adapters/routing"
	"field-route-service/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixNear = domain.PositionFix{Lat: 33.45, Lng: -112.07}

const fixKey = "@33.4500,-112.0700"

func planFor(t *testing.T, stops []domain.Stop) *domain.RouteTimeline {
	t.Helper()
	tl, err := ProjectTimeline(context.Background(), ProjectRequest{
		Date:        testDay,
		Stops:       stops,
		HomeAddress: home,
	}, workedExampleProvider())
	require.NoError(t, err)
	return tl
}

func classify(t *testing.T, now string, travelMin int, stops []domain.Stop) (*domain.AdherenceStatus, *routing.MockRoutingProvider, error) {
	t.Helper()
	provider := routing.NewMockRoutingProvider([]routing.MockPair{
		{From: fixKey, To: "A", Seconds: travelMin * 60},
		{From: fixKey, To: "B", Seconds: travelMin * 60},
		{From: fixKey, To: home, Seconds: travelMin * 60},
	})
	status, err := ClassifyAdherence(context.Background(), ClassifyRequest{
		Position:    fixNear,
		Timeline:    planFor(t, stops),
		Stops:       stops,
		HomeAddress: home,
		Now:         at(now),
	}, provider)
	return status, provider, err
}

func TestClassifyAdherence_States(t *testing.T) {
	stops := sequenced(stop("a", "A", "09:00", 60), stop("b", "B", "10:30", 45))

	cases := []struct {
		name      string
		now       string
		travelMin int
		target    string
		state     domain.AdherenceState
		delta     int
	}{
		{"behind", "08:30", 40, "a", domain.AdherenceBehind, 10},
		{"ahead", "08:30", 20, "a", domain.AdherenceAhead, 10},
		{"on time", "08:30", 30, "a", domain.AdherenceOnTime, 0},
		{"window edge is on time", "08:30", 35, "a", domain.AdherenceOnTime, 5},
		{"just past window", "08:30", 36, "a", domain.AdherenceBehind, 6},
		{"next stop after first started", "09:30", 70, "b", domain.AdherenceBehind, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, provider, err := classify(t, tc.now, tc.travelMin, stops)
			require.NoError(t, err)
			require.NotNil(t, status)

			assert.Equal(t, tc.target, status.TargetStopID)
			assert.Equal(t, tc.state, status.State)
			assert.Equal(t, tc.delta, status.DeltaMinutes)
			assert.Equal(t, at(tc.now).Add(time.Duration(tc.travelMin)*time.Minute), status.EstimatedArrivalAtTarget)
			assert.Equal(t, 1, provider.Calls())

			req := provider.Requests()[0]
			assert.NotNil(t, req.Origin.Coordinates)
			assert.Empty(t, req.Waypoints)
		})
	}
}

func TestClassifyAdherence_FallsBackToHome(t *testing.T) {
	stops := sequenced(stop("a", "A", "09:00", 60), stop("b", "B", "10:30", 45))

	status, _, err := classify(t, "12:00", 25, stops)
	require.NoError(t, err)
	require.NotNil(t, status)

	assert.Equal(t, domain.HomeTargetID, status.TargetStopID)
	assert.Equal(t, home, status.TargetAddress)
	assert.Equal(t, domain.AdherenceOnTime, status.State)
	assert.Equal(t, 0, status.DeltaMinutes)
}

func TestClassifyAdherence_UnscheduledTargetIsOnTime(t *testing.T) {
	stops := sequenced(stop("a", "A", "09:00", 60), stop("b", "B", "", 45))

	// b's projected arrival is 10:15.
	status, _, err := classify(t, "09:45", 90, stops)
	require.NoError(t, err)
	require.NotNil(t, status)

	assert.Equal(t, "b", status.TargetStopID)
	assert.Equal(t, domain.AdherenceOnTime, status.State)
}

func TestClassifyAdherence_NoTarget(t *testing.T) {
	stops := sequenced(stop("a", "A", "09:00", 60))
	provider := routing.NewMockRoutingProvider(nil)

	status, err := ClassifyAdherence(context.Background(), ClassifyRequest{
		Position: fixNear,
		Timeline: planFor(t, stops),
		Stops:    stops,
		Now:      at("11:00"),
	}, provider)

	require.NoError(t, err)
	assert.Nil(t, status)
	assert.Equal(t, 0, provider.Calls())
}

func TestClassifyAdherence_ProviderError(t *testing.T) {
	stops := sequenced(stop("a", "A", "09:00", 60))
	provider := routing.NewMockRoutingProvider(nil)
	provider.Err = errors.New("timeout")

	_, err := ClassifyAdherence(context.Background(), ClassifyRequest{
		Position: fixNear,
		Timeline: planFor(t, stops),
		Stops:    stops,
		Now:      at("08:00"),
	}, provider)

	var re *domain.RoutingError
	require.ErrorAs(t, err, &re)
}

func TestSelectTarget_SkipsErroredStops(t *testing.T) {
	stops := sequenced(stop("a", "", "09:00", 60), stop("b", "B", "10:30", 45))
	tl := &domain.RouteTimeline{
		Date: testDay,
		Entries: []domain.TimelineEntry{
			{StopID: "a", Err: &domain.InputError{StopID: "a"}},
			{StopID: "b", EstimatedArrival: at("10:30")},
		},
	}

	target, ok := selectTarget(ClassifyRequest{Timeline: tl, Stops: stops}, at("08:00"))
	require.True(t, ok)
	assert.Equal(t, "b", target.id)
}

func TestClassifyAdherence_DuplicateStopIDs(t *testing.T) {
	// Both stops share an id; the second is unscheduled and projected at 11:15.
	stops := sequenced(stop("x", "A", "09:00", 120), stop("x", "B", "", 45))

	status, _, err := classify(t, "10:00", 30, stops)
	require.NoError(t, err)
	require.NotNil(t, status)

	assert.Equal(t, "x", status.TargetStopID)
	assert.Equal(t, "B", status.TargetAddress)
	assert.Equal(t, domain.AdherenceOnTime, status.State)
}

func TestSelectTarget_MisalignedTimelineSkipsUnscheduled(t *testing.T) {
	stops := sequenced(stop("a", "A", "", 60), stop("b", "B", "10:30", 45))
	tl := &domain.RouteTimeline{
		Date:    testDay,
		Entries: []domain.TimelineEntry{{StopID: "a", EstimatedArrival: at("09:00")}},
	}

	target, ok := selectTarget(ClassifyRequest{Timeline: tl, Stops: stops}, at("08:00"))
	require.True(t, ok)
	assert.Equal(t, "b", target.id)
}
