package services

import (
	"context"
	"errors"
	"field-route-service/internal/adapters/routing"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const home = "100 Home Base Rd"

func workedExampleProvider() *routing.MockRoutingProvider {
	return routing.NewMockRoutingProvider([]routing.MockPair{
		{From: home, To: "A", Seconds: 20 * 60, Meters: 15000},
		{From: "A", To: "B", Seconds: 15 * 60, Meters: 9000},
		{From: "B", To: home, Seconds: 25 * 60, Meters: 20000},
	})
}

func TestProjectTimeline_WorkedExample(t *testing.T) {
	provider := workedExampleProvider()
	req := ProjectRequest{
		Date:        testDay,
		Stops:       sequenced(stop("a", "A", "09:00", 60), stop("b", "B", "10:30", 45)),
		HomeAddress: home,
	}

	tl, err := ProjectTimeline(context.Background(), req, provider)
	require.NoError(t, err)
	require.Len(t, tl.Entries, 2)
	assert.Equal(t, 1, provider.Calls())

	require.NotNil(t, tl.LeaveHomeBy)
	assert.Equal(t, at("08:40"), *tl.LeaveHomeBy)

	a := tl.Entries[0]
	assert.Equal(t, at("09:00"), a.EstimatedArrival)
	assert.Equal(t, domain.EntryOnTime, a.Status)
	assert.Equal(t, at("10:00"), a.EstimatedDeparture)
	require.NotNil(t, a.Travel)
	assert.Equal(t, 20*60, a.Travel.DurationSeconds)

	b := tl.Entries[1]
	assert.Equal(t, at("10:15"), b.EstimatedArrival)
	// delta is exactly -15 minutes: the window is exclusive.
	assert.Equal(t, domain.EntryOnTime, b.Status)
	assert.Equal(t, 0, b.DelayMinutes)
	assert.Equal(t, at("10:30"), b.ActualStart)
	assert.Equal(t, at("11:15"), b.EstimatedDeparture)

	require.NotNil(t, tl.HomeArrival)
	assert.Equal(t, at("11:40"), *tl.HomeArrival)
	assert.Equal(t, 60*60, tl.TotalDriveSeconds)
	assert.Equal(t, 44000, tl.TotalDistanceMeters)
	assert.Len(t, tl.Legs, 3)

	r := provider.Requests()[0]
	assert.Equal(t, home, r.Origin.Address)
	assert.Equal(t, home, r.Destination.Address)
	require.Len(t, r.Waypoints, 2)
	assert.Equal(t, "A", r.Waypoints[0].Address)
	assert.Equal(t, "B", r.Waypoints[1].Address)
}

func TestProjectTimeline_BeyondWindowIsEarlyOrLate(t *testing.T) {
	provider := routing.NewMockRoutingProvider([]routing.MockPair{
		{From: "A", To: "B", Seconds: 14 * 60},
		{From: "B", To: "C", Seconds: 60 * 60},
	})
	tl, err := ProjectTimeline(context.Background(), ProjectRequest{
		Date: testDay,
		Stops: sequenced(
			stop("a", "A", "09:00", 60),
			stop("b", "B", "10:30", 30),  // raw 10:14, delta -16
			stop("c", "C", "11:30", 30)), // raw 12:00, delta +30
	}, provider)
	require.NoError(t, err)

	assert.Equal(t, domain.EntryEarly, tl.Entries[1].Status)
	assert.Equal(t, 16, tl.Entries[1].DelayMinutes)
	assert.Equal(t, domain.EntryLate, tl.Entries[2].Status)
	assert.Equal(t, 30, tl.Entries[2].DelayMinutes)
	assert.Equal(t, at("12:30"), tl.Entries[2].EstimatedDeparture)
}

func TestProjectTimeline_ZeroTravelMatchesSchedule(t *testing.T) {
	provider := routing.NewMockRoutingProvider([]routing.MockPair{
		{From: home, To: "A"}, {From: "A", To: "B"}, {From: "B", To: "C"}, {From: "C", To: home},
	})
	// Each stop starts when the previous one ends.
	stops := sequenced(
		stop("a", "A", "08:00", 60),
		stop("b", "B", "09:00", 90),
		stop("c", "C", "10:30", 30),
	)

	tl, err := ProjectTimeline(context.Background(), ProjectRequest{Date: testDay, Stops: stops, HomeAddress: home}, provider)
	require.NoError(t, err)

	for i, e := range tl.Entries {
		sched := stops[i].ScheduledTime.On(testDay)
		assert.Equal(t, sched, e.EstimatedArrival, e.StopID)
		assert.Equal(t, sched, e.ActualStart, e.StopID)
		assert.Equal(t, domain.EntryOnTime, e.Status, e.StopID)
	}
}

func TestProjectTimeline_Idempotent(t *testing.T) {
	provider := workedExampleProvider()
	req := ProjectRequest{
		Date:        testDay,
		Stops:       sequenced(stop("a", "A", "09:00", 60), stop("b", "B", "10:30", 45)),
		HomeAddress: home,
	}

	first, err := ProjectTimeline(context.Background(), req, provider)
	require.NoError(t, err)
	second, err := ProjectTimeline(context.Background(), req, provider)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestProjectTimeline_DelaysOnlyPropagateForward(t *testing.T) {
	provider := routing.NewMockRoutingProvider([]routing.MockPair{
		{From: "A", To: "B", Seconds: 90 * 60},
		{From: "B", To: "C", Seconds: 10 * 60},
		{From: "C", To: "D", Seconds: 10 * 60},
	})
	base := sequenced(
		stop("a", "A", "09:00", 60),
		stop("b", "B", "10:00", 60),
		stop("c", "C", "16:00", 30),
	)

	tl, err := ProjectTimeline(context.Background(), ProjectRequest{Date: testDay, Stops: base}, provider)
	require.NoError(t, err)

	for i := 1; i < len(tl.Entries); i++ {
		e := tl.Entries[i]
		assert.False(t, e.ActualStart.Before(e.EstimatedArrival), e.StopID)
		assert.False(t, e.EstimatedArrival.Before(tl.Entries[i-1].EstimatedDeparture), e.StopID)
	}
	assert.Equal(t, domain.EntryLate, tl.Entries[1].Status)
	assert.Equal(t, at("16:00"), tl.Entries[2].ActualStart)

	// Appending a stop never changes earlier entries.
	extended := append(append([]domain.Stop{}, base...), stop("d", "D", "17:00", 30))
	tl2, err := ProjectTimeline(context.Background(), ProjectRequest{Date: testDay, Stops: sequenced(extended...)}, provider)
	require.NoError(t, err)
	for i := range tl.Entries {
		assert.Equal(t, tl.Entries[i], tl2.Entries[i])
	}
}

func TestProjectTimeline_EmptyInputSkipsProvider(t *testing.T) {
	provider := workedExampleProvider()

	tl, err := ProjectTimeline(context.Background(), ProjectRequest{Date: testDay, HomeAddress: home}, provider)
	require.NoError(t, err)

	assert.Empty(t, tl.Entries)
	assert.Nil(t, tl.LeaveHomeBy)
	assert.Nil(t, tl.HomeArrival)
	assert.Equal(t, 0, provider.Calls())
}

func TestProjectTimeline_SingleStopNoHome(t *testing.T) {
	provider := workedExampleProvider()

	tl, err := ProjectTimeline(context.Background(), ProjectRequest{
		Date:  testDay,
		Stops: sequenced(stop("a", "A", "09:00", 60)),
	}, provider)
	require.NoError(t, err)

	require.Len(t, tl.Entries, 1)
	assert.Nil(t, tl.Entries[0].Travel)
	assert.Nil(t, tl.LeaveHomeBy)
	assert.Nil(t, tl.HomeArrival)
	assert.Equal(t, at("09:00"), tl.Entries[0].EstimatedArrival)
	assert.Equal(t, at("10:00"), tl.Entries[0].EstimatedDeparture)
	assert.Equal(t, 0, provider.Calls())
}

func TestProjectTimeline_UnscheduledFirstStopUsesDayStart(t *testing.T) {
	provider := routing.NewMockRoutingProvider([]routing.MockPair{
		{From: home, To: "A", Seconds: 30 * 60},
		{From: "A", To: home, Seconds: 30 * 60},
	})
	start := domain.MustClock("07:00")

	tl, err := ProjectTimeline(context.Background(), ProjectRequest{
		Date:        testDay,
		Stops:       sequenced(stop("a", "A", "", 60)),
		HomeAddress: home,
		DayStart:    &start,
	}, provider)
	require.NoError(t, err)

	assert.Nil(t, tl.LeaveHomeBy)
	assert.Equal(t, at("07:30"), tl.Entries[0].EstimatedArrival)
	assert.Equal(t, domain.EntryOnTime, tl.Entries[0].Status)
	require.NotNil(t, tl.HomeArrival)
	assert.Equal(t, at("09:00"), *tl.HomeArrival)
}

func TestProjectTimeline_ProviderFailure(t *testing.T) {
	provider := workedExampleProvider()
	provider.Err = &domain.RoutingError{Status: "http_403", Err: errors.New("quota")}

	tl, err := ProjectTimeline(context.Background(), ProjectRequest{
		Date:        testDay,
		Stops:       sequenced(stop("a", "A", "09:00", 60)),
		HomeAddress: home,
	}, provider)

	assert.Nil(t, tl)
	var re *domain.RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "http_403", re.Status)
}

func TestProjectTimeline_PlainErrorBecomesRoutingError(t *testing.T) {
	provider := workedExampleProvider()
	provider.Err = errors.New("connection reset")

	_, err := ProjectTimeline(context.Background(), ProjectRequest{
		Date:        testDay,
		Stops:       sequenced(stop("a", "A", "09:00", 60)),
		HomeAddress: home,
	}, provider)

	var re *domain.RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domain.RoutingStatusFailed, re.Status)
}

type shortProvider struct{}

func (shortProvider) Route(_ context.Context, req ports.RouteRequest) (ports.RouteResult, error) {
	return ports.RouteResult{Legs: []ports.LegResult{{DurationSeconds: 60}}}, nil
}

func TestProjectTimeline_MissingLeg(t *testing.T) {
	_, err := ProjectTimeline(context.Background(), ProjectRequest{
		Date:        testDay,
		Stops:       sequenced(stop("a", "A", "09:00", 60), stop("b", "B", "10:00", 60)),
		HomeAddress: home,
	}, shortProvider{})

	var re *domain.RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domain.RoutingStatusMissingLeg, re.Status)
}

func TestProjectTimeline_AddresslessStopKeepsItsEntry(t *testing.T) {
	provider := routing.NewMockRoutingProvider([]routing.MockPair{
		{From: home, To: "A", Seconds: 20 * 60},
		{From: "A", To: "C", Seconds: 10 * 60},
		{From: "C", To: home, Seconds: 20 * 60},
	})

	tl, err := ProjectTimeline(context.Background(), ProjectRequest{
		Date: testDay,
		Stops: sequenced(
			stop("a", "A", "09:00", 60),
			stop("b", "", "10:00", 30),
			stop("c", "C", "", 30),
		),
		HomeAddress: home,
	}, provider)
	require.NoError(t, err)
	require.Len(t, tl.Entries, 3)

	b := tl.Entries[1]
	require.NotNil(t, b.Err)
	assert.Equal(t, "b", b.Err.StopID)
	assert.Equal(t, at("10:00"), b.EstimatedArrival)
	assert.Equal(t, b.EstimatedArrival, b.EstimatedDeparture)

	c := tl.Entries[2]
	assert.Nil(t, c.Err)
	assert.Equal(t, at("10:10"), c.EstimatedArrival)
	assert.Len(t, tl.Legs, 3)
}

func TestProjectTimeline_CustomWindow(t *testing.T) {
	provider := routing.NewMockRoutingProvider([]routing.MockPair{{From: "A", To: "B", Seconds: 20 * 60}})

	tl, err := ProjectTimeline(context.Background(), ProjectRequest{
		Date:       testDay,
		Stops:      sequenced(stop("a", "A", "09:00", 60), stop("b", "B", "10:10", 30)),
		PlanWindow: 5 * time.Minute,
	}, provider)
	require.NoError(t, err)

	assert.Equal(t, domain.EntryLate, tl.Entries[1].Status)
	assert.Equal(t, 10, tl.Entries[1].DelayMinutes)
}

func TestRoundMinutes(t *testing.T) {
	assert.Equal(t, 1, roundMinutes(30*time.Second))
	assert.Equal(t, -1, roundMinutes(-30*time.Second))
	assert.Equal(t, 0, roundMinutes(29*time.Second))
	assert.Equal(t, 15, roundMinutes(15*time.Minute))
}
