package dto

import "time"

// StopRequest supplies a stop inline instead of loading the day's jobs.
type StopRequest struct {
	ID              string `json:"id"`
	Address         string `json:"address"`
	ScheduledTime   string `json:"scheduled_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type TimelineRequest struct {
	Date        string        `json:"date"`
	HomeAddress *string       `json:"home_address"`
	DayStart    string        `json:"day_start"`
	Stops       []StopRequest `json:"stops"`
}

type EntryResponse struct {
	StopID             string    `json:"stop_id"`
	Address            string    `json:"address"`
	ScheduledTime      string    `json:"scheduled_time,omitempty"`
	EstimatedArrival   time.Time `json:"estimated_arrival"`
	ActualStart        time.Time `json:"actual_start"`
	EstimatedDeparture time.Time `json:"estimated_departure"`
	Status             string    `json:"status"`
	DelayMinutes       int       `json:"delay_minutes"`
	TravelSeconds      *int      `json:"travel_seconds,omitempty"`
	TravelMeters       *int      `json:"travel_meters,omitempty"`
	Error              string    `json:"error,omitempty"`
}

type TimelineResponse struct {
	Date                string          `json:"date"`
	Entries             []EntryResponse `json:"entries"`
	LeaveHomeBy         *time.Time      `json:"leave_home_by,omitempty"`
	HomeArrival         *time.Time      `json:"home_arrival,omitempty"`
	TotalDriveSeconds   int             `json:"total_drive_seconds"`
	TotalDistanceMeters int             `json:"total_distance_meters"`
}

type PositionRequest struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Accuracy  float64   `json:"accuracy"`
}

type AdherenceRequest struct {
	TimelineRequest
	Position PositionRequest `json:"position"`
	Now      *time.Time      `json:"now"`
}

type AdherenceResponse struct {
	State                    string    `json:"state"`
	DeltaMinutes             int       `json:"delta_minutes"`
	TargetStopID             string    `json:"target_stop_id"`
	TargetAddress            string    `json:"target_address"`
	EstimatedArrivalAtTarget time.Time `json:"estimated_arrival_at_target"`
	TravelSeconds            int       `json:"travel_seconds"`
}

type AdherenceResult struct {
	Timeline  TimelineResponse   `json:"timeline"`
	Adherence *AdherenceResponse `json:"adherence"`
}
