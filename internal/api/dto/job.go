package dto

type JobResponse struct {
	JobID           string `json:"job_id"`
	CustomerID      string `json:"customer_id"`
	Date            string `json:"date"`
	Status          string `json:"status"`
	SiteAddress     string `json:"site_address"`
	BillingAddress  string `json:"billing_address"`
	ScheduledTime   string `json:"scheduled_time,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

type ListJobsResponse struct {
	Date string        `json:"date"`
	Jobs []JobResponse `json:"jobs"`
}

type StopResponse struct {
	ID              string `json:"id"`
	Address         string `json:"address"`
	ScheduledTime   string `json:"scheduled_time,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	SequenceIndex   int    `json:"sequence_index"`
}

type ListStopsResponse struct {
	Date  string         `json:"date"`
	Stops []StopResponse `json:"stops"`
}
