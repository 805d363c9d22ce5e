package domain

// JobStatus is the lifecycle state of a job ticket.
type JobStatus string

const (
	JobScheduled  JobStatus = "scheduled"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobDeclined   JobStatus = "declined"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the job will never be visited.
func (s JobStatus) Terminal() bool {
	return s == JobDeclined || s == JobCancelled
}

// Represents a single job ticket as read from the job store.
// Date is a calendar day "YYYY-MM-DD"; ScheduledTime is a wall-clock
// "HH:MM" or empty when the job has no fixed time.
type Job struct {
	JobID           string
	CustomerID      string
	Date            string
	Status          JobStatus
	SiteAddress     string
	BillingAddress  string
	ScheduledTime   string
	DurationMinutes int
}
