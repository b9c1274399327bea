package queue

import (
	"strings"
	"time"

	"menuvision/internal/menu"
)

// Status represents the lifecycle of a job.
type Status string

const (
	// StatusPending marks a submitted job awaiting a pipeline run.
	StatusPending Status = "pending"
	// StatusProcessing marks the single in-flight job.
	StatusProcessing Status = "processing"
	// StatusCompleted, StatusPartial, and StatusFailed are terminal.
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusPartial,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed:
		return true
	default:
		return false
	}
}

// Job represents one end-to-end menu processing request persisted in SQLite.
type Job struct {
	ID             string
	Status         Status
	SourceLanguage *string
	Dishes         []menu.Dish
	ErrorMessage   string
	ImagePath      string

	ProgressStage   string
	ProgressMessage string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	Deadline      *time.Time
	LastHeartbeat *time.Time
}

// SetFailed marks the job failed with the given message and clears progress.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressStage = "Failed"
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}

// SetProgress updates the progress fields shown to polling clients.
func (j *Job) SetProgress(stage, message string) {
	j.ProgressStage = stage
	j.ProgressMessage = message
}

// ImageCounts returns how many dishes carry a real image and how many carry
// the placeholder (or nothing yet).
func (j *Job) ImageCounts() (generated, missing int) {
	for _, dish := range j.Dishes {
		if dish.HasImage() {
			generated++
		} else {
			missing++
		}
	}
	return generated, missing
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Partial    int
	Failed     int
}
