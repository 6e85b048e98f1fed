package model

import "time"

// ResearchReport is the final artifact of a completed research job.
// The JSON layout matches what the frontend consumes; unknown future
// fields must be ignored on read, so decoding stays lenient.
type ResearchReport struct {
	Report      string    `json:"report"`
	Sources     []string  `json:"sources"`
	CompletedAt time.Time `json:"completed_at"`
	JobID       string    `json:"jobId"`
	Topic       string    `json:"topic"`
}
