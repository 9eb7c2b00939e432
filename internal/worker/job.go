package worker

import (
	"time"
)

// Job is a sweep request submitted to the worker.
type Job struct {
	Reason    string
	Requested time.Time
}
