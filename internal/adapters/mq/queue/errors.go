package queue

import "errors"

// ErrQueueFull is returned by Submit when the queue rejects a job.
var ErrQueueFull = errors.New("job queue full or closed")
