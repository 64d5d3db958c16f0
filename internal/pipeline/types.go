package pipeline

import "time"

// Post stages.
const (
	StageWaiting      = "waiting"
	StageTransforming = "transforming"
	StageDone         = "done"
	StageError        = "error"
)

// PostStatus is the progress of a single post in a warm-up run.
type PostStatus struct {
	PostID   int64
	Stage    string
	Cached   bool
	Duration time.Duration
	Error    string
}

// Summary totals a finished run.
type Summary struct {
	Total       int
	Transformed int
	Cached      int
	Errors      int
}
