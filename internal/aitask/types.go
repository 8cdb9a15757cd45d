package aitask

import "encoding/json"

// Task names accepted by the AI endpoint.
const (
	TaskSimplifyTE        = "simplify_te"
	TaskGenerateGloss     = "generate_gloss"
	TaskBackCheck         = "back_check"
	TaskCulturalReview    = "cultural_review"
	TaskDialectalVariants = "dialectal_variants"
)

// KnownTask reports whether name is one of the supported task names.
func KnownTask(name string) bool {
	switch name {
	case TaskSimplifyTE, TaskGenerateGloss, TaskBackCheck, TaskCulturalReview, TaskDialectalVariants:
		return true
	}
	return false
}

// Request is the wire shape of an AI call: a task name plus a task-specific
// payload object.
type Request struct {
	Task    string          `json:"task"`
	Payload json.RawMessage `json:"payload"`
}

// Job is a request captured while offline, keyed by its enqueue timestamp.
type Job struct {
	TS      int64           `json:"ts"`
	Task    string          `json:"task"`
	Payload json.RawMessage `json:"payload"`
}
