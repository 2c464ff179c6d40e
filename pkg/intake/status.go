package intake

// Status is the submission lifecycle of one form instance
type Status string

const (
	// StatusIdle accepts edits and submission attempts
	StatusIdle Status = "idle"
	// StatusValidating runs schema validation, before any network call
	StatusValidating Status = "validating"
	// StatusSubmitting covers the duplicate check and the create call;
	// Submit is a no-op while in this state
	StatusSubmitting Status = "submitting"
	// StatusSucceeded is terminal: the instance is spent
	StatusSucceeded Status = "succeeded"
)
