package analysis

import "fmt"

// OrchestrationError is the catch-all for analysis failures that did not
// come from the completion service.
type OrchestrationError struct {
	Err error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("analysis failed: %v", e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}
