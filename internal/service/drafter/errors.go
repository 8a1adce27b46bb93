package drafter

import "fmt"

// GenerationError reports a failed model call, carrying the section and
// operation so a failed run can say exactly where it stopped. The run
// aborts on the first one; there is no automatic retry.
type GenerationError struct {
	Section   string
	Operation string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s failed for section %q: %v", e.Operation, e.Section, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
