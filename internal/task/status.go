package task

import "fmt"

func (s Status) String() string {
	return string(s)
}

// Validate rejects anything but pending and completed. Stores call it
// before persisting a task.
func (s Status) Validate() error {
	if s != StatusPending && s != StatusCompleted {
		return fmt.Errorf("unknown task status %q", string(s))
	}
	return nil
}
