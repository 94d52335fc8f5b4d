package history

import "fmt"

// PersistenceError reports a failed durable write. The in-memory mutation
// that triggered it stands.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError reports a lookup of an id that is not in the history.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("history entry %d not found", e.ID) }

// ConfigError reports an invalid capacity or an unusable persisted history.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return "history config: " + e.Reason
	}
	return fmt.Sprintf("history config: %s: %v", e.Reason, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
