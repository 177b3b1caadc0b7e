package models

import (
	"errors"
	"fmt"
)

// Fatal conditions that abort batch processing entirely
var (
	ErrCorruptRollbackLog = errors.New("rollback log is corrupted")
	ErrNoValidRules       = errors.New("configuration defines zero valid rules")
)

// ConfigError reports a malformed piece of configuration (for example a rule
// definition) that was isolated without aborting the rest of the run.
type ConfigError struct {
	Subject string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Subject, e.Reason)
}

// BatchError wraps the failure that caused a whole-batch rollback.
type BatchError struct {
	BatchID string
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s failed: %v", e.BatchID, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
