package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "eth_getLogs", "candles")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ConsistencyError reports a Take whose assets disagree with the order it fills.
// It means the event source is corrupt and is never retriable.
type ConsistencyError struct {
	OrderID   OrderID
	Timestamp Timestamp
	Field     string // "pay_asset" or "buy_asset"
	Want      AssetID
	Got       AssetID
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: order %s at %d: %s is %s, order has %s",
		ErrConsistencyViolation, e.OrderID, e.Timestamp, e.Field, e.Got, e.Want)
}

func (e *ConsistencyError) IsRetriable() bool {
	return false
}

func (e *ConsistencyError) Unwrap() error {
	return ErrConsistencyViolation
}

var (
	// ErrConsistencyViolation is the root of every ConsistencyError.
	ErrConsistencyViolation = errors.New("consistency violation")

	// ErrUnknownEvent is returned when an event is not a Make, Take or Kill.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrEmptyResponse is returned when an upstream answers with no usable data.
	ErrEmptyResponse = errors.New("empty response")

	// ErrInvalidRange is returned for block or time ranges that end before they start.
	ErrInvalidRange = errors.New("invalid range")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
