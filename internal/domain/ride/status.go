package ride

import (
	"errors"
	"strings"
)

// Status is the lifecycle status of a tracked ride as the passenger client sees it.
type Status string

const (
	StatusUpcoming   Status = "upcoming"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

var ErrInvalidStatus = errors.New("invalid ride status")

// ParseStatus normalizes (lowercases+trims) and validates a status string.
// The upper-case forms used on the message bus (IN_PROGRESS) are accepted too.
func ParseStatus(in string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(in))
	normalized = strings.ReplaceAll(normalized, "_", "-")

	status := Status(normalized)
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed ride status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusUpcoming, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Label is the human readable badge text for the status.
func (status Status) Label() string {
	switch status {
	case StatusUpcoming:
		return "Upcoming"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// BusName is the upper-case form used in routing keys and ride events (IN_PROGRESS).
func (status Status) BusName() string {
	return strings.ToUpper(strings.ReplaceAll(string(status), "-", "_"))
}

// CanTransitionTo reports whether next is the single allowed forward step.
// There are no backward edges and no skipping of IN_PROGRESS.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusUpcoming:
		return next == StatusInProgress

	case StatusInProgress:
		return next == StatusCompleted

	case StatusCompleted:
		return false

	default:
		return false
	}
}

// Terminal indicates if the status is the terminal state.
func (status Status) Terminal() bool {
	return status == StatusCompleted
}
