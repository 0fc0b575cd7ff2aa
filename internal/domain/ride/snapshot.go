package ride

import (
	"errors"
	"strings"
)

// Snapshot is a point-in-time copy of the ride fields the passenger client displays.
// It is a value type: every status change produces a new copy.
type Snapshot struct {
	ID          string `json:"id"`
	DriverName  string `json:"driverName"`
	DriverPhone string `json:"driverPhone"`
	CarModel    string `json:"carModel"`
	CarNumber   string `json:"carNumber"`
	Departure   string `json:"departure"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      Status `json:"status"`
}

var (
	ErrRideIDRequired = errors.New("ride id is required")
	ErrNotFound       = errors.New("ride not found")
	ErrNotRideOwner   = errors.New("ride belongs to another passenger")
)

// DefaultSnapshot is the placeholder ride used when the caller supplies none.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		ID:          "1",
		DriverName:  "John Smith",
		DriverPhone: "+1 (555) 123-4567",
		CarModel:    "Toyota Camry",
		CarNumber:   "ABC-123",
		Departure:   "Downtown",
		Destination: "Airport",
		Date:        "2023-06-15",
		Time:        "09:30 AM",
		Status:      StatusUpcoming,
	}
}

// WithStatus returns a copy of the snapshot with only the status replaced.
func (snapshot Snapshot) WithStatus(status Status) Snapshot {
	snapshot.Status = status
	return snapshot
}

// Validate checks the minimal invariants of a snapshot.
func (snapshot Snapshot) Validate() error {
	if strings.TrimSpace(snapshot.ID) == "" {
		return ErrRideIDRequired
	}
	if snapshot.Status != "" && !snapshot.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
