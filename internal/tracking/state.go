package tracking

import (
	"encoding/json"
	"fmt"

	"ride-tracker/internal/domain/geo"
	"ride-tracker/internal/domain/ride"
)

// ETA is the minutes left until pickup, ending at the terminal "Arriving" label.
type ETA struct {
	Minutes  int
	Arriving bool
}

// next decrements by one minute; from one minute or less it becomes Arriving and stays there.
func (eta ETA) next() ETA {
	if eta.Arriving {
		return eta
	}
	if eta.Minutes > 1 {
		return ETA{Minutes: eta.Minutes - 1}
	}
	return ETA{Arriving: true}
}

// String renders the label shown to the passenger.
func (eta ETA) String() string {
	if eta.Arriving {
		return "Arriving"
	}
	return fmt.Sprintf("%d mins", eta.Minutes)
}

func (eta ETA) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Minutes  int    `json:"minutes"`
		Arriving bool   `json:"arriving"`
		Label    string `json:"label"`
	}{eta.Minutes, eta.Arriving, eta.String()})
}

// Distance is the remaining distance kept in tenths of a kilometre, ending at the terminal "Arrived" label.
type Distance struct {
	Tenths  int
	Arrived bool
}

// Km returns the remaining distance in kilometres.
func (distance Distance) Km() float64 {
	return float64(distance.Tenths) / 10
}

// next subtracts step tenths (floored at zero) while more than 0.1 km remains, otherwise becomes Arrived.
func (distance Distance) next(step int) Distance {
	if distance.Arrived {
		return distance
	}
	if distance.Tenths > 1 {
		return Distance{Tenths: max(distance.Tenths-step, 0)}
	}
	return Distance{Arrived: true}
}

// String renders the label shown to the passenger.
func (distance Distance) String() string {
	if distance.Arrived {
		return "Arrived"
	}
	return fmt.Sprintf("%.1f km", distance.Km())
}

func (distance Distance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Km      float64 `json:"km"`
		Arrived bool    `json:"arrived"`
		Label   string  `json:"label"`
	}{distance.Km(), distance.Arrived, distance.String()})
}

// State is everything a renderer needs to draw the tracking screen.
type State struct {
	RideID            string       `json:"ride_id"`
	Status            ride.Status  `json:"status"`
	DriverPosition    geo.Position `json:"driver_position"`
	PassengerPosition geo.Position `json:"passenger_position"`
	ETA               ETA          `json:"eta"`
	Distance          Distance     `json:"distance"`
	SOSActive         bool         `json:"sos_active"`
}

// initialState is the state a tracker starts from.
func initialState(rideID string, cfg Config) State {
	return State{
		RideID:            rideID,
		Status:            ride.StatusUpcoming,
		DriverPosition:    cfg.DriverStart,
		PassengerPosition: cfg.PassengerAt,
		ETA:               ETA{Minutes: cfg.InitialETAMinutes},
		Distance:          Distance{Tenths: cfg.InitialDistanceTenths},
	}
}

// advance applies one simulation tick and reports whether the driver has reached the passenger.
func (state *State) advance(cfg Config) bool {
	state.DriverPosition = state.DriverPosition.Toward(state.PassengerPosition, cfg.Step)
	state.ETA = state.ETA.next()
	state.Distance = state.Distance.next(cfg.DistanceStepTenths)
	return state.DriverPosition.Reached(state.PassengerPosition)
}
