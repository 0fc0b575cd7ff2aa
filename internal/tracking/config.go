package tracking

import (
	"errors"
	"strings"
	"time"

	"ride-tracker/internal/domain/geo"
)

// Config holds the simulation constants. DefaultConfig matches the passenger client.
type Config struct {
	StartDelay   time.Duration // Upcoming -> InProgress
	TickInterval time.Duration // simulation step period
	DwellDelay   time.Duration // arrival -> Completed
	HandoffDelay time.Duration // Completed -> navigation handoff
	SOSCooldown  time.Duration // SOS active -> cleared
	SinkTimeout  time.Duration // bound on one StatusSink call

	Step                  float64 // per-axis movement per tick
	DistanceStepTenths    int     // distance decrement per tick, tenths of a km
	InitialETAMinutes     int
	InitialDistanceTenths int
	DriverStart           geo.Position
	PassengerAt           geo.Position

	HandoffRoute string
}

// DefaultConfig returns the timings and positions used by the passenger client.
func DefaultConfig() Config {
	return Config{
		StartDelay:            5 * time.Second,
		TickInterval:          2 * time.Second,
		DwellDelay:            5 * time.Second,
		HandoffDelay:          2 * time.Second,
		SOSCooldown:           10 * time.Second,
		SinkTimeout:           5 * time.Second,
		Step:                  5,
		DistanceStepTenths:    5,
		InitialETAMinutes:     15,
		InitialDistanceTenths: 52,
		DriverStart:           geo.Position{X: 30, Y: 30},
		PassengerAt:           geo.Position{X: 70, Y: 70},
		HandoffRoute:          "/rating",
	}
}

// Validate checks the constants are usable.
func (cfg Config) Validate() error {
	var problems []string
	if cfg.StartDelay < 0 || cfg.DwellDelay < 0 || cfg.HandoffDelay < 0 || cfg.SOSCooldown < 0 {
		problems = append(problems, "delays must not be negative")
	}
	if cfg.TickInterval <= 0 {
		problems = append(problems, "tick interval must be positive")
	}
	if cfg.Step <= 0 {
		problems = append(problems, "step must be positive")
	}
	if cfg.DistanceStepTenths <= 0 {
		problems = append(problems, "distance step must be positive")
	}
	if cfg.InitialETAMinutes < 0 || cfg.InitialDistanceTenths < 0 {
		problems = append(problems, "initial eta and distance must not be negative")
	}
	if strings.TrimSpace(cfg.HandoffRoute) == "" {
		problems = append(problems, "handoff route is required")
	}
	if len(problems) > 0 {
		return errors.New("tracking: invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}
