package simulate

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-tracker/internal/tracking"
)

func TestRunVirtual(t *testing.T) {
	t.Parallel()

	t.Run("prints the whole lifecycle", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		err := Run(context.Background(), &out, Options{
			RideID:  "sim-1",
			Config:  tracking.DefaultConfig(),
			Virtual: true,
		})
		require.NoError(t, err)

		got := out.String()
		assert.Contains(t, got, "[   5.0s] status    in-progress")
		assert.Contains(t, got, "sink      sim-1 -> IN_PROGRESS")
		assert.Contains(t, got, "[  26.0s] status    completed")
		assert.Contains(t, got, "[  28.0s] navigate  sim-1 /rating")
		assert.Contains(t, got, "driver=(70,70) eta=7 mins distance=1.2 km")
		assert.NotContains(t, got, "sos")
	})

	t.Run("raises an SOS mid ride", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		err := Run(context.Background(), &out, Options{
			RideID:    "sim-2",
			Config:    tracking.DefaultConfig(),
			Virtual:   true,
			SOSAt:     8 * time.Second,
			Latitude:  40.7128,
			Longitude: -74.006,
		})
		require.NoError(t, err)

		got := out.String()
		assert.Contains(t, got, "report    40.7128,-74.0060")
		assert.Contains(t, got, "sos       accepted")
		assert.Contains(t, got, "[  18.0s] sos_cleared")
	})

	t.Run("an SOS after completion is rejected", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		err := Run(context.Background(), &out, Options{
			Config:  tracking.DefaultConfig(),
			Virtual: true,
			SOSAt:   27 * time.Second,
		})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "sos       failed")
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		cfg := tracking.DefaultConfig()
		cfg.TickInterval = 0
		err := Run(context.Background(), &bytes.Buffer{}, Options{Config: cfg, Virtual: true})
		require.Error(t, err)
	})
}
