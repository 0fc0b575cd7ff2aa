package location

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-tracker/internal/domain/geo"
)

func TestDeviceLocator(t *testing.T) {
	t.Parallel()

	t.Run("returns a fresh fix immediately", func(t *testing.T) {
		t.Parallel()
		locator := NewDeviceLocator(time.Minute, time.Second)
		require.NoError(t, locator.Report("r1", geo.Fix{Latitude: 37.0, Longitude: -122.0}))

		fix, err := locator.CurrentPosition(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, 37.0, fix.Latitude)
		assert.Equal(t, -122.0, fix.Longitude)
		assert.False(t, fix.RecordedAt.IsZero())
	})

	t.Run("times out without a fix", func(t *testing.T) {
		t.Parallel()
		locator := NewDeviceLocator(time.Minute, 20*time.Millisecond)

		_, err := locator.CurrentPosition(context.Background(), "r1")
		assert.ErrorIs(t, err, ErrLocationTimeout)
	})

	t.Run("stale fix is not served", func(t *testing.T) {
		t.Parallel()
		locator := NewDeviceLocator(time.Second, 20*time.Millisecond)
		stale := geo.Fix{Latitude: 1, Longitude: 1, RecordedAt: time.Now().Add(-time.Hour)}
		require.NoError(t, locator.Report("r1", stale))

		_, err := locator.CurrentPosition(context.Background(), "r1")
		assert.ErrorIs(t, err, ErrLocationTimeout)
	})

	t.Run("waits for the next report", func(t *testing.T) {
		t.Parallel()
		locator := NewDeviceLocator(time.Minute, 5*time.Second)

		result := make(chan geo.Fix, 1)
		go func() {
			fix, err := locator.CurrentPosition(context.Background(), "r1")
			if err == nil {
				result <- fix
			}
			close(result)
		}()

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, locator.Report("r1", geo.Fix{Latitude: 10, Longitude: 20}))

		select {
		case fix, ok := <-result:
			require.True(t, ok)
			assert.Equal(t, 10.0, fix.Latitude)
		case <-time.After(5 * time.Second):
			t.Fatal("request did not wake up")
		}
	})

	t.Run("denial wins until the next fix", func(t *testing.T) {
		t.Parallel()
		locator := NewDeviceLocator(time.Minute, time.Second)
		require.NoError(t, locator.Report("r1", geo.Fix{Latitude: 1, Longitude: 1}))
		require.NoError(t, locator.Deny("r1"))

		_, err := locator.CurrentPosition(context.Background(), "r1")
		assert.ErrorIs(t, err, ErrPermissionDenied)

		require.NoError(t, locator.Report("r1", geo.Fix{Latitude: 2, Longitude: 2}))
		fix, err := locator.CurrentPosition(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, 2.0, fix.Latitude)
	})

	t.Run("caller cancellation", func(t *testing.T) {
		t.Parallel()
		locator := NewDeviceLocator(time.Minute, time.Minute)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := locator.CurrentPosition(ctx, "r1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		t.Parallel()
		locator := NewDeviceLocator(time.Minute, time.Second)
		assert.ErrorIs(t, locator.Report("", geo.Fix{}), ErrRideIDRequired)
		assert.ErrorIs(t, locator.Report("r1", geo.Fix{Latitude: 91}), geo.ErrInvalidLatitude)
		assert.ErrorIs(t, locator.Deny(" "), ErrRideIDRequired)
	})

	t.Run("forget clears state", func(t *testing.T) {
		t.Parallel()
		locator := NewDeviceLocator(time.Minute, 10*time.Millisecond)
		require.NoError(t, locator.Deny("r1"))
		locator.Forget("r1")

		_, err := locator.CurrentPosition(context.Background(), "r1")
		assert.ErrorIs(t, err, ErrLocationTimeout)
	})
}
