package rabbitmq

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettle(t *testing.T) {
	t.Parallel()

	transient := errors.New("db down")
	poison := fmt.Errorf("decode status event: %w", ErrPoison)

	tests := []struct {
		name        string
		err         error
		redelivered bool
		want        disposition
	}{
		{"handled", nil, false, settleAck},
		{"handled on redelivery", nil, true, settleAck},
		{"transient failure is requeued once", transient, false, settleRequeue},
		{"transient failure after redelivery is dropped", transient, true, settleDrop},
		{"poison is dropped first time", poison, false, settleDrop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, settle(tt.err, tt.redelivered))
		})
	}
}

func TestNextBackoff(t *testing.T) {
	t.Parallel()

	t.Run("doubles on quick failures up to the cap", func(t *testing.T) {
		t.Parallel()
		var got []time.Duration
		var backoff time.Duration
		for range 7 {
			backoff = nextBackoff(backoff, 10*time.Millisecond)
			got = append(got, backoff)
		}
		assert.Equal(t, []time.Duration{
			time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
			16 * time.Second, maxBackoff, maxBackoff,
		}, got)
	})

	t.Run("resets after a healthy run", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, initialConsumeBackoff, nextBackoff(maxBackoff, healthyConsumeRun))
		assert.Equal(t, initialConsumeBackoff, nextBackoff(16*time.Second, time.Hour))
	})

	t.Run("a short run keeps growing", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 8*time.Second, nextBackoff(4*time.Second, healthyConsumeRun-time.Millisecond))
	})
}
