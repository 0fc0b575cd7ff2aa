package service

import (
	"context"
	"time"

	"ride-tracker/internal/ports"
)

// GetOverview collects aggregate metrics about the live trackers and today's SOS alerts.
func (service *trackingService) GetOverview(ctx context.Context) (*ports.OverviewResult, error) {
	var res ports.OverviewResult
	now := time.Now().UTC()
	res.Timestamp = now

	states, err := service.registry.States(ctx)
	if err != nil {
		return nil, err
	}
	res.Metrics.ActiveTrackers = len(states)
	res.Metrics.ByStatus = make(map[string]int)
	for _, state := range states {
		res.Metrics.ByStatus[state.Status.BusName()]++
		if state.SOSActive {
			res.Metrics.SOSActive++
		}
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		n, err := service.sosLogs.CountBetween(txCtx, startOfDay, startOfDay.Add(24*time.Hour))
		if err != nil {
			return err
		}
		res.Metrics.SOSToday = n
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "overview_failed", "Failed to count today's SOS logs", err, nil)
		return nil, err
	}
	return &res, nil
}
