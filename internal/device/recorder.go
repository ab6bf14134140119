package device

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/btgateway/internal/workers"
)

// RecordCycle stores the outcome of a poll cycle: one status per device and
// one history entry per reachable device with a non-empty reading.
//
// Every device is attempted; the errors of failed writes are joined.
func RecordCycle(ctx context.Context, repo Repository, cycle workers.Cycle) error {
	var errs []error

	for _, result := range cycle.Results {
		polledAt := cycle.Started.Add(result.Duration)
		if cycle.Started.IsZero() {
			polledAt = time.Now()
		}

		status := Status{
			Worker:    cycle.Worker,
			Device:    result.Device.Name,
			Address:   result.Device.Address,
			Reachable: result.Reachable(),
			CycleID:   cycle.ID,
			LastPoll:  polledAt,
		}
		if result.Fault != nil {
			status.Fault = result.Fault.Kind
			if result.Fault.Err != nil {
				status.Error = result.Fault.Err.Error()
			}
		}

		if err := repo.RecordPoll(ctx, status); err != nil {
			errs = append(errs, err)
			continue
		}

		if !result.Reachable() || len(result.Reading) == 0 {
			continue
		}
		if err := repo.RecordReading(ctx, cycle.Worker, result.Device.Name, cycle.ID, result.Reading, polledAt); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
