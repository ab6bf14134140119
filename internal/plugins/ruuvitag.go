//go:build !btgateway_no_ruuvitag

package plugins

import (
	"github.com/nerrad567/btgateway/internal/ruuvi"
	"github.com/nerrad567/btgateway/internal/workers"
	"github.com/nerrad567/btgateway/internal/workers/ruuvitag"
)

func init() {
	Register(newRuuvitag)
}

// newRuuvitag builds the RuuviTag worker on top of a BLE scanner. The
// scanner is the worker's driver: it starts and stops with the worker.
func newRuuvitag(deps Deps) (workers.Worker, bool) {
	cfg := deps.Config
	wc := cfg.Workers.Ruuvitag
	if !wc.Enabled {
		return nil, false
	}

	log := deps.Logger.Component("ruuvitag")

	scanner := ruuvi.NewScanner(ruuvi.ScannerOptions{
		Adapter: cfg.Bluetooth.Adapter,
		MaxAge:  cfg.GetAdvertisementMaxAge(),
		Logger:  deps.Logger.Component("ble"),
	})

	devices := make([]workers.Device, 0, len(wc.Devices))
	for _, d := range wc.Devices {
		devices = append(devices, workers.Device{Name: d.Name, Address: d.Address})
	}

	worker, err := ruuvitag.New(ruuvitag.Options{
		Devices:           devices,
		Resolver:          ruuvitag.ScannerResolver(scanner),
		Driver:            scanner,
		Namespace:         cfg.Gateway.ID,
		TopicPrefix:       wc.TopicPrefix,
		GlobalPrefix:      cfg.Gateway.TopicPrefix,
		AvailabilityTopic: cfg.MQTT.AvailabilityTopic,
		UpdateInterval:    cfg.GetRuuvitagInterval(),
		PollTimeout:       cfg.GetPollTimeout(),
		Concurrency:       cfg.Gateway.PollConcurrency,
		Logger:            log,
	})
	if err != nil {
		log.Error("ruuvitag worker disabled", "error", err)
		return nil, false
	}

	log.Info("ruuvitag worker configured",
		"devices", len(worker.Devices()),
		"update_interval", worker.UpdateInterval().String(),
	)
	return worker, true
}
