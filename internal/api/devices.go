package api

import (
	"net/http"

	"github.com/nerrad567/btgateway/internal/device"
)

// deviceView is a configured device with its last stored poll outcome.
type deviceView struct {
	Worker  string         `json:"worker"`
	Name    string         `json:"name"`
	Address string         `json:"address"`
	Status  *device.Status `json:"status,omitempty"`
}

// handleListDevices returns every configured device in configuration order.
//
// When a device store is configured each entry carries the outcome of its
// most recent poll. Devices never polled have no status.
//
// Query parameters:
//   - worker: filter by worker name
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	worker := r.URL.Query().Get("worker")
	if len(worker) > maxQueryParamLen {
		writeBadRequest(w, "invalid worker")
		return
	}

	statuses := map[string]device.Status{}
	if s.store != nil {
		list, err := s.store.List(r.Context())
		if err != nil {
			s.logger.Error("listing device status", "error", err)
			writeInternalError(w, "failed to list devices")
			return
		}
		for _, st := range list {
			statuses[statusKey(st.Worker, st.Device)] = st
		}
	}

	views := make([]deviceView, 0)
	for _, d := range s.gateway.Devices() {
		if worker != "" && d.Worker != worker {
			continue
		}
		v := deviceView{Worker: d.Worker, Name: d.Name, Address: d.Address}
		if st, ok := statuses[statusKey(d.Worker, d.Name)]; ok {
			v.Status = &st
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

func statusKey(worker, name string) string {
	return worker + "/" + name
}
