package bridge

import (
	"encoding/json"
	"net/http"

	"tailscale.com/tsweb"
)

// Status is the snapshot served on /debug/bridge.
type Status struct {
	SessionID     string `json:"session_id,omitempty"`
	Enabled       bool   `json:"enabled"`
	Connected     bool   `json:"connected"`
	WriteBusy     bool   `json:"write_busy"`
	Commands      int64  `json:"commands"`
	FramesWritten int64  `json:"frames_written"`
	FramesRead    int64  `json:"frames_read"`
	ShortReads    int64  `json:"short_reads"`
}

// Status reads the radio state live and snapshots the counters. It is safe
// to call from any goroutine.
func (b *Bridge) Status() Status {
	return Status{
		SessionID:     b.sessionID,
		Enabled:       b.radio.Enabled(),
		Connected:     b.radio.Connected(),
		WriteBusy:     b.radio.WriteBusy(),
		Commands:      b.stats.Commands.Load(),
		FramesWritten: b.stats.FramesWritten.Load(),
		FramesRead:    b.stats.FramesRead.Load(),
		ShortReads:    b.stats.ShortReads.Load(),
	}
}

// AttachAdminRoutes adds the bridge status to the tsweb debug index and
// serves it as JSON on /debug/bridge.
func (b *Bridge) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Radio enabled", func() any { return b.radio.Enabled() })
	debug.KVFunc("Peer connected", func() any { return b.radio.Connected() })
	debug.KVFunc("Commands dispatched", func() any { return b.stats.Commands.Load() })

	debug.HandleFunc("bridge", "Bridge status (JSON)", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(b.Status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
