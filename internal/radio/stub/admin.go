package stub

import (
	"fmt"
	"io"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/blebridge/internal/radio"
)

// AttachAdminRoutes mounts peer controls for the simulated radio under
// /debug/radio/. They let a developer play the BLE peer while a host drives
// the console.
func (a *Adapter) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Stub peer connected", func() any { return a.Connected() })
	debug.KVFunc("Stub radio name", func() any {
		name, _, _ := a.Identity()
		return name
	})

	// GET reports the identity passed to BEGIN.
	debug.HandleSilentFunc("radio/identity", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name, pin, begun := a.Identity()
		if !begun {
			http.Error(w, "BEGIN not received", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "name=%s pin=%d\n", name, pin)
	})

	// POST a raw body to queue it as a frame from the peer.
	debug.HandleSilentFunc("radio/inject", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		frame, err := io.ReadAll(io.LimitReader(r.Body, radio.MaxFrameSize+1))
		if err != nil {
			http.Error(w, "Failed to read body", http.StatusBadRequest)
			return
		}
		if !a.Deliver(frame) {
			http.Error(w, "Frame refused (no peer or too large)", http.StatusConflict)
			return
		}
		io.WriteString(w, fmt.Sprintf("queued %d byte frame\n", len(frame)))
	})

	// POST connected=0|1 to attach or detach the peer.
	debug.HandleSilentFunc("radio/peer", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch r.FormValue("connected") {
		case "1":
			a.Connect()
		case "0":
			a.Disconnect()
		default:
			http.Error(w, "connected must be 0 or 1", http.StatusBadRequest)
			return
		}
		io.WriteString(w, fmt.Sprintf("connected=%t\n", a.Connected()))
	})

	// GET drains the frames the bridge wrote for the peer, one hex line each.
	debug.HandleSilentFunc("radio/sent", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		for _, f := range a.TakeSent() {
			fmt.Fprintf(w, "%x\n", f)
		}
	})
}
