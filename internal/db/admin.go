package db

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/blebridge/internal/monitoring"
)

// AttachAdminRoutes mounts tailsql over the transcript, a plain text view of
// recent exchanges and an on-demand backup under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.Path()), db.DB, &tailsql.DBOptions{
		Label: "Bridge transcript",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	// GET ?session=<id>&limit=<n> lists exchanges, newest first.
	debug.HandleFunc("transcript", "Recent console exchanges", func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		exchanges, err := db.RecentExchanges(r.Context(), r.URL.Query().Get("session"), limit)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to load transcript: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, ex := range exchanges {
			fmt.Fprintf(w, "%s %s %-3s %q -> %s (%d bytes, %v)\n",
				ex.Started.UTC().Format(time.RFC3339Nano), ex.SessionID, ex.Code, ex.Args,
				strings.Join(quoteAll(ex.Replies), " "), ex.FrameBytes, ex.Duration)
		}
	})

	debug.Handle("backup", "Create and download a backup of the transcript now", http.HandlerFunc(db.serveBackup))
	return nil
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strconv.Quote(s)
	}
	return out
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("blebridge-backup-%d.db", time.Now().UnixNano()))
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			monitoring.Logf("Failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		monitoring.Logf("Failed to send backup: %v", err)
	}
}
