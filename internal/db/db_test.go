package db

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/blebridge/internal/bridge"
	"github.com/banshee-data/blebridge/internal/monitoring"
	"github.com/banshee-data/blebridge/internal/testutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	db, err := Open(filepath.Join(t.TempDir(), "transcript.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_MigratesSchema(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	for _, table := range []string{"sessions", "exchanges"} {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s", table)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.db")
	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.StartSession(context.Background(), Session{ID: "first"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())

	sessions, err := db.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "first", sessions[0].ID)
}

func TestMigrateDown(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestStartSession_GeneratesID(t *testing.T) {
	db := setupTestDB(t)

	id, err := db.StartSession(context.Background(), Session{Version: "dev", SerialPort: "/dev/ttyS0", Adapter: "stub"})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	sessions, err := db.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
	assert.Equal(t, "stub", sessions[0].Adapter)
	assert.False(t, sessions[0].StartedAt.IsZero())
}

func TestStartSession_DuplicateID(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.StartSession(context.Background(), Session{ID: "dup"})
	require.NoError(t, err)
	_, err = db.StartSession(context.Background(), Session{ID: "dup"})
	assert.Error(t, err)
}

func TestRecordExchange_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sid, err := db.StartSession(ctx, Session{})
	require.NoError(t, err)

	started := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	exchanges := []bridge.Exchange{
		{SessionID: sid, Code: "BEG", Args: "node 42", Replies: []string{"OK"}, Started: started, Duration: 3 * time.Millisecond},
		{SessionID: sid, Code: "WRI", Args: "2", Replies: []string{"RDY", "2"}, FrameBytes: 2, Started: started.Add(time.Second)},
		{SessionID: sid, Code: "ISE", Started: started.Add(2 * time.Second)},
	}
	for _, ex := range exchanges {
		require.NoError(t, db.RecordExchange(ctx, ex))
	}

	got, err := db.RecentExchanges(ctx, sid, 10)
	require.NoError(t, err)

	want := []bridge.Exchange{exchanges[2], exchanges[1], exchanges[0]}
	want[0].Replies = []string{}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("exchanges mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentExchanges_FilterAndLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := db.StartSession(ctx, Session{ID: id})
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, db.RecordExchange(ctx, bridge.Exchange{SessionID: "a", Code: "STS", Started: time.Now()}))
		require.NoError(t, db.RecordExchange(ctx, bridge.Exchange{SessionID: "b", Code: "ISC", Started: time.Now()}))
	}

	onlyA, err := db.RecentExchanges(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, onlyA, 3)
	for _, ex := range onlyA {
		assert.Equal(t, "STS", ex.Code)
	}

	all, err := db.RecentExchanges(ctx, "", 4)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "ISC", all[0].Code)
}

func TestRecordExchange_UnknownSession(t *testing.T) {
	db := setupTestDB(t)
	err := db.RecordExchange(context.Background(), bridge.Exchange{SessionID: "missing", Code: "STS", Started: time.Now()})
	assert.Error(t, err, "foreign keys are enforced")
}

func TestAdminRoutes_Transcript(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sid, err := db.StartSession(ctx, Session{ID: "s1"})
	require.NoError(t, err)
	require.NoError(t, db.RecordExchange(ctx, bridge.Exchange{
		SessionID: sid, Code: "CHE", Replies: []string{"3"}, FrameBytes: 3, Started: time.Now(),
	}))

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	w := testutil.Serve(mux, testutil.DebugRequest(http.MethodGet, "/debug/transcript?session=s1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "s1 CHE")
	assert.Contains(t, body, `-> "3" (3 bytes`)

	w = testutil.Serve(mux, testutil.DebugRequest(http.MethodGet, "/debug/transcript?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutes_Backup(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.StartSession(context.Background(), Session{ID: "s1"})
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	w := testutil.Serve(mux, testutil.DebugRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment; filename=blebridge-backup-"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "SQLite format 3"))
}
