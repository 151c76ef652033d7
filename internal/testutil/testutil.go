// Package testutil provides shared helpers for tests of the tsweb debug
// routes.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
)

// LocalRemoteAddr is a loopback peer address, which tsweb.AllowDebugAccess
// always admits.
const LocalRemoteAddr = "127.0.0.1:12345"

// DebugRequest creates a test request that appears to come from localhost so
// it passes the debug access check.
func DebugRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = LocalRemoteAddr
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
