package testutil

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugRequest(t *testing.T) {
	req := DebugRequest(http.MethodPost, "/debug/x", strings.NewReader("body"))

	assert.Equal(t, LocalRemoteAddr, req.RemoteAddr)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/debug/x", req.URL.Path)
}

func TestServe(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusTeapot)
		w.Write(b)
	})

	w := Serve(h, DebugRequest(http.MethodPut, "/", strings.NewReader("echo")))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "echo", w.Body.String())
}
