package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/capture"
	"github.com/endorses/lippyguard/internal/pkg/metrics"
	"github.com/endorses/lippyguard/internal/pkg/session"
	"github.com/endorses/lippyguard/internal/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	got    session.Overrides
	result *session.Result
	err    error
	state  session.State
}

func (f *fakeRunner) Run(_ context.Context, ov session.Overrides) (*session.Result, error) {
	f.got = ov
	return f.result, f.err
}

func (f *fakeRunner) State() session.State { return f.state }

type fakeEnumerator []capture.InterfaceInfo

func (e fakeEnumerator) Interfaces() ([]capture.InterfaceInfo, error) { return e, nil }

func newTestServer(runner Runner) *httptest.Server {
	m := metrics.New()
	srv := New(Config{
		Runner:       runner,
		Hub:          stream.NewHub(10, m),
		WriteTimeout: time.Second,
		Metrics:      m.Handler(),
		Enumerator:   fakeEnumerator{{Name: "eth0", HardwareAddr: "00:11:22:33:44:55"}},
	})
	return httptest.NewServer(srv.Handler())
}

func TestRunSession_Success(t *testing.T) {
	runner := &fakeRunner{result: &session.Result{SessionID: "abc", Interface: "eth0"}}
	srv := newTestServer(runner)
	defer srv.Close()

	body := `{"window":"15s","syn_threshold":10,"allowed_macs":["00:11:22:33:44:55"]}`
	resp, err := http.Post(srv.URL+"/api/v1/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "abc", got["session_id"])

	assert.Equal(t, 15*time.Second, runner.got.Window)
	require.NotNil(t, runner.got.SYNThreshold)
	assert.Equal(t, 10, *runner.got.SYNThreshold)
	assert.Equal(t, []string{"00:11:22:33:44:55"}, runner.got.AllowedMACs)
}

func TestRunSession_EmptyBody(t *testing.T) {
	runner := &fakeRunner{result: &session.Result{SessionID: "abc"}}
	srv := newTestServer(runner)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunSession_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"busy", session.ErrSessionBusy, http.StatusConflict},
		{"no interface", capture.ErrNoInterface, http.StatusNotFound},
		{"device open", fmt.Errorf("%w: eth0: permission denied", capture.ErrDeviceOpen), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeRunner{err: tt.err})
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/api/v1/sessions", "application/json", nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)
			var got errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.NotEmpty(t, got.Error)
		})
	}
}

func TestRunSession_BadRequest(t *testing.T) {
	for _, body := range []string{`{"window":"soon"}`, `{not json`} {
		srv := newTestServer(&fakeRunner{})
		resp, err := http.Post(srv.URL+"/api/v1/sessions", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		resp.Body.Close()
		srv.Close()
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeRunner{state: session.StateCapturing})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "capturing", got["state"])
	assert.Equal(t, float64(0), got["subscribers"])
}

func TestInterfacesAndMetrics(t *testing.T) {
	srv := newTestServer(&fakeRunner{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/interfaces")
	require.NoError(t, err)
	var ifaces []capture.InterfaceInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ifaces))
	resp.Body.Close()
	require.Len(t, ifaces, 1)
	assert.Equal(t, "eth0", ifaces[0].Name)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunSession_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeRunner{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), time.Second)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
