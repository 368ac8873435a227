package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const schedulerBody = `<scheduler_request>
    <host_info><os_name>Linux</os_name><host_cpid>cpid-1</host_cpid></host_info>
</scheduler_request>`

func TestSchedulerEndpointRelaysUpstreamAnswer(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("project down for maintenance"))
	}))
	defer upstream.Close()

	reg := testRegistry("einstein")
	p := reg.Projects["einstein"]
	p.SchedulerURL = upstream.URL
	reg.Projects["einstein"] = p
	engine, _ := testEngine(t, reg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/proxy/einstein/scheduler", strings.NewReader(schedulerBody))
	req.Header.Set("User-Agent", "BOINC client 8.0.2")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "project down for maintenance", w.Body.String())
}

func TestSchedulerEndpointErrorMapping(t *testing.T) {
	engine, _ := testEngine(t, testRegistry("einstein"))

	// Unknown project: 404 before any upstream contact.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/proxy/nope/scheduler", strings.NewReader(schedulerBody))
	req.Header.Set("User-Agent", "BOINC client 8.0.2")
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Missing User-Agent: 400.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/proxy/einstein/scheduler", strings.NewReader(schedulerBody))
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed body: 400, protocol-shaped.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/proxy/einstein/scheduler", strings.NewReader("<scheduler_request>"))
	req.Header.Set("User-Agent", "BOINC client 8.0.2")
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchedulerEndpointUnreachableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	reg := testRegistry("einstein")
	p := reg.Projects["einstein"]
	p.SchedulerURL = upstream.URL
	reg.Projects["einstein"] = p
	engine, _ := testEngine(t, reg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/proxy/einstein/scheduler", strings.NewReader(schedulerBody))
	req.Header.Set("User-Agent", "BOINC client 8.0.2")
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
}
