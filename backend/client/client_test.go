package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quicknginx/backend/domain"
	"quicknginx/backend/repository/events"
)

func TestNew_NormalizesBaseURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:19080", New("127.0.0.1:19080").BaseURL())
	assert.Equal(t, "https://example.com", New("https://example.com/").BaseURL())
	assert.Equal(t, "", New("  ").BaseURL())
}

func TestCommand_SendsRequestAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/command", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req domain.CommandRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, domain.CommandStart, req.Command)
		assert.Equal(t, domain.FragmentID("yx_h5"), req.Fragment)

		_, _ = fmt.Fprint(w, `{"success":true,"isRunning":true,"activeFragment":"yx_h5"}`)
	}))
	defer server.Close()

	resp, err := New(server.URL).Command(context.Background(), domain.CommandRequest{Command: domain.CommandStart, Fragment: "yx_h5"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.IsRunning)
	assert.True(t, *resp.IsRunning)
	require.NotNil(t, resp.ActiveFragment)
	assert.Equal(t, domain.FragmentID("yx_h5"), *resp.ActiveFragment)
}

func TestCommand_FailureKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = fmt.Fprint(w, `{"success":false,"isRunning":true,"error":"another nginx operation is in progress: start"}`)
	}))
	defer server.Close()

	resp, err := New(server.URL).Command(context.Background(), domain.CommandRequest{Command: domain.CommandStop})
	require.Error(t, err)
	assert.True(t, IsBusy(err))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.IsRunning)
	assert.True(t, *resp.IsRunning)
}

func TestDo_PlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := New(server.URL).Paths(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
	assert.False(t, apiErr.IsBusy())
}

func TestLogs_BuildsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/logs/error", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = fmt.Fprint(w, `{"kind":"error","entries":[{"content":"[x] y","timestamp":"x"}]}`)
	}))
	defer server.Close()

	entries, err := New(server.URL).Logs(context.Background(), "error", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].Timestamp)
}

func TestWatch_ParsesStatusEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "event:status\ndata:{\"isRunning\":false,\"activeFragment\":null,\"cause\":\"snapshot\"}\n\n")
		_, _ = fmt.Fprint(w, "event:ping\ndata:1700000000\n\n")
		_, _ = fmt.Fprint(w, "event:status\ndata:{\"isRunning\":true,\"activeFragment\":\"yx_main\",\"cause\":\"start\"}\n\n")
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []events.StatusChanged
	err := New(server.URL).Watch(ctx, func(ev events.StatusChanged) { got = append(got, ev) })
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "snapshot", got[0].Cause)
	assert.True(t, got[1].Running)
	require.NotNil(t, got[1].ActiveFragment)
	assert.Equal(t, domain.FragmentID("yx_main"), *got[1].ActiveFragment)
}
