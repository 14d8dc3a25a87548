package serverconfig

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServerConfig(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/config", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"useWebSocket":true,"startupMode":"normal","iceServers":[{"urls":"stun:a:3478"},{"urls":["turn:b:3478"],"username":"u","credential":"p"}]}`))
	}))
	defer srv.Close()

	cfg, err := NewClient(srv.URL).GetServerConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, cfg.UseWebSocket)
	assert.Equal(t, "normal", cfg.StartupMode)
	require.Len(t, cfg.ICEServers, 2)
	assert.Equal(t, URLList{"stun:a:3478"}, cfg.ICEServers[0].URLs)
	assert.Equal(t, "u", cfg.ICEServers[1].Username)
}

func TestGetServerConfigErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL).GetServerConfig(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{not json`))
		}))
		defer srv.Close()
		_, err := NewClient(srv.URL).GetServerConfig(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode server config")
	})

	t.Run("network", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		_, err := NewClient(url).GetServerConfig(context.Background())
		require.Error(t, err)
	})
}

func TestNewRTCConfiguration(t *testing.T) {
	source := DefaultSource(&ServerConfig{}, []string{"stun:stun.l.google.com:19302"})
	cfg := NewRTCConfiguration(1, source)
	assert.Equal(t, "unified-plan", cfg.SDPSemantics)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, URLList{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)

	// mutating the result must not leak into the source
	cfg.ICEServers[0].Username = "changed"
	assert.Empty(t, source.Servers(1)[0].Username)

	pc := cfg.WebRTC()
	require.Len(t, pc.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, pc.ICEServers[0].URLs)
}

func TestDefaultSourcePrefersServer(t *testing.T) {
	served := &ServerConfig{ICEServers: []ICEServer{{URLs: URLList{"turn:x"}, Username: "a", Credential: "b"}}}
	cfg := NewRTCConfiguration(2, DefaultSource(served, []string{"stun:y"}))
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, URLList{"turn:x"}, cfg.ICEServers[0].URLs)
	assert.Equal(t, "a", cfg.WebRTC().ICEServers[0].Username)

	assert.Empty(t, NewRTCConfiguration(1, DefaultSource(nil, nil)).ICEServers)
}

func TestURLListRejectsObjects(t *testing.T) {
	var s ICEServer
	err := json.Unmarshal([]byte(`{"urls":{"a":1}}`), &s)
	assert.Error(t, err)
}
