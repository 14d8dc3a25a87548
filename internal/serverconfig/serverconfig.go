// Package serverconfig fetches the render-streaming server configuration and
// derives per-stream WebRTC configurations from it.
package serverconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/metrics"
)

// StartupModePrivate is the startup mode the receiver sample cannot work in.
const StartupModePrivate = "private"

// SDPSemantics is the only semantics the receiver negotiates with.
const SDPSemantics = "unified-plan"

// ServerConfig is the body of GET /config.
type ServerConfig struct {
	UseWebSocket bool        `json:"useWebSocket"`
	StartupMode  string      `json:"startupMode"`
	ICEServers   []ICEServer `json:"iceServers,omitempty"`
}

// ICEServer mirrors the browser RTCIceServer dictionary.
type ICEServer struct {
	URLs       URLList `json:"urls"`
	Username   string  `json:"username,omitempty"`
	Credential string  `json:"credential,omitempty"`
}

// URLList accepts either a single URL string or an array of URLs.
type URLList []string

func (u *URLList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*u = URLList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("ice server urls: %w", err)
	}
	*u = many
	return nil
}

// Client talks to the render-streaming web server.
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

// NewClient creates a config client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetServerConfig issues a single GET /config and returns the decoded body as-is.
func (c *Client) GetServerConfig(ctx context.Context) (*ServerConfig, error) {
	start := time.Now()
	defer func() {
		metrics.ConfigFetchDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/config", nil)
	if err != nil {
		return nil, fmt.Errorf("build config request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch server config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch server config: status %d: %s", resp.StatusCode, string(body))
	}

	var cfg ServerConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode server config: %w", err)
	}
	return &cfg, nil
}

// ICEServerSource supplies the ICE servers for a stream.
type ICEServerSource interface {
	Servers(streamID int) []ICEServer
}

// StaticServers returns the same list for every stream.
type StaticServers []ICEServer

func (s StaticServers) Servers(int) []ICEServer {
	out := make([]ICEServer, len(s))
	copy(out, s)
	return out
}

// DefaultSource prefers the ICE servers advertised by the server and falls back
// to plain STUN URLs.
func DefaultSource(cfg *ServerConfig, stunURLs []string) StaticServers {
	if cfg != nil && len(cfg.ICEServers) > 0 {
		return StaticServers(cfg.ICEServers)
	}
	if len(stunURLs) == 0 {
		return nil
	}
	urls := make(URLList, len(stunURLs))
	copy(urls, stunURLs)
	return StaticServers{{URLs: urls}}
}

// RTCConfiguration is the peer configuration for one stream.
type RTCConfiguration struct {
	SDPSemantics string      `json:"sdpSemantics"`
	ICEServers   []ICEServer `json:"iceServers"`
}

// NewRTCConfiguration builds the configuration for streamID.
func NewRTCConfiguration(streamID int, source ICEServerSource) RTCConfiguration {
	cfg := RTCConfiguration{SDPSemantics: SDPSemantics}
	if source != nil {
		cfg.ICEServers = source.Servers(streamID)
	}
	return cfg
}

// WebRTC converts to a pion configuration. pion only speaks unified plan.
func (c RTCConfiguration) WebRTC() webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		srv := webrtc.ICEServer{URLs: append([]string(nil), s.URLs...)}
		if s.Username != "" {
			srv.Username = s.Username
			srv.Credential = s.Credential
		}
		servers = append(servers, srv)
	}
	return webrtc.Configuration{ICEServers: servers}
}
