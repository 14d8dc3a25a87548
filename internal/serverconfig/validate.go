package serverconfig

import (
	"fmt"
	"net/url"
)

const maxURLLength = 2048

// ValidateServerURL checks that a server URL can be used as a base for both
// REST and WebSocket signaling:
//   - max length 2048 characters
//   - scheme must be http or https
//   - no embedded credentials (user:pass@host)
//   - no query or fragment, since endpoint paths are appended to it
func ValidateServerURL(rawURL string) error {
	if len(rawURL) > maxURLLength {
		return fmt.Errorf("server URL too long (%d chars, max %d)", len(rawURL), maxURLLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q: only http and https are allowed", u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("server URLs with embedded credentials are not allowed")
	}
	if u.Hostname() == "" {
		return fmt.Errorf("server URL has no hostname")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("server URL must not carry a query or fragment")
	}
	return nil
}
