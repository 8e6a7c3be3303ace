package stream

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultPath is where the data plane serves the market-data stream
const DefaultPath = "/ws/market-data"

// -----------------------------------------------------------------------------

// ResolveStreamURL derives the stream endpoint from the page the dashboard is
// served from: same host, ws for http and wss for https. A ws:// or wss:// base
// is used as-is, with path appended only when it has none.
func ResolveStreamURL(base, path string) (string, error) {
	if path == "" {
		path = DefaultPath
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid stream base url '%s': %w", base, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("stream base url '%s' has no host", base)
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
		if u.Path != "" && u.Path != "/" {
			return u.String(), nil
		}
	default:
		return "", fmt.Errorf("unsupported stream scheme %q", u.Scheme)
	}

	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
