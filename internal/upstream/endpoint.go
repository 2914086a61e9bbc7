package upstream

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// feedPath is the recorder's download-progress WebSocket route, appended to
// the configured API base URL.
const feedPath = "/downloads/ws"

// EndpointURL derives the feed URL from the API base URL, rewriting the
// scheme to its WebSocket equivalent and carrying the bearer token as a
// query parameter (the recorder authenticates the upgrade from `?token=`).
func EndpointURL(baseURL, token string) (string, error) {
	if strings.TrimSpace(baseURL) == "" {
		return "", errors.New("api base url is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// Already a WebSocket URL.
	default:
		return "", fmt.Errorf("unsupported api base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + feedPath
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
