package transport

import (
	"fmt"
	"net/url"
)

// EndpointPath is the fixed path of the state socket on the page's host.
const EndpointPath = "/ws"

// EndpointURL derives the state socket address from the address the page was
// served from: same host and port, wss when the page came over https, ws
// otherwise.
func EndpointURL(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL: %w", err)
	}

	var scheme string
	switch u.Scheme {
	case "https":
		scheme = "wss"
	case "http":
		scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported page scheme: %q (use http:// or https://)", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("page URL %q has no host", pageURL)
	}

	endpoint := url.URL{Scheme: scheme, Host: u.Host, Path: EndpointPath}
	return endpoint.String(), nil
}
