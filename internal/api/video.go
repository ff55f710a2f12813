package api

import (
	"net/url"
	"strings"
)

var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
}

// ResolveSignalingBase normalizes the signaling server base URL. Loopback
// hostnames are rewritten to the API host so video links reach the machine
// the backend actually runs on, not the client's own loopback. Returns ""
// when no signaling URL is configured.
func ResolveSignalingBase(signalingURL, apiBase string) string {
	if signalingURL == "" {
		return ""
	}
	base := strings.TrimSuffix(signalingURL, "/")

	parsed, err := url.Parse(base)
	if err != nil || parsed.Hostname() == "" {
		return strings.Replace(base, "localhost", apiHostname(apiBase), 1)
	}

	if loopbackHosts[parsed.Hostname()] {
		host := apiHostname(apiBase)
		if host != "" {
			if port := parsed.Port(); port != "" {
				parsed.Host = host + ":" + port
			} else {
				parsed.Host = host
			}
		}
	}
	return parsed.Scheme + "://" + parsed.Host
}

// VideoURL builds the per-run video link: the normalized signaling base plus
// the run's peer id as path suffix. Returns "" when no signaling base is
// available.
func VideoURL(signalingURL, apiBase, peerID string) string {
	base := ResolveSignalingBase(signalingURL, apiBase)
	if base == "" {
		return ""
	}
	return base + "/" + peerID
}

func apiHostname(apiBase string) string {
	parsed, err := url.Parse(apiBase)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
