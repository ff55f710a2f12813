package api

import "testing"

func TestResolveSignalingBase(t *testing.T) {
	cases := []struct {
		name         string
		signalingURL string
		apiBase      string
		want         string
	}{
		{"empty", "", "http://10.0.0.5:8000", ""},
		{"loopback rewritten", "http://localhost:8889", "http://10.0.0.5:8000", "http://10.0.0.5:8889"},
		{"zero host rewritten", "http://0.0.0.0:8889", "http://10.0.0.5:8000", "http://10.0.0.5:8889"},
		{"real host kept", "http://video.lan:8889", "http://10.0.0.5:8000", "http://video.lan:8889"},
		{"trailing slash trimmed", "http://video.lan:8889/", "http://10.0.0.5:8000", "http://video.lan:8889"},
		{"loopback without port", "http://127.0.0.1", "http://10.0.0.5:8000", "http://10.0.0.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveSignalingBase(tc.signalingURL, tc.apiBase)
			if got != tc.want {
				t.Errorf("ResolveSignalingBase(%q, %q) = %q, want %q", tc.signalingURL, tc.apiBase, got, tc.want)
			}
		})
	}
}

func TestVideoURL(t *testing.T) {
	got := VideoURL("http://localhost:8889", "http://10.0.0.5:8000", "peer_42")
	if got != "http://10.0.0.5:8889/peer_42" {
		t.Errorf("VideoURL = %q", got)
	}

	if got := VideoURL("", "http://10.0.0.5:8000", "peer_42"); got != "" {
		t.Errorf("VideoURL without signaling config = %q, want empty", got)
	}
}
