package backend

import (
	"net/url"
	"strings"
)

const transcriptionPath = "/v1/audio/transcriptions"

// HTTPURL normalizes an endpoint for the batch upload: websocket schemes
// become HTTP, a missing scheme defaults to http, and the OpenAI-compatible
// transcription path is appended when absent.
func HTTPURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "ws://"):
		endpoint = "http://" + strings.TrimPrefix(endpoint, "ws://")
	case strings.HasPrefix(endpoint, "wss://"):
		endpoint = "https://" + strings.TrimPrefix(endpoint, "wss://")
	case !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://"):
		endpoint = "http://" + endpoint
	}

	if !strings.Contains(endpoint, transcriptionPath) {
		endpoint = strings.TrimRight(endpoint, "/") + transcriptionPath
	}
	return endpoint
}

// WSURL normalizes an endpoint for a WebSocket dial: HTTP schemes become
// websocket schemes and a missing scheme defaults to ws. When stripPath is
// set any path component is removed (WhisperLive serves on the bare host).
func WSURL(endpoint string, stripPath bool) string {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "http://")
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = "wss://" + strings.TrimPrefix(endpoint, "https://")
	case !strings.HasPrefix(endpoint, "ws://") && !strings.HasPrefix(endpoint, "wss://"):
		endpoint = "ws://" + endpoint
	}

	if stripPath {
		if u, err := url.Parse(endpoint); err == nil {
			u.Path = ""
			u.RawQuery = ""
			endpoint = u.String()
		}
	}
	return endpoint
}
