package backend

import "testing"

func TestHTTPURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"http://localhost:4445/v1/audio/transcriptions", "http://localhost:4445/v1/audio/transcriptions"},
		{"http://localhost:4445", "http://localhost:4445/v1/audio/transcriptions"},
		{"http://localhost:4445/", "http://localhost:4445/v1/audio/transcriptions"},
		{"ws://localhost:4445", "http://localhost:4445/v1/audio/transcriptions"},
		{"wss://stt.example.com", "https://stt.example.com/v1/audio/transcriptions"},
		{"localhost:4445", "http://localhost:4445/v1/audio/transcriptions"},
	}
	for _, c := range cases {
		if got := HTTPURL(c.in); got != c.want {
			t.Errorf("HTTPURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWSURL(t *testing.T) {
	cases := []struct {
		in        string
		stripPath bool
		want      string
	}{
		{"http://localhost:9090", false, "ws://localhost:9090"},
		{"https://stt.example.com", false, "wss://stt.example.com"},
		{"ws://localhost:9090", false, "ws://localhost:9090"},
		{"localhost:9090", false, "ws://localhost:9090"},
		{"http://localhost:9090/v1/audio/transcriptions", true, "ws://localhost:9090"},
		{"ws://localhost:9090/some/path?x=1", true, "ws://localhost:9090"},
		{"ws://localhost:9090/some/path", false, "ws://localhost:9090/some/path"},
	}
	for _, c := range cases {
		if got := WSURL(c.in, c.stripPath); got != c.want {
			t.Errorf("WSURL(%q, %v) = %q, want %q", c.in, c.stripPath, got, c.want)
		}
	}
}
