package wsfeed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func originRequest(origin, host string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if host != "" {
		req.Host = host
	}
	return req
}

func TestCheckOriginDefaults(t *testing.T) {
	s := NewServer(nil, NewHistory(8), nil)

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"NoOrigin", "", "example.com", true},
		{"SameHost", "http://example.com", "example.com", true},
		{"Localhost", "http://localhost:3000", "example.com", true},
		{"Loopback", "http://127.0.0.1:3000", "example.com", true},
		{"ForeignHost", "http://evil.example", "example.com", false},
		{"Malformed", "http://%zz", "example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.checkOrigin(originRequest(tt.origin, tt.host)); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestCheckOriginAllowList(t *testing.T) {
	s := NewServer(nil, NewHistory(8), []string{"https://dash.example.com"})

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"Listed", "https://dash.example.com", true},
		{"ListedHostOtherScheme", "http://dash.example.com", true},
		{"NotListed", "http://localhost:3000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.checkOrigin(originRequest(tt.origin, "api.example.com")); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestHandleEvents(t *testing.T) {
	history := NewHistory(8)
	history.Add(StallPayload{BlockedForMillis: 1000, DetectedAt: time.Now()})
	s := NewServer(NewBroadcaster(history, time.Millisecond), history, nil)

	mux := http.NewServeMux()
	s.SetupRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var events []StallPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if len(events) != 1 || events[0].BlockedForMillis != 1000 {
		t.Errorf("events = %+v", events)
	}
}
