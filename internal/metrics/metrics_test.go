package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://pastebin.com/abc", "pastebin.com"},
		{"standard https", "https://Pastebin.com/raw/abc", "pastebin.com"},
		{"no scheme", "pastedrop.net/xyz", "pastedrop.net"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if resolverRequestsTotal == nil || httpRequestsTotal == nil || browserSessionsActive == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveResolution(t *testing.T) {
	ObserveResolution("metrics-test", "success", 250*time.Millisecond)
	ObserveResolution("metrics-test", "success", time.Second)

	if val := testutil.ToFloat64(resolverRequestsTotal.WithLabelValues("metrics-test", "success")); val != 2 {
		t.Errorf("expected 2 resolutions recorded, got %f", val)
	}
}

func TestBrowserSessionGauge(t *testing.T) {
	before := testutil.ToFloat64(browserSessionsActive)
	IncBrowserSessions()
	if got := testutil.ToFloat64(browserSessionsActive); got != before+1 {
		t.Fatalf("expected gauge %f, got %f", before+1, got)
	}
	DecBrowserSessions("resolved")
	if got := testutil.ToFloat64(browserSessionsActive); got != before {
		t.Fatalf("expected gauge back at %f, got %f", before, got)
	}
	if got := testutil.ToFloat64(browserSessionsTotal.WithLabelValues("resolved")); got < 1 {
		t.Fatalf("expected resolved session counter to be incremented, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://pastebin.com", "https://linkvertise.com/1/x", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
