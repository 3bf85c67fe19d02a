package recorder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPLocatorParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ip":"203.0.113.7","city":"Berkeley","region":"California","country":"US","loc":"37.8716,-122.2727","org":"AS64500 Example Net"}`))
	}))
	defer srv.Close()

	p, err := NewHTTPLocator(srv.URL, time.Second).Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	want := Provenance{
		IP:        "203.0.113.7",
		ISP:       "AS64500 Example Net",
		City:      "Berkeley",
		Country:   "US",
		Latitude:  "37.8716",
		Longitude: "-122.2727",
	}
	if p != want {
		t.Fatalf("Locate = %+v, want %+v", p, want)
	}
}

func TestLookupDegradesOnFailure(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		reason  string
	}{
		{
			name:    "status",
			handler: func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusTooManyRequests) },
			reason:  "429",
		},
		{
			name:    "malformed",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("not json")) },
			reason:  "decode",
		},
		{
			name:    "no ip",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"city":"x"}`)) },
			reason:  "no ip",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			p := Lookup(context.Background(), NewHTTPLocator(srv.URL, time.Second), nil)
			if !p.Degraded {
				t.Fatalf("expected degraded result, got %+v", p)
			}
			if !strings.Contains(p.Reason, tc.reason) {
				t.Fatalf("reason %q should mention %q", p.Reason, tc.reason)
			}
		})
	}
}

func TestLookupWithoutLocator(t *testing.T) {
	p := Lookup(context.Background(), nil, nil)
	if !p.Degraded || p.Reason == "" {
		t.Fatalf("nil locator should yield degraded result, got %+v", p)
	}
}

func TestNewHTTPLocatorDefaults(t *testing.T) {
	l := NewHTTPLocator("", 0)
	if l.Endpoint != DefaultLocatorEndpoint {
		t.Fatalf("endpoint = %q", l.Endpoint)
	}
	if l.Client == nil || l.Client.Timeout != 5*time.Second {
		t.Fatalf("unexpected client %+v", l.Client)
	}
}
