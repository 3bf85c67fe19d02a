package model

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func ptr(v float64) *float64 { return &v }

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		catalog string
		ra, dec *float64
		j2000   bool
		want    Target
		wantErr bool
	}{
		{name: "sun", body: "Sun", want: NamedBody{Body: BodySun}},
		{name: "moon", body: "moon", want: NamedBody{Body: BodyMoon}},
		{name: "catalog", catalog: "Cas A", want: CatalogBody{Name: "Cas A"}},
		{name: "fixed", ra: ptr(83.6), dec: ptr(22.0), j2000: true, want: FixedEquatorial{RA: 83.6, Dec: 22.0, J2000: true}},
		{name: "unknown body", body: "jupiter", wantErr: true},
		{name: "ra without dec", ra: ptr(10), wantErr: true},
		{name: "two forms", body: "sun", catalog: "cyg a", wantErr: true},
		{name: "dec out of range", ra: ptr(10), dec: ptr(95), wantErr: true},
		{name: "nothing", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTarget(tc.body, tc.catalog, tc.ra, tc.dec, tc.j2000)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseTarget() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTarget() error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseTarget() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestParseTargetNoTarget(t *testing.T) {
	if _, err := ParseTarget("", "", nil, nil, false); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("ParseTarget() error = %v, want ErrNoTarget", err)
	}
}

func TestNormalizeName(t *testing.T) {
	for in, want := range map[string]string{
		"Cas A":      "casa",
		"cyg-a":      "cyga",
		"Sgr_A*":     "sgra*",
		" Orion  A ": "oriona",
	} {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMountLimitsValidate(t *testing.T) {
	if err := (MountLimits{AzMin: 5, AzMax: 350, MinSafeAltitude: 5}).Validate(); err != nil {
		t.Fatalf("valid limits rejected: %v", err)
	}
	for _, l := range []MountLimits{
		{AzMin: 100, AzMax: 90, MinSafeAltitude: 5},
		{AzMin: 0, AzMax: 120, MinSafeAltitude: 5},
		{AzMin: 0, AzMax: 360, MinSafeAltitude: 95},
		{AzMin: -10, AzMax: 200, MinSafeAltitude: 5},
	} {
		if err := l.Validate(); err == nil {
			t.Errorf("limits %+v accepted, want error", l)
		}
	}
}

func TestObserverLocationValidate(t *testing.T) {
	if err := (ObserverLocation{Latitude: 37.8732, Longitude: -122.2573, Elevation: 123.1}).Validate(); err != nil {
		t.Fatalf("valid location rejected: %v", err)
	}
	if err := (ObserverLocation{Latitude: 91, Longitude: 181}).Validate(); err == nil {
		t.Fatalf("invalid location accepted")
	}
}

func TestSessionBudgetNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		requested := time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(t, "requested"))
		b := NewSessionBudget(requested)
		steps := rapid.SliceOfN(rapid.Int64Range(-int64(time.Minute), int64(time.Minute)), 0, 50).Draw(t, "steps")

		var spent time.Duration
		for _, s := range steps {
			d := time.Duration(s)
			b = b.Consume(d)
			if d > 0 {
				spent += d
			}
			if b.Remaining() < 0 {
				t.Fatalf("remaining went negative: %v", b.Remaining())
			}
		}
		want := requested - spent
		if want < 0 {
			want = 0
		}
		if b.Remaining() != want {
			t.Fatalf("Remaining() = %v, want %v", b.Remaining(), want)
		}
		if b.Exhausted() != (want == 0) {
			t.Fatalf("Exhausted() = %v with remaining %v", b.Exhausted(), want)
		}
	})
}
