package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/signalsfoundry/antenna-tracker/model"
)

func TestClassify(t *testing.T) {
	resolution := &ResolutionError{Target: model.CatalogBody{Name: "x"}, Err: errors.New("missing")}
	violation := &HorizonViolationError{Limits: testLimits}

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain", errors.New("socket closed"), KindTransient},
		{"resolution", resolution, KindResolution},
		{"wrapped resolution", fmt.Errorf("bind: %w", resolution), KindResolution},
		{"violation", violation, KindHorizonViolation},
		{"capture keeps kind", &CaptureError{Kind: KindHorizonViolation, Err: errors.New("x")}, KindHorizonViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCaptureErrorMatchesSentinels(t *testing.T) {
	ce := newCaptureError(errMountTimeout, testEpoch)
	if !errors.Is(ce, ErrTransient) || errors.Is(ce, ErrResolution) {
		t.Fatalf("transient capture error matched wrong sentinel")
	}
	if !errors.Is(ce, errMountTimeout) {
		t.Fatalf("capture error should unwrap to its cause")
	}
	if again := newCaptureError(ce, testEpoch.Add(1)); again != ce {
		t.Fatalf("wrapping a capture error twice should return it unchanged")
	}
}
