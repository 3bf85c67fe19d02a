package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readTagFile(t *testing.T, w TagFileWriter, id string) string {
	t.Helper()
	data, err := os.ReadFile(w.Path(id))
	if err != nil {
		t.Fatalf("read tag file: %v", err)
	}
	return string(data)
}

func TestTagFileContents(t *testing.T) {
	w := TagFileWriter{Dir: filepath.Join(t.TempDir(), "tags"), Location: time.UTC}
	s := sampleSession("tag-1")

	if err := w.Save(context.Background(), s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(w.Path("tag-1")) != "tagfile-tag-1.txt" {
		t.Fatalf("unexpected path %s", w.Path("tag-1"))
	}
	body := readTagFile(t, w, "tag-1")

	for _, want := range []string{
		"[[METADATA FOR TRACKING SESSION tag-1]]",
		"Fri Mar 1 04:00:00 2024 UTC",
		"Tracking was started at (unix): 1709265600.000",
		"Tracking was completed at (unix): 1709265630.000",
		"Tracking took: 30.000 seconds",
		"Julian date at start: 2460370.666667",
		"Target: sun",
		"Status: completed",
		"Attempts: 2",
		"Records: 3",
		"Error: transient failure: mount timeout",
		"IP address of tracking host: 203.0.113.7",
		"City: Berkeley",
		"[[LOCATION INFORMATION]]",
		"Observer latitude: 37.873200",
		"Azimuth limits: [5.00, 350.00]",
		"[[LAB NOTES]]\nclear sky\n",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("tag file missing %q:\n%s", want, body)
		}
	}
	if !strings.HasSuffix(body, "\neof\n") {
		t.Fatalf("tag file should end with eof marker:\n%s", body)
	}
}

func TestTagFileDegradedProvenance(t *testing.T) {
	w := TagFileWriter{Dir: t.TempDir(), Location: time.UTC}
	s := sampleSession("tag-2")
	s.Provenance = Provenance{Degraded: true, Reason: "network unreachable"}

	if err := w.Save(context.Background(), s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	body := readTagFile(t, w, "tag-2")
	if !strings.Contains(body, "Host information unavailable: network unreachable") {
		t.Fatalf("missing degraded line:\n%s", body)
	}
	if strings.Contains(body, "IP address of tracking host") {
		t.Fatalf("degraded provenance should omit host lines:\n%s", body)
	}
}

func TestTagFileDoesNotOverwrite(t *testing.T) {
	w := TagFileWriter{Dir: t.TempDir()}
	s := sampleSession("tag-3")
	if err := w.Save(context.Background(), s); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := w.Save(context.Background(), s); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("second Save = %v, want ErrSessionExists", err)
	}
}
