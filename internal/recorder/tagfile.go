package recorder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

const tagTimeLayout = "Mon Jan 2 15:04:05 2006 MST"

// TagFileWriter writes one plain-text tag file per session into Dir.
type TagFileWriter struct {
	Dir string
	// Location renders the local-time line; defaults to time.Local.
	Location *time.Location
}

// Path returns the file a session is written to.
func (w TagFileWriter) Path(id string) string {
	return filepath.Join(w.Dir, "tagfile-"+id+".txt")
}

// Save writes the tag file for s. An existing file for the same session is
// not overwritten.
func (w TagFileWriter) Save(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if w.Dir != "" {
		if err := os.MkdirAll(w.Dir, 0o755); err != nil {
			return fmt.Errorf("create tag file directory: %w", err)
		}
	}
	path := w.Path(s.ID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrSessionExists
		}
		return fmt.Errorf("create tag file: %w", err)
	}
	bw := bufio.NewWriter(f)
	w.write(bw, s)
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write tag file: %w", err)
	}
	return f.Close()
}

func (w TagFileWriter) write(b *bufio.Writer, s Session) {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}

	fmt.Fprintf(b, "\n[[METADATA FOR TRACKING SESSION %s]]\n", s.ID)
	fmt.Fprintf(b, "%s\n", s.Start.In(loc).Format(tagTimeLayout))
	fmt.Fprintf(b, "%s\n", s.Start.UTC().Format(tagTimeLayout))
	fmt.Fprintf(b, "Tracking was started at (unix): %.3f\n", unixSeconds(s.Start))
	fmt.Fprintf(b, "Tracking was completed at (unix): %.3f\n", unixSeconds(s.Finish))
	fmt.Fprintf(b, "Tracking took: %.3f seconds\n", s.Duration().Seconds())
	fmt.Fprintf(b, "Julian date at start: %.6f\n", julian.TimeToJD(s.Start))
	fmt.Fprintf(b, "Julian date at finish: %.6f\n", julian.TimeToJD(s.Finish))
	fmt.Fprintf(b, "Target: %s\n", s.Target)
	fmt.Fprintf(b, "Status: %s\n", s.Status)
	fmt.Fprintf(b, "Attempts: %d\n", s.Attempts)
	fmt.Fprintf(b, "Records: %d\n", len(s.Records))
	for _, e := range s.Errors {
		fmt.Fprintf(b, "Error: %s\n", e)
	}

	p := s.Provenance
	if p.Degraded {
		fmt.Fprintf(b, "Host information unavailable: %s\n", p.Reason)
	} else {
		fmt.Fprintf(b, "IP address of tracking host: %s\n", p.IP)
		fmt.Fprintf(b, "ISP used for internet access: %s\n", p.ISP)
		fmt.Fprintf(b, "Latitude: %s\n", p.Latitude)
		fmt.Fprintf(b, "Longitude: %s\n", p.Longitude)
		fmt.Fprintf(b, "Country: %s\n", p.Country)
		fmt.Fprintf(b, "City: %s\n", p.City)
	}

	fmt.Fprintf(b, "\n[[LOCATION INFORMATION]]\n")
	fmt.Fprintf(b, "Observer latitude: %.6f\n", s.Observer.Latitude)
	fmt.Fprintf(b, "Observer longitude: %.6f\n", s.Observer.Longitude)
	fmt.Fprintf(b, "Observer elevation: %.1f m\n", s.Observer.Elevation)
	fmt.Fprintf(b, "Azimuth limits: [%.2f, %.2f]\n", s.Limits.AzMin, s.Limits.AzMax)
	fmt.Fprintf(b, "Minimum safe altitude: %.2f\n", s.Limits.MinSafeAltitude)

	fmt.Fprintf(b, "\n\n[[LAB NOTES]]\n")
	if s.Notes != "" {
		fmt.Fprintf(b, "%s\n", s.Notes)
	}
	fmt.Fprintf(b, "\neof\n")
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
