package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
)

// DefaultLocatorEndpoint answers with the caller's public address and its
// approximate location.
const DefaultLocatorEndpoint = "https://ipinfo.io/json"

// Provenance describes the host that ran a session. Degraded is set when
// the lookup failed; Reason says why.
type Provenance struct {
	IP        string
	ISP       string
	City      string
	Country   string
	Latitude  string
	Longitude string
	Degraded  bool
	Reason    string
}

// Locator resolves the provenance of the current host.
type Locator interface {
	Locate(ctx context.Context) (Provenance, error)
}

// HTTPLocator queries an ipinfo-style JSON endpoint.
type HTTPLocator struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPLocator returns a locator for endpoint (DefaultLocatorEndpoint if
// empty) with a bounded request timeout.
func NewHTTPLocator(endpoint string, timeout time.Duration) *HTTPLocator {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultLocatorEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPLocator{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

type ipinfoResponse struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Country string `json:"country"`
	Loc     string `json:"loc"`
	Org     string `json:"org"`
}

// Locate performs one lookup.
func (l *HTTPLocator) Locate(ctx context.Context) (Provenance, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Endpoint, nil)
	if err != nil {
		return Provenance{}, fmt.Errorf("build locate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Provenance{}, fmt.Errorf("locate host: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Provenance{}, fmt.Errorf("locate host: unexpected status %s", resp.Status)
	}

	var body ipinfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return Provenance{}, fmt.Errorf("decode locate response: %w", err)
	}
	if body.IP == "" {
		return Provenance{}, fmt.Errorf("locate host: response carries no ip")
	}

	p := Provenance{
		IP:      body.IP,
		ISP:     body.Org,
		City:    body.City,
		Country: body.Country,
	}
	if lat, lon, ok := strings.Cut(body.Loc, ","); ok {
		if _, err := strconv.ParseFloat(lat, 64); err == nil {
			p.Latitude = lat
		}
		if _, err := strconv.ParseFloat(lon, 64); err == nil {
			p.Longitude = lon
		}
	}
	return p, nil
}

// Lookup runs loc and never fails: any error becomes a degraded result.
// A nil locator yields a degraded result marked as disabled.
func Lookup(ctx context.Context, loc Locator, log logging.Logger) Provenance {
	if log == nil {
		log = logging.Noop()
	}
	if loc == nil {
		return Provenance{Degraded: true, Reason: "provenance lookup disabled"}
	}
	p, err := loc.Locate(ctx)
	if err != nil {
		log.Warn(ctx, "provenance lookup failed", logging.Err(err))
		return Provenance{Degraded: true, Reason: err.Error()}
	}
	return p
}
