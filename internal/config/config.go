// Package config loads tracker settings from flags, TRACKER_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/antenna-tracker/internal/mount"
	"github.com/signalsfoundry/antenna-tracker/internal/observability"
	"github.com/signalsfoundry/antenna-tracker/model"
)

// EnvPrefix is prepended to every environment override, e.g.
// TRACKER_TRACKING_DURATION.
const EnvPrefix = "TRACKER"

// Mount drivers.
const (
	DriverSimulator = "simulator"
	DriverMQTT      = "mqtt"
)

// Config is the complete tracker configuration.
type Config struct {
	Observer   ObserverOptions   `mapstructure:"observer"`
	Limits     LimitsOptions     `mapstructure:"limits"`
	Tracking   TrackingOptions   `mapstructure:"tracking"`
	Target     TargetOptions     `mapstructure:"target"`
	Mount      MountOptions      `mapstructure:"mount"`
	Recorder   RecorderOptions   `mapstructure:"recorder"`
	Metrics    MetricsOptions    `mapstructure:"metrics"`
	Provenance ProvenanceOptions `mapstructure:"provenance"`
	Tracing    TracingOptions    `mapstructure:"tracing"`
	Log        LogOptions        `mapstructure:"log"`
}

type ObserverOptions struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Elevation float64 `mapstructure:"elevation"`
}

type LimitsOptions struct {
	AzMin           float64 `mapstructure:"az-min"`
	AzMax           float64 `mapstructure:"az-max"`
	MinSafeAltitude float64 `mapstructure:"min-safe-altitude"`
}

type TrackingOptions struct {
	Duration    time.Duration `mapstructure:"duration"`
	MinPeriod   time.Duration `mapstructure:"min-period"`
	MaxRestarts int           `mapstructure:"max-restarts"`
}

// TargetOptions holds exactly one target form. RA and Dec are strings so an
// unset coordinate can be told apart from zero.
type TargetOptions struct {
	Body    string `mapstructure:"body"`
	Catalog string `mapstructure:"catalog"`
	RA      string `mapstructure:"ra"`
	Dec     string `mapstructure:"dec"`
	J2000   bool   `mapstructure:"j2000"`
	// CatalogFile replaces the embedded source catalog when set.
	CatalogFile string `mapstructure:"catalog-file"`
}

type MountOptions struct {
	Driver   string      `mapstructure:"driver"`
	SlewRate float64     `mapstructure:"slew-rate"`
	MQTT     MQTTOptions `mapstructure:"mqtt"`
}

type MQTTOptions struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client-id"`
	TopicRoot      string        `mapstructure:"topic-root"`
	QoS            int           `mapstructure:"qos"`
	KeepAlive      time.Duration `mapstructure:"keep-alive"`
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`
	ReplyTimeout   time.Duration `mapstructure:"reply-timeout"`
}

type RecorderOptions struct {
	Directory string `mapstructure:"directory"`
	// Database is the SQLite file, relative to Directory unless absolute.
	// Empty disables the database.
	Database string `mapstructure:"database"`
	TagFile  bool   `mapstructure:"tag-file"`
	Notes    string `mapstructure:"notes"`
}

type MetricsOptions struct {
	// Addr serves /metrics when non-empty.
	Addr string `mapstructure:"addr"`
}

type ProvenanceOptions struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TracingOptions struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service-name"`
	SampleRatio float64 `mapstructure:"sample-ratio"`
}

type LogOptions struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in settings. The observer defaults to the
// Berkeley NCH rooftop site.
func Default() Config {
	return Config{
		Observer: ObserverOptions{Latitude: 37.8732, Longitude: -122.2573, Elevation: 123.1},
		Limits:   LimitsOptions{AzMin: 5, AzMax: 350, MinSafeAltitude: 5},
		Tracking: TrackingOptions{Duration: 10 * time.Second, MinPeriod: 30 * time.Second},
		Mount: MountOptions{
			Driver:   DriverSimulator,
			SlewRate: 5,
			MQTT: MQTTOptions{
				Broker:         "mqtt://localhost:1883",
				TopicRoot:      "antenna/mount",
				QoS:            1,
				KeepAlive:      30 * time.Second,
				ConnectTimeout: 5 * time.Second,
				ReplyTimeout:   10 * time.Second,
			},
		},
		Recorder:   RecorderOptions{Directory: ".", Database: "tracker.db", TagFile: true},
		Provenance: ProvenanceOptions{Enabled: true, Endpoint: "https://ipinfo.io/json", Timeout: 5 * time.Second},
		Tracing: TracingOptions{
			Exporter:    observability.ExporterStdout,
			ServiceName: "antenna-tracker",
			SampleRatio: 1,
		},
		Log: LogOptions{Level: "info", Format: "text"},
	}
}

// AddFlags registers every setting on fs, using the dotted names that
// viper binds to config keys.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.Float64Var(&c.Observer.Latitude, "observer.latitude", c.Observer.Latitude, "Observer latitude in degrees.")
	fs.Float64Var(&c.Observer.Longitude, "observer.longitude", c.Observer.Longitude, "Observer longitude in degrees, east positive.")
	fs.Float64Var(&c.Observer.Elevation, "observer.elevation", c.Observer.Elevation, "Observer elevation in metres.")

	fs.Float64Var(&c.Limits.AzMin, "limits.az-min", c.Limits.AzMin, "Lowest azimuth the mount can reach.")
	fs.Float64Var(&c.Limits.AzMax, "limits.az-max", c.Limits.AzMax, "Highest azimuth the mount can reach.")
	fs.Float64Var(&c.Limits.MinSafeAltitude, "limits.min-safe-altitude", c.Limits.MinSafeAltitude, "Lowest safe altitude.")

	fs.DurationVar(&c.Tracking.Duration, "tracking.duration", c.Tracking.Duration, "Total tracking time, shared across restarts.")
	fs.DurationVar(&c.Tracking.MinPeriod, "tracking.min-period", c.Tracking.MinPeriod, "Minimum time between pointing commands.")
	fs.IntVar(&c.Tracking.MaxRestarts, "tracking.max-restarts", c.Tracking.MaxRestarts, "Restart cap after transient failures (0 = budget only).")

	fs.StringVar(&c.Target.Body, "target.body", c.Target.Body, "Solar-system body to track (sun or moon).")
	fs.StringVar(&c.Target.Catalog, "target.catalog", c.Target.Catalog, "Catalog source name to track.")
	fs.StringVar(&c.Target.RA, "target.ra", c.Target.RA, "Right ascension in degrees.")
	fs.StringVar(&c.Target.Dec, "target.dec", c.Target.Dec, "Declination in degrees.")
	fs.BoolVar(&c.Target.J2000, "target.j2000", c.Target.J2000, "Treat ra/dec as J2000 and precess to date.")
	fs.StringVar(&c.Target.CatalogFile, "target.catalog-file", c.Target.CatalogFile, "TOML catalog replacing the built-in one.")

	fs.StringVar(&c.Mount.Driver, "mount.driver", c.Mount.Driver, "Mount driver: simulator or mqtt.")
	fs.Float64Var(&c.Mount.SlewRate, "mount.slew-rate", c.Mount.SlewRate, "Simulated slew rate in degrees per second (0 = instant).")
	fs.StringVar(&c.Mount.MQTT.Broker, "mount.mqtt.broker", c.Mount.MQTT.Broker, "MQTT broker URL.")
	fs.StringVar(&c.Mount.MQTT.ClientID, "mount.mqtt.client-id", c.Mount.MQTT.ClientID, "MQTT client ID (generated if empty).")
	fs.StringVar(&c.Mount.MQTT.TopicRoot, "mount.mqtt.topic-root", c.Mount.MQTT.TopicRoot, "Topic prefix for mount commands and replies.")
	fs.IntVar(&c.Mount.MQTT.QoS, "mount.mqtt.qos", c.Mount.MQTT.QoS, "MQTT QoS level (0-2).")
	fs.DurationVar(&c.Mount.MQTT.KeepAlive, "mount.mqtt.keep-alive", c.Mount.MQTT.KeepAlive, "MQTT keep alive interval.")
	fs.DurationVar(&c.Mount.MQTT.ConnectTimeout, "mount.mqtt.connect-timeout", c.Mount.MQTT.ConnectTimeout, "MQTT connection timeout.")
	fs.DurationVar(&c.Mount.MQTT.ReplyTimeout, "mount.mqtt.reply-timeout", c.Mount.MQTT.ReplyTimeout, "Wait for a mount reply before failing the cycle.")

	fs.StringVar(&c.Recorder.Directory, "recorder.directory", c.Recorder.Directory, "Directory for the database and tag files.")
	fs.StringVar(&c.Recorder.Database, "recorder.database", c.Recorder.Database, "SQLite session database (empty disables).")
	fs.BoolVar(&c.Recorder.TagFile, "recorder.tag-file", c.Recorder.TagFile, "Write a tag file per session.")
	fs.StringVar(&c.Recorder.Notes, "recorder.notes", c.Recorder.Notes, "Lab notes appended to the tag file.")

	fs.StringVar(&c.Metrics.Addr, "metrics.addr", c.Metrics.Addr, "Address for the Prometheus /metrics endpoint (empty disables).")

	fs.BoolVar(&c.Provenance.Enabled, "provenance.enabled", c.Provenance.Enabled, "Look up host provenance for the tag file.")
	fs.StringVar(&c.Provenance.Endpoint, "provenance.endpoint", c.Provenance.Endpoint, "Provenance lookup endpoint.")
	fs.DurationVar(&c.Provenance.Timeout, "provenance.timeout", c.Provenance.Timeout, "Provenance lookup timeout.")

	fs.BoolVar(&c.Tracing.Enabled, "tracing.enabled", c.Tracing.Enabled, "Export session and cycle spans.")
	fs.StringVar(&c.Tracing.Exporter, "tracing.exporter", c.Tracing.Exporter, "Span exporter: stdout or otlp.")
	fs.StringVar(&c.Tracing.Endpoint, "tracing.endpoint", c.Tracing.Endpoint, "OTLP gRPC collector address.")
	fs.StringVar(&c.Tracing.ServiceName, "tracing.service-name", c.Tracing.ServiceName, "service.name resource attribute.")
	fs.Float64Var(&c.Tracing.SampleRatio, "tracing.sample-ratio", c.Tracing.SampleRatio, "Fraction of sessions to sample, 0 to 1.")

	fs.StringVar(&c.Log.Level, "log.level", c.Log.Level, "Log level: debug, info, warn, error.")
	fs.StringVar(&c.Log.Format, "log.format", c.Log.Format, "Log format: text or json.")
}

// Load resolves the configuration. Precedence, highest first: explicitly
// set flags, TRACKER_* environment, the config file, flag defaults.
func Load(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.ObserverLocation().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observer: %w", err))
	}
	if err := c.MountLimits().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("limits: %w", err))
	}
	if c.Tracking.Duration <= 0 {
		errs = append(errs, fmt.Errorf("tracking.duration must be positive, got %s", c.Tracking.Duration))
	}
	if c.Tracking.MinPeriod <= 0 {
		errs = append(errs, fmt.Errorf("tracking.min-period must be positive, got %s", c.Tracking.MinPeriod))
	}
	if c.Tracking.MaxRestarts < 0 {
		errs = append(errs, fmt.Errorf("tracking.max-restarts must not be negative"))
	}
	switch c.Mount.Driver {
	case DriverSimulator:
		if c.Mount.SlewRate < 0 {
			errs = append(errs, fmt.Errorf("mount.slew-rate must not be negative"))
		}
	case DriverMQTT:
		if c.Mount.MQTT.QoS < 0 || c.Mount.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mount.mqtt.qos must be 0, 1 or 2"))
		} else {
			mc := c.MQTTConfig()
			if err := mc.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("mount.mqtt: %w", err))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("mount.driver %q must be %s or %s", c.Mount.Driver, DriverSimulator, DriverMQTT))
	}
	if c.Provenance.Enabled && strings.TrimSpace(c.Provenance.Endpoint) == "" {
		errs = append(errs, fmt.Errorf("provenance.endpoint is required when provenance is enabled"))
	}
	if err := c.TracingConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	return errors.Join(errs...)
}

// TracingConfig converts the tracing settings. Spans carry the observer
// site.
func (c Config) TracingConfig() observability.TracingConfig {
	site := c.ObserverLocation()
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    strings.ToLower(strings.TrimSpace(c.Tracing.Exporter)),
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
		Site:        &site,
	}
}

// ObserverLocation converts the observer settings.
func (c Config) ObserverLocation() model.ObserverLocation {
	return model.ObserverLocation{
		Latitude:  c.Observer.Latitude,
		Longitude: c.Observer.Longitude,
		Elevation: c.Observer.Elevation,
	}
}

// MountLimits converts the limit settings.
func (c Config) MountLimits() model.MountLimits {
	return model.MountLimits{
		AzMin:           c.Limits.AzMin,
		AzMax:           c.Limits.AzMax,
		MinSafeAltitude: c.Limits.MinSafeAltitude,
	}
}

// MQTTConfig converts the MQTT settings for the mount client.
func (c Config) MQTTConfig() mount.MQTTConfig {
	m := c.Mount.MQTT
	return mount.MQTTConfig{
		BrokerURL:      m.Broker,
		ClientID:       m.ClientID,
		TopicRoot:      m.TopicRoot,
		QoS:            byte(m.QoS),
		KeepAlive:      uint16(m.KeepAlive.Seconds()),
		ConnectTimeout: m.ConnectTimeout,
		ReplyTimeout:   m.ReplyTimeout,
	}
}

// TargetDescriptor parses the target settings into a model.Target.
func (c Config) TargetDescriptor() (model.Target, error) {
	ra, err := parseOptionalDegrees("target.ra", c.Target.RA)
	if err != nil {
		return nil, err
	}
	dec, err := parseOptionalDegrees("target.dec", c.Target.Dec)
	if err != nil {
		return nil, err
	}
	return model.ParseTarget(c.Target.Body, c.Target.Catalog, ra, dec, c.Target.J2000)
}

func parseOptionalDegrees(name, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number of degrees", name, raw)
	}
	return &v, nil
}
