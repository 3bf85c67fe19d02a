package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/antenna-tracker/core"
	"github.com/signalsfoundry/antenna-tracker/internal/recorder"
	"github.com/signalsfoundry/antenna-tracker/model"
)

func newTimeCmd(opts *rootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "time",
		Short: "Print unix, UTC, local and julian time plus local sidereal time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			t, err := parseInstant(at)
			if err != nil {
				return err
			}
			lst := core.LocalSiderealTime(t, cfg.Observer.Longitude)
			cmd.Printf("Unix: %.3f\n", float64(t.UnixNano())/1e9)
			cmd.Printf("UTC: %s\n", t.UTC().Format(time.RFC3339))
			cmd.Printf("Local: %s\n", t.Local().Format(time.RFC3339))
			cmd.Printf("Julian date: %.6f\n", julian.TimeToJD(t))
			cmd.Printf("Local sidereal time: %.4f deg (%s)\n", lst, formatHours(lst))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Instant to report (RFC3339); defaults to now.")
	return cmd
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "catalog [name]",
		Short: "List catalog sources, or show where one points now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				table := uitable.New()
				table.MaxColWidth = 60
				table.AddRow("NAME", "RA", "DEC", "ALIASES", "DESCRIPTION")
				for _, e := range catalog.List() {
					table.AddRow(e.Name, fmt.Sprintf("%.4f", e.RA), fmt.Sprintf("%.4f", e.Dec), strings.Join(e.Aliases, ","), e.Description)
				}
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			}

			t, err := parseInstant(at)
			if err != nil {
				return err
			}
			entry, err := catalog.Lookup(args[0])
			if err != nil {
				return err
			}
			transformer, err := core.NewTransformer(cfg.ObserverLocation(), cfg.MountLimits())
			if err != nil {
				return err
			}
			bound, err := core.NewResolver(core.NewMeeusEphemeris(catalog)).Bind(cmd.Context(), model.CatalogBody{Name: args[0]}, t)
			if err != nil {
				return err
			}
			eq, err := bound.At(cmd.Context(), t)
			if err != nil {
				return err
			}

			cmd.Printf("Source: %s\n", entry.Name)
			cmd.Printf("J2000: ra=%.4f dec=%.4f\n", entry.RA, entry.Dec)
			cmd.Printf("Of date: ra=%.4f dec=%.4f\n", eq.RA, eq.Dec)
			cmd.Printf("Horizontal: %v\n", transformer.Horizontal(eq, t))
			pointing, err := transformer.Transform(eq, t)
			if err != nil {
				cmd.Printf("Mount: unreachable (%v)\n", err)
				return nil
			}
			cmd.Printf("Mount: %v\n", pointing)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Instant to resolve at (RFC3339); defaults to now.")
	return cmd
}

func newLocateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "Look up the provenance recorded with each session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			var loc recorder.Locator
			if cfg.Provenance.Enabled {
				loc = recorder.NewHTTPLocator(cfg.Provenance.Endpoint, cfg.Provenance.Timeout)
			}
			p := recorder.Lookup(cmd.Context(), loc, newLogger(cmd, cfg))
			if p.Degraded {
				cmd.Printf("Host information unavailable: %s\n", p.Reason)
				return nil
			}
			cmd.Printf("IP: %s\n", p.IP)
			cmd.Printf("ISP: %s\n", p.ISP)
			cmd.Printf("City: %s\n", p.City)
			cmd.Printf("Country: %s\n", p.Country)
			cmd.Printf("Latitude: %s\n", p.Latitude)
			cmd.Printf("Longitude: %s\n", p.Longitude)
			return nil
		},
	}
}

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions [id]",
		Short: "List recorded sessions, or show one session's records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Recorder.Database == "" {
				return errors.New("recorder.database is not configured")
			}
			path := databasePath(cfg.Recorder)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("session database %s: %w", path, err)
			}
			db, err := recorder.OpenSQLite(path)
			if err != nil {
				return err
			}
			defer db.Close()

			if len(args) == 1 {
				return printSession(cmd, db, args[0])
			}

			sessions, err := db.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("ID", "STARTED", "TARGET", "STATUS", "ATTEMPTS", "RECORDS")
			for _, s := range sessions {
				table.AddRow(s.ID, s.Start.Format(time.RFC3339), s.Target, s.Status, s.Attempts, s.Records)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list (0 = all).")
	return cmd
}

func printSession(cmd *cobra.Command, db *recorder.SQLiteRecorder, id string) error {
	s, err := db.Load(cmd.Context(), id)
	if err != nil {
		return err
	}
	cmd.Printf("Session: %s\nTarget: %s\nStatus: %s\nDuration: %s\n", s.ID, s.Target, s.Status, s.Duration())
	table := uitable.New()
	table.AddRow("TIME", "ALT", "AZ", "MOUNT ALT", "MOUNT AZ")
	for _, r := range s.Records {
		table.AddRow(r.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%.3f", r.Intended.Altitude), fmt.Sprintf("%.3f", r.Intended.Azimuth),
			fmt.Sprintf("%.3f", r.Actual.Altitude), fmt.Sprintf("%.3f", r.Actual.Azimuth))
	}
	fmt.Fprintln(cmd.OutOrStdout(), table)
	return nil
}

func parseInstant(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// formatHours renders degrees of sidereal time as hours, minutes, seconds.
func formatHours(deg float64) string {
	total := time.Duration(deg / 15 * float64(time.Hour)).Round(time.Second)
	h := total / time.Hour
	m := (total % time.Hour) / time.Minute
	s := (total % time.Minute) / time.Second
	return fmt.Sprintf("%02dh%02dm%02ds", h, m, s)
}
