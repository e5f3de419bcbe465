package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/sitecover/internal/enrich"
	"github.com/signalsfoundry/sitecover/internal/simprovider"
	"github.com/spf13/cobra"
)

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	var (
		tleFile  string
		siteWKT  string
		start    string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Propagate TLEs over a site and print synthetic overlays as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if tleFile == "" {
				tleFile = cfg.Simulation.TLEFile
			}
			if tleFile == "" {
				return errors.New("--tle or simulation.tle_file is required")
			}
			if siteWKT == "" {
				return errors.New("--site is required")
			}
			from := time.Now().UTC()
			if start != "" {
				if from, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}

			sats, err := simprovider.LoadTLEFile(tleFile)
			if err != nil {
				return err
			}
			provider := simprovider.New(sats, simprovider.Config{
				FootprintKm:     cfg.Simulation.FootprintKm,
				Step:            cfg.Simulation.Step,
				ResolutionPerKm: cfg.Simulation.ResolutionPerKm,
			})
			overlays, err := provider.Overlays(cmd.Context(), siteWKT, from, from.Add(duration))
			if err != nil {
				return err
			}

			out := make([]enrich.OverlayInput, len(overlays))
			for i, o := range overlays {
				res := o.Resolution
				out[i] = enrich.OverlayInput{ID: o.ID, Footprint: o.Footprint, Resolution: &res}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&tleFile, "tle", "", "TLE file (two- or three-line sets)")
	cmd.Flags().StringVar(&siteWKT, "site", "", "site boundary as WKT")
	cmd.Flags().StringVar(&start, "start", "", "RFC3339 start time, default now")
	cmd.Flags().DurationVar(&duration, "duration", 24*time.Hour, "length of the simulated window")
	return cmd
}
