package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/sitecover/internal/enrich"
	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/model"
	"github.com/spf13/cobra"
)

func newEvaluateCmd(opts *rootOptions) *cobra.Command {
	var (
		siteWKT      string
		siteFile     string
		overlaysFile string
		window       string
		visit        string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one site and print the enriched record as JSON",
		Long: "Evaluate one site boundary. With --overlays the overlays are read from a JSON\n" +
			"array of {id, footprint, resolution}; otherwise the configured overlay search is used.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logCfg := cfg.LoggingConfig()
			logCfg.Output = cmd.ErrOrStderr()
			log := logging.New(logCfg)

			geometry, err := siteGeometry(siteWKT, siteFile)
			if err != nil {
				return err
			}
			req := enrich.EvaluateRequest{
				Site:   model.Site{Geometry: geometry, Visit: model.VisitStatus(visit)},
				Window: window,
			}
			if overlaysFile != "" {
				if req.Overlays, err = readOverlayInputs(overlaysFile); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			c, err := buildComponents(ctx, cfg, prometheus.NewRegistry(), log)
			if err != nil {
				return err
			}
			defer c.close()

			out, err := c.service.HandleEvaluate(ctx, req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&siteWKT, "site", "", "site boundary as WKT")
	cmd.Flags().StringVar(&siteFile, "site-file", "", "file holding the site boundary as WKT")
	cmd.Flags().StringVar(&overlaysFile, "overlays", "", "JSON file with the overlays to evaluate against")
	cmd.Flags().StringVar(&window, "window", "", "imagery lookback when searching, e.g. 720h")
	cmd.Flags().StringVar(&visit, "visit", string(model.VisitNotSeen), "visit status of the site")
	return cmd
}

func siteGeometry(wkt, path string) (string, error) {
	switch {
	case wkt != "" && path != "":
		return "", errors.New("--site and --site-file are mutually exclusive")
	case wkt != "":
		return wkt, nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read site file: %w", err)
		}
		return string(data), nil
	default:
		return "", errors.New("one of --site or --site-file is required")
	}
}

func readOverlayInputs(path string) ([]enrich.OverlayInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overlays: %w", err)
	}
	var overlays []enrich.OverlayInput
	if err := json.Unmarshal(data, &overlays); err != nil {
		return nil, fmt.Errorf("decode overlays %s: %w", path, err)
	}
	return overlays, nil
}
