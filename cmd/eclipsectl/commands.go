package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/star/eclipse/internal/config"
	"github.com/star/eclipse/internal/geo"
	"github.com/star/eclipse/internal/transform"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog eclipses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := opts.dataset(opts.logger())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tMIDPOINT")
			for _, e := range ds.Eclipses {
				fmt.Fprintf(tw, "%s\t%s\t%.2f, %.2f\n", e.ID, e.Type, e.Midpoint.Lat, e.Midpoint.Lon)
			}
			return tw.Flush()
		},
	}
}

func newLocalCmd(opts *options) *cobra.Command {
	var lat, lon, alt float64
	cmd := &cobra.Command{
		Use:   "local <eclipse-id>",
		Short: "Evaluate local circumstances at one location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
				return fmt.Errorf("location %.4f, %.4f out of range", lat, lon)
			}
			e, err := opts.engine(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), e.EvaluateLocalCircumstances(lat, lon, alt))
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "geodetic latitude, degrees north")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude, degrees east")
	cmd.Flags().Float64Var(&alt, "alt", 0, "altitude above the ellipsoid, meters")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	return cmd
}

func newPathsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "paths <eclipse-id>",
		Short: "Trace every boundary curve and print them as GeoJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.engine(args[0])
			if err != nil {
				return err
			}
			set, err := e.TraceAll(cmd.Context())
			if err != nil {
				return err
			}
			curves := set.Curves()
			features := make([]geo.Feature, len(curves))
			for i, c := range curves {
				features[i] = geo.CurveFeature(c)
			}
			return writeJSON(cmd.OutOrStdout(), geo.NewFeatureCollection(features...))
		},
	}
}

func newShadowCmd(opts *options) *cobra.Command {
	var (
		jd    float64
		at    string
		umbra bool
		bound bool
	)
	cmd := &cobra.Command{
		Use:   "shadow <eclipse-id>",
		Short: "Print the shadow outline at one instant as GeoJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.engine(args[0])
			if err != nil {
				return err
			}

			switch {
			case at != "":
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --time: %w", err)
				}
				jd = transform.JulianDate(ts)
			case jd == 0:
				jd = e.Eclipse().Elements.JulianDay(0)
			}

			if bound {
				set, err := e.TraceAll(cmd.Context())
				if err != nil {
					return err
				}
				e.UseCurves(set)
			}

			poly, err := e.BuildShadowPolygon(cmd.Context(), jd, !umbra)
			if err != nil {
				return err
			}
			fc := geo.NewFeatureCollection()
			if poly != nil {
				fc = geo.NewFeatureCollection(geo.PolygonFeature(poly))
			}
			return writeJSON(cmd.OutOrStdout(), fc)
		},
	}
	cmd.Flags().Float64Var(&jd, "jd", 0, "instant as a UT Julian Day (default: greatest eclipse)")
	cmd.Flags().StringVar(&at, "time", "", "instant as an RFC 3339 time")
	cmd.Flags().BoolVar(&umbra, "umbra", false, "outline the umbra instead of the penumbra")
	cmd.Flags().BoolVar(&bound, "trace", false, "trace the paths first to bound the scan")
	cmd.MarkFlagsMutuallyExclusive("jd", "time")
	return cmd
}

func newConfigCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or write the effective engine configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if out != "" {
				return cfg.Save(out)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the configuration as YAML to this file")
	return cmd
}
