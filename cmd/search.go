package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-cli/internal/geojson"
	"github.com/sells-group/nearby-cli/internal/nearby"
	"github.com/sells-group/nearby-cli/internal/store"
)

var (
	searchTerms      []string
	searchTermsFile  string
	searchRadius     int
	searchMaxPerTerm int
	searchOut        string
	searchShp        bool
	searchNoCache    bool
)

var searchCmd = &cobra.Command{
	Use:   "search <address>",
	Short: "Search for places around an address",
	Long:  "Geocodes the address, queries the HERE places API for each search term, and writes the accumulated features to <out>.geojson.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		address := args[0]

		if err := cfg.Validate("search"); err != nil {
			return err
		}

		terms := searchTerms
		radius := searchRadius
		out := searchOut
		if searchTermsFile != "" {
			profile, err := nearby.LoadProfile(searchTermsFile)
			if err != nil {
				return err
			}
			terms = profile.Terms
			if profile.Radius > 0 {
				radius = profile.Radius
			}
			if profile.Out != "" {
				out = profile.Out
			}
		}
		if len(terms) == 0 {
			terms = cfg.Search.Terms
		}
		if radius == 0 {
			radius = cfg.Search.Radius
		}
		if out == "" {
			out = cfg.Search.Out
		}
		maxPerTerm := searchMaxPerTerm
		if maxPerTerm < 0 {
			maxPerTerm = cfg.Search.MaxPerTerm
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var cache nearby.PositionCache
		if !searchNoCache {
			cache = st
		}

		p := nearby.New(initClient(), cache, radius, maxPerTerm)
		fc, err := p.Run(ctx, address, terms)
		if err != nil {
			return err
		}

		if err := fc.WriteFile(out); err != nil {
			return err
		}
		if searchShp {
			if err := ensureShapefileCompat(fc.Count()); err != nil {
				return err
			}
			if err := geojson.WriteShapefile(fc, out); err != nil {
				return err
			}
		}

		if err := st.RecordRun(ctx, store.Run{
			Address:  address,
			Terms:    terms,
			Radius:   radius,
			Features: fc.Count(),
		}); err != nil {
			zap.L().Warn("record run failed", zap.Error(err))
		}

		zap.L().Info("search complete",
			zap.String("address", address),
			zap.String("terms", strings.Join(terms, ",")),
			zap.Int("features", fc.Count()),
			zap.String("out", out+".geojson"),
		)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringSliceVar(&searchTerms, "terms", nil, "search terms (default from config: beer,club,restaurant)")
	searchCmd.Flags().StringVar(&searchTermsFile, "terms-file", "", "YAML search profile; overrides --terms")
	searchCmd.Flags().IntVar(&searchRadius, "radius", 0, "search radius in meters (default from config: 2000)")
	searchCmd.Flags().IntVar(&searchMaxPerTerm, "max-per-term", -1, "per-term feature cap (default from config: 20)")
	searchCmd.Flags().StringVar(&searchOut, "out", "", "output file name without extension (default from config: pymi)")
	searchCmd.Flags().BoolVar(&searchShp, "shp", false, "also write an ESRI shapefile next to the GeoJSON")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "bypass the geocode cache")
	rootCmd.AddCommand(searchCmd)
}

// ensureShapefileCompat guards the --shp flag against empty collections;
// a point shapefile needs at least one record for a usable bounding box.
func ensureShapefileCompat(count int) error {
	if count == 0 {
		return eris.New("no features to write; refusing to create an empty shapefile")
	}
	return nil
}
