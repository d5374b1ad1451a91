package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-cli/internal/nearby"
	"github.com/sells-group/nearby-cli/pkg/here"
)

var resolveNoCache bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <address> [address...]",
	Short: "Resolve addresses to coordinates",
	Long:  "Geocodes one or more addresses and prints the resolved coordinates as JSON. Multiple addresses are resolved concurrently.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		client := initClient()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if len(args) == 1 {
			var cache nearby.PositionCache
			if !resolveNoCache {
				cache = st
			}
			p := nearby.New(client, cache, cfg.Search.Radius, cfg.Search.MaxPerTerm)
			pos, err := p.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			return enc.Encode(resolveResult{Address: args[0], Position: pos})
		}

		results := client.BatchGeocode(ctx, args)
		out := make([]resolveResult, 0, len(results))
		for _, r := range results {
			rr := resolveResult{Address: r.Address, Position: r.Position}
			if r.Err != nil {
				rr.Error = r.Err.Error()
				zap.L().Warn("resolve failed",
					zap.String("address", r.Address),
					zap.Error(r.Err),
				)
			} else if !resolveNoCache && r.Position != nil {
				if err := st.PutPosition(ctx, r.Address, *r.Position); err != nil {
					zap.L().Warn("cache store failed", zap.Error(err))
				}
			}
			out = append(out, rr)
		}
		return enc.Encode(out)
	},
}

// resolveResult is the JSON shape printed for each resolved address.
type resolveResult struct {
	Address  string         `json:"address"`
	Position *here.Position `json:"position,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveNoCache, "no-cache", false, "bypass the geocode cache")
	rootCmd.AddCommand(resolveCmd)
}
