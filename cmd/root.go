package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-cli/internal/config"
	"github.com/sells-group/nearby-cli/internal/store"
	"github.com/sells-group/nearby-cli/pkg/here"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "nearby",
	Short: "Find places of interest around an address",
	Long:  "Geocodes an address via the HERE API, discovers nearby places for a set of search terms, and writes the deduplicated results as GeoJSON.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore opens the configured persistence backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.Path, cfg.Store.TTLDays)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.TTLDays)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initClient builds the HERE API client from configuration.
func initClient() *here.Client {
	return here.NewClient(cfg.HERE.AppID, cfg.HERE.AppCode,
		here.WithGeoVersion(cfg.HERE.GeoVersion),
		here.WithPlacesVersion(cfg.HERE.PlacesVersion),
		here.WithTimeout(time.Duration(cfg.HERE.TimeoutSecs)*time.Second),
		here.WithBatchConcurrency(cfg.HERE.BatchGeocoders),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
