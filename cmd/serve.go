package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-cli/internal/geojson"
	"github.com/sells-group/nearby-cli/internal/nearby"
	"github.com/sells-group/nearby-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP search server",
	Long:  "Serves GET /v1/search for place searches and GET /health for liveness checks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		client := initClient()
		newSearch := func(radius int) searcher {
			return nearby.New(client, st, radius, cfg.Search.MaxPerTerm)
		}
		router := buildRouter(newSearch, st, serveDefaults{
			Terms:  cfg.Search.Terms,
			Radius: cfg.Search.Radius,
		})

		timeout := time.Duration(cfg.Server.TimeoutSecs) * time.Second
		return startServer(ctx, router, resolvePort(servePort, cfg.Server.Port), timeout)
	},
}

// searcher is the slice of the pipeline the HTTP layer depends on.
type searcher interface {
	Run(ctx context.Context, address string, terms []string) (*geojson.Collection, error)
}

// runRecorder persists completed searches; nil disables run history.
type runRecorder interface {
	RecordRun(ctx context.Context, run store.Run) error
}

// serveDefaults are the search parameters applied when the request omits them.
type serveDefaults struct {
	Terms  []string
	Radius int
}

// buildRouter assembles the chi router for the search server. newSearch
// builds a search pipeline for the requested radius.
func buildRouter(newSearch func(radius int) searcher, rec runRecorder, defaults serveDefaults) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/search", func(w http.ResponseWriter, req *http.Request) {
		address := req.URL.Query().Get("address")
		if address == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address is required"})
			return
		}

		terms := defaults.Terms
		if raw := req.URL.Query().Get("terms"); raw != "" {
			terms = strings.Split(raw, ",")
		}

		radius := defaults.Radius
		if raw := req.URL.Query().Get("radius"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "radius must be a positive integer"})
				return
			}
			radius = n
		}

		fc, err := newSearch(radius).Run(req.Context(), address, terms)
		if err != nil {
			zap.L().Error("search failed",
				zap.String("address", address),
				zap.Error(err),
			)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		if rec != nil {
			if err := rec.RecordRun(req.Context(), store.Run{
				Address:  address,
				Terms:    terms,
				Radius:   radius,
				Features: fc.Count(),
			}); err != nil {
				zap.L().Warn("record run failed", zap.Error(err))
			}
		}

		w.Header().Set("X-Feature-Count", strconv.Itoa(fc.Count()))
		writeJSON(w, http.StatusOK, fc.Snapshot())
	})

	return r
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// startServer runs the HTTP server until ctx is canceled.
func startServer(ctx context.Context, handler http.Handler, port int, timeout time.Duration) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		srv.Shutdown(context.Background()) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
