package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Nemiok/gde-deshevle/internal/ingest"
)

var daemonPort int

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled sweeps with an HTTP trigger endpoint",
	Long:  "Sweeps all enabled stores on the configured schedule and exposes GET /health and POST /sweep for manual triggers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sched, err := ingest.NewScheduler(env.Orchestrator, cfg.Schedule.Spec, cfg.Sources.Enabled)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()

		port := daemonPort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(sched),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server",
				zap.Int("port", port),
				zap.String("schedule", cfg.Schedule.Spec),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			return srv.Shutdown(context.WithoutCancel(gctx))
		})
		return g.Wait()
	},
}

// newRouter builds the trigger surface: liveness plus a manual sweep hook.
func newRouter(sched *ingest.Scheduler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/sweep", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Stores []string `json:"stores"`
		}
		if req.Body != nil && req.ContentLength != 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
		}

		stats, err := sched.RunNow(req.Context(), body.Stores)
		switch {
		case errors.Is(err, ingest.ErrSweepInProgress):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "sweep already in progress"})
			return
		case err != nil && strings.Contains(err.Error(), "unknown source"):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		case err != nil:
			zap.L().Error("manual sweep failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sweep failed"})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	daemonCmd.Flags().IntVar(&daemonPort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(daemonCmd)
}
