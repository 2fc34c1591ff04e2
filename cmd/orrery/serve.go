package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/render/wsfeed"
	"github.com/signalsfoundry/orrery/timectrl"
)

func newServeCmd(a *app) *cobra.Command {
	var maxFPS float64
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream frames to websocket clients",
		Long: `Runs the frame loop at the configured rate and streams every frame as JSON on
/ws. Clients send pointer, wheel and resize messages back to steer the shared
camera. Prometheus metrics are served on the metrics address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, maxFPS)
		},
	}
	cmd.Flags().String("addr", "", "websocket listen address")
	cmd.Flags().String("metrics-addr", "", "Prometheus listen address (empty string disables)")
	cmd.Flags().Float64Var(&maxFPS, "max-fps", wsfeed.DefaultMaxFPS, "per-client frame cap")
	bind(a.v, cmd.Flags(), map[string]string{
		"serve.addr":         "addr",
		"serve.metrics_addr": "metrics-addr",
	})
	return cmd
}

func (a *app) serve(ctx context.Context, maxFPS float64) error {
	registry := prometheus.NewRegistry()
	sim, err := a.newSimulation(ctx, setupOptions{registry: registry, mode: timectrl.RealTime})
	if err != nil {
		return err
	}

	hub := wsfeed.NewHub(sim.scene, sim.queue,
		wsfeed.WithLogger(a.log),
		wsfeed.WithMaxClients(a.cfg.Serve.MaxClients),
		wsfeed.WithMaxFPS(maxFPS),
		wsfeed.WithClientObserver(sim.metrics),
	)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	feedSrv := &http.Server{Addr: a.cfg.Serve.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	var metricsSrv *http.Server
	if a.cfg.Serve.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", sim.metrics.Handler())
		metricsSrv = &http.Server{Addr: a.cfg.Serve.MetricsAddr, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return listen(gctx, feedSrv, "feed", a.log) })
	if metricsSrv != nil {
		g.Go(func() error { return listen(gctx, metricsSrv, "metrics", a.log) })
	}

	frameErr := make(chan error, 1)
	sim.clock.AddListener(func(f timectrl.Frame) {
		if err := sim.engine.Tick(gctx); err != nil {
			select {
			case frameErr <- fmt.Errorf("frame %d: %w", f.Index, err):
			default:
			}
		}
	})
	g.Go(func() error {
		loopCtx, cancel := context.WithCancel(gctx)
		defer cancel()
		done := sim.clock.Start(loopCtx, 0)
		select {
		case err := <-frameErr:
			cancel()
			<-done
			return err
		case <-done:
			return nil
		}
	})

	a.log.Info(ctx, "serving",
		logging.String("feed", a.cfg.Serve.Addr),
		logging.String("metrics", a.cfg.Serve.MetricsAddr),
		logging.String("catalog", sim.catalog.Name),
	)
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info(context.Background(), "stopped", logging.Int("frames", sim.clock.Frames()))
	return nil
}

// listen runs srv until ctx ends, then shuts it down gracefully.
func listen(ctx context.Context, srv *http.Server, name string, log logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "server shutdown", logging.String("server", name), logging.Err(err))
	}
	return <-errCh
}
