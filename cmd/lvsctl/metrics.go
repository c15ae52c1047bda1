package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "metrics", Short: "Expose engine metrics"}
	cmd.AddCommand(newMetricsServeCmd())
	return cmd
}

func newMetricsServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine's Prometheus metrics over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetricsServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address for the metrics endpoint")
	return cmd
}

func runMetricsServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("lvsctl: metrics server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
